package ledger

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
)

// HTTPHandler 台账的只读查询接口。
type HTTPHandler struct {
	svc    Service
	logger *log.Logger
}

func NewHTTPHandler(svc Service, logger *log.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/rounds", h.handleRounds)
}

// handleRounds GET /rounds?limit=N，近期对局倒序。
func (h *HTTPHandler) handleRounds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.svc.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list rounds failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []RoundRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		h.logger.Error("encode rounds failed", "err", err)
	}
}
