package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"landlord-lens/card"
	"landlord-lens/watcher"

	"github.com/charmbracelet/log"
)

type fakeSession struct {
	status   watcher.SessionStatus
	resets   int
	resetErr error
}

func (f *fakeSession) Status() watcher.SessionStatus { return f.status }

func (f *fakeSession) ManualReset() error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets++
	return nil
}

func newTestGateway() (*Gateway, *fakeSession, *watcher.Counter) {
	logger := log.New(io.Discard)
	counter := watcher.NewCounter(logger)
	session := &fakeSession{status: watcher.SessionStatus{
		Phase:    watcher.PhaseInProgress,
		Landlord: watcher.SeatRight,
		Active:   watcher.SeatLeft,
		Round:    2,
	}}
	return New(session, counter, logger), session, counter
}

func TestStatePayload(t *testing.T) {
	g, _, counter := newTestGateway()
	counter.Reset()
	counter.Mark(card.LabelKing, watcher.SeatLeft)
	counter.Mark(card.LabelKing, watcher.SeatLeft)

	p := g.statePayload("")
	if p.Type != "state" || p.Phase != "in_progress" {
		t.Fatalf("payload header = %q/%q", p.Type, p.Phase)
	}
	if p.Landlord != "right" || p.Active != "left" || p.Round != 2 {
		t.Fatalf("payload status = %+v", p)
	}
	if p.Remaining["K"] != 2 {
		t.Fatalf("remaining K = %d", p.Remaining["K"])
	}
	if p.RemainingTotal != 52 {
		t.Fatalf("remaining total = %d", p.RemainingTotal)
	}
	if p.Played["left"]["K"] != 2 || p.PlayedTotals["left"] != 2 {
		t.Fatalf("played = %+v totals = %+v", p.Played, p.PlayedTotals)
	}
}

func TestHandleCounts(t *testing.T) {
	g, _, counter := newTestGateway()
	counter.Reset()

	req := httptest.NewRequest(http.MethodGet, "/counts", nil)
	rec := httptest.NewRecorder()
	g.HandleCounts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var p statePayload
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if p.Type != "state" || p.RemainingTotal != 54 {
		t.Fatalf("payload = %+v", p)
	}
}

func TestHandleCountsRejectsPost(t *testing.T) {
	g, _, _ := newTestGateway()
	req := httptest.NewRequest(http.MethodPost, "/counts", nil)
	rec := httptest.NewRecorder()
	g.HandleCounts(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestResetCommand(t *testing.T) {
	g, session, _ := newTestGateway()
	c := &Connection{ID: "conn_test", Gateway: g}

	c.handleMessage([]byte(`{"type":"reset"}`))
	if session.resets != 1 {
		t.Fatalf("resets = %d, want 1", session.resets)
	}

	// 未知命令与坏 JSON 都不应触发复位
	c.handleMessage([]byte(`{"type":"dance"}`))
	c.handleMessage([]byte(`{`))
	if session.resets != 1 {
		t.Fatalf("resets = %d after junk, want still 1", session.resets)
	}

	// 会话拒绝复位时只记日志，不崩溃
	session.resetErr = watcher.ErrInvalidState("no round in flight to reset")
	c.handleMessage([]byte(`{"type":"reset"}`))
	if session.resets != 1 {
		t.Fatalf("resets = %d after refused reset, want still 1", session.resets)
	}
}
