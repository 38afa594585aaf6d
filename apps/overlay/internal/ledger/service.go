package ledger

import (
	"context"
	"time"

	"landlord-lens/watcher"
)

const defaultRecentLimit = 50

// RoundRecord 一局的台账行：身份、结局和审计结论。
type RoundRecord struct {
	SessionID      string            `json:"session_id"`
	Round          uint32            `json:"round"`
	Landlord       string            `json:"landlord"`
	Winner         string            `json:"winner"`
	WinnerInferred bool              `json:"winner_inferred"`
	ManualReset    bool              `json:"manual_reset"`
	RemainingTotal int               `json:"remaining_total"`
	Findings       []watcher.Finding `json:"findings"`
	Remaining      map[string]int    `json:"remaining"`
	EndedAt        time.Time         `json:"ended_at"`
}

type Service interface {
	Close() error
	RecordRound(ctx context.Context, rec RoundRecord) error
	ListRecent(ctx context.Context, limit int) ([]RoundRecord, error)
}

// NewService 选择台账实现：路径为空时不落盘。
// 返回的 mode 字符串只用于启动日志。
func NewService(dbPath string) (Service, string, error) {
	if dbPath == "" {
		return noopService{}, "disabled", nil
	}
	svc, err := NewSQLiteService(dbPath)
	if err != nil {
		return nil, "", err
	}
	return svc, "sqlite", nil
}

type noopService struct{}

func (noopService) Close() error { return nil }

func (noopService) RecordRound(context.Context, RoundRecord) error { return nil }
func (noopService) ListRecent(context.Context, int) ([]RoundRecord, error) {
	return nil, nil
}

// FromResult 把一局结果折叠成台账行。
func FromResult(sessionID string, res watcher.RoundResult) RoundRecord {
	remaining := make(map[string]int, len(res.Counts.Remaining))
	for label, n := range res.Counts.Remaining {
		remaining[label.String()] = n
	}
	return RoundRecord{
		SessionID:      sessionID,
		Round:          res.Round,
		Landlord:       res.Landlord.String(),
		Winner:         res.Winner.String(),
		WinnerInferred: res.WinnerInferred,
		ManualReset:    res.ManualReset,
		RemainingTotal: res.Counts.RemainingTotal,
		Findings:       res.Findings,
		Remaining:      remaining,
		EndedAt:        res.EndedAt,
	}
}
