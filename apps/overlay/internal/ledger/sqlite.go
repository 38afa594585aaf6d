package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"landlord-lens/watcher"

	_ "modernc.org/sqlite"
)

type SQLiteService struct {
	db *sql.DB
}

func NewSQLiteService(dbPath string) (*SQLiteService, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteService{db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS round_audit (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id      TEXT    NOT NULL,
    round           INTEGER NOT NULL,
    landlord        TEXT    NOT NULL,
    winner          TEXT    NOT NULL,
    winner_inferred INTEGER NOT NULL,
    manual_reset    INTEGER NOT NULL,
    remaining_total INTEGER NOT NULL,
    findings_json   TEXT    NOT NULL,
    remaining_json  TEXT    NOT NULL,
    ended_at_ms     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_round_audit_ended ON round_audit (ended_at_ms DESC);
`)
	return err
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) RecordRound(ctx context.Context, rec RoundRecord) error {
	findings, err := json.Marshal(rec.Findings)
	if err != nil {
		return err
	}
	remaining, err := json.Marshal(rec.Remaining)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO round_audit (
    session_id, round, landlord, winner, winner_inferred,
    manual_reset, remaining_total, findings_json, remaining_json, ended_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, rec.SessionID, int64(rec.Round), rec.Landlord, rec.Winner, boolInt(rec.WinnerInferred),
		boolInt(rec.ManualReset), rec.RemainingTotal, string(findings), string(remaining),
		rec.EndedAt.UTC().UnixMilli())
	return err
}

func (s *SQLiteService) ListRecent(ctx context.Context, limit int) ([]RoundRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, round, landlord, winner, winner_inferred,
       manual_reset, remaining_total, findings_json, remaining_json, ended_at_ms
FROM round_audit
ORDER BY ended_at_ms DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoundRecord
	for rows.Next() {
		var (
			rec           RoundRecord
			round         int64
			inferred      int
			manual        int
			findingsJSON  string
			remainingJSON string
			endedMs       int64
		)
		if err := rows.Scan(&rec.SessionID, &round, &rec.Landlord, &rec.Winner, &inferred,
			&manual, &rec.RemainingTotal, &findingsJSON, &remainingJSON, &endedMs); err != nil {
			return nil, err
		}
		rec.Round = uint32(round)
		rec.WinnerInferred = inferred != 0
		rec.ManualReset = manual != 0
		if findingsJSON != "" {
			var findings []watcher.Finding
			if err := json.Unmarshal([]byte(findingsJSON), &findings); err == nil {
				rec.Findings = findings
			}
		}
		if remainingJSON != "" {
			var remaining map[string]int
			if err := json.Unmarshal([]byte(remainingJSON), &remaining); err == nil {
				rec.Remaining = remaining
			}
		}
		rec.EndedAt = time.UnixMilli(endedMs).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
