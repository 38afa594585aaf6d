package watcher

import (
	"fmt"

	"github.com/charmbracelet/log"

	"landlord-lens/card"
)

// 终局时合法的总剩余张数区间：底牌 3 张永远不入账，
// 赢家出完整手牌（17 或 20 张）后最多还剩 54-17-1=36 张可见牌未出。
const (
	minRemainingAtEnd = 3
	maxRemainingAtEnd = 36
)

// Finding 审计结论，只描述不纠正。
type Finding struct {
	Code    string
	Message string
}

func (f Finding) String() string { return f.Code + ": " + f.Message }

// Auditor 对局结束后的一次性自检。只读，不修改计数器；
// 所有结论都以警告级别记录，绝不致命。
type Auditor struct {
	logger *log.Logger
}

func NewAuditor(logger *log.Logger) *Auditor {
	return &Auditor{logger: logger}
}

// Check 对终局计数做范围检查，返回全部发现的问题。
func (a *Auditor) Check(snap CounterSnapshot, landlord, winner Seat) []Finding {
	var findings []Finding
	add := func(code, format string, args ...any) {
		f := Finding{Code: code, Message: fmt.Sprintf(format, args...)}
		findings = append(findings, f)
		a.logger.Warn("round audit", "code", f.Code, "detail", f.Message)
	}

	// 总剩余张数
	if snap.RemainingTotal > maxRemainingAtEnd {
		add("remaining_total_high",
			"total remaining %d exceeds %d, some plays were probably missed",
			snap.RemainingTotal, maxRemainingAtEnd)
	}
	if snap.RemainingTotal < minRemainingAtEnd {
		add("remaining_total_low",
			"total remaining %d is below %d, some cards were probably detected twice",
			snap.RemainingTotal, minRemainingAtEnd)
	}

	// 单牌面剩余数
	for _, l := range card.Labels() {
		n := snap.Remaining[l]
		if n < 0 {
			add("remaining_label_negative", "remaining %s is %d", l, n)
		}
		if n > l.Capacity() {
			add("remaining_label_excess", "remaining %s is %d, capacity %d", l, n, l.Capacity())
		}
	}

	// 每个玩家的出牌总数
	for _, seat := range []Seat{SeatLeft, SeatMiddle, SeatRight} {
		// Middle 的整手牌开局就已入账，之后不逐轮跟踪，
		// 它的出牌总数没有可检查的期望值。
		if seat == SeatMiddle {
			continue
		}

		played := snap.PlayedTotals[seat]
		full := seat.HandSize(landlord)

		if seat == winner {
			if played < full {
				add("winner_played_low",
					"%s won but only %d plays were counted, expected %d", seat, played, full)
			} else if played > full {
				add("winner_played_high",
					"%s won with %d plays counted, expected %d; some cards were probably detected twice",
					seat, played, full)
			}
			continue
		}

		if played > full-1 {
			add("player_played_high",
				"%s played %d cards, a non-winner holds at most %d", seat, played, full-1)
		}
		if played < 0 {
			add("player_played_negative", "%s played count is %d", seat, played)
		}
	}

	// 左右两家按牌面细分的出牌表
	for _, seat := range []Seat{SeatLeft, SeatRight} {
		for _, l := range card.Labels() {
			n := snap.Played[seat][l]
			if n < 0 {
				add("player_label_negative", "%s played %s count is %d", seat, l, n)
			}
			if n > l.Capacity() {
				add("player_label_excess",
					"%s played %s %d times, capacity %d; some cards were probably detected twice",
					seat, l, n, l.Capacity())
			}
		}
	}

	if len(findings) == 0 {
		a.logger.Info("round audit clean", "landlord", landlord, "winner", winner)
	}
	return findings
}
