package watcher

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"landlord-lens/card"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestCounter_MarkDecrementsAndTracksPlayer(t *testing.T) {
	c := NewCounter(testLogger())

	c.Mark(card.LabelSeven, SeatLeft)
	c.Mark(card.LabelSeven, SeatLeft)

	snap := c.Snapshot()
	if snap.Remaining[card.LabelSeven] != 2 {
		t.Fatalf("remaining sevens = %d, want 2", snap.Remaining[card.LabelSeven])
	}
	if snap.Played[SeatLeft][card.LabelSeven] != 2 {
		t.Fatalf("left played sevens = %d, want 2", snap.Played[SeatLeft][card.LabelSeven])
	}
	if snap.PlayedTotals[SeatLeft] != 2 {
		t.Fatalf("left total = %d, want 2", snap.PlayedTotals[SeatLeft])
	}
	if snap.RemainingTotal != card.DeckSize-2 {
		t.Fatalf("remaining total = %d, want %d", snap.RemainingTotal, card.DeckSize-2)
	}
}

func TestCounter_MarkMiddleKeepsNoPerLabelTable(t *testing.T) {
	c := NewCounter(testLogger())

	c.Mark(card.LabelAce, SeatMiddle)

	snap := c.Snapshot()
	if _, ok := snap.Played[SeatMiddle]; ok {
		t.Fatal("middle must not have a per-label played table")
	}
	if snap.PlayedTotals[SeatMiddle] != 1 {
		t.Fatalf("middle total = %d, want 1", snap.PlayedTotals[SeatMiddle])
	}
	if snap.Remaining[card.LabelAce] != 3 {
		t.Fatalf("remaining aces = %d, want 3", snap.Remaining[card.LabelAce])
	}
}

func TestCounter_MarkBelowZeroWarnsButProceeds(t *testing.T) {
	c := NewCounter(testLogger())

	for i := 0; i < 2; i++ {
		c.Mark(card.LabelJoker, SeatRight)
	}
	// 第三次标记王：剩余数允许打成负数，偏差留给审计。
	c.Mark(card.LabelJoker, SeatRight)

	snap := c.Snapshot()
	if snap.Remaining[card.LabelJoker] != -1 {
		t.Fatalf("remaining jokers = %d, want -1", snap.Remaining[card.LabelJoker])
	}
	if snap.Played[SeatRight][card.LabelJoker] != 3 {
		t.Fatalf("right played jokers = %d, want 3", snap.Played[SeatRight][card.LabelJoker])
	}

	// 负数标记必须伴随带警告标志的事件
	warned := false
	for {
		select {
		case ev := <-c.Events():
			if ev.Warning && ev.Label == card.LabelJoker && ev.Remaining == -1 {
				warned = true
			}
		default:
			if !warned {
				t.Fatal("no warning event for negative remaining count")
			}
			return
		}
	}
}

func TestCounter_ResetIsIdempotent(t *testing.T) {
	c := NewCounter(testLogger())

	c.Mark(card.LabelKing, SeatLeft)
	c.Reset()
	once := c.Snapshot()

	c.Reset()
	twice := c.Snapshot()

	for _, l := range card.Labels() {
		if once.Remaining[l] != l.Capacity() || twice.Remaining[l] != l.Capacity() {
			t.Fatalf("remaining %s after reset = %d/%d, want %d",
				l, once.Remaining[l], twice.Remaining[l], l.Capacity())
		}
	}
	if once.RemainingTotal != card.DeckSize || twice.RemainingTotal != card.DeckSize {
		t.Fatalf("remaining totals = %d/%d, want %d", once.RemainingTotal, twice.RemainingTotal, card.DeckSize)
	}
	if twice.PlayedTotals[SeatLeft] != 0 {
		t.Fatalf("left total after reset = %d, want 0", twice.PlayedTotals[SeatLeft])
	}
}

func TestCounter_MiddleHandBatch(t *testing.T) {
	// 地主是本家：整手 20 张，其中一张王。
	c := NewCounter(testLogger())

	hand := map[card.Label]int{
		card.LabelThree: 4,
		card.LabelFour:  4,
		card.LabelFive:  4,
		card.LabelSix:   4,
		card.LabelSeven: 3,
		card.LabelJoker: 1,
	}
	for label, n := range hand {
		for i := 0; i < n; i++ {
			c.Mark(label, SeatMiddle)
		}
	}
	c.ResetPlayed(SeatMiddle)

	snap := c.Snapshot()
	if snap.Remaining[card.LabelJoker] != 1 {
		t.Fatalf("remaining jokers = %d, want 1", snap.Remaining[card.LabelJoker])
	}
	if snap.RemainingTotal != 34 {
		t.Fatalf("remaining total = %d, want 34", snap.RemainingTotal)
	}
	if snap.PlayedTotals[SeatMiddle] != 0 {
		t.Fatalf("middle total after hand attribution = %d, want 0", snap.PlayedTotals[SeatMiddle])
	}
}

func TestCounter_SnapshotIsACopy(t *testing.T) {
	c := NewCounter(testLogger())

	snap := c.Snapshot()
	snap.Remaining[card.LabelTwo] = -42
	snap.Played[SeatLeft][card.LabelTwo] = 42

	fresh := c.Snapshot()
	if fresh.Remaining[card.LabelTwo] != 4 {
		t.Fatalf("snapshot mutation leaked into counter: %d", fresh.Remaining[card.LabelTwo])
	}
	if fresh.Played[SeatLeft][card.LabelTwo] != 0 {
		t.Fatalf("snapshot mutation leaked into played table: %d", fresh.Played[SeatLeft][card.LabelTwo])
	}
}
