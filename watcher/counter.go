package watcher

import (
	"sync"

	"github.com/charmbracelet/log"

	"landlord-lens/card"
)

// CounterEvent 计数变化事件，供展示层消费（代替把计数逻辑
// 绑死在 GUI 变量上）。
type CounterEvent struct {
	Label     card.Label
	Seat      Seat
	Remaining int
	// Warning 表示这次标记把剩余数打成了负数，
	// 很可能是同一张牌被重复识别。
	Warning bool
}

const counterEventBuffer = 64

// Counter 记牌器：共享的剩余计数表加上每个非本家玩家的已出牌计数表。
//
// Mark 和 Reset 相互串行；展示侧通过 Snapshot 读取拷贝，
// 允许落后一个轮询周期。
type Counter struct {
	mu sync.Mutex

	remaining      map[card.Label]int
	remainingTotal int

	// 本家的牌开局整手可见，只记总数；左右两家按牌面细分。
	played       map[Seat]map[card.Label]int
	playedTotals map[Seat]int

	events chan CounterEvent
	logger *log.Logger
}

func NewCounter(logger *log.Logger) *Counter {
	c := &Counter{
		events: make(chan CounterEvent, counterEventBuffer),
		logger: logger,
	}
	c.Reset()
	return c
}

// Mark 标记一张已出的牌：剩余数减一；非本家时该玩家的已出数加一。
//
// 剩余数已经是零时仍然执行减一（允许出现负数）并记一条警告：
// 拒绝操作会悄悄丢掉“疑似重复识别”这一信息，保留负数反而
// 让偏差在审计时可见。
func (c *Counter) Mark(label card.Label, seat Seat) {
	c.mu.Lock()

	c.remaining[label]--
	c.remainingTotal--
	remaining := c.remaining[label]

	if seat != SeatMiddle {
		c.played[seat][label]++
	}
	c.playedTotals[seat]++

	warning := remaining < 0
	c.mu.Unlock()

	if warning {
		c.logger.Warn("marked a card with none remaining",
			"label", label, "seat", seat, "remaining", remaining)
	} else {
		c.logger.Info("marked card", "label", label, "seat", seat, "remaining", remaining)
	}

	c.emit(CounterEvent{Label: label, Seat: seat, Remaining: remaining, Warning: warning})
}

// ResetPlayed 清零某个座位的已出牌计数。本家的整手牌在开局
// 一次性入账后调用，此后它的出牌不再逐轮跟踪。
func (c *Counter) ResetPlayed(seat Seat) {
	c.mu.Lock()
	if seat != SeatMiddle {
		c.played[seat] = card.EmptyCount()
	}
	c.playedTotals[seat] = 0
	c.mu.Unlock()
}

// Reset 一步恢复所有计数表到初始满额/零值。幂等。
func (c *Counter) Reset() {
	c.mu.Lock()
	c.remaining = card.FullCount()
	c.remainingTotal = card.DeckSize
	c.played = map[Seat]map[card.Label]int{
		SeatLeft:  card.EmptyCount(),
		SeatRight: card.EmptyCount(),
	}
	c.playedTotals = map[Seat]int{SeatLeft: 0, SeatMiddle: 0, SeatRight: 0}
	c.mu.Unlock()
}

// Events 计数变化事件流。满了就丢弃，消费方的缺口由下一次
// Snapshot 补齐。
func (c *Counter) Events() <-chan CounterEvent {
	return c.events
}

func (c *Counter) emit(ev CounterEvent) {
	select {
	case c.events <- ev:
	default:
	}
}

// CounterSnapshot 计数器的一致性拷贝。
type CounterSnapshot struct {
	Remaining      map[card.Label]int
	RemainingTotal int
	Played         map[Seat]map[card.Label]int
	PlayedTotals   map[Seat]int
}

func (c *Counter) Snapshot() CounterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := CounterSnapshot{
		Remaining:      make(map[card.Label]int, len(c.remaining)),
		RemainingTotal: c.remainingTotal,
		Played:         make(map[Seat]map[card.Label]int, len(c.played)),
		PlayedTotals:   make(map[Seat]int, len(c.playedTotals)),
	}
	for l, n := range c.remaining {
		snap.Remaining[l] = n
	}
	for seat, table := range c.played {
		dup := make(map[card.Label]int, len(table))
		for l, n := range table {
			dup[l] = n
		}
		snap.Played[seat] = dup
	}
	for seat, n := range c.playedTotals {
		snap.PlayedTotals[seat] = n
	}
	return snap
}
