package watcher

// Seat 座位：固定三人，循环顺序 Left → Middle → Right。
// Middle 是本家（记牌器使用者自己）。
type Seat byte

const (
	SeatLeft   Seat = 0
	SeatMiddle Seat = 1
	SeatRight  Seat = 2

	SeatNone Seat = 255
)

var seatDictionary = map[Seat]string{
	SeatLeft:   "left",
	SeatMiddle: "middle",
	SeatRight:  "right",
	SeatNone:   "none",
}

func (s Seat) String() string {
	if name, ok := seatDictionary[s]; ok {
		return name
	}
	return "invalid"
}

// Next 循环顺序中的下一个座位。
func (s Seat) Next() Seat {
	return (s + 1) % 3
}

// HandSize 整手牌张数：地主 20 张，农民 17 张。
func (s Seat) HandSize(landlord Seat) int {
	if s == landlord {
		return 20
	}
	return 17
}

// Phase 会话生命周期阶段
type Phase byte

const (
	PhaseIdle          Phase = 0
	PhaseAwaitingStart Phase = 1
	PhaseLandlordKnown Phase = 2
	PhaseInProgress    Phase = 3
	PhaseEnded         Phase = 4
)

var phaseDictionary = map[Phase]string{
	PhaseIdle:          "idle",
	PhaseAwaitingStart: "awaiting_start",
	PhaseLandlordKnown: "landlord_known",
	PhaseInProgress:    "in_progress",
	PhaseEnded:         "ended",
}

func (p Phase) String() string {
	if name, ok := phaseDictionary[p]; ok {
		return name
	}
	return "unknown"
}
