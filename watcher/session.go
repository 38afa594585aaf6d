package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"landlord-lens/card"
	"landlord-lens/vision"
)

// Board 会话可轮询的牌桌视图。截屏、区域布局和模板匹配都藏在
// 这一层后面；vision.Screen 是生产实现。
type Board interface {
	// Refresh 截取一张新帧并更新所有区域。瞬时失败在内部重试，
	// 只有 ctx 取消才返回错误。
	Refresh(ctx context.Context) error

	// LandlordConfidences 三个地主标记区的匹配置信度，顺序 Left, Middle, Right。
	LandlordConfidences() [3]float32
	// LandlordThreshold 当前生效的地主标记阈值。
	LandlordThreshold() float32

	ClassifyPlay(idx int) vision.RegionState
	RecognizePlay(idx int) map[card.Label]int
	RecognizeHand() map[card.Label]int
	RecognizeBottom() map[card.Label]int
}

// RoundResult 一局结束时交给回调方（台账、展示层）的汇总。
type RoundResult struct {
	Round          uint32
	Landlord       Seat
	Winner         Seat
	WinnerInferred bool
	ManualReset    bool
	Findings       []Finding
	Counts         CounterSnapshot
	EndedAt        time.Time
}

// Session 顶层状态机：IDLE → AWAITING_START → LANDLORD_KNOWN →
// IN_PROGRESS → ENDED → IDLE，循环直到外部停止信号。
//
// Run 在专属的后台 goroutine 中执行；展示侧通过 Status 和
// Counter.Snapshot 读取，通过 ManualReset 触发人工复位。
type Session struct {
	cfg     Config
	board   Board
	counter *Counter
	auditor *Auditor
	logger  *log.Logger

	// OnRoundEnd 每局结束时被调用（在工作循环内，应快速返回）。
	OnRoundEnd func(RoundResult)

	mu       sync.Mutex
	phase    Phase
	landlord Seat
	active   Seat
	round    uint32

	resetFlag atomic.Bool
	running   atomic.Bool
}

func NewSession(cfg Config, board Board, counter *Counter, logger *log.Logger) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:      cfg,
		board:    board,
		counter:  counter,
		auditor:  NewAuditor(logger),
		logger:   logger,
		phase:    PhaseIdle,
		landlord: SeatNone,
		active:   SeatNone,
	}, nil
}

// SessionStatus 展示侧可读的会话状态。
type SessionStatus struct {
	Phase    Phase
	Landlord Seat
	Active   Seat
	Round    uint32
}

func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStatus{Phase: s.phase, Landlord: s.landlord, Active: s.active, Round: s.round}
}

// ManualReset 强制当前对局立即结束，用于从卡死或误读的对局中
// 人工恢复。等待开局到对局进行中的任何阶段都接受；IDLE 和 ENDED
// 是轮与轮之间的瞬时状态，没有可复位的对局。
func (s *Session) ManualReset() error {
	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()

	if phase == PhaseIdle || phase == PhaseEnded {
		return ErrInvalidState("no round in flight to reset")
	}
	s.resetFlag.Store(true)
	s.logger.Info("manual reset requested", "phase", phase)
	return nil
}

// Run 后台工作循环，一局接一局地跑，直到 ctx 取消。
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}
	defer s.running.Store(false)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.safeRound(ctx); err != nil {
			return err
		}
	}
}

// safeRound 在循环边界兜住编程缺陷：识别噪声永远不该冒泡成
// panic，但真出了缺陷也只报告本局、不杀死后台循环。
func (s *Session) safeRound(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("round aborted by panic", "panic", r)
			err = nil
		}
	}()
	return s.runRound(ctx)
}

// runRound 跑完一局：等开局、定地主、记手牌、逐轮跟踪、终局审计。
func (s *Session) runRound(ctx context.Context) error {
	s.setPhase(PhaseIdle)
	s.counter.Reset()
	s.resetFlag.Store(false)
	s.setSeats(SeatNone, SeatNone)

	landlord, err := s.awaitStart(ctx)
	if err != nil {
		return err
	}
	if landlord == SeatNone {
		// 等待阶段收到人工复位，直接回到 IDLE 重来。
		return nil
	}

	s.beginRound(landlord)

	manualReset, err := s.trackPlays(ctx)
	if err != nil {
		return err
	}

	s.finishRound(manualReset)
	return nil
}

// awaitStart 轮询三个地主标记区直到其中之一超过阈值。
// 返回地主座位；人工复位时返回 SeatNone。
func (s *Session) awaitStart(ctx context.Context) (Seat, error) {
	s.setPhase(PhaseAwaitingStart)
	s.logger.Info("waiting for a round to start")

	for {
		if err := ctx.Err(); err != nil {
			return SeatNone, err
		}
		if s.resetFlag.Load() {
			return SeatNone, nil
		}

		if err := s.board.Refresh(ctx); err != nil {
			return SeatNone, err
		}

		conf := s.board.LandlordConfidences()
		best, idx := bestConfidence(conf)
		if best >= s.board.LandlordThreshold() {
			return Seat(idx), nil
		}

		s.logger.Debug("round not started yet", "confidences", conf)
		if err := sleepCtx(ctx, s.cfg.GameStartInterval); err != nil {
			return SeatNone, err
		}
	}
}

// beginRound 进入 LANDLORD_KNOWN：识别并一次性入账本家整手牌，
// 然后把行动指针转到地主。
func (s *Session) beginRound(landlord Seat) {
	s.setPhase(PhaseLandlordKnown)
	s.mu.Lock()
	s.round++
	s.mu.Unlock()
	s.logger.Info("landlord found", "seat", landlord)

	hand := s.board.RecognizeHand()
	expected := SeatMiddle.HandSize(landlord)
	got := card.Total(hand)
	// 识别误差是常态：记警告，继续。方向信息帮助排查是漏检还是重检。
	if got < expected {
		s.logger.Warn("own hand undercounted, some cards were missed",
			"recognized", got, "expected", expected)
	} else if got > expected {
		s.logger.Warn("own hand overcounted, some cards were probably detected twice",
			"recognized", got, "expected", expected)
	}
	for label, n := range hand {
		for i := 0; i < n; i++ {
			s.counter.Mark(label, SeatMiddle)
		}
	}
	s.counter.ResetPlayed(SeatMiddle)

	s.setSeats(landlord, landlord)
}

// trackPlays IN_PROGRESS 主循环。每个周期：截帧 → 查终局 →
// 分类当前区域 → 视状态等待、跳过或识牌 → 推进行动指针。
// 返回是否因人工复位而结束。
func (s *Session) trackPlays(ctx context.Context) (bool, error) {
	s.setPhase(PhaseInProgress)

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if s.resetFlag.Load() {
			return true, nil
		}

		if err := s.board.Refresh(ctx); err != nil {
			return false, err
		}

		// 终局检测独立于轮转：底牌区一旦识出牌就结束。
		if len(s.board.RecognizeBottom()) > 0 {
			return false, nil
		}

		active := s.activeSeat()
		switch s.board.ClassifyPlay(int(active)) {
		case vision.StateWait:
			if err := sleepCtx(ctx, s.cfg.ScreenshotInterval); err != nil {
				return false, err
			}
			continue

		case vision.StatePass:
			s.logger.Info("player passed", "seat", active)

		case vision.StatePlayed:
			// 本家的牌早已整手入账，跳过识别。
			if active != SeatMiddle {
				cards := s.board.RecognizePlay(int(active))
				if len(cards) == 0 {
					s.logger.Warn("region classified as played but no cards recognized", "seat", active)
				}
				for label, n := range cards {
					for i := 0; i < n; i++ {
						s.counter.Mark(label, active)
					}
				}
			}
		}

		s.advance()
	}
}

// finishRound ENDED：审计、上报、回到 IDLE。
func (s *Session) finishRound(manualReset bool) {
	s.setPhase(PhaseEnded)

	s.mu.Lock()
	landlord := s.landlord
	round := s.round
	s.mu.Unlock()

	snap := s.counter.Snapshot()
	winner, inferred := inferWinner(snap, landlord)
	findings := s.auditor.Check(snap, landlord, winner)

	if s.OnRoundEnd != nil {
		s.OnRoundEnd(RoundResult{
			Round:          round,
			Landlord:       landlord,
			Winner:         winner,
			WinnerInferred: inferred,
			ManualReset:    manualReset,
			Findings:       findings,
			Counts:         snap,
			EndedAt:        time.Now(),
		})
	}
	s.logger.Info("round ended", "round", round, "landlord", landlord,
		"winner", winner, "findings", len(findings), "manual_reset", manualReset)
}

// inferWinner 推断赢家：出牌总数恰好等于整手牌张数的座位。
// 左右两家都未出完时推定为本家（它的出牌不逐轮跟踪）。
func inferWinner(snap CounterSnapshot, landlord Seat) (Seat, bool) {
	for _, seat := range []Seat{SeatLeft, SeatRight} {
		if snap.PlayedTotals[seat] == seat.HandSize(landlord) {
			return seat, false
		}
	}
	return SeatMiddle, true
}

// bestConfidence 返回最高置信度及其座位下标。
// 严格大于才替换：并列时保留最小下标（Left 优先于 Middle 优先于 Right）。
func bestConfidence(conf [3]float32) (float32, int) {
	best, idx := conf[0], 0
	for i := 1; i < 3; i++ {
		if conf[i] > best {
			best, idx = conf[i], i
		}
	}
	return best, idx
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Session) setSeats(landlord, active Seat) {
	s.mu.Lock()
	s.landlord = landlord
	s.active = active
	s.mu.Unlock()
}

func (s *Session) activeSeat() Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// advance 行动指针只按固定循环顺序前进，从不回跳。
func (s *Session) advance() {
	s.mu.Lock()
	s.active = s.active.Next()
	s.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
