package vision

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"

	"landlord-lens/card"
)

// captureRetryDelay 截屏失败（如屏幕锁定）时的固定重试间隔。
const captureRetryDelay = 2 * time.Second

// Layout 各监控区域的屏幕矩形，来自配置。
type Layout struct {
	PlayLeft   image.Rectangle
	PlayMiddle image.Rectangle
	PlayRight  image.Rectangle

	MarkerLeft   image.Rectangle
	MarkerMiddle image.Rectangle
	MarkerRight  image.Rectangle

	MyCards     image.Rectangle
	BottomCards image.Rectangle
}

func (l Layout) validate() error {
	rects := map[string]image.Rectangle{
		"play_left":     l.PlayLeft,
		"play_middle":   l.PlayMiddle,
		"play_right":    l.PlayRight,
		"marker_left":   l.MarkerLeft,
		"marker_middle": l.MarkerMiddle,
		"marker_right":  l.MarkerRight,
		"my_cards":      l.MyCards,
		"bottom_cards":  l.BottomCards,
	}
	for name, r := range rects {
		if r.Empty() {
			return fmt.Errorf("layout rectangle %q is empty", name)
		}
	}
	return nil
}

// fitsWithin 检查所有区域都落在帧边界内。区域坐标相对于截取的
// 整屏帧，原点固定在 (0,0)。
func (l Layout) fitsWithin(frame image.Rectangle) error {
	rects := map[string]image.Rectangle{
		"play_left":     l.PlayLeft,
		"play_middle":   l.PlayMiddle,
		"play_right":    l.PlayRight,
		"marker_left":   l.MarkerLeft,
		"marker_middle": l.MarkerMiddle,
		"marker_right":  l.MarkerRight,
		"my_cards":      l.MyCards,
		"bottom_cards":  l.BottomCards,
	}
	for name, r := range rects {
		if !r.In(frame) {
			return fmt.Errorf("layout rectangle %q %v is outside the display frame %v", name, r, frame)
		}
	}
	return nil
}

// Screen 把一台显示器封装成会话可轮询的牌桌。
//
// 持有全部区域、模板库和当前帧。Refresh 截取整屏灰度帧并更新
// 所有区域的子图；分类和识别都在最近一帧上进行。
// 只应由后台工作循环一个 goroutine 调用（阈值热更新除外）。
type Screen struct {
	display int
	layout  Layout

	play   [3]*Region // Left, Middle, Right 出牌区
	marker [3]*Region // 地主标记区，同序
	hand   *Region
	bottom *Region

	bank       *TemplateBank
	matcher    *Matcher
	classifier *Classifier
	recognizer *Recognizer

	thMu sync.RWMutex
	th   Thresholds

	frame  gocv.Mat
	logger *log.Logger
}

func NewScreen(display int, layout Layout, bank *TemplateBank, th Thresholds, background, tolerance uint8, logger *log.Logger) (*Screen, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}

	// 配置错误要在启动时暴露，而不是等第一次截屏才中断工作循环。
	active := screenshot.NumActiveDisplays()
	if display < 0 || display >= active {
		return nil, fmt.Errorf("display %d out of range, %d display(s) active", display, active)
	}
	bounds := screenshot.GetDisplayBounds(display)
	frame := image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	if err := layout.fitsWithin(frame); err != nil {
		return nil, err
	}

	matcher := NewMatcher()
	s := &Screen{
		display:    display,
		layout:     layout,
		bank:       bank,
		matcher:    matcher,
		classifier: NewClassifier(bank, matcher, background, tolerance),
		recognizer: NewRecognizer(bank, matcher),
		th:         th,
		frame:      gocv.NewMat(),
		logger:     logger,
	}
	s.play = [3]*Region{
		NewRegion(layout.PlayLeft),
		NewRegion(layout.PlayMiddle),
		NewRegion(layout.PlayRight),
	}
	s.marker = [3]*Region{
		NewRegion(layout.MarkerLeft),
		NewRegion(layout.MarkerMiddle),
		NewRegion(layout.MarkerRight),
	}
	s.hand = NewRegion(layout.MyCards)
	s.bottom = NewRegion(layout.BottomCards)
	return s, nil
}

// SetThresholds 热更新阈值（配置文件变更时由前台调用）。
func (s *Screen) SetThresholds(th Thresholds) {
	s.thMu.Lock()
	s.th = th
	s.thMu.Unlock()
}

func (s *Screen) thresholds() Thresholds {
	s.thMu.RLock()
	defer s.thMu.RUnlock()
	return s.th
}

// Refresh 截取一张新的整屏灰度帧并更新所有区域的子图。
// 瞬时截屏失败按固定间隔无限重试，只有 ctx 取消才会返回错误。
func (s *Screen) Refresh(ctx context.Context) error {
	for {
		img, err := screenshot.CaptureDisplay(s.display)
		if err == nil {
			return s.acceptFrame(img)
		}
		s.logger.Info("screenshot failed, retrying", "err", err, "delay", captureRetryDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(captureRetryDelay):
		}
	}
}

func (s *Screen) acceptFrame(img *image.RGBA) error {
	rgba, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return fmt.Errorf("convert capture: %w", err)
	}
	defer rgba.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(rgba, &gray, gocv.ColorRGBAToGray)

	if !s.frame.Empty() {
		s.frame.Close()
	}
	s.frame = gray

	regions := []*Region{
		s.play[0], s.play[1], s.play[2],
		s.marker[0], s.marker[1], s.marker[2],
		s.hand, s.bottom,
	}
	for _, r := range regions {
		if err := r.Capture(s.frame); err != nil {
			return err
		}
	}
	return nil
}

// LandlordConfidences 返回三个地主标记区对地主模板的最佳匹配置信度，
// 顺序为 Left, Middle, Right。
func (s *Screen) LandlordConfidences() [3]float32 {
	var out [3]float32
	tmpl := s.bank.Mark(MarkLandlord)
	for i, r := range s.marker {
		out[i], _ = s.matcher.BestMatch(r.Sub(), tmpl)
	}
	return out
}

// LandlordThreshold 当前配置的地主标记阈值。
func (s *Screen) LandlordThreshold() float32 {
	return s.thresholds().Landlord
}

// ClassifyPlay 分类指定出牌区（0=Left 1=Middle 2=Right）。
func (s *Screen) ClassifyPlay(idx int) RegionState {
	return s.classifier.Classify(s.play[idx], s.thresholds())
}

// RecognizePlay 识别指定出牌区中的牌。
func (s *Screen) RecognizePlay(idx int) map[card.Label]int {
	return s.recognizer.Cards(s.play[idx].Sub(), s.thresholds().Card)
}

// RecognizeHand 识别本家手牌区。
func (s *Screen) RecognizeHand() map[card.Label]int {
	return s.recognizer.Cards(s.hand.Sub(), s.thresholds().Card)
}

// RecognizeBottom 识别底牌展示区，用于终局判定。
func (s *Screen) RecognizeBottom() map[card.Label]int {
	return s.recognizer.Cards(s.bottom.Sub(), s.thresholds().EndGame)
}

func (s *Screen) Close() {
	for _, r := range s.play {
		r.Close()
	}
	for _, r := range s.marker {
		r.Close()
	}
	s.hand.Close()
	s.bottom.Close()
	if !s.frame.Empty() {
		s.frame.Close()
	}
}
