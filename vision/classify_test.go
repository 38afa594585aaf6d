package vision

import (
	"image"
	"math/rand"
	"testing"

	"gocv.io/x/gocv"

	"landlord-lens/card"
)

const testBackground uint8 = 118

// testBank 用合成图构造模板库，每个牌面和标记一块独立的随机纹理。
func testBank() *TemplateBank {
	bank := &TemplateBank{
		cards: make(map[card.Label]gocv.Mat, 14),
		marks: make(map[Mark]gocv.Mat, 2),
	}
	for i, l := range card.Labels() {
		bank.cards[l] = makePattern(int64(100+i), 12, 12)
	}
	bank.marks[MarkPass] = makePattern(200, 12, 12)
	bank.marks[MarkLandlord] = makePattern(201, 12, 12)
	return bank
}

func testThresholds() Thresholds {
	return Thresholds{Pass: 0.9, Wait: 0.5, Landlord: 0.9, Card: 0.9, EndGame: 0.9}
}

// regionWith 构造一个 96x96 的区域，底色为 value 附近的轻噪声
// （纯色图会让归一化互相关退化），并把 extras 粘贴进去。
func regionWith(t *testing.T, value uint8, paste func(frame gocv.Mat)) (*Region, gocv.Mat) {
	t.Helper()
	frame := gocv.NewMatWithSize(96, 96, gocv.MatTypeCV8U)
	rng := rand.New(rand.NewSource(42))
	for y := 0; y < 96; y++ {
		for x := 0; x < 96; x++ {
			frame.SetUCharAt(y, x, uint8(int(value)+rng.Intn(9)-4))
		}
	}
	if paste != nil {
		paste(frame)
	}
	r := NewRegion(image.Rect(0, 0, 96, 96))
	if err := r.Capture(frame); err != nil {
		t.Fatalf("capture err: %v", err)
	}
	return r, frame
}

func TestClassify_PassBeatsBackground(t *testing.T) {
	bank := testBank()
	defer bank.Close()
	c := NewClassifier(bank, NewMatcher(), testBackground, 30)

	// 背景色占比和 PASS 标记同时超过阈值，PASS 必须优先。
	r, frame := regionWith(t, testBackground, func(frame gocv.Mat) {
		pasteAt(frame, bank.Mark(MarkPass), 40, 40)
	})
	defer frame.Close()
	defer r.Close()

	if got := c.Classify(r, testThresholds()); got != StatePass {
		t.Fatalf("state = %v, want PASS", got)
	}
	if r.State != StatePass {
		t.Fatalf("region state not updated, got %v", r.State)
	}
}

func TestClassify_BackgroundMeansWait(t *testing.T) {
	bank := testBank()
	defer bank.Close()
	c := NewClassifier(bank, NewMatcher(), testBackground, 30)

	r, frame := regionWith(t, testBackground, nil)
	defer frame.Close()
	defer r.Close()

	if got := c.Classify(r, testThresholds()); got != StateWait {
		t.Fatalf("state = %v, want WAIT", got)
	}
}

func TestClassify_OtherwisePlayed(t *testing.T) {
	bank := testBank()
	defer bank.Close()
	c := NewClassifier(bank, NewMatcher(), testBackground, 30)

	// 底色远离背景带，也没有 PASS 标记。
	r, frame := regionWith(t, 250, nil)
	defer frame.Close()
	defer r.Close()

	if got := c.Classify(r, testThresholds()); got != StatePlayed {
		t.Fatalf("state = %v, want PLAYED", got)
	}
}

func TestRegion_CaptureOutsideFrame(t *testing.T) {
	frame := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8U)
	defer frame.Close()

	r := NewRegion(image.Rect(10, 10, 80, 80))
	defer r.Close()
	if err := r.Capture(frame); err == nil {
		t.Fatal("expected error for region outside frame")
	}
}
