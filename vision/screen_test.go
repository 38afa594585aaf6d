package vision

import (
	"image"
	"strings"
	"testing"
)

func fullLayout() Layout {
	return Layout{
		PlayLeft:     image.Rect(260, 346, 700, 446),
		PlayMiddle:   image.Rect(700, 440, 1220, 560),
		PlayRight:    image.Rect(1220, 346, 1660, 446),
		MarkerLeft:   image.Rect(200, 300, 260, 346),
		MarkerMiddle: image.Rect(900, 200, 1020, 260),
		MarkerRight:  image.Rect(1660, 300, 1720, 346),
		MyCards:      image.Rect(400, 800, 1520, 950),
		BottomCards:  image.Rect(760, 60, 1160, 160),
	}
}

func TestLayoutValidate(t *testing.T) {
	if err := fullLayout().validate(); err != nil {
		t.Fatalf("valid layout rejected: %v", err)
	}

	broken := fullLayout()
	broken.MyCards = image.Rectangle{}
	if err := broken.validate(); err == nil {
		t.Fatal("empty rectangle accepted")
	}
}

func TestLayoutFitsWithin(t *testing.T) {
	frame := image.Rect(0, 0, 1920, 1080)
	if err := fullLayout().fitsWithin(frame); err != nil {
		t.Fatalf("1080p layout rejected on a 1080p frame: %v", err)
	}

	// 按 1080p 标定的布局放到更小的显示器上必须在启动时被拒绝
	small := image.Rect(0, 0, 1280, 720)
	err := fullLayout().fitsWithin(small)
	if err == nil {
		t.Fatal("oversized layout accepted on a 720p frame")
	}
	if !strings.Contains(err.Error(), "outside the display frame") {
		t.Fatalf("unexpected error text: %v", err)
	}
}
