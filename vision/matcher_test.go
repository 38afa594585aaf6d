package vision

import (
	"image"
	"math/rand"
	"testing"

	"gocv.io/x/gocv"
)

// makePattern 用固定种子生成一块伪随机灰度图。随机纹理之间的
// 互相关接近零，适合做匹配测试的合成模板。
func makePattern(seed int64, w, h int) gocv.Mat {
	rng := rand.New(rand.NewSource(seed))
	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mat.SetUCharAt(y, x, uint8(rng.Intn(256)))
		}
	}
	return mat
}

// pasteAt 将 src 粘贴到 dst 的 (x, y) 处。
func pasteAt(dst, src gocv.Mat, x, y int) {
	roi := dst.Region(image.Rect(x, y, x+src.Cols(), y+src.Rows()))
	defer roi.Close()
	src.CopyTo(&roi)
}

func TestBestMatch_FindsPastedPattern(t *testing.T) {
	target := gocv.NewMatWithSize(96, 96, gocv.MatTypeCV8U)
	defer target.Close()
	tmpl := makePattern(1, 12, 12)
	defer tmpl.Close()

	pasteAt(target, tmpl, 40, 24)

	m := NewMatcher()
	confidence, loc := m.BestMatch(target, tmpl)
	if confidence < 0.99 {
		t.Fatalf("confidence = %v, want ~1.0", confidence)
	}
	if loc != image.Pt(40, 24) {
		t.Fatalf("location = %v, want (40,24)", loc)
	}
}

func TestBestMatch_TemplateLargerThanTarget(t *testing.T) {
	target := makePattern(2, 8, 8)
	defer target.Close()
	tmpl := makePattern(3, 16, 16)
	defer tmpl.Close()

	m := NewMatcher()
	confidence, _ := m.BestMatch(target, tmpl)
	if confidence != 0 {
		t.Fatalf("confidence = %v, want 0 for oversized template", confidence)
	}
}

func TestMatchAll_CountsDistinctInstancesOnce(t *testing.T) {
	target := gocv.NewMatWithSize(96, 96, gocv.MatTypeCV8U)
	defer target.Close()
	tmpl := makePattern(4, 12, 12)
	defer tmpl.Close()

	pasteAt(target, tmpl, 8, 8)
	pasteAt(target, tmpl, 60, 60)

	m := NewMatcher()
	matches := m.MatchAll(target, tmpl, 0.9)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2: %v", len(matches), matches)
	}

	// 同一位置不允许被重复计入
	if matches[0].Location == matches[1].Location {
		t.Fatalf("duplicate location %v reported twice", matches[0].Location)
	}
}

func TestMatchAll_BelowThresholdIsEmpty(t *testing.T) {
	target := makePattern(5, 96, 96)
	defer target.Close()
	tmpl := makePattern(6, 12, 12)
	defer tmpl.Close()

	m := NewMatcher()
	if matches := m.MatchAll(target, tmpl, 0.95); len(matches) != 0 {
		t.Fatalf("got %d matches on unrelated noise, want 0", len(matches))
	}
}

func TestMatchAll_Bounded(t *testing.T) {
	// 整张目标图就是模板的平铺，命中数必须被 MaxMatches 截断。
	tmpl := makePattern(7, 12, 12)
	defer tmpl.Close()
	target := gocv.NewMatWithSize(120, 120, gocv.MatTypeCV8U)
	defer target.Close()
	for y := 0; y+12 <= 120; y += 12 {
		for x := 0; x+12 <= 120; x += 12 {
			pasteAt(target, tmpl, x, y)
		}
	}

	m := NewMatcher()
	matches := m.MatchAll(target, tmpl, 0.9)
	if len(matches) > m.MaxMatches {
		t.Fatalf("got %d matches, want at most %d", len(matches), m.MaxMatches)
	}
}
