// Package vision implements the screen-reading side of the counter:
// template matching, region classification, and card recognition on
// grayscale screen captures.
package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// Match 单次模板匹配结果
type Match struct {
	Confidence float32
	Location   image.Point
}

// Matcher 基于归一化互相关 (TM_CCOEFF_NORMED) 的模板匹配器。
// 无状态，可并发使用。
type Matcher struct {
	// MaxMatches 限制 MatchAll 的检测上限，防止噪声图案导致的重复检测。
	// 单个牌面在一副牌中最多 4 张，默认 8 已留足余量。
	MaxMatches int
}

func NewMatcher() *Matcher {
	return &Matcher{MaxMatches: 8}
}

// BestMatch 返回模板在目标图中的最佳对齐位置和置信度。
// 模板大于目标图时返回零值（这是调用方配置错误，应在启动时被拦截）。
func (m *Matcher) BestMatch(target, tmpl gocv.Mat) (float32, image.Point) {
	if tmpl.Empty() || target.Empty() ||
		tmpl.Rows() > target.Rows() || tmpl.Cols() > target.Cols() {
		return 0, image.Point{}
	}

	result := gocv.NewMat()
	defer result.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(target, tmpl, &result, gocv.TmCcoeffNormed, mask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	return maxVal, maxLoc
}

// MatchAll 返回所有置信度不低于 threshold 的对齐位置。
//
// cv2 风格的阈值扫描会把同一张牌周围的多个高分点都算进来，
// 这里改为“取最佳、抹掉模板大小的邻域、重复”的有界循环，
// 保证同一物理位置只被计入一次。
func (m *Matcher) MatchAll(target, tmpl gocv.Mat, threshold float32) []Match {
	if tmpl.Empty() || target.Empty() ||
		tmpl.Rows() > target.Rows() || tmpl.Cols() > target.Cols() {
		return nil
	}

	result := gocv.NewMat()
	defer result.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(target, tmpl, &result, gocv.TmCcoeffNormed, mask)

	limit := m.MaxMatches
	if limit <= 0 {
		limit = 8
	}

	var matches []Match
	for i := 0; i < limit; i++ {
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
		if maxVal < threshold {
			break
		}
		matches = append(matches, Match{Confidence: maxVal, Location: maxLoc})
		suppress(&result, maxLoc, tmpl.Cols(), tmpl.Rows())
	}
	return matches
}

// suppress 将 loc 周围一个模板大小的窗口清为 -1，
// 避免下一轮 MinMaxLoc 再次命中同一张牌。
func suppress(result *gocv.Mat, loc image.Point, tmplW, tmplH int) {
	x0 := loc.X - tmplW/2
	y0 := loc.Y - tmplH/2
	x1 := loc.X + tmplW/2
	y1 := loc.Y + tmplH/2

	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= result.Cols() {
		x1 = result.Cols() - 1
	}
	if y1 >= result.Rows() {
		y1 = result.Rows() - 1
	}

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			result.SetFloatAt(y, x, -1)
		}
	}
}
