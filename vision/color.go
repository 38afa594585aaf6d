package vision

import "gocv.io/x/gocv"

// ColorPercentage 计算灰度图中落在 value±tolerance 区间内的像素占比。
// 用于“区域仍是桌面背景色（尚未出牌）”的启发式判断。
func ColorPercentage(img gocv.Mat, value uint8, tolerance uint8) float64 {
	if img.Empty() {
		return 0
	}

	lo := int(value) - int(tolerance)
	hi := int(value) + int(tolerance)
	if lo < 0 {
		lo = 0
	}
	if hi > 255 {
		hi = 255
	}

	mask := gocv.NewMat()
	defer mask.Close()

	gocv.InRangeWithScalar(img,
		gocv.NewScalar(float64(lo), 0, 0, 0),
		gocv.NewScalar(float64(hi), 0, 0, 0),
		&mask)

	total := img.Rows() * img.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}
