package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// RegionState 区域状态
type RegionState byte

const (
	StateWait   RegionState = 0 // 等待出牌
	StatePlayed RegionState = 1 // 已出牌
	StatePass   RegionState = 2 // 不出牌
)

var regionStateDictionary = map[RegionState]string{
	StateWait:   "WAIT",
	StatePlayed: "PLAYED",
	StatePass:   "PASS",
}

func (s RegionState) String() string {
	if name, ok := regionStateDictionary[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Region 固定屏幕矩形加上其最近一次截取的子图和分类状态。
// 启动时创建一次，每个轮询周期重新截取和分类，进程退出前不销毁。
type Region struct {
	Rect  image.Rectangle
	State RegionState

	sub gocv.Mat
}

func NewRegion(rect image.Rectangle) *Region {
	return &Region{Rect: rect, State: StateWait, sub: gocv.NewMat()}
}

// Capture 从整帧中截取本区域的子图。子图与帧共享底层数据，
// 旧的子图引用在此处释放。矩形越出帧边界视为配置错误。
func (r *Region) Capture(frame gocv.Mat) error {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	if !r.Rect.In(bounds) {
		return fmt.Errorf("region %v outside frame %v", r.Rect, bounds)
	}
	if !r.sub.Empty() {
		r.sub.Close()
	}
	r.sub = frame.Region(r.Rect)
	return nil
}

// Sub 返回最近截取的子图。未截取过时返回空 Mat。
func (r *Region) Sub() gocv.Mat {
	return r.sub
}

func (r *Region) Close() {
	if !r.sub.Empty() {
		r.sub.Close()
	}
}
