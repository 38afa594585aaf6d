package vision

import (
	"hash/fnv"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"gocv.io/x/gocv"

	"landlord-lens/card"
)

const recognizeCacheSize = 64

// Recognizer 把子图识别为牌面多重集合。
//
// 对模板库中的每个牌面跑一次 MatchAll 并记录命中数。
// 识别不到任何牌返回空集合，这是正常结果而不是错误。
//
// 同一区域在相邻轮询周期里内容往往不变，按子图内容做 LRU
// 缓存可以跳过重复的全库匹配。
type Recognizer struct {
	bank    *TemplateBank
	matcher *Matcher
	cache   *lru.Cache[uint64, map[card.Label]int]
}

func NewRecognizer(bank *TemplateBank, matcher *Matcher) *Recognizer {
	cache, _ := lru.New[uint64, map[card.Label]int](recognizeCacheSize)
	return &Recognizer{bank: bank, matcher: matcher, cache: cache}
}

// Cards 识别子图中的全部牌面，返回牌面到张数的映射。
func (r *Recognizer) Cards(sub gocv.Mat, threshold float32) map[card.Label]int {
	if sub.Empty() {
		return map[card.Label]int{}
	}

	key, keyed := r.cacheKey(sub, threshold)
	if keyed {
		if cached, ok := r.cache.Get(key); ok {
			return copyCounts(cached)
		}
	}

	counts := make(map[card.Label]int)
	for _, l := range card.Labels() {
		matches := r.matcher.MatchAll(sub, r.bank.Card(l), threshold)
		if len(matches) > 0 {
			counts[l] = len(matches)
		}
	}

	if keyed {
		r.cache.Add(key, copyCounts(counts))
	}
	return counts
}

func (r *Recognizer) cacheKey(sub gocv.Mat, threshold float32) (uint64, bool) {
	// ROI 视图不连续，克隆一份以拿到完整的底层字节。
	cont := sub.Clone()
	defer cont.Close()

	data, err := cont.DataPtrUint8()
	if err != nil {
		return 0, false
	}
	h := fnv.New64a()
	h.Write(data)
	var th [4]byte
	bits := math.Float32bits(threshold)
	th[0] = byte(bits)
	th[1] = byte(bits >> 8)
	th[2] = byte(bits >> 16)
	th[3] = byte(bits >> 24)
	h.Write(th[:])
	return h.Sum64(), true
}

func copyCounts(counts map[card.Label]int) map[card.Label]int {
	dup := make(map[card.Label]int, len(counts))
	for l, n := range counts {
		dup[l] = n
	}
	return dup
}
