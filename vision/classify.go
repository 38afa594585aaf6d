package vision

// Thresholds 各用途的匹配阈值，取值范围 [0,1]。
type Thresholds struct {
	Pass     float32 // PASS 标记置信度阈值
	Wait     float32 // 背景色占比阈值
	Landlord float32 // 地主标记置信度阈值
	Card     float32 // 牌面识别阈值
	EndGame  float32 // 底牌区域识别阈值
}

// Classifier 区域状态分类器。
//
// 判定优先级固定：先 PASS（视觉特征最特异），再 WAIT（背景色占比），
// 否则 PLAYED。每次都是完整重判，没有状态惯性。
type Classifier struct {
	bank    *TemplateBank
	matcher *Matcher

	// 桌面背景的灰度值和容差，来自配置。
	Background  uint8
	BgTolerance uint8
}

func NewClassifier(bank *TemplateBank, matcher *Matcher, background, tolerance uint8) *Classifier {
	return &Classifier{
		bank:        bank,
		matcher:     matcher,
		Background:  background,
		BgTolerance: tolerance,
	}
}

// Classify 判定区域状态并写回 region.State。恒定返回三态之一。
func (c *Classifier) Classify(region *Region, th Thresholds) RegionState {
	sub := region.Sub()

	confidence, _ := c.matcher.BestMatch(sub, c.bank.Mark(MarkPass))
	if confidence > th.Pass {
		region.State = StatePass
		return StatePass
	}

	if ColorPercentage(sub, c.Background, c.BgTolerance) > float64(th.Wait) {
		region.State = StateWait
		return StateWait
	}

	region.State = StatePlayed
	return StatePlayed
}
