package card

// DeckSize 一副牌总张数（含双王）。
const DeckSize = 54

// Labels 固定顺序的全部牌面。
func Labels() []Label {
	return []Label{
		LabelThree, LabelFour, LabelFive, LabelSix, LabelSeven,
		LabelEight, LabelNine, LabelTen, LabelJack, LabelQueen,
		LabelKing, LabelAce, LabelTwo, LabelJoker,
	}
}

// FullCount 满额计数表：每个牌面映射到其总张数。
func FullCount() map[Label]int {
	counts := make(map[Label]int, 14)
	for _, l := range Labels() {
		counts[l] = l.Capacity()
	}
	return counts
}

// EmptyCount 零计数表。
func EmptyCount() map[Label]int {
	counts := make(map[Label]int, 14)
	for _, l := range Labels() {
		counts[l] = 0
	}
	return counts
}

// Total 计算多重集合的总张数。
func Total(counts map[Label]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
