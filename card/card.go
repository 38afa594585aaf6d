package card

import "fmt"

// Label 牌面枚举
//
// 编码规则:
// - 1..13: 点数 3,4,...,10,J,Q,K,A,2（斗地主排序，3 最小）
// - 14:    王（大小王合并为一个槽位）
type Label byte

const LabelInvalid Label = 0

const (
	LabelThree Label = iota + 1
	LabelFour
	LabelFive
	LabelSix
	LabelSeven
	LabelEight
	LabelNine
	LabelTen
	LabelJack
	LabelQueen
	LabelKing
	LabelAce
	LabelTwo
	LabelJoker
)

var labelNames = map[Label]string{
	LabelThree: "3",
	LabelFour:  "4",
	LabelFive:  "5",
	LabelSix:   "6",
	LabelSeven: "7",
	LabelEight: "8",
	LabelNine:  "9",
	LabelTen:   "10",
	LabelJack:  "J",
	LabelQueen: "Q",
	LabelKing:  "K",
	LabelAce:   "A",
	LabelTwo:   "2",
	LabelJoker: "JOKER",
}

func (l Label) String() string {
	if s, ok := labelNames[l]; ok {
		return s
	}
	return "Invalid"
}

// TemplateName 返回模板资源文件名（不含扩展名）。
// 与原版模板目录对齐：数字与字母同名，王牌模板为 "JOKER"。
func (l Label) TemplateName() string {
	return l.String()
}

// Capacity 该牌面在一副 54 张牌中的总张数。
func (l Label) Capacity() int {
	switch {
	case l == LabelJoker:
		return 2
	case l >= LabelThree && l <= LabelTwo:
		return 4
	default:
		return 0
	}
}

// ParseLabel 将字符串 (如 "3", "10", "J", "JOKER") 转换为 Label。
func ParseLabel(s string) (Label, error) {
	for l, name := range labelNames {
		if name == s {
			return l, nil
		}
	}
	return LabelInvalid, fmt.Errorf("invalid card label: %q", s)
}
