package vision

import (
	"fmt"
	"path/filepath"

	"gocv.io/x/gocv"

	"landlord-lens/card"
)

// Mark 标记类型（非牌面的固定视觉符号）
type Mark string

const (
	MarkPass     Mark = "PASS"
	MarkLandlord Mark = "Landlord"
)

// TemplateBank 模板库：牌面和标记各对应一张灰度参考图。
// 启动时加载一次，之后只读，无需同步。
type TemplateBank struct {
	cards map[card.Label]gocv.Mat
	marks map[Mark]gocv.Mat
}

// LoadTemplates 从 dir 加载全部模板。任何一张缺失或不可读都返回错误，
// 调用方应视为致命的启动错误。
func LoadTemplates(dir string) (*TemplateBank, error) {
	bank := &TemplateBank{
		cards: make(map[card.Label]gocv.Mat, 14),
		marks: make(map[Mark]gocv.Mat, 2),
	}

	for _, l := range card.Labels() {
		mat, err := loadTemplate(dir, l.TemplateName())
		if err != nil {
			bank.Close()
			return nil, err
		}
		bank.cards[l] = mat
	}
	for _, m := range []Mark{MarkPass, MarkLandlord} {
		mat, err := loadTemplate(dir, string(m))
		if err != nil {
			bank.Close()
			return nil, err
		}
		bank.marks[m] = mat
	}
	return bank, nil
}

func loadTemplate(dir, name string) (gocv.Mat, error) {
	path := filepath.Join(dir, name+".png")
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	if mat.Empty() {
		return gocv.Mat{}, fmt.Errorf("template %q missing or unreadable: %s", name, path)
	}
	return mat, nil
}

// Card 返回牌面模板。模板库加载成功后所有牌面必然存在。
func (b *TemplateBank) Card(l card.Label) gocv.Mat {
	return b.cards[l]
}

// Mark 返回标记模板。
func (b *TemplateBank) Mark(m Mark) gocv.Mat {
	return b.marks[m]
}

func (b *TemplateBank) Close() {
	for _, m := range b.cards {
		m.Close()
	}
	for _, m := range b.marks {
		m.Close()
	}
	b.cards = nil
	b.marks = nil
}
