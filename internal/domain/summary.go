package domain

import "encoding/json"

// PageSummary 是单个页面解析得到的摘要（title / description / images）。
//
// 约束：
// - 构造后不可变：字段不导出，Images 返回副本
// - "未找到" 与 "找到但为空" 必须可区分：缺失用 ok=false 表达，JSON 输出为 null
// - images 永远不是 nil（无图时为空列表）
type PageSummary struct {
	title       *string
	description *string
	images      []string
}

// NewPageSummary 构造一个摘要。title/description 传 nil 表示未找到。
func NewPageSummary(title, description *string, images []string) PageSummary {
	return PageSummary{
		title:       copyString(title),
		description: copyString(description),
		images:      append([]string{}, images...),
	}
}

// EmptySummary 返回三个字段都处于“未找到”状态的摘要（例如 404 页面）。
func EmptySummary() PageSummary {
	return PageSummary{images: []string{}}
}

func (s PageSummary) Title() (string, bool) {
	if s.title == nil {
		return "", false
	}
	return *s.title, true
}

func (s PageSummary) Description() (string, bool) {
	if s.description == nil {
		return "", false
	}
	return *s.description, true
}

// Images 返回图片 URL 列表的副本（保持文档顺序）。
func (s PageSummary) Images() []string {
	return append([]string{}, s.images...)
}

// IsEmpty 判断三个字段是否都未找到。
func (s PageSummary) IsEmpty() bool {
	return s.title == nil && s.description == nil && len(s.images) == 0
}

// Equal 逐字段比较两个摘要。
func (s PageSummary) Equal(o PageSummary) bool {
	if !equalOpt(s.title, o.title) || !equalOpt(s.description, o.description) {
		return false
	}
	if len(s.images) != len(o.images) {
		return false
	}
	for i := range s.images {
		if s.images[i] != o.images[i] {
			return false
		}
	}
	return true
}

type summaryJSON struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Images      []string `json:"images"`
}

func (s PageSummary) MarshalJSON() ([]byte, error) {
	images := s.images
	if images == nil {
		images = []string{}
	}
	return json.Marshal(summaryJSON{Title: s.title, Description: s.description, Images: images})
}

func (s *PageSummary) UnmarshalJSON(b []byte) error {
	var v summaryJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = NewPageSummary(v.Title, v.Description, v.Images)
	return nil
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalOpt(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
