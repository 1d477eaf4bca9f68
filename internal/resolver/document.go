package resolver

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// MetaKey 标识一类 meta 标签：Attr 是属性名（property / name），Value 是属性值（例如 og:title）。
type MetaKey struct {
	Attr  string
	Value string
}

func (k MetaKey) String() string { return k.Attr + "=" + k.Value }

var (
	OGTitle       = MetaKey{Attr: "property", Value: "og:title"}
	OGDescription = MetaKey{Attr: "property", Value: "og:description"}
	OGImage       = MetaKey{Attr: "property", Value: "og:image"}

	TwitterTitle       = MetaKey{Attr: "name", Value: "twitter:title"}
	TwitterDescription = MetaKey{Attr: "name", Value: "twitter:description"}
	TwitterImage       = MetaKey{Attr: "name", Value: "twitter:image"}
	// TwitterImageSrc 是 summary_large_image 卡片使用的图片变体。
	TwitterImageSrc = MetaKey{Attr: "name", Value: "twitter:image:src"}

	MetaDescription = MetaKey{Attr: "name", Value: "description"}
)

// Document 是 Resolver 依赖的最小查询能力。
//
// 约束：
// - 所有查询返回 trim 后的值；空串等同于“未找到”
// - 列表查询保持文档顺序，永不返回 nil
// - 实现必须是只读的：多次查询不得改变结果
type Document interface {
	// Meta 返回第一个匹配 key 的 meta 标签的 content。
	Meta(key MetaKey) (string, bool)
	// MetaAll 返回所有匹配任一 key 的 meta 标签的 content（文档顺序）。
	MetaAll(keys ...MetaKey) []string
	// Title 返回第一个 <title> 元素的文本。
	Title() (string, bool)
	// ImageSources 返回所有 <img> 的 src（跳过缺失或为空的 src）。
	ImageSources() []string
	// BaseHref 返回 <base href>（用于解析相对图片地址）。
	BaseHref() (string, bool)
}

var (
	titleSel = cascadia.MustCompile("title")
	imgSel   = cascadia.MustCompile("img[src]")
	baseSel  = cascadia.MustCompile("base[href]")
)

// metaSels 预编译常用 key 的选择器；包级只读，初始化后不再修改。
var metaSels = func() map[MetaKey]cascadia.Selector {
	keys := []MetaKey{
		OGTitle, OGDescription, OGImage,
		TwitterTitle, TwitterDescription, TwitterImage, TwitterImageSrc,
		MetaDescription,
	}
	m := make(map[MetaKey]cascadia.Selector, len(keys))
	for _, k := range keys {
		m[k] = cascadia.MustCompile(metaSelector(k))
	}
	return m
}()

func metaSelector(k MetaKey) string {
	return `meta[` + k.Attr + `="` + k.Value + `"]`
}

func metaSel(k MetaKey) (cascadia.Selector, bool) {
	if s, ok := metaSels[k]; ok {
		return s, true
	}
	if k.Attr == "" || strings.ContainsAny(k.Attr+k.Value, `"[]\`) {
		return nil, false
	}
	s, err := cascadia.Compile(metaSelector(k))
	if err != nil {
		return nil, false
	}
	return s, true
}

// htmlDocument 是基于 goquery 的 Document 实现。
type htmlDocument struct {
	doc *goquery.Document
}

// Parse 把 HTML 解析为 Document。
// 输入必须已经是 UTF-8（字符集转换由 fetcher 负责）。
func Parse(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return htmlDocument{doc: doc}, nil
}

// FromGoquery 包装一个已经解析好的 goquery 文档。
func FromGoquery(doc *goquery.Document) Document {
	if doc == nil {
		return nil
	}
	return htmlDocument{doc: doc}
}

func (d htmlDocument) Meta(key MetaKey) (string, bool) {
	sel, ok := metaSel(key)
	if !ok {
		return "", false
	}
	var (
		v     string
		found bool
	)
	// 第一个带非空 content 的标签胜出（空 content 的标签视为不存在）。
	d.doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		c, ok := s.Attr("content")
		c = strings.TrimSpace(c)
		if !ok || c == "" {
			return true
		}
		v, found = c, true
		return false
	})
	return v, found
}

func (d htmlDocument) MetaAll(keys ...MetaKey) []string {
	out := []string{}
	if len(keys) == 0 {
		return out
	}
	var sels []string
	for _, k := range keys {
		if _, ok := metaSel(k); ok {
			sels = append(sels, metaSelector(k))
		}
	}
	if len(sels) == 0 {
		return out
	}
	// 选择器组按文档顺序返回节点（而不是按 key 顺序）。
	group, err := cascadia.Compile(strings.Join(sels, ", "))
	if err != nil {
		return out
	}
	d.doc.FindMatcher(group).Each(func(_ int, s *goquery.Selection) {
		c, ok := s.Attr("content")
		c = strings.TrimSpace(c)
		if ok && c != "" {
			out = append(out, c)
		}
	})
	return out
}

func (d htmlDocument) Title() (string, bool) {
	s := d.doc.FindMatcher(titleSel).First()
	if s.Length() == 0 {
		return "", false
	}
	t := strings.TrimSpace(s.Text())
	if t == "" {
		return "", false
	}
	return t, true
}

func (d htmlDocument) ImageSources() []string {
	out := []string{}
	d.doc.FindMatcher(imgSel).Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src != "" {
			out = append(out, src)
		}
	})
	return out
}

func (d htmlDocument) BaseHref() (string, bool) {
	href, ok := d.doc.FindMatcher(baseSel).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", false
	}
	return href, true
}
