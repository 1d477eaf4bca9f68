package resolver

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/Xuefeng-Zhu/grabbit/internal/domain"
)

// Sources 记录每个字段最终由哪个来源给出（空串表示未找到）。
// 用于解释结果，不参与 PageSummary 的相等性。
type Sources struct {
	Title       string
	Description string
	Images      string
}

// Resolve 从文档中解析页面摘要。
//
// 规则：
// - title：og:title > twitter:title > <title>
// - description：og:description > twitter:description > <meta name="description">
// - images：og:image 全部 > twitter:image 全部 > <img src> 全部（只取一个来源）
//
// Resolve 是纯函数且不会失败：doc 为 nil 时返回空摘要。
// pageURL 非空时，相对图片地址以它（以及 <base href>）为基准解析为绝对地址。
func Resolve(doc Document, pageURL string) domain.PageSummary {
	s, _ := ResolveTrace(doc, pageURL)
	return s
}

// ResolveTrace 与 Resolve 相同，但额外返回每个字段的命中来源。
func ResolveTrace(doc Document, pageURL string) (domain.PageSummary, Sources) {
	if doc == nil {
		return domain.EmptySummary(), Sources{}
	}

	title, ts := firstText(doc, titleStrategies)
	desc, ds := firstText(doc, descriptionStrategies)
	images, is := firstImages(doc, imageSources)
	src := Sources{Title: ts, Description: ds, Images: is}

	images = absolutize(images, baseURL(doc, pageURL))
	return domain.NewPageSummary(title, desc, images), src
}

// ResolveHTML 解析 HTML 后调用 Resolve；HTML 无法解析时返回空摘要。
func ResolveHTML(html []byte, pageURL string) domain.PageSummary {
	doc, err := Parse(bytes.NewReader(html))
	if err != nil {
		return domain.EmptySummary()
	}
	return Resolve(doc, pageURL)
}

func baseURL(doc Document, pageURL string) *url.URL {
	var base *url.URL
	if pageURL = strings.TrimSpace(pageURL); pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
			base = u
		}
	}
	href, ok := doc.BaseHref()
	if !ok {
		return base
	}
	ref, err := url.Parse(href)
	if err != nil {
		return base
	}
	if base == nil {
		if ref.IsAbs() {
			return ref
		}
		return nil
	}
	return base.ResolveReference(ref)
}

// absolutize 把相对地址解析为绝对地址；绝对地址与无法解析的值原样保留。
func absolutize(refs []string, base *url.URL) []string {
	if base == nil {
		return refs
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		u, err := url.Parse(r)
		if err != nil || u.IsAbs() {
			out = append(out, r)
			continue
		}
		out = append(out, base.ResolveReference(u).String())
	}
	return out
}
