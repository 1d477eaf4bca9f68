package resolver

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustParse(t *testing.T, html string) Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(html))
	if err != nil {
		t.Fatalf("解析 HTML 失败：%v", err)
	}
	return doc
}

func TestResolve_OpenGraphOnly(t *testing.T) {
	doc := mustParse(t, `<html><head>
<meta property="og:title" content="Open Graph protocol">
<meta property="og:description" content="The Open Graph protocol enables any web page to become a rich object in a social graph.">
<meta property="og:image" content="http://ogp.me/logo.png">
</head></html>`)

	s := Resolve(doc, "")

	if v, ok := s.Title(); !ok || v != "Open Graph protocol" {
		t.Fatalf("title 不符合预期：(%q, %v)", v, ok)
	}
	if v, ok := s.Description(); !ok || v != "The Open Graph protocol enables any web page to become a rich object in a social graph." {
		t.Fatalf("description 不符合预期：(%q, %v)", v, ok)
	}
	images := s.Images()
	if len(images) != 1 || images[0] != "http://ogp.me/logo.png" {
		t.Fatalf("images 不符合预期：%v", images)
	}
}

func TestResolve_NoRecognizedFields(t *testing.T) {
	s := Resolve(mustParse(t, `<html><body><p>nothing here</p></body></html>`), "http://example.test/")

	if _, ok := s.Title(); ok {
		t.Fatalf("期望 title 未找到")
	}
	if _, ok := s.Description(); ok {
		t.Fatalf("期望 description 未找到")
	}
	if images := s.Images(); images == nil || len(images) != 0 {
		t.Fatalf("期望 images 为空列表，实际 %#v", images)
	}
}

func TestResolve_NilDocument(t *testing.T) {
	s := Resolve(nil, "http://example.test/")
	if !s.IsEmpty() {
		t.Fatalf("nil 文档应得到空摘要")
	}
}

func TestResolve_TitlePriority(t *testing.T) {
	cases := []struct {
		name   string
		html   string
		want   string
		source string
	}{
		{
			name:   "og wins over twitter and title",
			html:   `<title>T</title><meta name="twitter:title" content="TW"><meta property="og:title" content="OG">`,
			want:   "OG",
			source: "og:title",
		},
		{
			name:   "twitter wins over title",
			html:   `<title>T</title><meta name="twitter:title" content="TW">`,
			want:   "TW",
			source: "twitter:title",
		},
		{
			name:   "title element",
			html:   "<title>\n  DRUDGE REPORT 2014\n  line two\n</title>",
			want:   "DRUDGE REPORT 2014\n  line two",
			source: "title",
		},
		{
			name:   "empty og falls through",
			html:   `<meta property="og:title" content="  "><meta name="twitter:title" content="TW">`,
			want:   "TW",
			source: "twitter:title",
		},
		{
			name:   "og under name attribute is not og",
			html:   `<meta name="og:title" content="wrong"><title>right</title>`,
			want:   "right",
			source: "title",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, src := ResolveTrace(mustParse(t, tc.html), "")
			got, ok := s.Title()
			if !ok || got != tc.want {
				t.Fatalf("期望 title=%q，实际 (%q, %v)", tc.want, got, ok)
			}
			if src.Title != tc.source {
				t.Fatalf("期望来源 %q，实际 %q", tc.source, src.Title)
			}
		})
	}
}

func TestResolve_DescriptionPriority(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
		ok   bool
	}{
		{"og", `<meta name="description" content="D"><meta name="twitter:description" content="TW"><meta property="og:description" content="OG">`, "OG", true},
		{"twitter", `<meta name="description" content="D"><meta name="twitter:description" content="TW">`, "TW", true},
		{"meta", `<meta name="description" content=" D ">`, "D", true},
		{"missing content attr", `<meta name="description">`, "", false},
		{"none", `<p>x</p>`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(mustParse(t, tc.html), "").Description()
			if ok != tc.ok || got != tc.want {
				t.Fatalf("期望 (%q, %v)，实际 (%q, %v)", tc.want, tc.ok, got, ok)
			}
		})
	}
}

func TestResolve_ImagesSourceExclusive(t *testing.T) {
	cases := []struct {
		name   string
		html   string
		want   []string
		source string
	}{
		{
			name: "og excludes twitter and img",
			html: `<img src="http://x.test/a.png">
<meta property="og:image" content="http://x.test/og1.png">
<meta name="twitter:image" content="http://x.test/tw.png">
<img src="http://x.test/b.png">
<meta property="og:image" content="http://x.test/og2.png">`,
			want:   []string{"http://x.test/og1.png", "http://x.test/og2.png"},
			source: "og:image",
		},
		{
			name: "twitter variants in document order",
			html: `<meta name="twitter:image:src" content="http://x.test/src.png">
<img src="http://x.test/a.png">
<meta name="twitter:image" content="http://x.test/img.png">`,
			want:   []string{"http://x.test/src.png", "http://x.test/img.png"},
			source: "twitter:image",
		},
		{
			name:   "img fallback skips missing src",
			html:   `<img alt="x"><img src="http://x.test/a.png"><img src=""><img src="http://x.test/a.png">`,
			want:   []string{"http://x.test/a.png", "http://x.test/a.png"},
			source: "img",
		},
		{
			name:   "empty og content is ignored",
			html:   `<meta property="og:image" content=""><img src="http://x.test/a.png">`,
			want:   []string{"http://x.test/a.png"},
			source: "img",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, src := ResolveTrace(mustParse(t, tc.html), "")
			got := s.Images()
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("期望 %v，实际 %v", tc.want, got)
			}
			if src.Images != tc.source {
				t.Fatalf("期望来源 %q，实际 %q", tc.source, src.Images)
			}
		})
	}
}

func TestResolve_RelativeImages(t *testing.T) {
	html := `<img src="/a.png"><img src="b.png"><img src="//cdn.test/c.png"><img src="data:image/png;base64,AAAA">`

	got := Resolve(mustParse(t, html), "https://example.test/dir/page.html").Images()
	want := []string{
		"https://example.test/a.png",
		"https://example.test/dir/b.png",
		"https://cdn.test/c.png",
		"data:image/png;base64,AAAA",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}

	// 无 pageURL：相对地址原样返回。
	got = Resolve(mustParse(t, html), "").Images()
	if got[0] != "/a.png" || got[1] != "b.png" {
		t.Fatalf("无 pageURL 时不应改写地址：%v", got)
	}
}

func TestResolve_BaseHref(t *testing.T) {
	html := `<head><base href="/static/"></head><body><img src="a.png"></body>`

	got := Resolve(mustParse(t, html), "https://example.test/dir/page.html").Images()
	if len(got) != 1 || got[0] != "https://example.test/static/a.png" {
		t.Fatalf("期望按 <base href> 解析，实际 %v", got)
	}

	html = `<head><base href="https://cdn.test/assets/"></head><body><img src="a.png"></body>`
	got = Resolve(mustParse(t, html), "").Images()
	if len(got) != 1 || got[0] != "https://cdn.test/assets/a.png" {
		t.Fatalf("期望按绝对 <base href> 解析，实际 %v", got)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	html, err := os.ReadFile(filepath.Join("testdata", "ogp.html"))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	doc := mustParse(t, string(html))

	a := Resolve(doc, "http://ogp.me/")
	b := Resolve(doc, "http://ogp.me/")
	if !a.Equal(b) {
		t.Fatalf("同一文档两次解析结果不一致")
	}
	if !a.Equal(ResolveHTML(html, "http://ogp.me/")) {
		t.Fatalf("ResolveHTML 与 Resolve 结果不一致")
	}
}

func TestResolve_DrudgeTitlePrefix(t *testing.T) {
	html, err := os.ReadFile(filepath.Join("testdata", "drudge.html"))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	title, ok := ResolveHTML(html, "").Title()
	if !ok || !strings.HasPrefix(title, "DRUDGE REPORT") {
		t.Fatalf("期望 title 以 DRUDGE REPORT 开头，实际 (%q, %v)", title, ok)
	}
}

func TestResolve_Golden(t *testing.T) {
	entries, err := os.ReadDir("testdata")
	if err != nil {
		t.Fatalf("读取 testdata 失败：%v", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		t.Fatalf("未找到任何 fixture（testdata/*.html）")
	}

	update := os.Getenv("UPDATE_GOLDEN") == "1"
	if update {
		if err := os.MkdirAll("golden", 0o755); err != nil {
			t.Fatalf("创建 golden 目录失败：%v", err)
		}
	}

	for _, name := range names {
		base := strings.TrimSuffix(name, ".html")

		html, err := os.ReadFile(filepath.Join("testdata", name))
		if err != nil {
			t.Fatalf("读取 fixture 失败：%v", err)
		}
		pageURL := canonicalURLFromHTML(t, html)
		if pageURL == "" {
			pageURL = "http://example.test/" + base
		}

		got, err := json.MarshalIndent(ResolveHTML(html, pageURL), "", "  ")
		if err != nil {
			t.Fatalf("json.Marshal 失败：%v", err)
		}
		got = append(got, '\n')

		goldenPath := filepath.Join("golden", base+".json")
		if update {
			if err := os.WriteFile(goldenPath, got, 0o644); err != nil {
				t.Fatalf("写入 golden 失败：%v", err)
			}
			continue
		}

		want, err := os.ReadFile(goldenPath)
		if err != nil {
			t.Fatalf("读取 golden 失败：%s err=%v（可用 UPDATE_GOLDEN=1 生成）", goldenPath, err)
		}
		if string(want) != string(got) {
			t.Fatalf("golden 不匹配：%s\n期望：%s\n实际：%s（重新生成：UPDATE_GOLDEN=1 go test ./internal/resolver）", goldenPath, want, got)
		}
	}
}

func canonicalURLFromHTML(t *testing.T, html []byte) string {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		t.Fatalf("解析 fixture HTML 失败：%v", err)
	}
	href, _ := doc.Find("link[rel='canonical']").First().Attr("href")
	return strings.TrimSpace(href)
}
