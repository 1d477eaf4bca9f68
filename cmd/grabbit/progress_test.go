package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Xuefeng-Zhu/grabbit/internal/domain"
)

func TestProgressUI_ItemLines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	title := "x"
	s := domain.NewPageSummary(&title, nil, []string{"a", "b"})
	p.OnItemDone(1, 3, domain.ItemResult{URL: "http://a.test/", Status: domain.StatusOK, StatusCode: 200, Result: &s}, 1500*time.Millisecond)
	p.OnItemDone(2, 3, domain.ItemResult{URL: "http://b.test/", Status: domain.StatusEmpty, StatusCode: 404}, 0)
	p.OnItemDone(3, 3, domain.ItemResult{URL: "hello", Status: domain.StatusFailed, ErrorCode: domain.ErrCodeMalformedURL, ErrorMsg: "no scheme"}, 0)
	p.OnFinish(2 * time.Second)

	got := buf.String()
	for _, want := range []string{
		"[1/3] OK http://a.test/ status=200 images=2 (1.5s)",
		"[2/3] EMPTY http://b.test/ status=404 (0.0s)",
		"[3/3] FAIL hello malformed_url: no scheme (0.0s)",
		"完成: ok=1 empty=1 failed=1 elapsed=2.0s",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, got)
		}
	}
}

func TestFormatProxy(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "off"},
		{"http://127.0.0.1:8080", "on (http://127.0.0.1:8080, auth=off)"},
		{"http://u:p@proxy.test:1", "on (http://proxy.test:1, auth=on)"},
		{"127.0.0.1", "on (127.0.0.1)"},
	}
	for _, tc := range cases {
		if got := formatProxy(tc.in); got != tc.want {
			t.Fatalf("formatProxy(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  abcdef  ", 5); got != "ab..." {
		t.Fatalf("got=%q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Fatalf("got=%q", got)
	}
}
