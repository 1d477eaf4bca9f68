package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Xuefeng-Zhu/grabbit/internal/batch"
	"github.com/Xuefeng-Zhu/grabbit/internal/config"
	"github.com/Xuefeng-Zhu/grabbit/internal/domain"
)

var _ batch.Observer = (*progressUI)(nil)

// progressUI 在交互终端逐条打印批量进度，只写 stderr，stdout 保留给 JSON。
type progressUI struct {
	w io.Writer

	mu     sync.Mutex
	ok     int
	empty  int
	failed int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s] grabbit: %d URL\n", time.Now().Format("15:04:05"), total)
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  timeout: %s\n", eff.Timeout)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  strict_status: %s\n\n", onOff(eff.StrictStatus))
}

func (p *progressUI) OnItemDone(done, total int, it domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch it.Status {
	case domain.StatusOK:
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] OK %s status=%d images=%d (%s)\n",
			done, total, truncate(it.URL, 120), it.StatusCode, imageCount(it), formatShortDuration(dur),
		)
	case domain.StatusEmpty:
		p.empty++
		fmt.Fprintf(p.w, "[%d/%d] EMPTY %s status=%d (%s)\n",
			done, total, truncate(it.URL, 120), it.StatusCode, formatShortDuration(dur),
		)
	default:
		p.failed++
		fmt.Fprintf(p.w, "[%d/%d] FAIL %s %s: %s (%s)\n",
			done, total, truncate(it.URL, 120), it.ErrorCode, truncate(it.ErrorMsg, 160), formatShortDuration(dur),
		)
	}
}

func (p *progressUI) OnFinish(elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "\n完成: ok=%d empty=%d failed=%d elapsed=%s\n", p.ok, p.empty, p.failed, formatShortDuration(elapsed))
}

func imageCount(it domain.ItemResult) int {
	if it.Result == nil {
		return 0
	}
	return len(it.Result.Images())
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
