package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Xuefeng-Zhu/grabbit/internal/domain"
	"github.com/Xuefeng-Zhu/grabbit/internal/fetcher"
)

// Outcome 是单个 URL 的解析结果。
type Outcome struct {
	URL        string
	StatusCode int
	Summary    domain.PageSummary
}

// GrabFunc 抓取并解析单个 URL。实现必须并发安全。
type GrabFunc func(ctx context.Context, rawURL string) (Outcome, error)

// Observer 接收逐条完成事件，用于进度展示。实现必须并发安全：事件来自多个 goroutine。
type Observer interface {
	// OnItemDone 在某个 URL 处理完成时调用；done 为已完成数（含本条）。
	OnItemDone(done, total int, it domain.ItemResult, dur time.Duration)
}

// Runner 以有界并发解析多个 URL。
//
// 约束：
// - 单个 URL 失败不影响其他 URL（失败写入对应 item）
// - items 与输入一一对应，顺序保持不变
type Runner struct {
	Grab        GrabFunc
	Concurrency int
	Logger      zerolog.Logger
	// Observer 可选。
	Observer Observer
}

// Run 执行一次批量解析并返回 BatchReport。
func (r Runner) Run(ctx context.Context, urls []string) domain.BatchReport {
	rr := domain.BatchReport{
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.ItemResult, len(urls)),
	}

	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}
	r.Logger.Debug().Int("urls", len(urls)).Int("concurrency", limit).Msg("batch start")

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, u := range urls {
		g.Go(func() error {
			start := time.Now()
			// 每个 goroutine 只写自己的槽位，无需加锁。
			rr.Items[i] = r.one(gctx, u)
			n := int(done.Add(1))
			if r.Observer != nil {
				r.Observer.OnItemDone(n, len(urls), rr.Items[i], time.Since(start))
			}
			return nil
		})
	}
	_ = g.Wait()

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()

	r.Logger.Debug().
		Int("ok", rr.Summary.OK).
		Int("empty", rr.Summary.Empty).
		Int("failed", rr.Summary.Failed).
		Dur("elapsed", rr.FinishedAt.Sub(rr.StartedAt)).
		Msg("batch done")
	return rr
}

func (r Runner) one(ctx context.Context, u string) domain.ItemResult {
	it := domain.ItemResult{URL: u}
	if err := ctx.Err(); err != nil {
		it.Status = domain.StatusFailed
		it.ErrorCode = domain.ErrCodeCanceled
		it.ErrorMsg = err.Error()
		return it
	}

	out, err := r.Grab(ctx, u)
	if err != nil {
		it.Status = domain.StatusFailed
		it.ErrorCode = ErrorCode(err)
		it.ErrorMsg = err.Error()
		var se *fetcher.HTTPStatusError
		if errors.As(err, &se) {
			it.StatusCode = se.StatusCode
		}
		r.Logger.Warn().Str("url", u).Str("error_code", it.ErrorCode).Err(err).Msg("grab failed")
		return it
	}

	s := out.Summary
	it.StatusCode = out.StatusCode
	it.Result = &s
	if s.IsEmpty() {
		it.Status = domain.StatusEmpty
	} else {
		it.Status = domain.StatusOK
	}
	r.Logger.Debug().Str("url", u).Str("status", it.Status).Int("status_code", it.StatusCode).Msg("grab done")
	return it
}

// ErrorCode 把抓取错误映射为 report 中的 error_code。
func ErrorCode(err error) string {
	var (
		me *fetcher.MalformedURLError
		se *fetcher.HTTPStatusError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fetcher.ErrMissingURL):
		return domain.ErrCodeMissingURL
	case errors.As(err, &me):
		return domain.ErrCodeMalformedURL
	case errors.As(err, &se):
		return domain.ErrCodeHTTPStatus
	case errors.Is(err, context.Canceled):
		return domain.ErrCodeCanceled
	default:
		return domain.ErrCodeFetchFailed
	}
}
