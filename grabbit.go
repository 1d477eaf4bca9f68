// Package grabbit 抓取单个网页并提取摘要：title、description 与代表性图片 URL 列表。
//
// 每个字段按 Open Graph > Twitter Card > 通用 HTML（<title>、<meta name="description">、<img>）
// 的顺序解析。图片按来源互斥：高优先级来源只要给出任何图片，低优先级来源就不再查询。
//
//	s, err := grabbit.URL(ctx, "http://ogp.me/")
//	if err != nil {
//		return err
//	}
//	title, ok := s.Title()
package grabbit

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Xuefeng-Zhu/grabbit/internal/domain"
	"github.com/Xuefeng-Zhu/grabbit/internal/fetcher"
	"github.com/Xuefeng-Zhu/grabbit/internal/infra/httpx"
	"github.com/Xuefeng-Zhu/grabbit/internal/resolver"
)

// Summary 是解析得到的页面摘要；title/description 缺失时 ok=false。
type Summary = domain.PageSummary

// Sources 记录每个字段的命中来源（例如 "og:title"）。
type Sources = resolver.Sources

type (
	// MalformedURLError 表示 URL 存在但不可用（缺少 http/https scheme 或 host）。
	MalformedURLError = fetcher.MalformedURLError
	// TransportError 表示页面完全不可达（DNS、拒绝连接、超时）。
	TransportError = fetcher.TransportError
	// HTTPStatusError 表示非 2xx 响应；只在 WithStrictStatus(true) 时返回。
	HTTPStatusError = fetcher.HTTPStatusError
)

// ErrMissingURL 表示没有提供 URL。
var ErrMissingURL = fetcher.ErrMissingURL

// Result 是 Summary 加上抓取阶段观察到的信息。
type Result struct {
	// URL 是跟随重定向后的最终地址。
	URL        string
	StatusCode int
	Summary    Summary
	Sources    Sources
}

// Client 负责抓取并解析页面；可并发使用。
//
// HTTP client（含 UA 池）属于 Client 实例，不存在包级共享状态。
type Client struct {
	fetcher      fetcher.Fetcher
	strictStatus bool
	log          zerolog.Logger
}

type options struct {
	httpClient   *http.Client
	transport    httpx.Options
	maxBodyBytes int64
	strictStatus bool
	log          zerolog.Logger
}

// Option 配置 Client。
type Option func(*options)

// WithHTTPClient 替换内置 HTTP client；设置后 timeout/proxy/UA/重试/重定向选项均被忽略。
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.transport.Timeout = d }
}

func WithProxy(proxyURL string) Option {
	return func(o *options) { o.transport.ProxyURL = proxyURL }
}

func WithUserAgent(ua string) Option {
	return func(o *options) { o.transport.UserAgent = ua }
}

// WithRetryMax 设置传输失败后的最大重试次数；负数表示不重试。
func WithRetryMax(n int) Option {
	return func(o *options) { o.transport.RetryMax = n }
}

func WithMaxRedirects(n int) Option {
	return func(o *options) { o.transport.MaxRedirects = n }
}

func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBodyBytes = n }
}

// WithStrictStatus 让非 2xx 响应返回 *HTTPStatusError，而不是空摘要。
func WithStrictStatus(strict bool) Option {
	return func(o *options) { o.strictStatus = strict }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// New 构造 Client。
func New(opts ...Option) (*Client, error) {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		c, err := httpx.NewClient(o.transport)
		if err != nil {
			return nil, err
		}
		hc = c
	}

	return &Client{
		fetcher: fetcher.Fetcher{
			Client:       hc,
			MaxBodyBytes: o.maxBodyBytes,
			Logger:       o.log,
		},
		strictStatus: o.strictStatus,
		log:          o.log,
	}, nil
}

// URL 用一个新建的默认 Client 抓取 rawURL 并解析摘要。
func URL(ctx context.Context, rawURL string) (Summary, error) {
	c, err := New()
	if err != nil {
		return Summary{}, err
	}
	return c.URL(ctx, rawURL)
}

// URL 抓取 rawURL 并解析摘要。
//
// 错误语义：
// - 未提供 URL：ErrMissingURL；缺少 http/https scheme：*MalformedURLError（都在任何网络活动之前）
// - 页面不可达：*TransportError（不会降级为空摘要）
// - 页面可达但非 2xx / 不是 HTML / 没有可识别字段：返回空摘要，不报错
func (c *Client) URL(ctx context.Context, rawURL string) (Summary, error) {
	res, err := c.Grab(ctx, rawURL)
	if err != nil {
		return Summary{}, err
	}
	return res.Summary, nil
}

// Grab 与 URL 相同，但额外返回最终地址、状态码与字段来源。
func (c *Client) Grab(ctx context.Context, rawURL string) (Result, error) {
	resp, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}

	res := Result{URL: resp.URL, StatusCode: resp.StatusCode, Summary: domain.EmptySummary()}
	log := c.log.With().Str("url", resp.URL).Int("status", resp.StatusCode).Logger()

	if !resp.OK() {
		if c.strictStatus {
			return Result{}, resp.StatusError()
		}
		log.Debug().Msg("non-2xx response, empty summary")
		return res, nil
	}
	if !resp.IsHTML() {
		log.Debug().Str("content_type", resp.Header.Get("Content-Type")).Msg("not html, empty summary")
		return res, nil
	}

	doc, err := resolver.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		log.Debug().Err(err).Msg("parse failed, empty summary")
		return res, nil
	}
	res.Summary, res.Sources = resolver.ResolveTrace(doc, resp.URL)

	log.Debug().
		Str("title_source", res.Sources.Title).
		Str("description_source", res.Sources.Description).
		Str("images_source", res.Sources.Images).
		Int("images", len(res.Summary.Images())).
		Msg("resolved")
	return res, nil
}

// Parse 从已经抓取到的 HTML 解析摘要。r 必须是 UTF-8。
// pageURL 非空时用于把相对图片地址解析为绝对地址。
func Parse(r io.Reader, pageURL string) (Summary, error) {
	doc, err := resolver.Parse(r)
	if err != nil {
		return Summary{}, err
	}
	return resolver.Resolve(doc, pageURL), nil
}
