package fetcher

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
)

// DefaultMaxBodyBytes 是单页 body 的读取上限。
const DefaultMaxBodyBytes int64 = 10 << 20

// Response 是一次 GET 的结果。Body 已按字符集转换为 UTF-8。
type Response struct {
	// URL 是跟随重定向后的最终地址（用于解析相对图片地址）。
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK 判断状态码是否为 2xx。
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// IsHTML 判断响应是否可以当作 HTML 解析；缺少 Content-Type 时按 HTML 处理。
func (r *Response) IsHTML() bool {
	if r == nil {
		return false
	}
	ct := strings.TrimSpace(r.Header.Get("Content-Type"))
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// StatusError 把非 2xx 响应转换为 *HTTPStatusError；2xx 返回 nil。
func (r *Response) StatusError() error {
	if r == nil || r.OK() {
		return nil
	}
	return &HTTPStatusError{URL: r.URL, StatusCode: r.StatusCode, Location: r.Header.Get("Location")}
}

// Fetcher 负责“校验 URL + 一次 GET + 读取 body”。
//
// 约束：
// - 不做缓存、不做限速；重试与 UA 策略由 Client 的 Transport 决定
// - 非 2xx 不是错误：由调用方决定如何处理（Response.StatusError）
type Fetcher struct {
	Client       *http.Client
	MaxBodyBytes int64
	Logger       zerolog.Logger
}

// ValidateURL 在任何网络活动之前校验 URL。
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &MalformedURLError{URL: raw, Reason: err.Error()}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return nil, &MalformedURLError{URL: raw, Reason: "缺少 scheme（需要 http:// 或 https://）"}
	default:
		return nil, &MalformedURLError{URL: raw, Reason: "不支持的 scheme " + u.Scheme}
	}
	if u.Host == "" {
		return nil, &MalformedURLError{URL: raw, Reason: "缺少 host"}
	}
	return u, nil
}

// Fetch 校验 URL 并执行一次 GET。
//
// 返回的错误只有三类：ErrMissingURL、*MalformedURLError、*TransportError。
func (f Fetcher) Fetch(ctx context.Context, raw string) (*Response, error) {
	u, err := ValidateURL(raw)
	if err != nil {
		return nil, err
	}
	if f.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	pageURL := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, &MalformedURLError{URL: pageURL, Reason: err.Error()}
	}

	log := f.Logger.With().Str("url", pageURL).Logger()
	log.Debug().Msg("fetch start")

	resp, err := f.Client.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("fetch failed")
		return nil, &TransportError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	final := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	body, err := readBody(resp, f.maxBodyBytes())
	if err != nil {
		log.Debug().Err(err).Int("status", resp.StatusCode).Msg("read body failed")
		return nil, &TransportError{URL: final, Err: err}
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Str("final_url", final).
		Int("bytes", len(body)).
		Msg("fetch done")

	return &Response{
		URL:        final,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

func (f Fetcher) maxBodyBytes() int64 {
	if f.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return f.MaxBodyBytes
}

// readBody 读取有上限的 body，并按 Content-Type / <meta charset> / BOM 转换为 UTF-8。
// 超出上限的部分被截断（HTML 解析器可以容忍不完整的文档）。
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	r := io.LimitReader(resp.Body, limit)
	cr, err := charset.NewReader(r, resp.Header.Get("Content-Type"))
	if err != nil {
		// 空 body：charset 预读时直接遇到 EOF。
		if errors.Is(err, io.EOF) {
			return []byte{}, nil
		}
		return nil, err
	}
	return io.ReadAll(cr)
}
