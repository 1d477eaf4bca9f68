package fetcher

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingURL 表示调用方没有提供 URL（空串或全空白），在任何 I/O 之前返回。
var ErrMissingURL = errors.New("url 不能为空")

// MalformedURLError 表示 URL 存在但不可用：无法解析、缺少 scheme、scheme 不是 http/https、缺少 host。
type MalformedURLError struct {
	URL    string
	Reason string
}

func (e *MalformedURLError) Error() string {
	if e == nil {
		return "malformed url"
	}
	return fmt.Sprintf("url 无效 %q：%s", e.URL, e.Reason)
}

// TransportError 表示请求没有得到可用响应（DNS、拒绝连接、超时、读取 body 失败）。
// 这种情况下 Resolver 不会被调用，上层必须失败而不是返回空摘要。
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	return fmt.Sprintf("抓取 %s 失败：%v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
// 默认情况下上层把它降级为空摘要；严格模式下原样返回给调用方。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}
