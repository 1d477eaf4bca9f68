package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示通过 --config 显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是在 cwd 下自动发现的配置文件名（可选）。
const FileName = "grabbit.yaml"

const (
	DefaultTimeout      = 20 * time.Second
	DefaultRetryMax     = 2
	DefaultMaxRedirects = 10
	DefaultMaxBodyBytes = 10 << 20
	// DefaultConcurrency 是多 URL 运行时的并发默认值。
	DefaultConcurrency = 4
)

// CLIArgs 保留“是否显式指定”的信息，保证 CLI 能覆盖配置文件（包括覆盖为零值，例如 --retry=0）。
type CLIArgs struct {
	ConfigPath string

	Timeout    time.Duration
	TimeoutSet bool

	ProxyURL    string
	ProxyURLSet bool

	UserAgent    string
	UserAgentSet bool

	RetryMax    int
	RetryMaxSet bool

	Concurrency    int
	ConcurrencySet bool

	StrictStatus    bool
	StrictStatusSet bool
}

// FileConfig 对应 grabbit.yaml 的解析结构。
type FileConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	RetryMax     *int          `yaml:"retry_max"`
	Proxy        *ProxyConfig  `yaml:"proxy"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	MaxRedirects int           `yaml:"max_redirects"`
	Concurrency  int           `yaml:"concurrency"`
	StrictStatus *bool         `yaml:"strict_status"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件路径；未读取任何文件时为空。
	ConfigPath string

	Timeout      time.Duration
	RetryMax     int
	ProxyURL     string
	UserAgent    string
	MaxBodyBytes int64
	MaxRedirects int
	Concurrency  int
	StrictStatus bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在（相对路径以 cwd 为基准）
// 2) 否则尝试读取 <cwd>/grabbit.yaml（可选，不存在不报错）
//
// 覆盖优先级（固定）：CLI > 配置文件 > 内置默认值。
// max_body_bytes / max_redirects 仅由配置文件控制（CLI 不暴露）。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
	}

	return merge(cli, fc, cfgPath)
}

func merge(cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	timeout := DefaultTimeout
	if cli.TimeoutSet {
		timeout = cli.Timeout
	} else if fc.Timeout != 0 {
		timeout = fc.Timeout
	}
	if timeout <= 0 {
		return invalid(fmt.Errorf("timeout 必须大于 0，实际 %v", timeout))
	}

	retry := DefaultRetryMax
	if cli.RetryMaxSet {
		retry = cli.RetryMax
	} else if fc.RetryMax != nil {
		retry = *fc.RetryMax
	}
	if retry < 0 {
		return invalid(fmt.Errorf("retry_max 不能为负数，实际 %d", retry))
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if cli.ProxyURLSet {
		proxyURL = strings.TrimSpace(cli.ProxyURL)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid(fmt.Errorf("proxy.url 无效：%q", proxyURL))
		}
	}

	ua := strings.TrimSpace(fc.UserAgent)
	if cli.UserAgentSet {
		ua = strings.TrimSpace(cli.UserAgent)
	}

	concurrency := DefaultConcurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	} else if fc.Concurrency != 0 {
		concurrency = fc.Concurrency
	}
	// 范围 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	strict := false
	if cli.StrictStatusSet {
		strict = cli.StrictStatus
	} else if fc.StrictStatus != nil {
		strict = *fc.StrictStatus
	}

	maxBody := fc.MaxBodyBytes
	if maxBody == 0 {
		maxBody = DefaultMaxBodyBytes
	}
	if maxBody < 0 {
		return invalid(fmt.Errorf("max_body_bytes 不能为负数，实际 %d", maxBody))
	}

	maxRedirects := fc.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = DefaultMaxRedirects
	}
	if maxRedirects < 0 {
		return invalid(fmt.Errorf("max_redirects 不能为负数，实际 %d", maxRedirects))
	}

	return EffectiveConfig{
		ConfigPath:   cfgPath,
		Timeout:      timeout,
		RetryMax:     retry,
		ProxyURL:     proxyURL,
		UserAgent:    ua,
		MaxBodyBytes: maxBody,
		MaxRedirects: maxRedirects,
		Concurrency:  concurrency,
		StrictStatus: strict,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
// 未知字段直接报错。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		// 空文件：等同于全部使用默认值。
		if errors.Is(err, io.EOF) {
			return FileConfig{}, true, nil
		}
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
