package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEffective_NoFileUsesDefaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("未读取配置文件时 ConfigPath 应为空，实际 %q", eff.ConfigPath)
	}
	if eff.Timeout != DefaultTimeout || eff.RetryMax != DefaultRetryMax || eff.Concurrency != DefaultConcurrency {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.MaxBodyBytes != DefaultMaxBodyBytes || eff.MaxRedirects != DefaultMaxRedirects {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.StrictStatus {
		t.Fatalf("strict_status 默认应为 false")
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "missing.yaml"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_DiscoveredFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`
timeout: 5s
retry_max: 0
proxy:
  url: http://127.0.0.1:8080
user_agent: grabbit/1.0
max_body_bytes: 1024
max_redirects: 3
concurrency: 8
strict_status: true
`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(cwd, FileName) {
		t.Fatalf("ConfigPath 不符合预期：%q", eff.ConfigPath)
	}
	if eff.Timeout != 5*time.Second {
		t.Fatalf("期望 timeout=5s，实际 %v", eff.Timeout)
	}
	if eff.RetryMax != 0 {
		t.Fatalf("retry_max: 0 必须生效（而不是回退默认值），实际 %d", eff.RetryMax)
	}
	if eff.ProxyURL != "http://127.0.0.1:8080" || eff.UserAgent != "grabbit/1.0" {
		t.Fatalf("proxy/user_agent 不符合预期：%+v", eff)
	}
	if eff.MaxBodyBytes != 1024 || eff.MaxRedirects != 3 || eff.Concurrency != 8 || !eff.StrictStatus {
		t.Fatalf("字段不符合预期：%+v", eff)
	}
}

func TestLoadEffective_CLIOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "custom.yaml"), []byte("timeout: 5s\nstrict_status: true\nconcurrency: 8\nproxy:\n  url: http://127.0.0.1:8080\n"))

	eff, err := LoadEffective(cwd, CLIArgs{
		ConfigPath:      "custom.yaml",
		Timeout:         time.Second,
		TimeoutSet:      true,
		StrictStatus:    false,
		StrictStatusSet: true, // --strict-status=false
		ProxyURL:        "",
		ProxyURLSet:     true, // --proxy="" 关闭代理
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Timeout != time.Second {
		t.Fatalf("期望 timeout=1s，实际 %v", eff.Timeout)
	}
	if eff.StrictStatus {
		t.Fatalf("期望 strict_status=false")
	}
	if eff.ProxyURL != "" {
		t.Fatalf("期望 CLI 清空代理，实际 %q", eff.ProxyURL)
	}
	if eff.Concurrency != 8 {
		t.Fatalf("未被 CLI 覆盖的字段应来自配置文件，实际 concurrency=%d", eff.Concurrency)
	}
}

func TestLoadEffective_ConcurrencyClamp(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{Concurrency: 100, ConcurrencySet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Concurrency != 32 {
		t.Fatalf("期望截断到 32，实际 %d", eff.Concurrency)
	}

	eff, err = LoadEffective(cwd, CLIArgs{Concurrency: -1, ConcurrencySet: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Concurrency != 1 {
		t.Fatalf("期望截断到 1，实际 %d", eff.Concurrency)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":      "timeout: [",
		"unknown field": "timeuot: 5s\n",
		"bad duration":  "timeout: soon\n",
		"bad proxy":     "proxy:\n  url: 127.0.0.1:8080\n",
		"negative":      "retry_max: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, FileName), []byte(body))

			_, err := LoadEffective(cwd, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadEffective_EmptyFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), nil)

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("空配置文件不应报错：%v", err)
	}
	if eff.Timeout != DefaultTimeout {
		t.Fatalf("空配置文件应使用默认值：%+v", eff)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
