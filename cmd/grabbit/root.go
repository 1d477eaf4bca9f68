package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Xuefeng-Zhu/grabbit"
	"github.com/Xuefeng-Zhu/grabbit/internal/batch"
	"github.com/Xuefeng-Zhu/grabbit/internal/config"
	"github.com/Xuefeng-Zhu/grabbit/internal/infra/fsx"
)

// exitError 携带进程退出码；错误信息已经由命令自己输出。
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

// run 执行命令并返回退出码：0 全部成功，1 存在失败，2 参数错误。
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
	fmt.Fprint(stderr, cmd.UsageString())
	return 2
}

type rootFlags struct {
	configPath   string
	timeout      time.Duration
	proxyURL     string
	userAgent    string
	retryMax     int
	concurrency  int
	strictStatus bool
	out          string
	verbose      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "grabbit [flags] URL...",
		Short: "抓取网页并输出摘要（title / description / images）",
		Long: `grabbit 抓取网页并按 Open Graph > Twitter Card > 通用 HTML 的顺序解析摘要。

单个 URL：stdout 输出摘要 JSON。
多个 URL：stdout 输出 BatchReport JSON（items 与输入顺序一致）。
日志走 stderr。`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrab(cmd, f, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "配置文件路径（默认尝试读取 ./"+config.FileName+"）")
	fl.DurationVar(&f.timeout, "timeout", config.DefaultTimeout, "单个页面的总超时")
	fl.StringVar(&f.proxyURL, "proxy", "", "HTTP 代理地址，例如 http://127.0.0.1:8080")
	fl.StringVar(&f.userAgent, "user-agent", "", "固定 User-Agent（默认从内置 UA 池随机）")
	fl.IntVar(&f.retryMax, "retry", config.DefaultRetryMax, "传输失败后的最大重试次数")
	fl.IntVar(&f.concurrency, "concurrency", config.DefaultConcurrency, "多 URL 时的并发数（1..32）")
	fl.BoolVar(&f.strictStatus, "strict-status", false, "非 2xx 响应视为失败（默认返回空摘要）")
	fl.StringVar(&f.out, "out", "", "额外把 JSON 原子写入该文件")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "输出 debug 日志")

	return cmd
}

func runGrab(cmd *cobra.Command, f rootFlags, args []string, stdout, stderr io.Writer) error {
	tty := isTerminal(stderr)
	log := newLogger(stderr, tty, f.verbose)

	cwd, err := os.Getwd()
	if err != nil {
		log.Error().Err(err).Msg("读取当前目录失败")
		return &exitError{code: 1}
	}

	changed := cmd.Flags().Changed
	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath:      f.configPath,
		Timeout:         f.timeout,
		TimeoutSet:      changed("timeout"),
		ProxyURL:        f.proxyURL,
		ProxyURLSet:     changed("proxy"),
		UserAgent:       f.userAgent,
		UserAgentSet:    changed("user-agent"),
		RetryMax:        f.retryMax,
		RetryMaxSet:     changed("retry"),
		Concurrency:     f.concurrency,
		ConcurrencySet:  changed("concurrency"),
		StrictStatus:    f.strictStatus,
		StrictStatusSet: changed("strict-status"),
	})
	if err != nil {
		log.Error().Str("error_code", config.Code(err)).Err(err).Msg("加载配置失败")
		return &exitError{code: 1}
	}
	if eff.ConfigPath != "" {
		log.Debug().Str("path", eff.ConfigPath).Msg("已读取配置文件")
	}

	retry := eff.RetryMax
	if retry == 0 {
		// httpx 把 0 视为“使用默认值”；配置里的 0 表示不重试。
		retry = -1
	}
	client, err := grabbit.New(
		grabbit.WithTimeout(eff.Timeout),
		grabbit.WithProxy(eff.ProxyURL),
		grabbit.WithUserAgent(eff.UserAgent),
		grabbit.WithRetryMax(retry),
		grabbit.WithMaxRedirects(eff.MaxRedirects),
		grabbit.WithMaxBodyBytes(eff.MaxBodyBytes),
		grabbit.WithStrictStatus(eff.StrictStatus),
		grabbit.WithLogger(log),
	)
	if err != nil {
		log.Error().Err(err).Msg("初始化 client 失败")
		return &exitError{code: 1}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		payload any
		failed  bool
	)
	if len(args) == 1 {
		s, err := client.URL(ctx, args[0])
		if err != nil {
			log.Error().Str("url", args[0]).Str("error_code", batch.ErrorCode(err)).Err(err).Msg("抓取失败")
			return &exitError{code: 1}
		}
		payload = s
	} else {
		runner := batch.Runner{
			Grab: func(ctx context.Context, u string) (batch.Outcome, error) {
				res, err := client.Grab(ctx, u)
				if err != nil {
					return batch.Outcome{}, err
				}
				return batch.Outcome{URL: res.URL, StatusCode: res.StatusCode, Summary: res.Summary}, nil
			},
			Concurrency: eff.Concurrency,
			Logger:      log,
		}
		var ui *progressUI
		if tty {
			ui = newProgressUI(stderr)
			ui.OnStart(eff, len(args))
			runner.Observer = ui
		}
		rr := runner.Run(ctx, args)
		if ui != nil {
			ui.OnFinish(rr.FinishedAt.Sub(rr.StartedAt))
		} else {
			log.Info().
				Int("ok", rr.Summary.OK).
				Int("empty", rr.Summary.Empty).
				Int("failed", rr.Summary.Failed).
				Msg("完成")
		}
		payload = rr
		failed = rr.Summary.Failed > 0
	}

	if f.out != "" {
		if err := writeJSONFile(f.out, payload); err != nil {
			log.Error().Str("path", f.out).Err(err).Msg("写入输出文件失败")
			failed = true
		}
	}

	// stdout 必须且仅输出一个 JSON（日志走 stderr）。
	if err := json.NewEncoder(stdout).Encode(payload); err != nil {
		log.Error().Err(err).Msg("输出 JSON 失败")
		return &exitError{code: 1}
	}
	if failed {
		return &exitError{code: 1}
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(path, b)
}

func newLogger(w io.Writer, tty, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if tty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
