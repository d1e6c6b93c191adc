package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/John-Robertt/analyst/internal/config"
	"github.com/John-Robertt/analyst/internal/domain"
	"github.com/John-Robertt/analyst/internal/infra/fsx"
	"github.com/John-Robertt/analyst/internal/infra/httpx"
	"github.com/John-Robertt/analyst/internal/server"
	"github.com/John-Robertt/analyst/internal/task"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "serve":
		code = serveCmd(args[1:])
	case "ask":
		code = askCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

type cliArgs struct {
	config.CLIArgs

	// Input 是 ask 的任务文件（"-" 表示 stdin）。
	Input string
	// Out 是 ask 的答案输出文件（可选）。
	Out string
}

func parseArgs(args []string, allowInput bool) (cliArgs, error) {
	var ca cliArgs

	value := func(i *int, name string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		var err error
		switch {
		case a == "--config":
			ca.ConfigPath, err = value(&i, a)
		case strings.HasPrefix(a, "--config="):
			ca.ConfigPath = strings.TrimPrefix(a, "--config=")
		case a == "--listen":
			ca.Listen, err = value(&i, a)
			ca.ListenSet = true
		case strings.HasPrefix(a, "--listen="):
			ca.Listen = strings.TrimPrefix(a, "--listen=")
			ca.ListenSet = true
		case a == "--log-level":
			ca.LogLevel, err = value(&i, a)
			ca.LogLevelSet = true
		case strings.HasPrefix(a, "--log-level="):
			ca.LogLevel = strings.TrimPrefix(a, "--log-level=")
			ca.LogLevelSet = true
		case allowInput && a == "--out":
			ca.Out, err = value(&i, a)
		case allowInput && strings.HasPrefix(a, "--out="):
			ca.Out = strings.TrimPrefix(a, "--out=")
		case a == "-":
			if !allowInput || ca.Input != "" {
				return cliArgs{}, fmt.Errorf("多余的参数 %q", a)
			}
			ca.Input = a
		case strings.HasPrefix(a, "-"):
			return cliArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if !allowInput {
				return cliArgs{}, fmt.Errorf("多余的参数 %q", a)
			}
			if ca.Input != "" {
				return cliArgs{}, fmt.Errorf("重复的任务文件：%q 与 %q", ca.Input, a)
			}
			ca.Input = a
		}
		if err != nil {
			return cliArgs{}, err
		}
	}

	if allowInput && ca.Input == "" {
		return cliArgs{}, errors.New("缺少任务文件（使用 - 从 stdin 读取）")
	}
	return ca, nil
}

func loadConfig(ca cliArgs) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, err
	}
	return config.LoadEffective(cwd, ca.CLIArgs)
}

func newDispatcher(eff config.EffectiveConfig, log *slog.Logger) (task.Dispatcher, error) {
	client, err := httpx.NewClient(eff.ProxyURL, eff.Timeout)
	if err != nil {
		return task.Dispatcher{}, fmt.Errorf("proxy.url 无效：%w", err)
	}
	reg, err := task.NewRegistry(eff.Films)
	if err != nil {
		return task.Dispatcher{}, fmt.Errorf("初始化 handler registry 失败：%w", err)
	}
	return task.Dispatcher{
		Registry: reg,
		Env:      task.Env{Client: client, Observer: logObserver{log: log}},
	}, nil
}

func serveCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printServeUsage()
			return 0
		}
	}
	ca, err := parseArgs(args, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printServeUsage()
		return 2
	}
	eff, err := loadConfig(ca)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log := newLogger(os.Stderr, eff.LogLevel)

	d, err := newDispatcher(eff, log)
	if err != nil {
		log.Error("init failed", "err", err)
		return 1
	}

	srv := &http.Server{
		Addr:              eff.Listen,
		Handler:           server.New(d, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", eff.Listen, "config", eff.Source, "handlers", d.Registry.Names())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "err", err)
		return 1
	}
	log.Info("server stopped")
	return 0
}

func askCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printAskUsage()
			return 0
		}
	}
	ca, err := parseArgs(args, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printAskUsage()
		return 2
	}
	eff, err := loadConfig(ca)
	if err != nil {
		emitError(os.Stdout, config.Code(err), err)
		return 1
	}
	log := newLogger(os.Stderr, eff.LogLevel)

	text, err := readInput(ca.Input)
	if err != nil {
		emitError(os.Stdout, domain.ErrCodeBadRequest, err)
		return 1
	}

	d, err := newDispatcher(eff, log)
	if err != nil {
		emitError(os.Stdout, domain.ErrCodeConfigInvalid, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := d.Dispatch(ctx, text)
	if err != nil {
		emitError(os.Stdout, task.ErrorCode(err), err)
		return 1
	}

	if ca.Out != "" {
		b, err := json.Marshal(a)
		if err != nil {
			emitError(os.Stdout, domain.ErrCodeInternal, err)
			return 1
		}
		if err := fsx.WriteFile(ca.Out, append(b, '\n')); err != nil {
			emitError(os.Stdout, domain.ErrCodeInternal, fmt.Errorf("写入 %s 失败：%w", ca.Out, err))
			return 1
		}
	}
	emitAnswers(os.Stdout, a)
	return 0
}

func readInput(name string) (string, error) {
	var (
		b   []byte
		err error
	)
	if name == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(name)
	}
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", errors.New("任务文本为空")
	}
	return text, nil
}

// emitAnswers：stdout 非 TTY 时只输出一个 JSON 数组；TTY 时输出便于阅读的摘要。
func emitAnswers(f *os.File, a domain.AnswerSet) {
	if !isTTY(f) {
		_ = json.NewEncoder(f).Encode(a)
		return
	}
	fmt.Fprint(f, formatSummary(a, 72))
}

func emitError(f *os.File, code string, err error) {
	if code == "" {
		code = domain.ErrCodeInternal
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", code, err)
	if !isTTY(f) {
		_ = json.NewEncoder(f).Encode(map[string]string{"error": err.Error()})
	}
}

// formatSummary 按显示宽度（而非字节数）对齐与截断，避免 CJK 标题把列挤歪。
func formatSummary(a domain.AnswerSet, width int) string {
	var chart string
	if a.Chart != "" {
		chart = fmt.Sprintf("image/%s, %d bytes", a.Chart.Format(), len(a.Chart))
	}
	rows := [][2]string{
		{"count", fmt.Sprint(a.Count)},
		{"title", a.Title},
		{"correlation", fmt.Sprint(a.Correlation)},
		{"chart", chart},
	}

	labelW := 0
	for _, r := range rows {
		labelW = max(labelW, runewidth.StringWidth(r[0]))
	}
	var b strings.Builder
	for _, r := range rows {
		v := runewidth.Truncate(r[1], width-labelW-2, "...")
		b.WriteString(runewidth.FillRight(r[0], labelW))
		b.WriteString("  ")
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return b.String()
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  analyst serve [--config file] [--listen addr] [--log-level level]
  analyst ask <task-file|-> [--config file] [--out file] [--log-level level]

命令：
  serve  启动 HTTP 服务（POST / 与 POST /api/ 上传任务文本）
  ask    在本地执行一次任务并输出答案

使用 "analyst <command> --help" 查看详细说明。
`)
}

func printServeUsage() {
	fmt.Fprint(os.Stdout, `用法：
  analyst serve [--config file] [--listen addr] [--log-level level]

参数：
  --config     配置文件（默认读取当前目录下的 analyst.yaml，不存在则使用内置默认）
  --listen     监听地址（默认 :8000）
  --log-level  debug|info|warn|error（默认 info）
  -h, --help   显示帮助
`)
}

func printAskUsage() {
	fmt.Fprint(os.Stdout, `用法：
  analyst ask <task-file|-> [--config file] [--out file] [--log-level level]

参数：
  <task-file>  任务文本文件；- 表示从 stdin 读取
  --out        额外把答案 JSON 原子写入该文件
  --config     配置文件（默认读取当前目录下的 analyst.yaml）
  --log-level  debug|info|warn|error（默认 info）
  -h, --help   显示帮助
`)
}
