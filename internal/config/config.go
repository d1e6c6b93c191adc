package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/analyst/internal/domain"
	"github.com/John-Robertt/analyst/internal/extract"
	"github.com/John-Robertt/analyst/internal/normalize"
	"github.com/John-Robertt/analyst/internal/task"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	// DefaultFileName 是 cwd 下自动发现的配置文件名（可选）。
	DefaultFileName = "analyst.yaml"
	DefaultListen   = ":8000"
	DefaultLogLevel = "info"
	DefaultTimeout  = 30 * time.Second
)

// CLIArgs 保留“是否显式指定”的信息，保证 CLI > 配置文件 > 默认值 的覆盖优先级可实现。
type CLIArgs struct {
	ConfigPath string

	Listen    string
	ListenSet bool

	LogLevel    string
	LogLevelSet bool
}

// FileConfig 对应 analyst.yaml 的解析结构。
type FileConfig struct {
	Listen     string       `yaml:"listen"`
	LogLevel   string       `yaml:"log_level"`
	TimeoutSec int          `yaml:"timeout_sec"`
	Proxy      *ProxyConfig `yaml:"proxy"`
	Films      *FilmsConfig `yaml:"films"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

// FilmsConfig 覆盖 films 任务的阈值与表格形态；未出现的字段沿用内置默认。
type FilmsConfig struct {
	DefaultURL       string       `yaml:"default_url"`
	CountMinGross    *float64     `yaml:"count_min_gross"`
	CountBeforeYear  *int         `yaml:"count_before_year"`
	EarliestMinGross *float64     `yaml:"earliest_min_gross"`
	Correlate        []string     `yaml:"correlate"`
	Table            *TableConfig `yaml:"table"`
}

type TableConfig struct {
	Selectors  []string       `yaml:"selectors"`
	MinColumns int            `yaml:"min_columns"`
	Columns    []ColumnConfig `yaml:"columns"`
}

type ColumnConfig struct {
	Index  int    `yaml:"index"`
	Header string `yaml:"header"`
	Field  string `yaml:"field"`
	Rule   string `yaml:"rule"`
}

// EffectiveConfig 是合并并校验后的最终配置（实现层直接消费）。
type EffectiveConfig struct {
	// Source 是实际读取的配置文件路径；未读取任何文件时为空。
	Source string

	Listen   string
	LogLevel string
	Timeout  time.Duration
	ProxyURL string

	Films task.Films
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
// 发现规则：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <cwd>/analyst.yaml（可选，不存在即全部使用默认值）
//
// 覆盖优先级：listen/log_level 为 CLI > config > 默认；其余字段仅由 config 控制。
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
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, DefaultFileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	eff, err := merge(cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if exists {
		eff.Source = cfgPath
	}
	return eff, nil
}

func merge(cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	listen := DefaultListen
	if cli.ListenSet {
		listen = strings.TrimSpace(cli.Listen)
	} else if strings.TrimSpace(fc.Listen) != "" {
		listen = strings.TrimSpace(fc.Listen)
	}
	if listen == "" {
		return EffectiveConfig{}, fmt.Errorf("listen 不能为空")
	}

	level := DefaultLogLevel
	if cli.LogLevelSet {
		level = cli.LogLevel
	} else if strings.TrimSpace(fc.LogLevel) != "" {
		level = fc.LogLevel
	}
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, fmt.Errorf("log_level 只能是 debug/info/warn/error，实际是 %q", level)
	}

	timeout := DefaultTimeout
	if fc.TimeoutSec < 0 {
		return EffectiveConfig{}, fmt.Errorf("timeout_sec 不能为负：%d", fc.TimeoutSec)
	}
	if fc.TimeoutSec > 0 {
		timeout = time.Duration(fc.TimeoutSec) * time.Second
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%w", err)
		}
	}

	films, err := mergeFilms(fc.Films)
	if err != nil {
		return EffectiveConfig{}, err
	}

	return EffectiveConfig{
		Listen:   listen,
		LogLevel: level,
		Timeout:  timeout,
		ProxyURL: proxyURL,
		Films:    films,
	}, nil
}

func mergeFilms(fc *FilmsConfig) (task.Films, error) {
	f := task.NewFilms()
	if fc == nil {
		return f, nil
	}

	if u := strings.TrimSpace(fc.DefaultURL); u != "" {
		pu, err := url.Parse(u)
		if err != nil || pu.Host == "" || (pu.Scheme != "http" && pu.Scheme != "https") {
			return task.Films{}, fmt.Errorf("films.default_url 必须是 http/https URL：%q", u)
		}
		f.DefaultURL = u
	}
	if fc.CountMinGross != nil {
		f.CountMinGross = *fc.CountMinGross
	}
	if fc.CountBeforeYear != nil {
		f.CountBeforeYear = *fc.CountBeforeYear
	}
	if fc.EarliestMinGross != nil {
		f.EarliestMinGross = *fc.EarliestMinGross
	}
	if len(fc.Correlate) > 0 {
		if len(fc.Correlate) != 2 {
			return task.Films{}, fmt.Errorf("films.correlate 必须恰好包含两个字段，实际 %d 个", len(fc.Correlate))
		}
		x, err := domain.ParseField(fc.Correlate[0])
		if err != nil {
			return task.Films{}, fmt.Errorf("films.correlate：%w", err)
		}
		y, err := domain.ParseField(fc.Correlate[1])
		if err != nil {
			return task.Films{}, fmt.Errorf("films.correlate：%w", err)
		}
		f.CorrX, f.CorrY = x, y
	}

	if t := fc.Table; t != nil {
		if len(t.Selectors) > 0 {
			f.Schema.Selectors = append([]string(nil), t.Selectors...)
		}
		if t.MinColumns > 0 {
			f.Schema.MinColumns = t.MinColumns
		}
		if len(t.Columns) > 0 {
			cols := make([]extract.Column, 0, len(t.Columns))
			for _, c := range t.Columns {
				field, err := domain.ParseField(c.Field)
				if err != nil {
					return task.Films{}, fmt.Errorf("films.table.columns：%w", err)
				}
				rule, err := normalize.ParseRule(c.Rule)
				if err != nil {
					return task.Films{}, fmt.Errorf("films.table.columns：%w", err)
				}
				cols = append(cols, extract.Column{Index: c.Index, Header: strings.TrimSpace(c.Header), Field: field, Rule: rule})
			}
			f.Schema.Columns = cols
		}
	}

	if err := f.Validate(); err != nil {
		return task.Films{}, fmt.Errorf("films：%w", err)
	}
	return f, nil
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
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
