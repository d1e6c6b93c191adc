// Package task 负责任务分类与分发：把自由文本任务映射到 Handler，并产出定长 AnswerSet。
package task

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/John-Robertt/analyst/internal/domain"
)

// Handler 是一种任务类型的完整处理管线。
//
// 约束：
// - Handle 只能修改本次调用内创建的数据；多个请求可并发调用同一个 Handler
// - 失败时不返回部分答案（all-or-nothing）
type Handler interface {
	Name() string
	// Signatures 是任务文本中的识别短语（大小写不敏感的子串匹配）。
	Signatures() []string
	Handle(ctx context.Context, text string, env Env) (domain.AnswerSet, error)
}

// Env 是 Handler 运行所需的外部协作者。
type Env struct {
	Client   *http.Client
	Observer Observer
}

// Observer 把管线阶段事件从核心流程中解耦出来；实现必须并发安全。
type Observer interface {
	OnDispatched(handler string)
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
}

func (e Env) phaseDone(name string, fields map[string]any, started time.Time) {
	if e.Observer != nil {
		e.Observer.OnPhaseDone(name, fields, time.Since(started))
	}
}

// UnknownTaskError 表示任务文本不匹配任何已注册的 Handler。
type UnknownTaskError struct {
	Text string
}

func (e *UnknownTaskError) Error() string {
	t := strings.Join(strings.Fields(e.Text), " ")
	// 按显示宽度截断，不会切断多字节字符。
	return "unknown task: " + runewidth.Truncate(t, 60, "...")
}
