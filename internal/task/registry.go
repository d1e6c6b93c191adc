package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/John-Robertt/analyst/internal/domain"
)

// Registry 是 Handler 的只读注册表。
// 分类按注册顺序逐个匹配签名，先注册者优先；新增任务类型只需注册，不改分支。
type Registry struct {
	handlers []Handler
}

func NewRegistry(handlers ...Handler) (Registry, error) {
	seen := make(map[string]struct{}, len(handlers))
	out := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h == nil {
			return Registry{}, fmt.Errorf("handler 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(h.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("handler.Name 不能为空")
		}
		if _, ok := seen[name]; ok {
			return Registry{}, fmt.Errorf("重复的 handler：%q", name)
		}
		if len(h.Signatures()) == 0 {
			return Registry{}, fmt.Errorf("handler %q 没有任何签名", name)
		}
		seen[name] = struct{}{}
		out = append(out, h)
	}
	return Registry{handlers: out}, nil
}

// Classify 对任务文本做大小写不敏感的子串匹配。
func (r Registry) Classify(text string) (Handler, error) {
	low := strings.ToLower(text)
	for _, h := range r.handlers {
		for _, sig := range h.Signatures() {
			sig = strings.ToLower(strings.TrimSpace(sig))
			if sig != "" && strings.Contains(low, sig) {
				return h, nil
			}
		}
	}
	return nil, &UnknownTaskError{Text: text}
}

// Names 返回已注册 Handler 的名字（注册顺序）。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h.Name())
	}
	return out
}

// Dispatcher 把 Registry 与运行环境绑定在一起。
type Dispatcher struct {
	Registry Registry
	Env      Env
}

// Dispatch 先分类（AwaitingClassification），再交给 Handler（Dispatched）。
// 任一阶段失败都返回零值 AnswerSet。
func (d Dispatcher) Dispatch(ctx context.Context, text string) (domain.AnswerSet, error) {
	h, err := d.Registry.Classify(text)
	if err != nil {
		return domain.AnswerSet{}, err
	}
	if d.Env.Observer != nil {
		d.Env.Observer.OnDispatched(h.Name())
	}
	a, err := h.Handle(ctx, text, d.Env)
	if err != nil {
		return domain.AnswerSet{}, err
	}
	return a, nil
}
