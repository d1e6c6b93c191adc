package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// AnswerSet 是管线唯一的对外输出。
//
// 对外契约是一个定长有序数组：[count, title, correlation, chart]。
// 顺序属于契约本身，因此 JSON 形态由 MarshalJSON 固定，而不是依赖字段名。
type AnswerSet struct {
	Count       int
	Title       string
	Correlation float64
	Chart       ImagePayload
}

// Values 按契约顺序返回答案。
func (a AnswerSet) Values() []any {
	return []any{a.Count, a.Title, a.Correlation, string(a.Chart)}
}

func (a AnswerSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Values())
}

func (a *AnswerSet) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 4 {
		return errors.New("answer set 必须恰好包含 4 个元素")
	}
	var out AnswerSet
	if err := json.Unmarshal(raw[0], &out.Count); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[1], &out.Title); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[2], &out.Correlation); err != nil {
		return err
	}
	var chart string
	if err := json.Unmarshal(raw[3], &chart); err != nil {
		return err
	}
	out.Chart = ImagePayload(chart)
	*a = out
	return nil
}

// ImagePayload 是自描述的内联图片：data:image/<format>;base64,<bytes>。
// 生成后不可变。
type ImagePayload string

const payloadPrefix = "data:image/"

// NewImagePayload 把图片字节编码为 data URI。
func NewImagePayload(format string, b []byte) ImagePayload {
	return ImagePayload(payloadPrefix + format + ";base64," + base64.StdEncoding.EncodeToString(b))
}

// Format 返回声明的图片格式（例如 "png"）；不是合法 payload 时返回空串。
func (p ImagePayload) Format() string {
	format, _, ok := p.split()
	if !ok {
		return ""
	}
	return format
}

// Bytes 解码 payload 中的图片字节。
func (p ImagePayload) Bytes() ([]byte, error) {
	_, data, ok := p.split()
	if !ok {
		return nil, errors.New("不是合法的 image data URI")
	}
	return base64.StdEncoding.DecodeString(data)
}

func (p ImagePayload) split() (format, data string, ok bool) {
	s := string(p)
	if !strings.HasPrefix(s, payloadPrefix) {
		return "", "", false
	}
	s = strings.TrimPrefix(s, payloadPrefix)
	head, data, found := strings.Cut(s, ",")
	if !found {
		return "", "", false
	}
	format, enc, found := strings.Cut(head, ";")
	if !found || enc != "base64" || format == "" {
		return "", "", false
	}
	return format, data, true
}
