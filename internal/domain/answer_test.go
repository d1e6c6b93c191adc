package domain

import (
	"encoding/json"
	"testing"
)

func TestAnswerSet_MarshalJSON_FixedOrder(t *testing.T) {
	a := AnswerSet{
		Count:       1,
		Title:       "Titanic",
		Correlation: 0.485782,
		Chart:       NewImagePayload("png", []byte{0x89, 'P', 'N', 'G'}),
	}

	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	want := `[1,"Titanic",0.485782,"data:image/png;base64,iVBORw=="]`
	if string(b) != want {
		t.Fatalf("JSON 不符合契约：got=%s want=%s", b, want)
	}

	var back AnswerSet
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("json.Unmarshal 失败：%v", err)
	}
	if back != a {
		t.Fatalf("反序列化不一致：got=%+v want=%+v", back, a)
	}
}

func TestAnswerSet_UnmarshalJSON_WrongArity(t *testing.T) {
	var a AnswerSet
	if err := json.Unmarshal([]byte(`[1,"x",0.5]`), &a); err == nil {
		t.Fatalf("期望元素个数错误")
	}
}

func TestImagePayload_FormatAndBytes(t *testing.T) {
	p := NewImagePayload("png", []byte("abc"))
	if p.Format() != "png" {
		t.Fatalf("期望 format=png，实际=%q", p.Format())
	}
	b, err := p.Bytes()
	if err != nil {
		t.Fatalf("Bytes 失败：%v", err)
	}
	if string(b) != "abc" {
		t.Fatalf("期望 abc，实际=%q", b)
	}

	for _, bad := range []ImagePayload{"", "data:text/plain,abc", "data:image/png,abc", "data:image/;base64,abc"} {
		if bad.Format() != "" {
			t.Fatalf("非法 payload 不应有 format：%q", bad)
		}
		if _, err := bad.Bytes(); err == nil {
			t.Fatalf("非法 payload 应返回错误：%q", bad)
		}
	}
}

func TestRecord_NumberAndValid(t *testing.T) {
	r := Record{Rank: 3, Title: "T", WorldwideGross: 1.5e9, Year: 2015, Peak: 4}
	if v, ok := r.Number(FieldWorldwideGross); !ok || v != 1.5e9 {
		t.Fatalf("worldwideGross 取值错误：%v %v", v, ok)
	}
	if _, ok := r.Number(FieldTitle); ok {
		t.Fatalf("title 不是数值列")
	}
	if !r.Valid() {
		t.Fatalf("期望合法记录")
	}
	r.Peak = -1
	if r.Valid() {
		t.Fatalf("负数 peak 应判为非法")
	}
}

func TestParseField(t *testing.T) {
	f, err := ParseField(" WorldwideGross ")
	if err != nil || f != FieldWorldwideGross {
		t.Fatalf("ParseField 失败：%v %v", f, err)
	}
	if _, err := ParseField("budget"); err == nil {
		t.Fatalf("期望未知字段错误")
	}
}
