// Package normalize 把抓取到的原始单元格文本转换为强类型值。
//
// 所有函数都是纯函数：相同输入 => 相同输出，无副作用。
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Rule 是单元格的规范化规则。
type Rule string

const (
	RuleCurrency     Rule = "currency"
	RuleInteger      Rule = "integer"
	RulePlainInteger Rule = "plainInteger"
	RuleText         Rule = "text"
)

// ParseRule 按名字解析 Rule（大小写不敏感）。
func ParseRule(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	for _, r := range []Rule{RuleCurrency, RuleInteger, RulePlainInteger, RuleText} {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("未知规范化规则：%q", s)
}

// MalformedFieldError 表示单元格无法按规则规范化。
// 抽取层据此丢弃整行，该错误不会越过行粒度向上传播。
type MalformedFieldError struct {
	Rule   Rule
	Raw    string
	Reason string
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("malformed %s field %q: %s", e.Rule, e.Raw, e.Reason)
}

var (
	// 脚注/引用：[1]、[a]、[# 1]、[note 2]
	bracketRefRE = regexp.MustCompile(`\[[^\]]*\]`)
	numberRE     = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)
	unitRE       = regexp.MustCompile(`(?i)\b(billion|bn|million|mn)\b`)
)

const currencySymbols = "$€£¥"

// Apply 按 rule 规范化 raw；返回值类型：currency => float64，integer/plainInteger => int，text => string。
func Apply(rule Rule, raw string) (any, error) {
	switch rule {
	case RuleCurrency:
		return Currency(raw)
	case RuleInteger:
		return Integer(raw)
	case RulePlainInteger:
		return PlainInteger(raw)
	case RuleText:
		return Text(raw)
	default:
		return nil, fmt.Errorf("未知规范化规则：%q", rule)
	}
}

// Clean 做所有规则共享的预处理：NFKC（折叠 NBSP / 全角数字）、去掉方括号引用、压缩空白。
func Clean(raw string) string {
	s := norm.NFKC.String(raw)
	s = bracketRefRE.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// Currency 把 "$2.923 billion"、"$1,450,026,933"、"F8$2,799,439,100" 之类的文本解析为基础货币单位。
//
// 规则：
// - 若存在货币符号，只看第一个符号之后的文本（符号前通常是脚注前缀）
// - 取第一个数字子串，去掉千分位逗号
// - 出现 billion/million 时按单位放大；没有单位即视为基础单位
func Currency(raw string) (float64, error) {
	s := Clean(raw)
	if i := strings.IndexAny(s, currencySymbols); i >= 0 {
		_, size := utf8.DecodeRuneInString(s[i:])
		s = s[i+size:]
	}

	loc := numberRE.FindStringIndex(s)
	if loc == nil {
		return 0, &MalformedFieldError{Rule: RuleCurrency, Raw: raw, Reason: "没有数字"}
	}
	if loc[0] > 0 && s[loc[0]-1] == '-' {
		return 0, &MalformedFieldError{Rule: RuleCurrency, Raw: raw, Reason: "负数"}
	}
	num := strings.ReplaceAll(s[loc[0]:loc[1]], ",", "")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, &MalformedFieldError{Rule: RuleCurrency, Raw: raw, Reason: err.Error()}
	}

	// 单位必须出现在数字之后（"$2.9 billion"），避免把标题里的词当单位。
	if m := unitRE.FindStringSubmatch(s[loc[1]:]); m != nil {
		switch strings.ToLower(m[1]) {
		case "billion", "bn":
			v *= 1e9
		case "million", "mn":
			v *= 1e6
		}
	}

	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, &MalformedFieldError{Rule: RuleCurrency, Raw: raw, Reason: "数值越界"}
	}
	return v, nil
}

// Integer 取第一个空白分隔 token 的前导数字（容忍 "1TS"、"4†" 这类尾随标记）。
func Integer(raw string) (int, error) {
	return leadingInt(RuleInteger, raw)
}

// PlainInteger 与 Integer 同一契约，用于年份这类纯整数列："2019"、"2019[a]"、"2019†" 均可，
// "c. 2019" 这种以非数字开头的 token 失败。
func PlainInteger(raw string) (int, error) {
	return leadingInt(RulePlainInteger, raw)
}

func leadingInt(rule Rule, raw string) (int, error) {
	tok := firstToken(Clean(raw))
	if tok == "" {
		return 0, &MalformedFieldError{Rule: rule, Raw: raw, Reason: "为空"}
	}
	end := 0
	for end < len(tok) && tok[end] >= '0' && tok[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, &MalformedFieldError{Rule: rule, Raw: raw, Reason: "没有前导数字"}
	}
	return atoi(rule, raw, tok[:end])
}

// Text 返回压缩空白后的文本；空文本视为缺失。
func Text(raw string) (string, error) {
	s := Clean(raw)
	if s == "" {
		return "", &MalformedFieldError{Rule: RuleText, Raw: raw, Reason: "为空"}
	}
	return s, nil
}

func atoi(rule Rule, raw, digits string) (int, error) {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, &MalformedFieldError{Rule: rule, Raw: raw, Reason: err.Error()}
	}
	return n, nil
}

func firstToken(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
