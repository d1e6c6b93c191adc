package domain

import (
	"fmt"
	"math"
	"strings"
)

// Field 是 Record 的列名（也是 schema / 配置里使用的名字）。
type Field string

const (
	FieldRank           Field = "rank"
	FieldTitle          Field = "title"
	FieldWorldwideGross Field = "worldwideGross"
	FieldYear           Field = "year"
	FieldPeak           Field = "peak"
)

// ParseField 按名字解析 Field（大小写不敏感）。
func ParseField(s string) (Field, error) {
	s = strings.TrimSpace(s)
	for _, f := range []Field{FieldRank, FieldTitle, FieldWorldwideGross, FieldYear, FieldPeak} {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("未知字段：%q", s)
}

// Numeric 报告该字段是否为数值列。
func (f Field) Numeric() bool {
	switch f {
	case FieldRank, FieldWorldwideGross, FieldYear, FieldPeak:
		return true
	default:
		return false
	}
}

// Label 是图表轴标题使用的展示名。
func (f Field) Label() string {
	switch f {
	case FieldRank:
		return "Rank"
	case FieldTitle:
		return "Title"
	case FieldWorldwideGross:
		return "Worldwide Gross"
	case FieldYear:
		return "Year"
	case FieldPeak:
		return "Peak"
	default:
		return string(f)
	}
}

// Record 是从表格一行规范化得到的实体。
//
// 不变量：所有数值字段有限且非负；不满足的行在抽取阶段直接丢弃，不允许带着“毒值”进入 Dataset。
type Record struct {
	Rank           int     `json:"rank"`
	Title          string  `json:"title"`
	WorldwideGross float64 `json:"worldwide_gross"`
	Year           int     `json:"year"`
	Peak           int     `json:"peak"`
}

// Number 按字段名取数值列；非数值字段返回 ok=false。
func (r Record) Number(f Field) (float64, bool) {
	switch f {
	case FieldRank:
		return float64(r.Rank), true
	case FieldWorldwideGross:
		return r.WorldwideGross, true
	case FieldYear:
		return float64(r.Year), true
	case FieldPeak:
		return float64(r.Peak), true
	default:
		return 0, false
	}
}

// Valid 检查数值不变量。
func (r Record) Valid() bool {
	if r.Rank < 0 || r.Year < 0 || r.Peak < 0 {
		return false
	}
	g := r.WorldwideGross
	return !math.IsNaN(g) && !math.IsInf(g, 0) && g >= 0
}

// Dataset 是一次请求内的有序记录集合（顺序即原表格中的行序）。
type Dataset struct {
	Records []Record
	// Skipped 是因字段无法规范化而被丢弃的数据行数。
	Skipped int
	// Source 是数据来源 URL（仅用于追溯）。
	Source string
}

func (d Dataset) Len() int { return len(d.Records) }
