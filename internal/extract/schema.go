package extract

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/John-Robertt/analyst/internal/domain"
	"github.com/John-Robertt/analyst/internal/normalize"
)

// Column 描述“源表格第几列 -> Record 的哪个字段 -> 用哪条规则规范化”。
//
// Header 可选：若表头中能找到所有声明了 Header 的列，则按表头重新定位列下标，
// 以容忍站点调整列顺序；否则退回 Index。
type Column struct {
	Index  int
	Header string
	Field  domain.Field
	Rule   normalize.Rule
}

// Schema 是表格形态的显式描述（表格结构假设属于配置，而不是埋在解析逻辑里）。
type Schema struct {
	// Selectors 按顺序尝试；第一个命中合格表格的选择器生效。
	Selectors []string
	// MinColumns 是数据行的最少单元格数。
	MinColumns int
	Columns    []Column
}

// FilmsSchema 是“highest grossing films”列表页的默认表格形态。
func FilmsSchema() Schema {
	return Schema{
		Selectors:  []string{"table.wikitable", "table"},
		MinColumns: 5,
		Columns: []Column{
			{Index: 0, Header: "Rank", Field: domain.FieldRank, Rule: normalize.RuleInteger},
			{Index: 1, Header: "Title", Field: domain.FieldTitle, Rule: normalize.RuleText},
			{Index: 2, Header: "Worldwide gross", Field: domain.FieldWorldwideGross, Rule: normalize.RuleCurrency},
			{Index: 3, Header: "Year", Field: domain.FieldYear, Rule: normalize.RulePlainInteger},
			{Index: 4, Header: "Peak", Field: domain.FieldPeak, Rule: normalize.RuleInteger},
		},
	}
}

// Validate 检查 schema 自洽：选择器可编译、字段不重复、规则与字段类型匹配。
func (s Schema) Validate() error {
	if len(s.Selectors) == 0 {
		return fmt.Errorf("schema.selectors 不能为空")
	}
	for _, sel := range s.Selectors {
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("schema.selectors 无效：%q：%w", sel, err)
		}
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema.columns 不能为空")
	}

	seen := make(map[domain.Field]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c.Index < 0 {
			return fmt.Errorf("column %s 的 index 不能为负：%d", c.Field, c.Index)
		}
		if _, err := domain.ParseField(string(c.Field)); err != nil {
			return err
		}
		if _, ok := seen[c.Field]; ok {
			return fmt.Errorf("重复的 column 字段：%s", c.Field)
		}
		seen[c.Field] = struct{}{}

		if _, err := normalize.ParseRule(string(c.Rule)); err != nil {
			return err
		}
		if c.Field.Numeric() == (c.Rule == normalize.RuleText) {
			return fmt.Errorf("column %s 不能使用规则 %s", c.Field, c.Rule)
		}
	}
	for _, f := range []domain.Field{domain.FieldRank, domain.FieldTitle, domain.FieldWorldwideGross, domain.FieldYear, domain.FieldPeak} {
		if _, ok := seen[f]; !ok {
			return fmt.Errorf("schema 缺少字段：%s", f)
		}
	}
	return nil
}

// minCells 是一行至少需要的单元格数（MinColumns 与最大列下标取大者）。
func (s Schema) minCells() int {
	n := s.MinColumns
	for _, c := range s.Columns {
		if c.Index+1 > n {
			n = c.Index + 1
		}
	}
	return n
}

// remap 尝试按表头重新定位列；任何一个带 Header 的列找不到都视为“表头不可用”，原样返回。
func (s Schema) remap(header []string) Schema {
	if len(header) == 0 {
		return s
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		k := headerKey(h)
		if _, ok := pos[k]; !ok && k != "" {
			pos[k] = i
		}
	}

	cols := make([]Column, len(s.Columns))
	matched := 0
	for i, c := range s.Columns {
		cols[i] = c
		if strings.TrimSpace(c.Header) == "" {
			continue
		}
		idx, ok := pos[headerKey(c.Header)]
		if !ok {
			return s
		}
		cols[i].Index = idx
		matched++
	}
	if matched == 0 {
		return s
	}
	out := s
	out.Columns = cols
	return out
}

func headerKey(s string) string {
	return strings.ToLower(normalize.Clean(s))
}
