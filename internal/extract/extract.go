// Package extract 负责“抓取页面 + 定位目标表格 + 按 Schema 规范化为 Dataset”。
//
// 站点结构的变化被限制在 Schema 与本包内部；下游只依赖 domain.Dataset。
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/analyst/internal/domain"
	"github.com/John-Robertt/analyst/internal/normalize"
)

// Extract 抓取 u 并解析出 Dataset（一次请求一次抓取）。
func Extract(ctx context.Context, c *http.Client, u string, schema Schema) (domain.Dataset, error) {
	html, err := Fetch(ctx, c, u)
	if err != nil {
		return domain.Dataset{}, err
	}
	ds, err := Parse(html, schema)
	if err != nil {
		var ee *EmptyDatasetError
		if errors.As(err, &ee) {
			ee.Source = u
		}
		return domain.Dataset{}, err
	}
	ds.Source = u
	return ds, nil
}

// Parse 是纯函数：从 HTML 中找到第一张合格表格，并把每个数据行规范化为 Record。
// 无法规范化的行被跳过并计数（不致命）；最终为空时返回 *EmptyDatasetError。
func Parse(html []byte, schema Schema) (domain.Dataset, error) {
	if err := schema.Validate(); err != nil {
		return domain.Dataset{}, err
	}
	if len(html) == 0 {
		return domain.Dataset{}, &EmptyDatasetError{Reason: "html 为空"}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.Dataset{}, err
	}

	table := findTable(doc, schema)
	if table == nil {
		return domain.Dataset{}, &EmptyDatasetError{Reason: fmt.Sprintf("未找到至少 %d 列的表格", schema.minCells())}
	}

	var (
		header []string
		rows   [][]string
	)
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// 只取本表的行，不深入嵌套表格。
		if tr.Closest("table").Get(0) != table.Get(0) {
			return
		}
		cells := rowCells(tr)
		if tr.ChildrenFiltered("td").Length() == 0 {
			if header == nil && len(cells) > 0 {
				header = cells
			}
			return
		}
		rows = append(rows, cells)
	})

	schema = schema.remap(header)
	need := schema.minCells()

	ds := domain.Dataset{Records: make([]domain.Record, 0, len(rows))}
	for _, cells := range rows {
		if len(cells) < need {
			// 列数不足的行（分组标题、合计等）不是数据行，不计入 Skipped。
			continue
		}
		rec, err := toRecord(cells, schema)
		if err != nil {
			ds.Skipped++
			continue
		}
		ds.Records = append(ds.Records, rec)
	}

	if len(ds.Records) == 0 {
		return domain.Dataset{}, &EmptyDatasetError{Skipped: ds.Skipped, Reason: "没有可用的数据行"}
	}
	return ds, nil
}

func findTable(doc *goquery.Document, schema Schema) *goquery.Selection {
	need := schema.minCells()
	for _, sel := range schema.Selectors {
		var found *goquery.Selection
		doc.Find(sel).EachWithBreak(func(_ int, t *goquery.Selection) bool {
			if goquery.NodeName(t) != "table" {
				return true
			}
			ok := false
			t.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
				if tr.ChildrenFiltered("td").Length() > 0 && tr.ChildrenFiltered("td, th").Length() >= need {
					ok = true
					return false
				}
				return true
			})
			if ok {
				found = t
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func rowCells(tr *goquery.Selection) []string {
	cells := make([]string, 0, 8)
	tr.ChildrenFiltered("td, th").Each(func(_ int, s *goquery.Selection) {
		// 脚注 <sup> 与隐藏排序键不参与取值。
		c := s.Clone()
		c.Find("sup, style, script, .sortkey, [style*='display:none']").Remove()
		cells = append(cells, c.Text())
	})
	return cells
}

// toRecord 把一行映射为 Record；任一字段 MalformedField 即整行作废。
func toRecord(cells []string, schema Schema) (domain.Record, error) {
	var r domain.Record
	for _, col := range schema.Columns {
		v, err := normalize.Apply(col.Rule, cells[col.Index])
		if err != nil {
			return domain.Record{}, err
		}
		if err := assign(&r, col.Field, v); err != nil {
			return domain.Record{}, err
		}
	}
	if !r.Valid() {
		return domain.Record{}, &normalize.MalformedFieldError{Reason: "数值越界"}
	}
	return r, nil
}

func assign(r *domain.Record, f domain.Field, v any) error {
	switch f {
	case domain.FieldTitle:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("字段 %s 需要文本", f)
		}
		r.Title = s
	case domain.FieldWorldwideGross:
		switch x := v.(type) {
		case float64:
			r.WorldwideGross = x
		case int:
			r.WorldwideGross = float64(x)
		default:
			return fmt.Errorf("字段 %s 需要数值", f)
		}
	case domain.FieldRank, domain.FieldYear, domain.FieldPeak:
		var n int
		switch x := v.(type) {
		case int:
			n = x
		case float64:
			n = int(x)
		default:
			return fmt.Errorf("字段 %s 需要整数", f)
		}
		switch f {
		case domain.FieldRank:
			r.Rank = n
		case domain.FieldYear:
			r.Year = n
		default:
			r.Peak = n
		}
	default:
		return fmt.Errorf("未知字段：%s", f)
	}
	return nil
}
