// Package query 是固定的一组分析操作，作用于一次请求内的 Dataset。
package query

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/John-Robertt/analyst/internal/domain"
)

// NoMatchError 表示“先过滤再取第一个”时过滤结果为空。
type NoMatchError struct {
	MinGross float64
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no record with worldwide gross >= %.0f", e.MinGross)
}

// InsufficientDataError 表示相关系数无定义（样本不足、方差为零或列不是数值列）。
//
// 退化输入一律报错，不返回 NaN。
type InsufficientDataError struct {
	X, Y   domain.Field
	N      int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("correlation(%s, %s) undefined over %d records: %s", e.X, e.Y, e.N, e.Reason)
}

// CountWithFilter 统计 worldwideGross >= minGross 且 year < beforeYear 的记录数。
func CountWithFilter(ds domain.Dataset, minGross float64, beforeYear int) int {
	n := 0
	for _, r := range ds.Records {
		if r.WorldwideGross >= minGross && r.Year < beforeYear {
			n++
		}
	}
	return n
}

// SortedFirstMatch 过滤 worldwideGross >= minGross，按 year 升序稳定排序后取第一条。
// 同年时保持 Dataset 原顺序。
func SortedFirstMatch(ds domain.Dataset, minGross float64) (domain.Record, error) {
	matched := make([]domain.Record, 0, len(ds.Records))
	for _, r := range ds.Records {
		if r.WorldwideGross >= minGross {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return domain.Record{}, &NoMatchError{MinGross: minGross}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Year < matched[j].Year })
	return matched[0], nil
}

// Column 取出某个数值列（顺序与 Dataset 一致）。
func Column(ds domain.Dataset, f domain.Field) ([]float64, error) {
	if !f.Numeric() {
		return nil, fmt.Errorf("字段 %s 不是数值列", f)
	}
	out := make([]float64, 0, len(ds.Records))
	for _, r := range ds.Records {
		v, _ := r.Number(f)
		out = append(out, v)
	}
	return out, nil
}

// Correlation 计算两列的 Pearson 相关系数，并四舍五入到 6 位小数。
func Correlation(ds domain.Dataset, x, y domain.Field) (float64, error) {
	n := ds.Len()
	xs, err := Column(ds, x)
	if err != nil {
		return 0, &InsufficientDataError{X: x, Y: y, N: n, Reason: err.Error()}
	}
	ys, err := Column(ds, y)
	if err != nil {
		return 0, &InsufficientDataError{X: x, Y: y, N: n, Reason: err.Error()}
	}
	if n < 2 {
		return 0, &InsufficientDataError{X: x, Y: y, N: n, Reason: "至少需要 2 条记录"}
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return 0, &InsufficientDataError{X: x, Y: y, N: n, Reason: "方差为零"}
	}

	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, &InsufficientDataError{X: x, Y: y, N: n, Reason: "结果不是有限数"}
	}
	// 浮点误差可能让 |r| 略大于 1。
	r = math.Max(-1, math.Min(1, r))
	return Round(r, 6), nil
}

// Round 四舍五入到 digits 位小数（half away from zero）。
func Round(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}
