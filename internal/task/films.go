package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/John-Robertt/analyst/internal/chart"
	"github.com/John-Robertt/analyst/internal/domain"
	"github.com/John-Robertt/analyst/internal/extract"
	"github.com/John-Robertt/analyst/internal/query"
)

const DefaultFilmsURL = "https://en.wikipedia.org/wiki/List_of_highest-grossing_films"

// Films 处理 “highest grossing films” 任务：
// 抓表 -> 计数 -> 最早的高票房影片 -> 相关系数 -> 散点图。
type Films struct {
	// DefaultURL 在任务文本不含 URL 时使用。
	DefaultURL string
	Schema     extract.Schema

	CountMinGross    float64
	CountBeforeYear  int
	EarliestMinGross float64

	CorrX domain.Field
	CorrY domain.Field
}

// NewFilms 返回默认参数的 Films：$2bn 且早于 2020；最早的 $1.5bn；Rank 与 Peak 的相关系数。
func NewFilms() Films {
	return Films{
		DefaultURL:       DefaultFilmsURL,
		Schema:           extract.FilmsSchema(),
		CountMinGross:    2e9,
		CountBeforeYear:  2020,
		EarliestMinGross: 1.5e9,
		CorrX:            domain.FieldRank,
		CorrY:            domain.FieldPeak,
	}
}

func (Films) Name() string { return "films" }

func (Films) Signatures() []string { return []string{"highest grossing films"} }

// Validate 检查参数组合是否可执行。
func (f Films) Validate() error {
	if err := f.Schema.Validate(); err != nil {
		return err
	}
	if !f.CorrX.Numeric() || !f.CorrY.Numeric() {
		return fmt.Errorf("相关系数的两列必须是数值列：%s, %s", f.CorrX, f.CorrY)
	}
	if f.CountMinGross < 0 || f.EarliestMinGross < 0 {
		return errors.New("票房阈值不能为负")
	}
	return nil
}

func (f Films) Handle(ctx context.Context, text string, env Env) (domain.AnswerSet, error) {
	u, ok := extract.FirstURL(text)
	if !ok {
		u = f.DefaultURL
	}
	if u == "" {
		return domain.AnswerSet{}, &extract.FetchError{URL: "", Err: errors.New("任务文本中没有 URL，且未配置默认 URL")}
	}

	started := time.Now()
	ds, err := extract.Extract(ctx, env.Client, u, f.Schema)
	if err != nil {
		return domain.AnswerSet{}, err
	}
	env.phaseDone("extract", map[string]any{"url": u, "rows": ds.Len(), "skipped": ds.Skipped}, started)

	started = time.Now()
	count := query.CountWithFilter(ds, f.CountMinGross, f.CountBeforeYear)
	first, err := query.SortedFirstMatch(ds, f.EarliestMinGross)
	if err != nil {
		return domain.AnswerSet{}, err
	}
	corr, err := query.Correlation(ds, f.CorrX, f.CorrY)
	if err != nil {
		return domain.AnswerSet{}, err
	}
	env.phaseDone("query", map[string]any{"count": count, "title": first.Title, "correlation": corr}, started)

	started = time.Now()
	xs, err := query.Column(ds, f.CorrX)
	if err != nil {
		return domain.AnswerSet{}, &chart.RenderError{Err: err}
	}
	ys, err := query.Column(ds, f.CorrY)
	if err != nil {
		return domain.AnswerSet{}, &chart.RenderError{Err: err}
	}
	img, err := chart.Render(xs, ys, f.CorrX.Label(), f.CorrY.Label())
	if err != nil {
		return domain.AnswerSet{}, err
	}
	env.phaseDone("render", map[string]any{"bytes": len(img)}, started)

	return domain.AnswerSet{
		Count:       count,
		Title:       first.Title,
		Correlation: corr,
		Chart:       img,
	}, nil
}
