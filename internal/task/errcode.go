package task

import (
	"errors"

	"github.com/John-Robertt/analyst/internal/chart"
	"github.com/John-Robertt/analyst/internal/domain"
	"github.com/John-Robertt/analyst/internal/extract"
	"github.com/John-Robertt/analyst/internal/normalize"
	"github.com/John-Robertt/analyst/internal/query"
)

// ErrorCode 把管线错误归类为对外错误码；无法识别的错误归为 internal。
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var (
		ut *UnknownTaskError
		fe *extract.FetchError
		ee *extract.EmptyDatasetError
		mf *normalize.MalformedFieldError
		nm *query.NoMatchError
		id *query.InsufficientDataError
		re *chart.RenderError
	)
	switch {
	case errors.As(err, &ut):
		return domain.ErrCodeUnknownTask
	case errors.As(err, &fe):
		return domain.ErrCodeFetchFailed
	case errors.As(err, &ee):
		return domain.ErrCodeEmptyDataset
	case errors.As(err, &mf):
		return domain.ErrCodeMalformedField
	case errors.As(err, &nm):
		return domain.ErrCodeNoMatch
	case errors.As(err, &id):
		return domain.ErrCodeInsufficientData
	case errors.As(err, &re):
		return domain.ErrCodeRenderFailed
	default:
		return domain.ErrCodeInternal
	}
}
