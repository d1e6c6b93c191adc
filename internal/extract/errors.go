package extract

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// FetchError 表示抓取源文档失败（网络错误或非 2xx）。不重试，直接交给调用方。
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// EmptyDatasetError 表示抽取完成后没有任何合法行。
type EmptyDatasetError struct {
	Source  string
	Skipped int
	Reason  string
}

func (e *EmptyDatasetError) Error() string {
	msg := "dataset is empty"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Skipped > 0 {
		msg += fmt.Sprintf(" (%d malformed rows skipped)", e.Skipped)
	}
	if e.Source != "" {
		msg += " source=" + e.Source
	}
	return msg
}
