package domain

// 对外错误码（与 HTTP 层 / CLI 的错误输出对齐）。
const (
	ErrCodeUnknownTask      = "unknown_task"
	ErrCodeFetchFailed      = "fetch_failed"
	ErrCodeEmptyDataset     = "empty_dataset"
	ErrCodeMalformedField   = "malformed_field"
	ErrCodeNoMatch          = "no_match"
	ErrCodeInsufficientData = "insufficient_data"
	ErrCodeRenderFailed     = "render_failed"
	ErrCodeBadRequest       = "bad_request"
	ErrCodeConfigInvalid    = "config_invalid"
	ErrCodeInternal         = "internal"
)
