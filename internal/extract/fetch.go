package extract

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

var urlRE = regexp.MustCompile(`https?://[^\s]+`)

// FirstURL 返回文本中第一个形如 URL 的子串（去掉句末标点/括号）。
func FirstURL(text string) (string, bool) {
	u := urlRE.FindString(text)
	u = strings.TrimRight(u, `.,;:!?)]}>"'`)
	if u == "" {
		return "", false
	}
	return u, true
}

// Fetch 单次 GET 源文档，并按 Content-Type 把正文解码为 UTF-8。
//
// 约束：不缓存、不重试；任何失败都包装为 *FetchError。
func Fetch(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	if c == nil {
		return nil, &FetchError{URL: u, Err: errors.New("http client 不能为空")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: u, Err: &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}}
	}

	r, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	return b, nil
}
