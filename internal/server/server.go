// Package server 是任务分发器的 HTTP 外壳：接收上传的任务文本，返回定长 JSON 数组或 {"error": ...}。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/analyst/internal/domain"
	"github.com/John-Robertt/analyst/internal/task"
)

const maxTaskBytes = 1 << 20

// Dispatcher 是 server 依赖的最小接口（便于测试替换）。
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) (domain.AnswerSet, error)
}

type Server struct {
	d   Dispatcher
	log *slog.Logger
}

func New(d Dispatcher, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{d: d, log: log}
}

// Handler 注册路由：POST / 与 POST /api/ 等价（兼容两种部署路径）。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", s.handleTask)
	mux.HandleFunc("POST /api/{$}", s.handleTask)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	text, err := readTask(w, r)
	if err != nil {
		s.fail(w, r, domain.ErrCodeBadRequest, err, started)
		return
	}

	a, err := s.d.Dispatch(r.Context(), text)
	if err != nil {
		s.fail(w, r, task.ErrorCode(err), err, started)
		return
	}

	writeJSON(w, http.StatusOK, a)
	s.log.Info("task answered", "path", r.URL.Path, "count", a.Count, "title", a.Title, "correlation", a.Correlation, "dur", time.Since(started))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, code string, err error, started time.Time) {
	status := StatusFor(code)
	s.log.Warn("task failed", "path", r.URL.Path, "status", status, "error_code", code, "err", err, "dur", time.Since(started))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// StatusFor 把错误码映射为 HTTP 状态码。
func StatusFor(code string) int {
	switch code {
	case domain.ErrCodeUnknownTask, domain.ErrCodeBadRequest:
		return http.StatusBadRequest
	case domain.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case domain.ErrCodeEmptyDataset, domain.ErrCodeNoMatch, domain.ErrCodeInsufficientData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// readTask 读取任务文本：multipart 取第一个文件（优先字段名 file），否则读取原始 body。
func readTask(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTaskBytes)

	var b []byte
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxTaskBytes); err != nil {
			return "", fmt.Errorf("解析 multipart 失败：%w", err)
		}
		files := r.MultipartForm.File
		keys := make([]string, 0, len(files))
		for k := range files {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if _, ok := files["file"]; ok {
			keys = append([]string{"file"}, keys...)
		}
		var picked bool
		for _, k := range keys {
			if len(files[k]) == 0 {
				continue
			}
			f, err := files[k][0].Open()
			if err != nil {
				return "", err
			}
			b, err = io.ReadAll(f)
			f.Close()
			if err != nil {
				return "", err
			}
			picked = true
			break
		}
		if !picked {
			return "", errors.New("multipart 请求中没有上传文件")
		}
	} else {
		var err error
		b, err = io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
	}

	if !utf8.Valid(b) {
		return "", errors.New("任务文本不是合法的 UTF-8")
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", errors.New("任务文本为空")
	}
	return text, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
