package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

const filmsHTML = `<html><body>
<table class="wikitable">
<tr><th>Rank</th><th>Title</th><th>Worldwide gross</th><th>Year</th><th>Peak</th></tr>
<tr><td>1</td><td>Alpha</td><td>$3 billion</td><td>2021</td><td>1</td></tr>
<tr><td>2</td><td>Bravo</td><td>$2.5 billion</td><td>2019</td><td>1</td></tr>
<tr><td>3</td><td>Charlie</td><td>$1.8 billion</td><td>2015</td><td>4</td></tr>
<tr><td>4</td><td>Delta</td><td>$1 billion</td><td>2010</td><td>12</td></tr>
<tr><td>5</td><td>Echo</td><td>$500 million</td><td>2005</td><td>25</td></tr>
</table>
</body></html>`

func runAsk(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", append([]string{"run", "./cmd/analyst", "ask"}, args...)...)
	cmd.Dir = repoRoot
	cmd.Stdin = strings.NewReader(stdin)

	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err = cmd.Run()
	return out.String(), errb.String(), err
}

func TestCLI_Ask_NoTTY_StdoutOnlyAnswerJSON(t *testing.T) {
	// stdout 非 TTY 时只能输出一个 JSON 数组，日志一律走 stderr。
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(filmsHTML))
	}))
	defer srv.Close()

	outFile := filepath.Join(t.TempDir(), "answer.json")
	text := "Scrape the list of highest grossing films: " + srv.URL + "/wiki/List"

	stdout, stderr, err := runAsk(t, text, "-", "--out", outFile)
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr, stdout)
	}

	var got []any
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout 不是合法的 JSON 数组：%v\nstdout=%q", err, stdout)
	}
	if len(got) != 4 || got[0] != float64(1) || got[1] != "Charlie" {
		t.Fatalf("答案不符合预期：%v", got)
	}
	if s, _ := got[3].(string); !strings.HasPrefix(s, "data:image/png;base64,") {
		t.Fatalf("第 4 项应为 PNG data URI")
	}

	b, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("读取 --out 文件失败：%v", err)
	}
	if strings.TrimSpace(string(b)) != strings.TrimSpace(stdout) {
		t.Fatalf("--out 内容应与 stdout 一致")
	}
	if !strings.Contains(stderr, "phase=extract") {
		t.Fatalf("stderr 缺少阶段日志：%q", stderr)
	}
}

func TestCLI_Ask_UnknownTask(t *testing.T) {
	stdout, stderr, err := runAsk(t, "what is the weather tomorrow?", "-")
	if err == nil {
		t.Fatalf("期望非 0 退出码，stdout=%q", stdout)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(stdout), &body); err != nil {
		t.Fatalf("stdout 不是合法的错误 JSON：%v\nstdout=%q", err, stdout)
	}
	if body["error"] == "" {
		t.Fatalf("错误 JSON 缺少 error 字段：%v", body)
	}
	if !strings.Contains(stderr, "unknown_task") {
		t.Fatalf("stderr 应给出 error_code：%q", stderr)
	}
}
