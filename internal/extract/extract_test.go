package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/John-Robertt/analyst/internal/domain"
	"github.com/John-Robertt/analyst/internal/normalize"
)

const filmsHTML = `<html><body>
<table class="infobox"><tr><td>x</td></tr></table>
<table class="wikitable sortable">
<tbody>
<tr><th>Rank</th><th>Title</th><th>Worldwide gross</th><th>Year</th><th>Peak</th></tr>
<tr><td>1</td><td><i>Alpha</i></td><td>$3 billion</td><td>2021</td><td>1</td></tr>
<tr><td>2</td><td><i>Bravo</i></td><td>$2.5 billion</td><td>2019</td><td>1</td></tr>
<tr><td>3</td><td><i>Charlie</i><sup>[a]</sup></td><td>$1,800,000,000</td><td>2015</td><td>4</td></tr>
<tr><td>4</td><td><i>Delta</i></td><td>$1 billion</td><td>2010</td><td>12</td></tr>
<tr><td>5</td><td><i>Echo</i></td><td>$500 million</td><td>2005</td><td>25</td></tr>
</tbody>
</table>
</body></html>`

func TestParse_FiveRows(t *testing.T) {
	ds, err := Parse([]byte(filmsHTML), FilmsSchema())
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if ds.Len() != 5 || ds.Skipped != 0 {
		t.Fatalf("期望 5 行 0 跳过，实际 %d 行 %d 跳过", ds.Len(), ds.Skipped)
	}
	want := domain.Record{Rank: 3, Title: "Charlie", WorldwideGross: 1.8e9, Year: 2015, Peak: 4}
	if ds.Records[2] != want {
		t.Fatalf("第 3 行不符合预期：got=%+v want=%+v", ds.Records[2], want)
	}
	if ds.Records[4].WorldwideGross != 500e6 {
		t.Fatalf("million 单位换算错误：%v", ds.Records[4].WorldwideGross)
	}
}

func TestParse_CorruptedRowSkipped(t *testing.T) {
	html := strings.Replace(filmsHTML, "$1 billion", "n/a", 1)
	ds, err := Parse([]byte(html), FilmsSchema())
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if ds.Len() != 4 {
		t.Fatalf("期望 4 行，实际 %d", ds.Len())
	}
	if ds.Skipped != 1 {
		t.Fatalf("期望跳过 1 行，实际 %d", ds.Skipped)
	}
	for _, r := range ds.Records {
		if r.Title == "Delta" {
			t.Fatalf("损坏行不应进入 Dataset：%+v", r)
		}
	}
}

func TestParse_YearFootnoteMarkerKeepsRow(t *testing.T) {
	html := strings.Replace(filmsHTML, "<td>2019</td>", "<td>2019†</td>", 1)
	html = strings.Replace(html, "<td>2015</td>", "<td>2015*</td>", 1)
	ds, err := Parse([]byte(html), FilmsSchema())
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if ds.Len() != 5 || ds.Skipped != 0 {
		t.Fatalf("年份带脚注标记的行不应被丢弃：%d 行 %d 跳过", ds.Len(), ds.Skipped)
	}
	if ds.Records[1].Year != 2019 || ds.Records[2].Year != 2015 {
		t.Fatalf("年份解析不符合预期：%d %d", ds.Records[1].Year, ds.Records[2].Year)
	}
}

func TestParse_HeaderRemapToleratesColumnDrift(t *testing.T) {
	// 真实页面的列序：Rank, Peak, Title, Worldwide gross, Year, Ref（标题用 th）。
	html := `<table class="wikitable">
<tr><th>Rank</th><th>Peak</th><th>Title</th><th>Worldwide gross</th><th>Year</th><th>Ref</th></tr>
<tr><td>1</td><td>1</td><th scope="row"><i>Avatar</i></th><td>$2,923,706,026</td><td>2009</td><td><sup>[1]</sup></td></tr>
<tr><td>2</td><td>1</td><th scope="row"><i>Avengers: Endgame</i></th><td>$2,799,439,100</td><td>2019</td><td></td></tr>
</table>`
	ds, err := Parse([]byte(html), FilmsSchema())
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("期望 2 行，实际 %d（skipped=%d）", ds.Len(), ds.Skipped)
	}
	got := ds.Records[1]
	if got.Title != "Avengers: Endgame" || got.Year != 2019 || got.Peak != 1 || got.WorldwideGross != 2799439100 {
		t.Fatalf("按表头重定位失败：%+v", got)
	}
}

func TestParse_PositionalWhenHeaderUnknown(t *testing.T) {
	html := `<table class="wikitable">
<tr><th>#</th><th>Film</th><th>Gross</th><th>Released</th><th>Best</th></tr>
<tr><td>1</td><td>Alpha</td><td>$3 billion</td><td>2021</td><td>1</td></tr>
</table>`
	ds, err := Parse([]byte(html), FilmsSchema())
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if ds.Records[0].Title != "Alpha" || ds.Records[0].Year != 2021 {
		t.Fatalf("表头不匹配时应按位置映射：%+v", ds.Records[0])
	}
}

func TestParse_FallsBackToPlainTable(t *testing.T) {
	html := `<table><tr><td>1</td><td>Alpha</td><td>$3 billion</td><td>2021</td><td>1</td></tr></table>`
	ds, err := Parse([]byte(html), FilmsSchema())
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if ds.Len() != 1 {
		t.Fatalf("期望 1 行，实际 %d", ds.Len())
	}
}

func TestParse_EmptyDataset(t *testing.T) {
	cases := map[string]string{
		"no table":   `<html><body><p>nothing</p></body></html>`,
		"too narrow": `<table class="wikitable"><tr><td>1</td><td>x</td></tr></table>`,
		"all bad":    `<table class="wikitable"><tr><td>?</td><td>x</td><td>TBD</td><td>soon</td><td>-</td></tr></table>`,
	}
	for name, html := range cases {
		_, err := Parse([]byte(html), FilmsSchema())
		var ee *EmptyDatasetError
		if !errors.As(err, &ee) {
			t.Fatalf("%s: 期望 *EmptyDatasetError，实际 %v", name, err)
		}
	}
}

func TestSchema_Validate(t *testing.T) {
	if err := FilmsSchema().Validate(); err != nil {
		t.Fatalf("默认 schema 应合法：%v", err)
	}

	bad := FilmsSchema()
	bad.Columns[1].Rule = normalize.RuleCurrency
	if err := bad.Validate(); err == nil {
		t.Fatalf("title 使用 currency 规则应报错")
	}

	bad = FilmsSchema()
	bad.Columns = bad.Columns[:4]
	if err := bad.Validate(); err == nil {
		t.Fatalf("缺少 peak 字段应报错")
	}

	bad = FilmsSchema()
	bad.Selectors = []string{"table[["}
	if err := bad.Validate(); err == nil {
		t.Fatalf("非法选择器应报错")
	}
}

func TestFirstURL(t *testing.T) {
	text := "Scrape the list of highest grossing films from Wikipedia. It is at the URL:\nhttps://en.wikipedia.org/wiki/List_of_highest-grossing_films.\nAnswer the following."
	u, ok := FirstURL(text)
	if !ok {
		t.Fatalf("期望找到 URL")
	}
	if u != "https://en.wikipedia.org/wiki/List_of_highest-grossing_films" {
		t.Fatalf("URL 不符合预期：%q", u)
	}
	if _, ok := FirstURL("what is the weather"); ok {
		t.Fatalf("不应找到 URL")
	}
}

func TestExtract_HTTPStatusIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Extract(context.Background(), srv.Client(), srv.URL, FilmsSchema())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("期望 *FetchError，实际 %v", err)
	}
	var hs *HTTPStatusError
	if !errors.As(err, &hs) || hs.StatusCode != http.StatusNotFound {
		t.Fatalf("期望包装 HTTP 404，实际 %v", err)
	}
}

func TestExtract_NetworkErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()

	_, err := Extract(context.Background(), http.DefaultClient, u, FilmsSchema())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("期望 *FetchError，实际 %v", err)
	}
}

func TestExtract_DecodesCharsetAndSetsSource(t *testing.T) {
	// "Amélie" 以 ISO-8859-1 编码（é = 0xE9）。
	body := strings.Replace(filmsHTML, "<i>Echo</i>", "<i>Am\xe9lie</i>", 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	ds, err := Extract(context.Background(), srv.Client(), srv.URL, FilmsSchema())
	if err != nil {
		t.Fatalf("Extract 失败：%v", err)
	}
	if ds.Source != srv.URL {
		t.Fatalf("Source 应为请求 URL，实际 %q", ds.Source)
	}
	if got := ds.Records[4].Title; got != "Amélie" {
		t.Fatalf("字符集解码错误：%q", got)
	}
}

func TestExtract_EmptyDatasetCarriesSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>no tables</body></html>"))
	}))
	defer srv.Close()

	_, err := Extract(context.Background(), srv.Client(), srv.URL, FilmsSchema())
	var ee *EmptyDatasetError
	if !errors.As(err, &ee) {
		t.Fatalf("期望 *EmptyDatasetError，实际 %v", err)
	}
	if ee.Source != srv.URL {
		t.Fatalf("期望 Source=%q，实际 %q", srv.URL, ee.Source)
	}
}
