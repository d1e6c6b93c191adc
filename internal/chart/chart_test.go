package chart

import (
	"errors"
	"image"
	"math"
	"strings"
	"sync"
	"testing"
)

var (
	rank = []float64{1, 2, 3, 4, 5}
	peak = []float64{1, 1, 4, 12, 25}
)

func TestRender_RoundTrip(t *testing.T) {
	p, err := Render(rank, peak, "Rank", "Peak")
	if err != nil {
		t.Fatalf("Render 失败：%v", err)
	}
	if !strings.HasPrefix(string(p), "data:image/png;base64,") {
		t.Fatalf("payload 前缀不符合契约：%.40q", p)
	}

	img, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode 失败：%v", err)
	}
	b := img.Bounds()
	if b.Dx() != Width || b.Dy() != Height {
		t.Fatalf("尺寸不符合预期：%dx%d", b.Dx(), b.Dy())
	}
	if b.Dx()*4 != b.Dy()*6 {
		t.Fatalf("宽高比应为 6:4，实际 %dx%d", b.Dx(), b.Dy())
	}

	if !hasColor(img, isBlue) {
		t.Fatalf("未找到散点颜色像素")
	}
	if !hasColor(img, isRed) {
		t.Fatalf("未找到趋势线颜色像素")
	}
}

func TestRender_Deterministic(t *testing.T) {
	a, err := Render(rank, peak, "Rank", "Peak")
	if err != nil {
		t.Fatalf("Render 失败：%v", err)
	}

	// 并发渲染：每次调用独立的 canvas，结果必须一致。
	var wg sync.WaitGroup
	out := make([]string, 8)
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := Render(rank, peak, "Rank", "Peak")
			if err == nil {
				out[i] = string(p)
			}
		}(i)
	}
	wg.Wait()
	for i, s := range out {
		if s != string(a) {
			t.Fatalf("第 %d 次并发渲染结果不一致", i)
		}
	}
}

func TestRender_ConstantXSkipsTrend(t *testing.T) {
	p, err := Render([]float64{3, 3, 3}, []float64{1, 2, 3}, "Rank", "Peak")
	if err != nil {
		t.Fatalf("Render 失败：%v", err)
	}
	img, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode 失败：%v", err)
	}
	if hasColor(img, isRed) {
		t.Fatalf("x 方差为零时不应绘制趋势线")
	}
	if !hasColor(img, isBlue) {
		t.Fatalf("散点仍应绘制")
	}
}

func TestRender_BadInput(t *testing.T) {
	cases := map[string][2][]float64{
		"mismatch": {{1, 2}, {1}},
		"empty":    {{}, {}},
		"nan":      {{1, math.NaN()}, {1, 2}},
		"inf":      {{1, 2}, {math.Inf(1), 2}},
	}
	for name, c := range cases {
		_, err := Render(c[0], c[1], "x", "y")
		var re *RenderError
		if !errors.As(err, &re) {
			t.Fatalf("%s: 期望 *RenderError，实际 %v", name, err)
		}
	}
}

func TestTicks(t *testing.T) {
	got := ticks(axisRange{min: 0.8, max: 5.2})
	want := []float64{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("刻度数量不符合预期：%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("刻度不符合预期：%v", got)
		}
	}
	if ticks(axisRange{min: 1, max: 1}) != nil {
		t.Fatalf("零跨度不应生成刻度")
	}
}

func TestFormatTick(t *testing.T) {
	for v, want := range map[float64]string{0: "0", 2.5: "2.5", 20: "20", 3e9: "3e+09", 1.5e9: "1.5e+09"} {
		if got := formatTick(v); got != want {
			t.Fatalf("formatTick(%v)=%q，期望 %q", v, got, want)
		}
	}
}

func hasColor(img image.Image, match func(r, g, b uint32) bool) bool {
	bb := img.Bounds()
	for y := bb.Min.Y; y < bb.Max.Y; y++ {
		for x := bb.Min.X; x < bb.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if match(r>>8, g>>8, b>>8) {
				return true
			}
		}
	}
	return false
}

func isBlue(r, g, b uint32) bool { return b > 150 && r < 80 && g > 90 && g < 150 }

func isRed(r, g, b uint32) bool { return r > 180 && g < 80 && b < 80 }
