// Package chart 把两列数值渲染为“散点 + 最小二乘趋势线（点线）”的 PNG，并编码为 data URI。
//
// 每次 Render 都创建并丢弃自己的 canvas，没有任何包级可变状态，可并发调用。
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/John-Robertt/analyst/internal/domain"
)

// 6x4 英寸 @ 150 dpi。
const (
	Width  = 900
	Height = 600
)

var (
	pointColor = color.RGBA{31, 119, 180, 255}
	trendColor = color.RGBA{214, 39, 40, 255}
)

// RenderError 表示图表无法生成（输入不可绘制或编码失败）。不重试。
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return "render chart: " + e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }

// Render 绘制 (x, y) 散点与趋势线，返回 data:image/png;base64,... 形式的 payload。
func Render(x, y []float64, xLabel, yLabel string) (domain.ImagePayload, error) {
	if len(x) != len(y) {
		return "", &RenderError{Err: fmt.Errorf("x/y 长度不一致：%d != %d", len(x), len(y))}
	}
	if len(x) == 0 {
		return "", &RenderError{Err: errors.New("没有数据点")}
	}
	for i := range x {
		if !finite(x[i]) || !finite(y[i]) {
			return "", &RenderError{Err: fmt.Errorf("第 %d 个点不是有限数", i)}
		}
	}

	c := newCanvas(Width, Height, rangeOf(x), rangeOf(y))
	c.drawAxes(xLabel, yLabel)

	// x 方差为零时回归无定义：只画散点。
	if len(x) >= 2 && stat.Variance(x, nil) > 0 {
		alpha, beta := stat.LinearRegression(x, y, nil, false)
		c.drawTrend(alpha, beta)
	}
	for i := range x {
		c.drawPoint(x[i], y[i])
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return "", &RenderError{Err: err}
	}
	return domain.NewImagePayload("png", buf.Bytes()), nil
}

// Decode 把 payload 还原为图片（仅支持 png）。
func Decode(p domain.ImagePayload) (image.Image, error) {
	if f := p.Format(); f != "png" {
		return nil, fmt.Errorf("不支持的图片格式：%q", f)
	}
	b, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(b))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
