package chart

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

const (
	marginLeft   = 90
	marginRight  = 30
	marginTop    = 30
	marginBottom = 70

	tickCount  = 5
	tickLen    = 6
	pointR     = 4.5
	axisWidth  = 1.5
	trendWidth = 2.5
	dotLen     = 3
	dotGap     = 4
)

type axisRange struct {
	min, max float64
}

func rangeOf(vs []float64) axisRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	pad := span * 0.05
	if span == 0 {
		pad = math.Max(math.Abs(hi)*0.1, 1)
	}
	return axisRange{min: lo - pad, max: hi + pad}
}

// canvas 是一次渲染的上下文：图像、光栅器、绘图区与坐标范围。
type canvas struct {
	img  *image.RGBA
	z    *vector.Rasterizer
	plot image.Rectangle
	xr   axisRange
	yr   axisRange
	face font.Face
}

func newCanvas(w, h int, xr, yr axisRange) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return &canvas{
		img:  img,
		z:    vector.NewRasterizer(w, h),
		plot: image.Rect(marginLeft, marginTop, w-marginRight, h-marginBottom),
		xr:   xr,
		yr:   yr,
		face: basicfont.Face7x13,
	}
}

func (c *canvas) px(v float64) float32 {
	t := (v - c.xr.min) / (c.xr.max - c.xr.min)
	return float32(float64(c.plot.Min.X) + t*float64(c.plot.Dx()))
}

func (c *canvas) py(v float64) float32 {
	t := (v - c.yr.min) / (c.yr.max - c.yr.min)
	return float32(float64(c.plot.Max.Y) - t*float64(c.plot.Dy()))
}

// fill 用 col 填充 path 描述的闭合图形。
func (c *canvas) fill(col color.Color, path func(z *vector.Rasterizer)) {
	b := c.img.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
	path(c.z)
	c.z.Draw(c.img, b, image.NewUniform(col), image.Point{})
}

func (c *canvas) line(x0, y0, x1, y1, width float32, col color.Color) {
	dx, dy := x1-x0, y1-y0
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	c.fill(col, func(z *vector.Rasterizer) {
		z.MoveTo(x0+nx, y0+ny)
		z.LineTo(x1+nx, y1+ny)
		z.LineTo(x1-nx, y1-ny)
		z.LineTo(x0-nx, y0-ny)
		z.ClosePath()
	})
}

func (c *canvas) disc(cx, cy, r float32, col color.Color) {
	const segs = 24
	c.fill(col, func(z *vector.Rasterizer) {
		z.MoveTo(cx+r, cy)
		for i := 1; i < segs; i++ {
			a := 2 * math.Pi * float64(i) / segs
			z.LineTo(cx+r*float32(math.Cos(a)), cy+r*float32(math.Sin(a)))
		}
		z.ClosePath()
	})
}

func (c *canvas) drawPoint(x, y float64) {
	c.disc(c.px(x), c.py(y), pointR, pointColor)
}

// drawTrend 画 y = alpha + beta*x，裁剪到绘图区，点线样式。
func (c *canvas) drawTrend(alpha, beta float64) {
	lo, hi := c.xr.min, c.xr.max
	if beta != 0 {
		a := (c.yr.min - alpha) / beta
		b := (c.yr.max - alpha) / beta
		lo = math.Max(lo, math.Min(a, b))
		hi = math.Min(hi, math.Max(a, b))
	} else if alpha < c.yr.min || alpha > c.yr.max {
		return
	}
	if !(lo < hi) {
		return
	}

	x0, y0 := c.px(lo), c.py(alpha+beta*lo)
	x1, y1 := c.px(hi), c.py(alpha+beta*hi)
	dx, dy := x1-x0, y1-y0
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	ux, uy := dx/l, dy/l
	for s := float32(0); s < l; s += dotLen + dotGap {
		e := s + dotLen
		if e > l {
			e = l
		}
		c.line(x0+ux*s, y0+uy*s, x0+ux*e, y0+uy*e, trendWidth, trendColor)
	}
}

func (c *canvas) drawAxes(xLabel, yLabel string) {
	p := c.plot
	left, right := float32(p.Min.X), float32(p.Max.X)
	top, bottom := float32(p.Min.Y), float32(p.Max.Y)

	c.line(left, bottom, right, bottom, axisWidth, color.Black)
	c.line(left, top, left, bottom, axisWidth, color.Black)

	for _, v := range ticks(c.xr) {
		x := c.px(v)
		c.line(x, bottom, x, bottom+tickLen, 1, color.Black)
		s := formatTick(v)
		c.text(int(x)-c.measure(s)/2, p.Max.Y+tickLen+14, s)
	}
	for _, v := range ticks(c.yr) {
		y := c.py(v)
		c.line(left-tickLen, y, left, y, 1, color.Black)
		s := formatTick(v)
		c.text(p.Min.X-tickLen-4-c.measure(s), int(y)+4, s)
	}

	c.text(p.Min.X+(p.Dx()-c.measure(xLabel))/2, c.img.Bounds().Max.Y-20, xLabel)
	c.verticalText(16, p.Min.Y+(p.Dy()+c.measure(yLabel))/2, yLabel)
}

func (c *canvas) measure(s string) int {
	return font.MeasureString(c.face, s).Ceil()
}

// text 以 (x, baseline) 为起点绘制一行文本。
func (c *canvas) text(x, baseline int, s string) {
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.Black,
		Face: c.face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

// verticalText 把文本逆时针旋转 90° 绘制；(x, y) 是旋转后文本的左下角。
func (c *canvas) verticalText(x, y int, s string) {
	w := c.measure(s)
	h := c.face.Metrics().Height.Ceil()
	tmp := image.NewRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  tmp,
		Src:  image.Black,
		Face: c.face,
		Dot:  fixed.P(0, c.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)

	for ty := 0; ty < h; ty++ {
		for tx := 0; tx < w; tx++ {
			if tmp.RGBAAt(tx, ty).A == 0 {
				continue
			}
			c.img.Set(x+ty, y-tx, color.Black)
		}
	}
}

// ticks 在范围内生成约 tickCount 个“好看”的刻度值（1/2/2.5/5 x 10^n）。
func ticks(r axisRange) []float64 {
	span := r.max - r.min
	if !(span > 0) {
		return nil
	}
	raw := span / tickCount
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := 10 * mag
	for _, m := range []float64{1, 2, 2.5, 5} {
		if raw <= m*mag {
			step = m * mag
			break
		}
	}

	var out []float64
	for v := math.Ceil(r.min/step) * step; v <= r.max && len(out) < 2*tickCount+2; v += step {
		// 消除累加误差带来的 -0 / 1e-17 之类的尾巴。
		out = append(out, math.Round(v/step)*step)
	}
	return out
}

func formatTick(v float64) string {
	if v == 0 {
		return "0"
	}
	if math.Abs(v) >= 1e6 || math.Abs(v) < 1e-3 {
		return strconv.FormatFloat(v, 'g', 3, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
