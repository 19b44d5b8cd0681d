// Package chart renders revenue history and forecasts as PNG line charts.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

const (
	Width  = 1200
	Height = 500

	marginLeft   = 90
	marginRight  = 30
	marginTop    = 40
	marginBottom = 50
)

var (
	background = color.RGBA{250, 250, 252, 255}
	gridColor  = color.RGBA{225, 228, 235, 255}
	axisColor  = color.RGBA{90, 95, 110, 255}
	textColor  = color.RGBA{40, 44, 52, 255}

	actualColor   = color.RGBA{37, 99, 235, 255}
	fittedColor   = color.RGBA{234, 88, 12, 255}
	forecastColor = color.RGBA{22, 163, 74, 255}
	bandColor     = color.RGBA{22, 163, 74, 56}
)

// Point is one day on a series.
type Point struct {
	Date  time.Time
	Value float64
}

// BandPoint is one forecast day with its confidence band.
type BandPoint struct {
	Date  time.Time
	Value float64
	Lower float64
	Upper float64
}

// Data is everything drawn on one chart.
type Data struct {
	Title    string
	Actual   []Point
	Fitted   []Point
	Forecast []BandPoint
}

var ErrEmpty = errors.New("chart has no points")

// Render draws the chart and encodes it as PNG.
func Render(d Data) ([]byte, error) {
	start, end, lo, hi, ok := bounds(d)
	if !ok {
		return nil, ErrEmpty
	}

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			img.SetRGBA(x, y, background)
		}
	}

	p := newPlot(start, end, lo, hi)
	p.drawGrid(img)

	if len(d.Forecast) > 0 {
		p.drawBand(img, d.Forecast)
	}
	p.drawLine(img, d.Actual, actualColor, 2)
	p.drawLine(img, d.Fitted, fittedColor, 1.5)
	forecast := make([]Point, len(d.Forecast))
	for i, f := range d.Forecast {
		forecast[i] = Point{Date: f.Date, Value: f.Value}
	}
	p.drawLine(img, forecast, forecastColor, 2)

	drawText(img, d.Title, marginLeft, 24, textColor)
	drawLegend(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func bounds(d Data) (start, end time.Time, lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	visit := func(t time.Time, values ...float64) {
		if !ok || t.Before(start) {
			start = t
		}
		if !ok || t.After(end) {
			end = t
		}
		ok = true
		for _, v := range values {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	for _, pt := range d.Actual {
		visit(pt.Date, pt.Value)
	}
	for _, pt := range d.Fitted {
		visit(pt.Date, pt.Value)
	}
	for _, pt := range d.Forecast {
		visit(pt.Date, pt.Value, pt.Lower, pt.Upper)
	}
	if !ok {
		return
	}
	lo = min(lo, 0)
	if hi <= lo {
		hi = lo + 1
	}
	return
}

type plot struct {
	start    time.Time
	spanDays float64
	lo, hi   float64
}

func newPlot(start, end time.Time, lo, hi float64) plot {
	span := end.Sub(start).Hours() / 24
	if span <= 0 {
		span = 1
	}
	return plot{start: start, spanDays: span, lo: lo, hi: hi * 1.05}
}

func (p plot) x(t time.Time) float32 {
	frac := t.Sub(p.start).Hours() / 24 / p.spanDays
	return float32(marginLeft + frac*float64(Width-marginLeft-marginRight))
}

func (p plot) y(v float64) float32 {
	frac := (v - p.lo) / (p.hi - p.lo)
	return float32(float64(Height-marginBottom) - frac*float64(Height-marginTop-marginBottom))
}

func (p plot) drawGrid(img *image.RGBA) {
	const lines = 5
	for i := 0; i <= lines; i++ {
		v := p.lo + (p.hi-p.lo)*float64(i)/lines
		y := p.y(v)
		c := gridColor
		if i == 0 {
			c = axisColor
		}
		fillRect(img, marginLeft, y-0.5, Width-marginRight, y+0.5, c)
		drawText(img, formatAmount(v), 8, int(y)+4, textColor)
	}
	fillRect(img, marginLeft-0.5, marginTop, marginLeft+0.5, Height-marginBottom, axisColor)

	end := p.start.Add(time.Duration(p.spanDays * 24 * float64(time.Hour)))
	drawText(img, p.start.Format(time.DateOnly), marginLeft, Height-marginBottom+20, textColor)
	drawText(img, end.Format(time.DateOnly), Width-marginRight-70, Height-marginBottom+20, textColor)
}

func (p plot) drawLine(img *image.RGBA, pts []Point, c color.RGBA, width float32) {
	if len(pts) == 0 {
		return
	}
	z := vector.NewRasterizer(Width, Height)
	if len(pts) == 1 {
		x, y := p.x(pts[0].Date), p.y(pts[0].Value)
		square(z, x, y, width*1.5)
	}
	for i := 1; i < len(pts); i++ {
		segment(z,
			p.x(pts[i-1].Date), p.y(pts[i-1].Value),
			p.x(pts[i].Date), p.y(pts[i].Value),
			width)
	}
	z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
}

// drawBand fills the area between the lower and upper bounds.
func (p plot) drawBand(img *image.RGBA, pts []BandPoint) {
	z := vector.NewRasterizer(Width, Height)
	if len(pts) == 1 {
		x := p.x(pts[0].Date)
		z.MoveTo(x-2, p.y(pts[0].Upper))
		z.LineTo(x+2, p.y(pts[0].Upper))
		z.LineTo(x+2, p.y(pts[0].Lower))
		z.LineTo(x-2, p.y(pts[0].Lower))
		z.ClosePath()
	} else {
		z.MoveTo(p.x(pts[0].Date), p.y(pts[0].Upper))
		for _, pt := range pts[1:] {
			z.LineTo(p.x(pt.Date), p.y(pt.Upper))
		}
		for i := len(pts) - 1; i >= 0; i-- {
			z.LineTo(p.x(pts[i].Date), p.y(pts[i].Lower))
		}
		z.ClosePath()
	}
	z.Draw(img, img.Bounds(), image.NewUniform(bandColor), image.Point{})
}

// segment adds a quad of the given width around the line from a to b.
func segment(z *vector.Rasterizer, ax, ay, bx, by, width float32) {
	dx, dy := bx-ax, by-ay
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	z.MoveTo(ax+nx, ay+ny)
	z.LineTo(bx+nx, by+ny)
	z.LineTo(bx-nx, by-ny)
	z.LineTo(ax-nx, ay-ny)
	z.ClosePath()
}

func square(z *vector.Rasterizer, x, y, size float32) {
	h := size / 2
	z.MoveTo(x-h, y-h)
	z.LineTo(x+h, y-h)
	z.LineTo(x+h, y+h)
	z.LineTo(x-h, y+h)
	z.ClosePath()
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 float32, c color.RGBA) {
	z := vector.NewRasterizer(Width, Height)
	z.MoveTo(x0, y0)
	z.LineTo(x1, y0)
	z.LineTo(x1, y1)
	z.LineTo(x0, y1)
	z.ClosePath()
	z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
}

func drawLegend(img *image.RGBA) {
	x := Width - marginRight - 330
	for _, item := range []struct {
		label string
		c     color.RGBA
	}{
		{"actual", actualColor},
		{"fitted", fittedColor},
		{"forecast", forecastColor},
	} {
		fillRect(img, float32(x), 16, float32(x+18), 22, item.c)
		drawText(img, item.label, x+24, 24, textColor)
		x += 110
	}
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// formatAmount abbreviates rupiah amounts for axis labels.
func formatAmount(v float64) string {
	switch a := math.Abs(v); {
	case a >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case a >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case a >= 1e3:
		return fmt.Sprintf("%.0fK", v/1e3)
	}
	return fmt.Sprintf("%.0f", v)
}
