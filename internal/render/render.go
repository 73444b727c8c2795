// Package render draws static SVG snapshots of the dashboard charts.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"roadsafety/internal/models"
)

var ErrNoData = errors.New("nothing to draw")

const (
	defaultWidth  = 1024
	defaultHeight = 480
	barSlot       = 60
)

// Labeler maps attribute codes to axis and legend labels.
type Labeler interface {
	Label(code string) string
}

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
}

// pointStyle renders points only, without connecting lines.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		DotWidth:    4,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotWidth:    3,
		DotColor:    col,
	}
}

type bounds struct {
	minX, maxX, minY, maxY float64
	n                      int
}

func newBounds() bounds {
	return bounds{minX: math.MaxFloat64, maxX: -math.MaxFloat64, minY: math.MaxFloat64, maxY: -math.MaxFloat64}
}

func (b *bounds) add(x, y float64) {
	b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
	b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
	b.n++
}

// ranges returns explicit axis ranges where the data alone would give
// go-chart a zero-width range, which it refuses to draw.
func (b bounds) ranges() (x, y chart.Range) {
	if b.maxX-b.minX == 0 {
		x = &chart.ContinuousRange{Min: b.minX - 1, Max: b.maxX + 1}
	}
	if b.maxY-b.minY == 0 {
		y = &chart.ContinuousRange{Min: b.minY - 1, Max: b.maxY + 1}
	}
	return x, y
}

// pad repeats a lone point so the series has two X values.
func pad(xs, ys []float64) ([]float64, []float64) {
	if len(xs) == 1 {
		return []float64{xs[0], xs[0] + 1e-9}, []float64{ys[0], ys[0]}
	}
	return xs, ys
}

func yearTicks(years []float64) []chart.Tick {
	ticks := make([]chart.Tick, 0, len(years))
	for _, y := range years {
		ticks = append(ticks, chart.Tick{Value: y, Label: strconv.Itoa(int(y))})
	}
	return ticks
}

func draw(w io.Writer, c chart.Chart, b bounds) error {
	if b.n == 0 {
		return ErrNoData
	}
	xr, yr := b.ranges()
	if xr != nil {
		c.XAxis.Range = xr
	}
	if yr != nil {
		c.YAxis.Range = yr
	}
	if c.Width == 0 {
		c.Width = defaultWidth
	}
	if c.Height == 0 {
		c.Height = defaultHeight
	}
	c.Background = chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 24}}
	if len(c.Series) > 1 {
		c.Elements = []chart.Renderable{chart.Legend(&c)}
	}
	if err := c.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("render %q: %w", c.Title, err)
	}
	return nil
}

// Line draws one series per measure over the years. Missing years are
// left out of that measure's series.
func Line(w io.Writer, d *models.LinesData, labels Labeler) error {
	if d == nil {
		return ErrNoData
	}
	b := newBounds()
	var series []chart.Series
	var years []float64
	for _, row := range d.Rows {
		years = append(years, float64(row.Year))
	}
	for i, k := range d.Keys {
		var xs, ys []float64
		for _, row := range d.Rows {
			v := row.Values[k]
			if !v.Valid {
				continue
			}
			xs = append(xs, float64(row.Year))
			ys = append(ys, v.Value)
			b.add(float64(row.Year), v.Value)
		}
		if len(xs) == 0 {
			continue
		}
		xs, ys = pad(xs, ys)
		series = append(series, chart.ContinuousSeries{
			Name:    labels.Label(k),
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(palette[i%len(palette)]),
		})
	}

	return draw(w, chart.Chart{
		Title:  d.Country,
		XAxis:  chart.XAxis{Name: "Year", Ticks: yearTicks(years)},
		Series: series,
	}, b)
}

// Scatter draws the points and, when present, the regression trend as a
// second series.
func Scatter(w io.Writer, d *models.ScatterData, labels Labeler) error {
	if d == nil {
		return ErrNoData
	}
	b := newBounds()
	xs := make([]float64, 0, len(d.Points))
	ys := make([]float64, 0, len(d.Points))
	for _, p := range d.Points {
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
		b.add(p.X, p.Y)
	}
	if len(xs) == 0 {
		return ErrNoData
	}
	xs, ys = pad(xs, ys)
	series := []chart.Series{chart.ContinuousSeries{
		Name:    "Countries",
		XValues: xs,
		YValues: ys,
		Style:   pointStyle(chart.ColorBlue),
	}}

	if len(d.Trend) > 1 {
		tx := make([]float64, len(d.Trend))
		ty := make([]float64, len(d.Trend))
		for i, p := range d.Trend {
			tx[i], ty[i] = p.X, p.Y
			b.add(p.X, p.Y)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    "Trend",
			XValues: tx,
			YValues: ty,
			Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 2},
		})
	}

	return draw(w, chart.Chart{
		Title:  labels.Label(d.YKey) + " vs " + labels.Label(d.XKey),
		XAxis:  chart.XAxis{Name: labels.Label(d.XKey)},
		YAxis:  chart.YAxis{Name: labels.Label(d.YKey)},
		Series: series,
	}, b)
}

// Bar is one labelled bar.
type Bar struct {
	Label string
	Value float64
}

// Bars draws a bar chart.
func Bars(w io.Writer, title string, bars []Bar) error {
	if len(bars) == 0 {
		return ErrNoData
	}
	values := make([]chart.Value, len(bars))
	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for i, b := range bars {
		values[i] = chart.Value{Label: b.Label, Value: b.Value}
		lo, hi = math.Min(lo, b.Value), math.Max(hi, b.Value)
	}

	width := defaultWidth
	if n := len(bars) * barSlot; n > width {
		width = n
	}
	bc := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     defaultHeight,
		BarWidth:   barSlot * 2 / 3,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Bars:       values,
	}
	// Anchor bars at zero, and never hand go-chart an empty range.
	lo, hi = math.Min(lo, 0), math.Max(hi, 0)
	if hi-lo == 0 {
		hi = 1
	}
	bc.YAxis = chart.YAxis{Range: &chart.ContinuousRange{Min: lo, Max: hi}}

	if err := bc.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("render %q: %w", title, err)
	}
	return nil
}

// DualBars are the yearly means of the bar measure of the dual chart.
func DualBars(d *models.DualData) []Bar {
	if d == nil {
		return nil
	}
	var out []Bar
	for _, row := range d.TimeSeries {
		if v := row.Values[d.BarKey]; v.Valid {
			out = append(out, Bar{Label: strconv.Itoa(row.Year), Value: v.Value})
		}
	}
	return out
}

// ChoroplethBars are the regions that have a value for the map's year.
func ChoroplethBars(d *models.ChoroplethData) []Bar {
	if d == nil {
		return nil
	}
	var out []Bar
	for _, r := range d.Regions {
		if r.Value.Valid {
			out = append(out, Bar{Label: r.Name, Value: r.Value.Value})
		}
	}
	return out
}

// DivergingBars mirrors the bidirectional chart: the left measure is drawn
// negative.
func DivergingBars(d *models.BidirectionalData) []Bar {
	if d == nil {
		return nil
	}
	out := make([]Bar, 0, 2*len(d.Rows))
	for _, r := range d.Rows {
		out = append(out,
			Bar{Label: r.Country + " (" + d.LeftLabel + ")", Value: -r.Left},
			Bar{Label: r.Country + " (" + d.RightLabel + ")", Value: r.Right},
		)
	}
	return out
}

// HeatmapBars are the per-country means across the heatmap's years.
func HeatmapBars(d *models.HeatmapData) []Bar {
	if d == nil {
		return nil
	}
	var out []Bar
	for _, c := range d.Countries {
		cells := d.Pivot[c]
		if len(cells) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range cells {
			sum += v
		}
		out = append(out, Bar{Label: c, Value: sum / float64(len(cells))})
	}
	return out
}
