package view

import (
	"sort"
	"strconv"
	"strings"

	"roadsafety/internal/bus"
	"roadsafety/internal/models"
)

const (
	dimmedLine    = 0.2
	dimmedScatter = 0.3
)

func cellKey(parts ...string) string { return strings.Join(parts, "|") }

// Heatmap is a country x year grid. Missing cells are kept as no-data
// elements so the grid stays rectangular.
type Heatmap struct {
	*Base[*models.HeatmapData]
}

func NewHeatmap(id string) *Heatmap {
	return &Heatmap{NewBase(id, KindHeatmap, DefaultStyle, heatmapElements)}
}

func heatmapElements(d *models.HeatmapData) []Element {
	if d == nil {
		return nil
	}
	return gridElements("", d.Countries, d.Years, d.Pivot)
}

func gridElements(series string, countries []string, years []int, pivot models.PivotTable) []Element {
	out := make([]Element, 0, len(countries)*len(years))
	for _, c := range countries {
		for _, y := range years {
			e := Element{
				Key:     cellKey(c, strconv.Itoa(y)),
				Label:   c,
				Series:  series,
				Country: c,
				Year:    y,
			}
			if series != "" {
				e.Key = cellKey(series, e.Key)
			}
			if v, ok := pivot[c][y]; ok {
				e.Value = models.Some(v)
			}
			out = append(out, e)
		}
	}
	return out
}

// DualAxis draws yearly bars and a line on two axes, next to the
// low-investment heatmap.
type DualAxis struct {
	*Base[*models.DualData]
}

func NewDualAxis(id string) *DualAxis {
	return &DualAxis{NewBase(id, KindDualAxis, DefaultStyle, dualElements)}
}

func dualElements(d *models.DualData) []Element {
	if d == nil {
		return nil
	}
	var out []Element
	for _, row := range d.TimeSeries {
		y := strconv.Itoa(row.Year)
		out = append(out,
			Element{Key: cellKey("bar", y), Label: y, Series: d.BarKey, Year: row.Year, Value: row.Values[d.BarKey]},
			Element{Key: cellKey("line", y), Label: y, Series: d.LineKey, Year: row.Year, Value: row.Values[d.LineKey]},
		)
	}
	years := make(map[int]bool)
	var cols []int
	for _, cells := range d.LowPivot {
		for y := range cells {
			if !years[y] {
				years[y] = true
				cols = append(cols, y)
			}
		}
	}
	sort.Ints(cols)
	return append(out, gridElements("low", d.Countries, cols, d.LowPivot)...)
}

// Scatter is one dot per (country, year). Hovering a country on any view
// dims every other country's dots.
type Scatter struct {
	*Base[*models.ScatterData]
}

func NewScatter(id string) *Scatter {
	return &Scatter{NewBase(id, KindScatter, DefaultStyle, scatterElements)}
}

func scatterElements(d *models.ScatterData) []Element {
	if d == nil {
		return nil
	}
	out := make([]Element, 0, len(d.Points)+len(d.Trend))
	for _, p := range d.Points {
		out = append(out, Element{
			Key:     cellKey(p.Country, strconv.Itoa(p.Year)),
			Label:   p.Country,
			Country: p.Country,
			Year:    p.Year,
			Value:   models.Some(p.Y),
		})
	}
	for i, p := range d.Trend {
		out = append(out, Element{
			Key:    cellKey("trend", strconv.Itoa(i)),
			Label:  "trend",
			Series: "trend",
			Value:  models.Some(p.Y),
		})
	}
	return out
}

// Attach subscribes the scatter to country hover events.
func (s *Scatter) Attach(b *bus.Bus) func() {
	unsub, _ := b.Subscribe(bus.CountryHovered, func(ev models.HighlightEvent) error {
		s.Apply(func(e *Element) {
			if e.Series == "trend" {
				return
			}
			switch {
			case !ev.Active:
				e.Opacity = 1
			case e.Country == ev.Country:
				e.Opacity = 1
			default:
				e.Opacity = dimmedScatter
			}
		})
		return nil
	})
	return unsub
}

// Diverging is the bidirectional bar chart: one bar each side per country.
type Diverging struct {
	*Base[*models.BidirectionalData]
}

func NewDiverging(id string) *Diverging {
	return &Diverging{NewBase(id, KindDiverging, DefaultStyle, divergingElements)}
}

func divergingElements(d *models.BidirectionalData) []Element {
	if d == nil {
		return nil
	}
	out := make([]Element, 0, 2*len(d.Rows))
	for _, r := range d.Rows {
		out = append(out,
			Element{Key: cellKey(r.Country, "left"), Label: r.Country, Series: d.LeftLabel, Country: r.Country, Value: models.Some(r.Left)},
			Element{Key: cellKey(r.Country, "right"), Label: r.Country, Series: d.RightLabel, Country: r.Country, Value: models.Some(r.Right)},
		)
	}
	return out
}

// Line draws one point per (measure, year). Highlighting a year dims the
// other years.
type Line struct {
	*Base[*models.LinesData]
}

func NewLine(id string) *Line {
	return &Line{NewBase(id, KindLine, DefaultStyle, lineElements)}
}

func lineElements(d *models.LinesData) []Element {
	if d == nil {
		return nil
	}
	out := make([]Element, 0, len(d.Keys)*len(d.Rows))
	for _, k := range d.Keys {
		for _, row := range d.Rows {
			y := strconv.Itoa(row.Year)
			out = append(out, Element{
				Key:     cellKey(k, y),
				Label:   y,
				Series:  k,
				Country: d.Country,
				Year:    row.Year,
				Value:   row.Values[k],
			})
		}
	}
	return out
}

// Attach subscribes the line chart to year highlight events.
func (l *Line) Attach(b *bus.Bus) func() {
	unsubHi, _ := b.Subscribe(bus.Highlight, func(ev models.HighlightEvent) error {
		if ev.Year == nil {
			return nil
		}
		year := *ev.Year
		l.Apply(func(e *Element) {
			if e.Year == year {
				e.Opacity = 1
			} else {
				e.Opacity = dimmedLine
			}
		})
		return nil
	})
	unsubLo, _ := b.Subscribe(bus.Unhighlight, func(models.HighlightEvent) error {
		l.Apply(func(e *Element) { e.Opacity = 1 })
		return nil
	})
	return func() {
		unsubHi()
		unsubLo()
	}
}
