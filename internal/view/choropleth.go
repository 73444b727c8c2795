package view

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"roadsafety/internal/bus"
	"roadsafety/internal/models"
)

const (
	restingStroke = 0.5
	hoverStroke   = 2
)

// Layout is how much room each map gets in a multi-view row.
type Layout struct {
	WidthPercent    float64 `json:"width_percent"`
	WidthMultiplier float64 `json:"width_multiplier"`
	LegendOffset    int     `json:"legend_offset"`
}

// LayoutFor returns the layout shared by n side-by-side views.
func LayoutFor(n int) Layout {
	switch {
	case n <= 1:
		return Layout{WidthPercent: 100, WidthMultiplier: 0.9, LegendOffset: 1000}
	case n == 2:
		return Layout{WidthPercent: 50, WidthMultiplier: 0.4, LegendOffset: 500}
	default:
		return Layout{WidthPercent: 100.0 / 3, WidthMultiplier: 0.3, LegendOffset: 350}
	}
}

// ChoroplethSource computes the map data for an attribute and year.
type ChoroplethSource func(attr string, year int) *models.ChoroplethData

// Choropleth is a map colored by one attribute for one year. Regions are
// fixed at Render; changing year or attribute only recolors them.
type Choropleth struct {
	*Base[*models.ChoroplethData]

	source ChoroplethSource

	mu     sync.Mutex
	attr   string
	year   int
	min    float64
	max    float64
	layout Layout
}

func NewChoropleth(id, attr string, year int, source ChoroplethSource) *Choropleth {
	return &Choropleth{
		Base:   NewBase(id, KindChoropleth, Style{Opacity: 1, StrokeWidth: restingStroke}, choroplethElements),
		source: source,
		attr:   attr,
		year:   year,
		layout: LayoutFor(1),
	}
}

func choroplethElements(d *models.ChoroplethData) []Element {
	if d == nil {
		return nil
	}
	out := make([]Element, 0, len(d.Regions))
	for _, r := range d.Regions {
		out = append(out, Element{
			Key:     r.Name,
			Label:   r.Name,
			Country: r.Name,
			Year:    d.Year,
			Value:   r.Value,
			Change:  r.Change,
		})
	}
	return out
}

// Show renders the map from its source for the current attribute and year.
func (c *Choropleth) Show() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.source(c.attr, c.year)
	if err := c.Render(data); err != nil {
		return err
	}
	if data != nil {
		c.min, c.max = data.Min, data.Max
	}
	return nil
}

// UpdateYear recolors the regions for year.
func (c *Choropleth) UpdateYear(year int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.recolor(c.attr, year); err != nil {
		return err
	}
	c.year = year
	return nil
}

// SetAttribute recolors the regions for attr at the current year.
func (c *Choropleth) SetAttribute(attr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.recolor(attr, c.year); err != nil {
		return err
	}
	c.attr = attr
	return nil
}

func (c *Choropleth) recolor(attr string, year int) error {
	if !c.Rendered() {
		return ErrNotRendered
	}
	data := c.source(attr, year)
	if data == nil {
		return fmt.Errorf("no map data for %s/%d", attr, year)
	}
	regions := make(map[string]models.Region, len(data.Regions))
	for _, r := range data.Regions {
		regions[r.Name] = r
	}
	c.Apply(func(e *Element) {
		r, ok := regions[e.Key]
		e.Year = year
		if !ok {
			e.Value, e.Change = models.None, models.ChangeNone
			return
		}
		e.Value, e.Change = r.Value, r.Change
	})
	c.min, c.max = data.Min, data.Max
	return nil
}

func (c *Choropleth) Attribute() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attr
}

func (c *Choropleth) Year() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.year
}

func (c *Choropleth) setLayout(l Layout) {
	c.mu.Lock()
	c.layout = l
	c.mu.Unlock()
}

func (c *Choropleth) Frame() Frame {
	f := c.Base.Frame()
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.layout
	f.Attribute, f.Year, f.Layout = c.attr, c.year, &l
	f.Min, f.Max = c.min, c.max
	return f
}

// Attach subscribes the map to country hover events. Only the hovered
// region's outline changes.
func (c *Choropleth) Attach(b *bus.Bus) func() {
	unsub, _ := b.Subscribe(bus.CountryHovered, func(ev models.HighlightEvent) error {
		c.Apply(func(e *Element) {
			if e.Key != ev.Country {
				return
			}
			if ev.Active {
				e.StrokeWidth = hoverStroke
			} else {
				e.StrokeWidth = restingStroke
			}
		})
		return nil
	})
	return unsub
}

// MultiView is a row of maps sharing one year and one hover state. Each
// map keeps its own attribute. There is always at least one map.
type MultiView struct {
	mu       sync.Mutex
	source   ChoroplethSource
	bus      *bus.Bus
	attr     string
	year     int
	title    string
	views    []*Choropleth
	detaches map[string]func()
}

// NewMultiView creates the row with one map showing attr at year.
func NewMultiView(source ChoroplethSource, b *bus.Bus, attr string, year int) (*MultiView, error) {
	m := &MultiView{
		source:   source,
		bus:      b,
		attr:     attr,
		year:     year,
		detaches: map[string]func(){},
	}
	if _, err := m.Add(); err != nil {
		return nil, err
	}
	return m, nil
}

// Add appends a map showing the default attribute at the shared year.
func (m *MultiView) Add() (*Choropleth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := NewChoropleth(uuid.NewString(), m.attr, m.year, m.source)
	if err := v.Show(); err != nil {
		return nil, err
	}
	if m.bus != nil {
		m.detaches[v.ID()] = v.Attach(m.bus)
	}
	m.views = append(m.views, v)
	m.relayout()
	return v, nil
}

// Delete removes a map. The last map cannot be removed.
func (m *MultiView) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", id, ErrUnknownView)
	}
	if len(m.views) == 1 {
		return ErrLastView
	}
	if detach := m.detaches[id]; detach != nil {
		detach()
		delete(m.detaches, id)
	}
	m.views = append(m.views[:i:i], m.views[i+1:]...)
	m.relayout()
	return nil
}

func (m *MultiView) View(id string) (*Choropleth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownView)
	}
	return m.views[i], nil
}

func (m *MultiView) Views() []*Choropleth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Choropleth(nil), m.views...)
}

// SetYear moves every map to year. All maps are attempted; the first
// failure is returned.
func (m *MultiView) SetYear(year int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for _, v := range m.views {
		if err := v.UpdateYear(year); err != nil && first == nil {
			first = err
		}
	}
	m.year = year
	return first
}

func (m *MultiView) Year() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.year
}

func (m *MultiView) SetTitle(title string) {
	m.mu.Lock()
	m.title = title
	m.mu.Unlock()
}

func (m *MultiView) Title() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.title
}

func (m *MultiView) Frames() []Frame {
	views := m.Views()
	out := make([]Frame, 0, len(views))
	for _, v := range views {
		out = append(out, v.Frame())
	}
	return out
}

// Close detaches every map from the bus.
func (m *MultiView) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, detach := range m.detaches {
		detach()
		delete(m.detaches, id)
	}
}

func (m *MultiView) index(id string) int {
	for i, v := range m.views {
		if v.ID() == id {
			return i
		}
	}
	return -1
}

func (m *MultiView) relayout() {
	l := LayoutFor(len(m.views))
	for _, v := range m.views {
		v.setLayout(l)
	}
}
