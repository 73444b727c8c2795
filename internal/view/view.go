// Package view keeps the presentation state of each chart: which elements
// exist, keyed by a stable identity, and how they are currently styled.
// Drawing is left to the client; a Frame is everything it needs.
package view

import (
	"errors"
	"sync"

	"roadsafety/internal/models"
)

var (
	ErrAlreadyRendered = errors.New("view already rendered")
	ErrNotRendered     = errors.New("view not rendered")
	ErrLastView        = errors.New("cannot delete the last view")
	ErrUnknownView     = errors.New("unknown view")
)

type Kind string

const (
	KindHeatmap    Kind = "heatmap"
	KindDualAxis   Kind = "dual"
	KindScatter    Kind = "scatter"
	KindDiverging  Kind = "bidirectional"
	KindLine       Kind = "lines"
	KindChoropleth Kind = "choropleth"
)

// Element is one visual mark: a heatmap cell, a dot, a bar, a region.
type Element struct {
	Key         string        `json:"key"`
	Label       string        `json:"label"`
	Series      string        `json:"series,omitempty"`
	Country     string        `json:"country,omitempty"`
	Year        int           `json:"year,omitempty"`
	Value       models.Float  `json:"value"`
	Change      models.Change `json:"change,omitempty"`
	Opacity     float64       `json:"opacity"`
	StrokeWidth float64       `json:"stroke_width"`
}

// NoData reports whether the element is drawn as "no data".
func (e Element) NoData() bool { return !e.Value.Valid }

// Frame is a snapshot of a view.
type Frame struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Rendered  bool      `json:"rendered"`
	Attribute string    `json:"attribute,omitempty"`
	Year      int       `json:"year,omitempty"`
	Min       float64   `json:"min,omitempty"`
	Max       float64   `json:"max,omitempty"`
	Layout    *Layout   `json:"layout,omitempty"`
	Elements  []Element `json:"elements"`
}

// Adapter is a chart that can be drawn once and then updated in place.
type Adapter[T any] interface {
	ID() string
	Kind() Kind
	Render(data T) error
	Update(data T) error
	Frame() Frame
}

// Framer is the data-independent part of Adapter.
type Framer interface {
	ID() string
	Kind() Kind
	Frame() Frame
}

// Style is the resting presentation of new elements.
type Style struct {
	Opacity     float64
	StrokeWidth float64
}

var DefaultStyle = Style{Opacity: 1, StrokeWidth: 1}

// ElementsFunc turns chart data into elements. Keys must be stable across
// updates for the same logical mark.
type ElementsFunc[T any] func(data T) []Element

// Base implements Adapter for any chart data type. Elements are replaced by
// key on Update: surviving keys keep their current style, vanished keys are
// dropped.
type Base[T any] struct {
	mu       sync.RWMutex
	id       string
	kind     Kind
	style    Style
	build    ElementsFunc[T]
	rendered bool
	order    []string
	elements map[string]*Element
}

func NewBase[T any](id string, kind Kind, style Style, build ElementsFunc[T]) *Base[T] {
	return &Base[T]{
		id:       id,
		kind:     kind,
		style:    style,
		build:    build,
		elements: map[string]*Element{},
	}
}

func (b *Base[T]) ID() string { return b.id }

func (b *Base[T]) Kind() Kind { return b.kind }

// Render draws the view for the first time.
func (b *Base[T]) Render(data T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rendered {
		return ErrAlreadyRendered
	}
	b.replace(data)
	b.rendered = true
	return nil
}

// Update redraws the view with new data.
func (b *Base[T]) Update(data T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.rendered {
		return ErrNotRendered
	}
	b.replace(data)
	return nil
}

func (b *Base[T]) Rendered() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rendered
}

func (b *Base[T]) replace(data T) {
	next := b.build(data)
	order := make([]string, 0, len(next))
	elements := make(map[string]*Element, len(next))
	for i := range next {
		e := next[i]
		if old, ok := b.elements[e.Key]; ok {
			e.Opacity, e.StrokeWidth = old.Opacity, old.StrokeWidth
		} else {
			e.Opacity, e.StrokeWidth = b.style.Opacity, b.style.StrokeWidth
		}
		if _, dup := elements[e.Key]; !dup {
			order = append(order, e.Key)
		}
		elements[e.Key] = &e
	}
	b.order, b.elements = order, elements
}

// Apply mutates every element in place. Used for bus reactions, which only
// touch presentation.
func (b *Base[T]) Apply(fn func(*Element)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range b.order {
		fn(b.elements[k])
	}
}

func (b *Base[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

func (b *Base[T]) Element(key string) (Element, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.elements[key]
	if !ok {
		return Element{}, false
	}
	return *e, true
}

func (b *Base[T]) Frame() Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	f := Frame{ID: b.id, Kind: b.kind, Rendered: b.rendered, Elements: make([]Element, 0, len(b.order))}
	for _, k := range b.order {
		f.Elements = append(f.Elements, *b.elements[k])
	}
	return f
}
