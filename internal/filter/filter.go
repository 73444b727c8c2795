// Package filter holds the dashboard's shared selection and notifies
// dependents whenever it changes.
package filter

import (
	"errors"
	"fmt"
	"sync"

	"roadsafety/internal/models"
)

var (
	ErrYearOutOfRange = errors.New("year out of range")
	ErrUnknownPair    = errors.New("unknown metric pair")
	ErrUnknownCountry = errors.New("unknown country")
)

// Listener receives the selection after a change has been fully applied.
type Listener func(models.FilterSelection)

type Option func(*State)

// WithAttributeValidator rejects attribute codes for which validate fails.
func WithAttributeValidator(validate func(code string) error) Option {
	return func(s *State) { s.validateAttr = validate }
}

// WithCountries restricts country selections to known names. Unknown names
// are dropped from SetCountries and rejected by ToggleCountry.
func WithCountries(countries []string) Option {
	return func(s *State) {
		s.known = make(map[string]bool, len(countries))
		for _, c := range countries {
			s.known[c] = true
		}
	}
}

// WithYearRange bounds SetYear to [lo, hi].
func WithYearRange(lo, hi int) Option {
	return func(s *State) { s.minYear, s.maxYear, s.bounded = lo, hi, true }
}

type entry struct {
	id int
	fn Listener
}

// State is the current FilterSelection. Listeners run synchronously, in
// subscription order, inside the call that changed the state. Changes are
// not batched: every effective change notifies once.
type State struct {
	mu        sync.Mutex
	sel       models.FilterSelection
	listeners []entry
	nextID    int

	validateAttr func(string) error
	known        map[string]bool
	minYear      int
	maxYear      int
	bounded      bool
}

// New creates a State. An empty country list in initial starts as Show All
// and an invalid metric pair starts as the default pair.
func New(initial models.FilterSelection, opts ...Option) *State {
	s := &State{}
	for _, o := range opts {
		o(s)
	}
	s.sel = initial
	s.sel.Countries = s.normalize(initial.Countries, true)
	if !s.sel.MetricPair.Valid() {
		s.sel.MetricPair = models.PairFatalitiesVsPassengerKm
	}
	return s
}

// Get returns a copy of the current selection.
func (s *State) Get() models.FilterSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.sel)
}

// OnChange registers l and returns a function that removes it.
func (s *State) OnChange(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, entry{id: id, fn: l})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.listeners {
			if e.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetCountries replaces the country selection and normalizes it:
//   - an empty selection becomes Show All;
//   - Show All together with specific countries resolves by what changed:
//     if Show All was already active the user picked a country, so the
//     countries win; otherwise the user picked Show All, so it wins.
func (s *State) SetCountries(selection []string) models.FilterSelection {
	return s.mutate(func(sel *models.FilterSelection) error {
		sel.Countries = s.normalize(selection, sel.AllCountries())
		return nil
	})
}

// ToggleCountry applies one checkbox change. Checking Show All clears every
// other country; unchecking the last specific country reverts to Show All.
func (s *State) ToggleCountry(country string, checked bool) (models.FilterSelection, error) {
	if country != models.ShowAll && s.known != nil && !s.known[country] {
		return s.Get(), fmt.Errorf("%q: %w", country, ErrUnknownCountry)
	}
	return s.mutateErr(func(sel *models.FilterSelection) error {
		if country == models.ShowAll {
			if checked {
				sel.Countries = []string{models.ShowAll}
			}
			return nil
		}

		var next []string
		for _, c := range sel.Countries {
			if c != models.ShowAll && c != country {
				next = append(next, c)
			}
		}
		if checked {
			next = append(next, country)
		}
		sel.Countries = s.normalize(next, false)
		return nil
	})
}

// SetAttribute selects the attribute shown by attribute-driven views.
func (s *State) SetAttribute(code string) (models.FilterSelection, error) {
	if s.validateAttr != nil {
		if err := s.validateAttr(code); err != nil {
			return s.Get(), err
		}
	} else if !models.IsAttribute(code) {
		return s.Get(), fmt.Errorf("unknown attribute %q", code)
	}
	return s.mutateErr(func(sel *models.FilterSelection) error {
		sel.Attribute = code
		return nil
	})
}

// SetYear moves the shared time cursor.
func (s *State) SetYear(year int) (models.FilterSelection, error) {
	if s.bounded && (year < s.minYear || year > s.maxYear) {
		return s.Get(), fmt.Errorf("%d not in [%d, %d]: %w", year, s.minYear, s.maxYear, ErrYearOutOfRange)
	}
	return s.mutateErr(func(sel *models.FilterSelection) error {
		sel.Year = year
		return nil
	})
}

// SetMetricPair selects the comparison drawn by the bidirectional chart.
func (s *State) SetMetricPair(p models.MetricPair) (models.FilterSelection, error) {
	if !p.Valid() {
		return s.Get(), fmt.Errorf("%q: %w", p, ErrUnknownPair)
	}
	return s.mutateErr(func(sel *models.FilterSelection) error {
		sel.MetricPair = p
		return nil
	})
}

func (s *State) mutate(fn func(*models.FilterSelection) error) models.FilterSelection {
	sel, _ := s.mutateErr(fn)
	return sel
}

// mutateErr applies fn to a copy, commits it, then notifies listeners
// outside the lock so they may call Get. Listeners only run when the
// selection actually changed.
func (s *State) mutateErr(fn func(*models.FilterSelection) error) (models.FilterSelection, error) {
	s.mu.Lock()
	next := clone(s.sel)
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return clone(s.sel), err
	}
	changed := !equal(s.sel, next)
	s.sel = next
	listeners := append([]entry(nil), s.listeners...)
	s.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l.fn(clone(next))
		}
	}
	return clone(next), nil
}

// normalize enforces the Show All invariant. showAllActive tells whether
// Show All was the selection before this change.
func (s *State) normalize(selection []string, showAllActive bool) []string {
	seen := make(map[string]bool, len(selection))
	hasShowAll := false
	var specific []string
	for _, c := range selection {
		switch {
		case c == "":
		case c == models.ShowAll:
			hasShowAll = true
		case seen[c]:
		case s.known != nil && !s.known[c]:
		default:
			seen[c] = true
			specific = append(specific, c)
		}
	}

	if len(specific) == 0 || (hasShowAll && !showAllActive) {
		return []string{models.ShowAll}
	}
	return specific
}

func clone(sel models.FilterSelection) models.FilterSelection {
	sel.Countries = append([]string(nil), sel.Countries...)
	return sel
}

func equal(a, b models.FilterSelection) bool {
	if a.Attribute != b.Attribute || a.Year != b.Year || a.MetricPair != b.MetricPair {
		return false
	}
	if len(a.Countries) != len(b.Countries) {
		return false
	}
	for i := range a.Countries {
		if a.Countries[i] != b.Countries[i] {
			return false
		}
	}
	return true
}
