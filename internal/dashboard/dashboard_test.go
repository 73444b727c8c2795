package dashboard

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadsafety/internal/bus"
	"roadsafety/internal/catalog"
	"roadsafety/internal/engine"
	"roadsafety/internal/filter"
	"roadsafety/internal/models"
	"roadsafety/internal/view"
)

func fixture() []models.Record {
	r := func(c string, y int, fatal, inv, cgdp float64) models.Record {
		return models.Record{
			Country: c, Year: y,
			FatalPcKm: models.Some(fatal), CroadInvKm: models.Some(inv), Cgdp: models.Some(cgdp),
			PKm: models.Some(100), AccidAdjPcKm: models.Some(50), Alcohol: models.Some(fatal * 2),
		}
	}
	return []models.Record{
		r("France", 2000, 2, 10, 1000),
		r("France", 2001, 3, 30, 1100),
		r("France", 2002, 2.5, 35, 1150),
		r("Spain", 2000, 5, 5, 700),
		r("Spain", 2001, 4, 40, 800),
		r("Italy", 2002, 1, 12, 900),
	}
}

func newDashboard(t *testing.T, opts Options) *Dashboard {
	t.Helper()
	cat, err := catalog.New(nil)
	require.NoError(t, err)
	d, err := New(fixture(), nil, cat, opts)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

type eventLog struct {
	mu     sync.Mutex
	events []models.HighlightEvent
}

func (l *eventLog) handle(ev models.HighlightEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) on(ch string) []models.HighlightEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.HighlightEvent
	for _, ev := range l.events {
		if ev.Channel == ch {
			out = append(out, ev)
		}
	}
	return out
}

func TestNew_RendersEveryView(t *testing.T) {
	d := newDashboard(t, Options{})

	frames := d.Frames()
	require.Len(t, frames, 6)
	kinds := map[view.Kind]bool{}
	for _, f := range frames {
		assert.True(t, f.Rendered, f.ID)
		kinds[f.Kind] = true
	}
	assert.Len(t, kinds, 6)

	sel := d.Selection()
	assert.Equal(t, []string{models.ShowAll}, sel.Countries)
	assert.Equal(t, 2000, sel.Year)
	lo, hi := d.YearRange()
	assert.Equal(t, 2000, lo)
	assert.Equal(t, 2002, hi)
}

func TestNew_EmptyDataset(t *testing.T) {
	cat, err := catalog.New(nil)
	require.NoError(t, err)
	_, err = New(nil, nil, cat, Options{})
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestSetAttribute_RebuildsHeatmapAndPublishes(t *testing.T) {
	d := newDashboard(t, Options{})
	var log eventLog
	d.SubscribeAll(log.handle)

	before := d.Data()
	sel, err := d.SetAttribute(models.AttrAlcohol)
	require.NoError(t, err)
	assert.Equal(t, models.AttrAlcohol, sel.Attribute)

	after := d.Data()
	assert.Equal(t, models.AttrAlcohol, after.Heatmap.Attribute)
	// Datasets that do not depend on the attribute are reused
	assert.Same(t, before.Dual, after.Dual)
	assert.Same(t, before.Scatter, after.Scatter)

	// The earlier snapshot is untouched
	assert.Equal(t, models.AttrFatalPcKm, before.Heatmap.Attribute)

	events := log.on(bus.AttributeChanged)
	require.Len(t, events, 1)
	assert.Equal(t, models.AttrAlcohol, events[0].Attr)

	_, err = d.SetAttribute("bogus")
	assert.ErrorIs(t, err, catalog.ErrUnknownAttribute)
}

func TestSetCountries_FiltersScatter(t *testing.T) {
	d := newDashboard(t, Options{})

	assert.Len(t, d.Data().Scatter.Points, 6)

	sel, err := d.SetCountries([]string{"Spain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Spain"}, sel.Countries)

	data := d.Data()
	assert.Len(t, data.Scatter.Points, 2)
	for _, p := range data.Scatter.Points {
		assert.Equal(t, "Spain", p.Country)
	}

	// The scatter view was updated in place, not duplicated
	var scatter view.Frame
	for _, f := range d.Frames() {
		if f.Kind == view.KindScatter {
			scatter = f
		}
	}
	dots := 0
	for _, e := range scatter.Elements {
		if e.Series != "trend" {
			dots++
		}
	}
	assert.Equal(t, 2, dots)

	sel, err = d.ToggleCountry("Spain", false)
	require.NoError(t, err)
	assert.Equal(t, []string{models.ShowAll}, sel.Countries)
	assert.Len(t, d.Data().Scatter.Points, 6)
}

func TestSetYear_MovesMapsAndPublishes(t *testing.T) {
	d := newDashboard(t, Options{})
	var log eventLog
	d.SubscribeAll(log.handle)

	_, err := d.SetYear(2002)
	require.NoError(t, err)

	for _, f := range d.MapFrames() {
		assert.Equal(t, 2002, f.Year)
	}
	events := log.on(bus.YearChanged)
	require.Len(t, events, 1)
	assert.Equal(t, 2002, *events[0].Year)

	_, err = d.SetYear(1990)
	assert.ErrorIs(t, err, filter.ErrYearOutOfRange)
	assert.Equal(t, 2002, d.Selection().Year)
}

func TestSetMetricPair(t *testing.T) {
	d := newDashboard(t, Options{})
	_, err := d.SetMetricPair(models.PairInvestmentVsAccidents)
	require.NoError(t, err)
	assert.Equal(t, models.PairInvestmentVsAccidents, d.Data().Bidirectional.Pair)
}

func TestPublish_HighlightDimsLines(t *testing.T) {
	d := newDashboard(t, Options{})

	require.NoError(t, d.Publish(bus.Highlight, models.YearEvent(2001, true)))

	var lines view.Frame
	for _, f := range d.Frames() {
		if f.Kind == view.KindLine {
			lines = f
		}
	}
	require.NotEmpty(t, lines.Elements)
	for _, e := range lines.Elements {
		if e.Year == 2001 {
			assert.Equal(t, 1.0, e.Opacity)
		} else {
			assert.Equal(t, 0.2, e.Opacity)
		}
	}

	assert.ErrorIs(t, d.Publish("nope", models.HighlightEvent{}), bus.ErrUnknownChannel)
}

func TestPlay_StopsAtLastYear(t *testing.T) {
	d := newDashboard(t, Options{Interval: time.Millisecond})
	var log eventLog
	d.SubscribeAll(log.handle)

	require.NoError(t, d.Play())
	d.WaitPlayback()

	assert.False(t, d.Playing())
	assert.Equal(t, 2002, d.Selection().Year)
	var years []int
	for _, ev := range log.on(bus.YearChanged) {
		years = append(years, *ev.Year)
	}
	assert.Equal(t, []int{2001, 2002}, years)

	// Playing from the last year is a no-op
	require.NoError(t, d.Play())
	d.WaitPlayback()
	assert.Equal(t, 2002, d.Selection().Year)
}

func TestPlay_Stop(t *testing.T) {
	d := newDashboard(t, Options{Interval: time.Hour})

	require.NoError(t, d.Play())
	assert.Eventually(t, func() bool { return d.Selection().Year == 2001 }, time.Second, time.Millisecond)
	d.StopPlayback()
	d.WaitPlayback()
	assert.Equal(t, 2001, d.Selection().Year)
}

func TestMaps(t *testing.T) {
	d := newDashboard(t, Options{})

	first := d.MapFrames()
	require.Len(t, first, 1)
	assert.ErrorIs(t, d.DeleteMap(first[0].ID), view.ErrLastView)

	added, err := d.AddMap()
	require.NoError(t, err)
	assert.Equal(t, view.LayoutFor(2), *added.Layout)

	f, err := d.SetMapAttribute(added.ID, models.AttrCgdp)
	require.NoError(t, err)
	assert.Equal(t, models.AttrCgdp, f.Attribute)

	_, err = d.SetMapAttribute(added.ID, "bogus")
	assert.ErrorIs(t, err, catalog.ErrUnknownAttribute)
	_, err = d.SetMapAttribute("missing", models.AttrCgdp)
	assert.ErrorIs(t, err, view.ErrUnknownView)

	require.NoError(t, d.DeleteMap(added.ID))
	assert.Len(t, d.MapFrames(), 1)

	d.SetMapTitle("Over time")
	assert.Equal(t, "Over time", d.MapTitle())
}

func TestChoropleth_NoBoundariesUsesCountries(t *testing.T) {
	d := newDashboard(t, Options{})
	c, err := d.Choropleth(models.AttrFatalPcKm, 2001)
	require.NoError(t, err)
	assert.Len(t, c.Regions, 3)
	assert.Equal(t, 4.0, c.Max)

	_, err = d.Choropleth("bogus", 2001)
	assert.Error(t, err)
}

func TestScatterAxesAndLineCountry(t *testing.T) {
	d := newDashboard(t, Options{})

	require.NoError(t, d.SetScatterAxes(models.AttrCroadInvKm, models.AttrFatalPcKm))
	assert.Equal(t, models.AttrCroadInvKm, d.Data().Scatter.XKey)
	assert.ErrorIs(t, d.SetScatterAxes(models.AttrAlcohol, models.AttrFatalPcKm), ErrUnknownAxis)

	require.NoError(t, d.SetLineCountry("Spain"))
	assert.Equal(t, "Spain", d.Data().Lines.Country)
	require.NoError(t, d.SetLineCountry(engine.Overall))
	assert.ErrorIs(t, d.SetLineCountry("Atlantis"), filter.ErrUnknownCountry)
}

func TestClose(t *testing.T) {
	d := newDashboard(t, Options{Interval: time.Hour})
	require.NoError(t, d.Play())

	d.Close()
	d.Close()

	assert.False(t, d.Playing())
	_, err := d.SetYear(2001)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, d.Play(), ErrClosed)
}

func TestConcurrentAccess(t *testing.T) {
	d := newDashboard(t, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = d.SetYear(2000 + (i+j)%3)
				_ = d.Data()
				_ = d.Frames()
				_ = d.Publish(bus.CountryHovered, models.CountryEvent("France", j%2 == 0))
			}
		}(i)
	}
	wg.Wait()

	// Every map agrees with the selection once writers are done
	year := d.Selection().Year
	for _, f := range d.MapFrames() {
		assert.Equal(t, year, f.Year)
	}
}
