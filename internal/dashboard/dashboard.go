// Package dashboard wires the record store, the shared filter, the event
// bus and the views into one consistent state.
//
// Every mutation runs under a single lock, and derived data is recomputed
// before the lock is released, so no reader ever sees a selection whose
// charts have not caught up.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"roadsafety/internal/bus"
	"roadsafety/internal/catalog"
	"roadsafety/internal/engine"
	"roadsafety/internal/filter"
	"roadsafety/internal/geo"
	"roadsafety/internal/logger"
	"roadsafety/internal/models"
	"roadsafety/internal/view"
)

var (
	ErrEmptyDataset = errors.New("dataset has no records")
	ErrUnknownAxis  = errors.New("unsupported scatter axis")
	ErrClosed       = errors.New("dashboard closed")
)

type Options struct {
	// Interval between playback steps. Zero means one second.
	Interval time.Duration
	Params   engine.ChartParams
}

type Dashboard struct {
	mu     sync.Mutex
	closed bool

	store   *engine.RecordStore
	catalog *catalog.Catalog
	bounds  *geo.Boundaries
	filter  *filter.State
	bus     *bus.Bus
	params  engine.ChartParams
	sel     models.FilterSelection
	data    models.DashboardData
	minYear int
	maxYear int

	heatmap   *view.Heatmap
	dual      *view.DualAxis
	scatter   *view.Scatter
	diverging *view.Diverging
	lines     *view.Line
	maps      *view.MultiView
	player    *view.Player

	ctx    context.Context
	cancel context.CancelFunc
	unsubs []func()
}

// New builds the dashboard over records and renders every view once.
func New(records []models.Record, bounds *geo.Boundaries, cat *catalog.Catalog, opts Options) (*Dashboard, error) {
	store := engine.NewRecordStore(records)
	minYear, maxYear, ok := store.YearRange()
	if !ok {
		return nil, ErrEmptyDataset
	}
	if opts.Params == (engine.ChartParams{}) {
		opts.Params = engine.DefaultChartParams()
	}

	d := &Dashboard{
		store:     store,
		catalog:   cat,
		bounds:    bounds,
		bus:       bus.New(),
		params:    opts.Params,
		minYear:   minYear,
		maxYear:   maxYear,
		heatmap:   view.NewHeatmap("heatmap"),
		dual:      view.NewDualAxis("dual"),
		scatter:   view.NewScatter("scatter"),
		diverging: view.NewDiverging("bidirectional"),
		lines:     view.NewLine("lines"),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.player = view.NewPlayer(opts.Interval, d.step)

	d.filter = filter.New(models.FilterSelection{
		Countries:  []string{models.ShowAll},
		Attribute:  models.AttrFatalPcKm,
		Year:       minYear,
		MetricPair: models.PairFatalitiesVsPassengerKm,
	},
		filter.WithAttributeValidator(cat.Validate),
		filter.WithCountries(store.Countries()),
		filter.WithYearRange(minYear, maxYear),
	)
	d.sel = d.filter.Get()
	d.data = *store.Aggregate(d.sel, d.params, cat)

	maps, err := view.NewMultiView(d.choropleth, d.bus, d.sel.Attribute, d.sel.Year)
	if err != nil {
		return nil, fmt.Errorf("render maps: %w", err)
	}
	d.maps = maps

	for _, err := range []error{
		d.heatmap.Render(d.data.Heatmap),
		d.dual.Render(d.data.Dual),
		d.scatter.Render(d.data.Scatter),
		d.diverging.Render(d.data.Bidirectional),
		d.lines.Render(d.data.Lines),
	} {
		if err != nil {
			return nil, fmt.Errorf("render views: %w", err)
		}
	}

	d.unsubs = append(d.unsubs,
		d.scatter.Attach(d.bus),
		d.lines.Attach(d.bus),
		d.filter.OnChange(d.onFilterChange),
	)

	logger.Log.WithFields(logrus.Fields{
		"records":   len(records),
		"countries": len(store.Countries()),
		"years":     fmt.Sprintf("%d-%d", minYear, maxYear),
	}).Info("dashboard ready")
	return d, nil
}

func (d *Dashboard) choropleth(attr string, year int) *models.ChoroplethData {
	var names []string
	if d.bounds != nil {
		names = d.bounds.Names()
	} else {
		names = d.store.Countries()
	}
	return d.store.Choropleth(attr, year, names, d.catalog)
}

// onFilterChange runs inside a filter mutation, which only ever happens
// with d.mu held. Only the datasets that depend on what changed are
// rebuilt.
func (d *Dashboard) onFilterChange(next models.FilterSelection) {
	prev := d.sel
	d.sel = next
	log := logger.Log.WithField("selection", fmt.Sprintf("%+v", next))

	if next.Attribute != prev.Attribute {
		d.data.Heatmap = d.store.Heatmap(next.Attribute, d.catalog)
		if err := d.heatmap.Update(d.data.Heatmap); err != nil {
			log.WithError(err).Error("heatmap update failed")
		}
	}
	if !slices.Equal(next.Countries, prev.Countries) {
		d.data.Scatter = d.store.Scatter(d.params.ScatterX, d.params.ScatterY, next)
		if err := d.scatter.Update(d.data.Scatter); err != nil {
			log.WithError(err).Error("scatter update failed")
		}
	}
	if next.MetricPair != prev.MetricPair {
		d.data.Bidirectional = d.store.Bidirectional(next.MetricPair)
		if err := d.diverging.Update(d.data.Bidirectional); err != nil {
			log.WithError(err).Error("bidirectional update failed")
		}
	}
	if next.Year != prev.Year {
		if err := d.maps.SetYear(next.Year); err != nil {
			log.WithError(err).Error("map year update failed")
		}
		d.publish(bus.YearChanged, models.YearEvent(next.Year, true))
	}
	if next.Attribute != prev.Attribute {
		d.publish(bus.AttributeChanged, models.HighlightEvent{Attr: next.Attribute, Active: true})
	}
	log.Debug("selection applied")
}

func (d *Dashboard) publish(ch string, ev models.HighlightEvent) {
	if err := d.bus.Publish(ch, ev); err != nil {
		logger.Log.WithField("channel", ch).WithError(err).Warn("event delivery incomplete")
	}
}

func (d *Dashboard) lock() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// Selection returns the current filter selection.
func (d *Dashboard) Selection() models.FilterSelection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter.Get()
}

func (d *Dashboard) SetCountries(countries []string) (models.FilterSelection, error) {
	if err := d.lock(); err != nil {
		return models.FilterSelection{}, err
	}
	defer d.mu.Unlock()
	return d.filter.SetCountries(countries), nil
}

func (d *Dashboard) ToggleCountry(country string, checked bool) (models.FilterSelection, error) {
	if err := d.lock(); err != nil {
		return models.FilterSelection{}, err
	}
	defer d.mu.Unlock()
	return d.filter.ToggleCountry(country, checked)
}

func (d *Dashboard) SetAttribute(code string) (models.FilterSelection, error) {
	if err := d.lock(); err != nil {
		return models.FilterSelection{}, err
	}
	defer d.mu.Unlock()
	return d.filter.SetAttribute(code)
}

func (d *Dashboard) SetYear(year int) (models.FilterSelection, error) {
	if err := d.lock(); err != nil {
		return models.FilterSelection{}, err
	}
	defer d.mu.Unlock()
	return d.filter.SetYear(year)
}

func (d *Dashboard) SetMetricPair(p models.MetricPair) (models.FilterSelection, error) {
	if err := d.lock(); err != nil {
		return models.FilterSelection{}, err
	}
	defer d.mu.Unlock()
	return d.filter.SetMetricPair(p)
}

// SetScatterAxes changes the scatter plot's measures.
func (d *Dashboard) SetScatterAxes(x, y string) error {
	if !slices.Contains(engine.ScatterXKeys, x) {
		return fmt.Errorf("x %q: %w", x, ErrUnknownAxis)
	}
	if !slices.Contains(engine.ScatterYKeys, y) {
		return fmt.Errorf("y %q: %w", y, ErrUnknownAxis)
	}
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()

	d.params.ScatterX, d.params.ScatterY = x, y
	d.data.Scatter = d.store.Scatter(x, y, d.sel)
	return d.scatter.Update(d.data.Scatter)
}

// SetLineCountry switches the line charts between the overall means and
// one country.
func (d *Dashboard) SetLineCountry(country string) error {
	if country != engine.Overall && !d.store.HasCountry(country) {
		return fmt.Errorf("%q: %w", country, filter.ErrUnknownCountry)
	}
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()

	d.params.LineCountry = country
	d.data.Lines = d.store.Lines(country)
	return d.lines.Update(d.data.Lines)
}

// Data returns the current chart datasets. The datasets are replaced, never
// modified, so the result stays valid after later changes.
func (d *Dashboard) Data() models.DashboardData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data
}

// Choropleth computes the map data for attr and year.
func (d *Dashboard) Choropleth(attr string, year int) (*models.ChoroplethData, error) {
	if err := d.catalog.Validate(attr); err != nil {
		return nil, err
	}
	return d.choropleth(attr, year), nil
}

// Frames returns a snapshot of every view.
func (d *Dashboard) Frames() []view.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	frames := []view.Frame{
		d.heatmap.Frame(),
		d.dual.Frame(),
		d.scatter.Frame(),
		d.diverging.Frame(),
		d.lines.Frame(),
	}
	return append(frames, d.maps.Frames()...)
}

func (d *Dashboard) MapFrames() []view.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maps.Frames()
}

func (d *Dashboard) AddMap() (view.Frame, error) {
	if err := d.lock(); err != nil {
		return view.Frame{}, err
	}
	defer d.mu.Unlock()
	v, err := d.maps.Add()
	if err != nil {
		return view.Frame{}, err
	}
	return v.Frame(), nil
}

func (d *Dashboard) DeleteMap(id string) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	return d.maps.Delete(id)
}

// SetMapAttribute recolors one map for attr.
func (d *Dashboard) SetMapAttribute(id, attr string) (view.Frame, error) {
	if err := d.catalog.Validate(attr); err != nil {
		return view.Frame{}, err
	}
	if err := d.lock(); err != nil {
		return view.Frame{}, err
	}
	defer d.mu.Unlock()
	v, err := d.maps.View(id)
	if err != nil {
		return view.Frame{}, err
	}
	if err := v.SetAttribute(attr); err != nil {
		return view.Frame{}, err
	}
	return v.Frame(), nil
}

func (d *Dashboard) SetMapTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maps.SetTitle(title)
}

func (d *Dashboard) MapTitle() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maps.Title()
}

// Publish delivers a transient event to every subscribed view.
func (d *Dashboard) Publish(ch string, ev models.HighlightEvent) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	return d.bus.Publish(ch, ev)
}

// SubscribeAll forwards every bus event to fn. fn runs with the dashboard
// locked and must not block or call back into the dashboard.
func (d *Dashboard) SubscribeAll(fn bus.Handler) (unsubscribe func()) {
	return d.bus.SubscribeAll(fn)
}

// Play advances the shared year once per interval up to the last year.
// Playing from the last year does nothing.
func (d *Dashboard) Play() error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.player.Play(d.ctx, d.sel.Year, d.maxYear)
	return nil
}

func (d *Dashboard) StopPlayback() {
	d.player.Stop()
}

func (d *Dashboard) Playing() bool {
	return d.player.Playing()
}

// WaitPlayback blocks until the current playback has finished.
func (d *Dashboard) WaitPlayback() {
	d.player.Wait()
}

func (d *Dashboard) step(ctx context.Context, year int) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.filter.SetYear(year)
	return err
}

// YearRange is the first and last year in the dataset.
func (d *Dashboard) YearRange() (int, int) {
	return d.minYear, d.maxYear
}

// Store is the read-only record store.
func (d *Dashboard) Store() *engine.RecordStore {
	return d.store
}

func (d *Dashboard) Catalog() *catalog.Catalog {
	return d.catalog
}

func (d *Dashboard) Boundaries() *geo.Boundaries {
	return d.bounds
}

// Close stops playback and detaches every view. It waits for an in-flight
// playback step to finish.
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.cancel()
	d.player.Stop()
	d.maps.Close()
	for _, unsub := range d.unsubs {
		unsub()
	}
	d.unsubs = nil
	d.mu.Unlock()

	d.player.Wait()
}
