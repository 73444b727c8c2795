package engine

import (
	"sort"
	"sync"

	"roadsafety/internal/geo"
	"roadsafety/internal/models"
)

// Overall selects the all-countries series in the line charts.
const Overall = "Overall"

// Axis choices offered by the scatter plot.
var (
	ScatterXKeys = []string{models.AttrCgdp, models.AttrPopulat, models.AttrDenPopulat, models.AttrCroadInvKm}
	ScatterYKeys = []string{models.AttrFatalPcKm, models.AttrAccidAdjPcKm, models.AttrCroadInvKm}
)

// LineKeys are the measures drawn by the three line charts.
var LineKeys = []string{models.AttrFatalPcKm, models.AttrAccidAdjPcKm, models.AttrCroadInvKm}

// Labeler resolves attribute labels.
type Labeler interface {
	Label(code string) string
}

// ChartParams carries the per-view choices that are not part of the shared
// FilterSelection.
type ChartParams struct {
	ScatterX    string
	ScatterY    string
	LineCountry string
}

// DefaultChartParams matches the initial state of the dashboard.
func DefaultChartParams() ChartParams {
	return ChartParams{ScatterX: models.AttrCgdp, ScatterY: models.AttrFatalPcKm, LineCountry: Overall}
}

// Aggregate builds every chart dataset for sel. The builders only read the
// store, so they run concurrently.
func (s *RecordStore) Aggregate(sel models.FilterSelection, params ChartParams, labels Labeler) *models.DashboardData {
	data := &models.DashboardData{}

	var wg sync.WaitGroup
	wg.Add(5)
	go func() { defer wg.Done(); data.Heatmap = s.Heatmap(sel.Attribute, labels) }()
	go func() { defer wg.Done(); data.Dual = s.Dual() }()
	go func() { defer wg.Done(); data.Scatter = s.Scatter(params.ScatterX, params.ScatterY, sel) }()
	go func() { defer wg.Done(); data.Bidirectional = s.Bidirectional(sel.MetricPair) }()
	go func() { defer wg.Done(); data.Lines = s.Lines(params.LineCountry) }()
	wg.Wait()

	return data
}

// Heatmap pivots attr by country and year over the full dataset. Every
// country gets a row so the grid stays rectangular.
func (s *RecordStore) Heatmap(attr string, labels Labeler) *models.HeatmapData {
	pivot := BackfillRows(Pivot(s.Records, attr), s.CountryDict)
	return &models.HeatmapData{
		Attribute: attr,
		Label:     labels.Label(attr),
		Countries: s.Countries(),
		Years:     s.YearsAvailable(),
		Pivot:     pivot,
	}
}

// Dual builds the investment/fatality time series and the heatmap of
// countries whose investment is below the median.
func (s *RecordStore) Dual() *models.DualData {
	split := MedianThresholdSplit(s.Records, models.AttrCroadInvKm)
	low := BackfillRows(Pivot(split.Below, models.AttrFatalPcKm), s.CountryDict)
	return &models.DualData{
		BarKey:     models.AttrCroadInvKm,
		LineKey:    models.AttrFatalPcKm,
		TimeSeries: GroupMeanByYear(s.Records, models.AttrCroadInvKm, models.AttrFatalPcKm),
		Threshold:  split.Median.Value,
		LowPivot:   low,
		Countries:  s.Countries(),
	}
}

// Scatter pairs xKey and yKey for the selected countries and fits a trend.
// Records lacking either value are left out.
func (s *RecordStore) Scatter(xKey, yKey string, sel models.FilterSelection) *models.ScatterData {
	records := s.Select(sel)
	data := &models.ScatterData{
		XKey:      xKey,
		YKey:      yKey,
		Countries: append([]string(nil), sel.Countries...),
		Points:    make([]models.ScatterPoint, 0, len(records)),
		Trend:     []models.Point{},
	}

	pts := make([]models.Point, 0, len(records))
	for i := range records {
		r := &records[i]
		x, okX := r.Value(xKey)
		y, okY := r.Value(yKey)
		if !okX || !okY {
			continue
		}
		data.Points = append(data.Points, models.ScatterPoint{Country: r.Country, Year: r.Year, X: x, Y: y})
		pts = append(pts, models.Point{X: x, Y: y})
	}

	if reg, ok := LinearRegression(pts); ok {
		data.Slope = &reg.Slope
		data.Intercept = &reg.Intercept
		data.Trend = reg.Trend
	}
	return data
}

type pairSpec struct {
	leftKey, rightKey  string
	title, left, right string
}

var pairs = map[models.MetricPair]pairSpec{
	models.PairFatalitiesVsPassengerKm: {
		leftKey: models.AttrFatalPcKm, rightKey: models.AttrPKm,
		title: "Fatalities per Km vs. Passenger Km", left: "Fatalities per Km", right: "Passenger Km",
	},
	models.PairInvestmentVsAccidents: {
		leftKey: models.AttrAccidAdjPcKm, rightKey: models.AttrCroadInvKm,
		title: "Investment vs. Accidents (Per Km)", left: "Accidents per Km", right: "Investment per Km (€)",
	},
}

// Bidirectional averages the pair's two measures per country, rounded to two
// decimals. Countries missing either mean are dropped. Unknown pairs fall
// back to fatalities vs passenger-km.
func (s *RecordStore) Bidirectional(pair models.MetricPair) *models.BidirectionalData {
	if !pair.Valid() {
		pair = models.PairFatalitiesVsPassengerKm
	}
	spec := pairs[pair]
	data := &models.BidirectionalData{
		Pair:       pair,
		Title:      spec.title,
		LeftLabel:  spec.left,
		RightLabel: spec.right,
		Rows:       []models.DivergingRow{},
	}
	for _, agg := range GroupMeanByCountry(s.Records, spec.leftKey, spec.rightKey) {
		l, r := agg.Values[spec.leftKey], agg.Values[spec.rightKey]
		if !l.Valid || !r.Valid {
			continue
		}
		data.Rows = append(data.Rows, models.DivergingRow{
			Country: agg.Country,
			Left:    Round(l.Value, 2),
			Right:   Round(r.Value, 2),
		})
	}
	return data
}

// Lines returns the per-year means over all countries for Overall (or ""),
// otherwise the chosen country's own rows sorted by year.
func (s *RecordStore) Lines(country string) *models.LinesData {
	if country == "" {
		country = Overall
	}
	data := &models.LinesData{Country: country, Keys: append([]string(nil), LineKeys...)}
	if country == Overall {
		data.Rows = GroupMeanByYear(s.Records, LineKeys...)
		return data
	}

	records := s.ByCountry(country)
	sort.SliceStable(records, func(i, j int) bool { return records[i].Year < records[j].Year })
	data.Rows = make([]models.AggregateRow, 0, len(records))
	for i := range records {
		values := make(map[string]models.Float, len(LineKeys))
		for _, k := range LineKeys {
			values[k] = records[i].Attr(k)
		}
		data.Rows = append(data.Rows, models.AggregateRow{Year: records[i].Year, Values: values})
	}
	return data
}

// YearValues maps country -> attr for one year. Duplicate rows are averaged.
func (s *RecordStore) YearValues(attr string, year int) map[string]float64 {
	pivot := Pivot(s.ByYear(year), attr)
	out := make(map[string]float64, len(pivot))
	for country, cells := range pivot {
		if v, ok := cells[year]; ok {
			out[country] = v
		}
	}
	return out
}

// Choropleth resolves attr in year for every boundary name, comparing with
// the previous year. Names matching no country are reported as no data.
func (s *RecordStore) Choropleth(attr string, year int, names []string, labels Labeler) *models.ChoroplethData {
	current := s.YearValues(attr, year)
	previous := s.YearValues(attr, year-1)

	data := &models.ChoroplethData{
		Attribute: attr,
		Label:     labels.Label(attr),
		Year:      year,
		Regions:   make([]models.Region, 0, len(names)),
	}
	// The colour scale spans the year's values; a year without values gets [0, 1].
	first := true
	for _, v := range current {
		if first || v > data.Max {
			data.Max = v
		}
		if first || v < data.Min {
			data.Min = v
		}
		first = false
	}
	if first {
		data.Max = 1
	}

	for _, name := range names {
		region := models.Region{Name: name}
		if v, ok := geo.Match(name, current); ok {
			region.Value = models.Some(v)
		}
		if v, ok := geo.Match(name, previous); ok {
			region.Previous = models.Some(v)
		}
		region.Change = compare(region.Value, region.Previous)
		data.Regions = append(data.Regions, region)
	}
	return data
}

func compare(cur, prev models.Float) models.Change {
	switch {
	case !cur.Valid || !prev.Valid:
		return models.ChangeNone
	case cur.Value > prev.Value:
		return models.ChangeUp
	case cur.Value < prev.Value:
		return models.ChangeDown
	default:
		return models.ChangeSame
	}
}
