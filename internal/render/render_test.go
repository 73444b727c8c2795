package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadsafety/internal/models"
)

type codeLabels struct{}

func (codeLabels) Label(code string) string { return code }

func isSVG(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	out := buf.String()
	assert.True(t, strings.Contains(out, "<svg"), "expected SVG output, got %.60q", out)
	assert.True(t, strings.Contains(out, "</svg>"))
}

func row(year int, vals map[string]float64) models.AggregateRow {
	r := models.AggregateRow{Year: year, Values: map[string]models.Float{}}
	for k, v := range vals {
		r.Values[k] = models.Some(v)
	}
	return r
}

func TestLine(t *testing.T) {
	d := &models.LinesData{
		Country: "Overall",
		Keys:    []string{models.AttrFatalPcKm, models.AttrCroadInvKm},
		Rows: []models.AggregateRow{
			row(2000, map[string]float64{models.AttrFatalPcKm: 3.5, models.AttrCroadInvKm: 7.5}),
			row(2001, map[string]float64{models.AttrFatalPcKm: 3.0}),
			row(2002, map[string]float64{models.AttrFatalPcKm: 2.4, models.AttrCroadInvKm: 20}),
		},
	}
	var buf bytes.Buffer
	require.NoError(t, Line(&buf, d, codeLabels{}))
	isSVG(t, &buf)
	assert.Contains(t, buf.String(), models.AttrCroadInvKm)
}

func TestLine_SinglePoint(t *testing.T) {
	d := &models.LinesData{
		Country: "Italy",
		Keys:    []string{models.AttrFatalPcKm},
		Rows:    []models.AggregateRow{row(2001, map[string]float64{models.AttrFatalPcKm: 1})},
	}
	var buf bytes.Buffer
	require.NoError(t, Line(&buf, d, codeLabels{}))
	isSVG(t, &buf)
}

func TestLine_NoData(t *testing.T) {
	d := &models.LinesData{Keys: []string{models.AttrFatalPcKm}, Rows: []models.AggregateRow{{Year: 2000}}}
	assert.ErrorIs(t, Line(&bytes.Buffer{}, d, codeLabels{}), ErrNoData)
	assert.ErrorIs(t, Line(&bytes.Buffer{}, nil, codeLabels{}), ErrNoData)
}

func TestScatter_WithTrend(t *testing.T) {
	d := &models.ScatterData{
		XKey: models.AttrCgdp,
		YKey: models.AttrFatalPcKm,
		Points: []models.ScatterPoint{
			{Country: "France", Year: 2000, X: 1000, Y: 2},
			{Country: "Spain", Year: 2000, X: 700, Y: 5},
			{Country: "Spain", Year: 2001, X: 800, Y: 4},
		},
		Trend: []models.Point{{X: 1000, Y: 2.1}, {X: 700, Y: 4.9}, {X: 800, Y: 4}},
	}
	var buf bytes.Buffer
	require.NoError(t, Scatter(&buf, d, codeLabels{}))
	isSVG(t, &buf)
	assert.Contains(t, buf.String(), "Trend")
}

func TestScatter_Empty(t *testing.T) {
	assert.ErrorIs(t, Scatter(&bytes.Buffer{}, &models.ScatterData{}, codeLabels{}), ErrNoData)
}

func TestBars(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Bars(&buf, "Investment", []Bar{{"2000", 7.5}, {"2001", 35}}))
	isSVG(t, &buf)

	// Equal values must still draw
	buf.Reset()
	require.NoError(t, Bars(&buf, "Flat", []Bar{{"a", 0}, {"b", 0}}))
	isSVG(t, &buf)

	assert.ErrorIs(t, Bars(&bytes.Buffer{}, "None", nil), ErrNoData)
}

func TestBarConverters(t *testing.T) {
	dual := &models.DualData{
		BarKey: models.AttrCroadInvKm,
		TimeSeries: []models.AggregateRow{
			row(2000, map[string]float64{models.AttrCroadInvKm: 7.5}),
			{Year: 2001, Values: map[string]models.Float{}},
		},
	}
	assert.Equal(t, []Bar{{"2000", 7.5}}, DualBars(dual))

	choro := &models.ChoroplethData{Regions: []models.Region{
		{Name: "France", Value: models.Some(3)},
		{Name: "Norway"},
	}}
	assert.Equal(t, []Bar{{"France", 3}}, ChoroplethBars(choro))

	bi := &models.BidirectionalData{LeftLabel: "L", RightLabel: "R", Rows: []models.DivergingRow{{Country: "France", Left: 2.5, Right: 105}}}
	assert.Equal(t, []Bar{{"France (L)", -2.5}, {"France (R)", 105}}, DivergingBars(bi))

	heat := &models.HeatmapData{
		Countries: []string{"France", "Italy"},
		Pivot:     models.PivotTable{"France": {2000: 2, 2001: 3}, "Italy": {}},
	}
	assert.Equal(t, []Bar{{"France", 2.5}}, HeatmapBars(heat))

	assert.Nil(t, DualBars(nil))
}
