package models

// DashboardData bundles every chart dataset for the current selection.
type DashboardData struct {
	Heatmap       *HeatmapData       `json:"heatmap"`
	Dual          *DualData          `json:"dual"`
	Scatter       *ScatterData       `json:"scatter"`
	Bidirectional *BidirectionalData `json:"bidirectional"`
	Lines         *LinesData         `json:"lines"`
}

type HeatmapData struct {
	Attribute string     `json:"attribute"`
	Label     string     `json:"label"`
	Countries []string   `json:"countries"`
	Years     []int      `json:"years"`
	Pivot     PivotTable `json:"pivot"`
}

// DualData feeds the bar+line chart (per-year means) and the
// low-investment heatmap next to it.
type DualData struct {
	BarKey     string         `json:"bar_key"`
	LineKey    string         `json:"line_key"`
	TimeSeries []AggregateRow `json:"time_series"`
	Threshold  float64        `json:"threshold"`
	LowPivot   PivotTable     `json:"low_investment_pivot"`
	Countries  []string       `json:"countries"`
}

type ScatterPoint struct {
	Country string  `json:"country"`
	Year    int     `json:"year"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type ScatterData struct {
	XKey      string         `json:"x_key"`
	YKey      string         `json:"y_key"`
	Countries []string       `json:"countries"`
	Points    []ScatterPoint `json:"points"`
	Slope     *float64       `json:"slope,omitempty"`
	Intercept *float64       `json:"intercept,omitempty"`
	Trend     []Point        `json:"trend"`
}

type DivergingRow struct {
	Country string  `json:"country"`
	Left    float64 `json:"left"`
	Right   float64 `json:"right"`
}

type BidirectionalData struct {
	Pair       MetricPair     `json:"pair"`
	Title      string         `json:"title"`
	LeftLabel  string         `json:"left_label"`
	RightLabel string         `json:"right_label"`
	Rows       []DivergingRow `json:"rows"`
}

// LinesData is either the "Overall" per-year means or one country's series.
type LinesData struct {
	Country string         `json:"country"`
	Keys    []string       `json:"keys"`
	Rows    []AggregateRow `json:"rows"`
}

// Change describes how a value moved against the previous year.
type Change string

const (
	ChangeNone Change = "none"
	ChangeUp   Change = "up"
	ChangeDown Change = "down"
	ChangeSame Change = "same"
)

type Region struct {
	Name     string `json:"name"`
	Value    Float  `json:"value"`
	Previous Float  `json:"previous"`
	Change   Change `json:"change"`
}

type ChoroplethData struct {
	Attribute string   `json:"attribute"`
	Label     string   `json:"label"`
	Year      int      `json:"year"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	Regions   []Region `json:"regions"`
}
