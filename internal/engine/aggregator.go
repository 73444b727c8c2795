package engine

import (
	"math"
	"sort"

	"roadsafety/internal/models"
)

// Aggregations are pure: they never modify their input and give the same
// result for any ordering of it.

type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(v float64) {
	m.sum += v
	m.n++
}

func (m meanAcc) float() models.Float {
	if m.n == 0 {
		return models.None
	}
	return models.Some(m.sum / float64(m.n))
}

// GroupMeanByYear averages each key per year, ignoring absent values.
// A year in which a key is always absent carries an absent value for it.
// Rows are sorted by ascending year.
func GroupMeanByYear(records []models.Record, keys ...string) []models.AggregateRow {
	// 1. Accumulate
	acc := make(map[int][]meanAcc)
	for i := range records {
		r := &records[i]
		row, ok := acc[r.Year]
		if !ok {
			row = make([]meanAcc, len(keys))
			acc[r.Year] = row
		}
		for k, key := range keys {
			if v, ok := r.Value(key); ok {
				row[k].add(v)
			}
		}
	}

	// 2. Build & sort
	out := make([]models.AggregateRow, 0, len(acc))
	for year, row := range acc {
		values := make(map[string]models.Float, len(keys))
		for k, key := range keys {
			values[key] = row[k].float()
		}
		out = append(out, models.AggregateRow{Year: year, Values: values})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// GroupMeanByCountry averages each key per country. Countries keep the order
// of their first appearance in records; use SortCountryAggregates for a
// stable order independent of input.
func GroupMeanByCountry(records []models.Record, keys ...string) []models.CountryAggregate {
	index := make(map[string]int)
	var order []string
	var accs [][]meanAcc
	for i := range records {
		r := &records[i]
		idx, ok := index[r.Country]
		if !ok {
			idx = len(order)
			index[r.Country] = idx
			order = append(order, r.Country)
			accs = append(accs, make([]meanAcc, len(keys)))
		}
		for k, key := range keys {
			if v, ok := r.Value(key); ok {
				accs[idx][k].add(v)
			}
		}
	}

	out := make([]models.CountryAggregate, len(order))
	for i, c := range order {
		values := make(map[string]models.Float, len(keys))
		for k, key := range keys {
			values[key] = accs[i][k].float()
		}
		out[i] = models.CountryAggregate{Country: c, Values: values}
	}
	return out
}

// SortCountryAggregates orders rows by country name.
func SortCountryAggregates(rows []models.CountryAggregate) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Country < rows[j].Country })
}

// Pivot builds country -> year -> mean(valueKey).
func Pivot(records []models.Record, valueKey string) models.PivotTable {
	return PivotBy(records,
		func(r *models.Record) string { return r.Country },
		func(r *models.Record) int { return r.Year },
		valueKey)
}

// PivotBy builds rowKey -> colKey -> mean(valueKey). Every row key seen in
// records gets an entry; cells with no present value are omitted rather
// than zero-filled.
func PivotBy(records []models.Record, rowKey func(*models.Record) string, colKey func(*models.Record) int, valueKey string) models.PivotTable {
	acc := make(map[string]map[int]*meanAcc)
	for i := range records {
		r := &records[i]
		row := rowKey(r)
		cells, ok := acc[row]
		if !ok {
			cells = make(map[int]*meanAcc)
			acc[row] = cells
		}
		v, ok := r.Value(valueKey)
		if !ok {
			continue
		}
		col := colKey(r)
		c, ok := cells[col]
		if !ok {
			c = &meanAcc{}
			cells[col] = c
		}
		c.add(v)
	}

	out := make(models.PivotTable, len(acc))
	for row, cells := range acc {
		m := make(map[int]float64, len(cells))
		for col, c := range cells {
			m[col] = c.sum / float64(c.n)
		}
		out[row] = m
	}
	return out
}

// BackfillRows returns a copy of pivot that has an entry for every key in
// allRowKeys, defaulting to an empty inner map. Rows of pivot that are not
// in allRowKeys are kept.
func BackfillRows(pivot models.PivotTable, allRowKeys []string) models.PivotTable {
	out := make(models.PivotTable, len(pivot)+len(allRowKeys))
	for row, cells := range pivot {
		m := make(map[int]float64, len(cells))
		for col, v := range cells {
			m[col] = v
		}
		out[row] = m
	}
	for _, k := range allRowKeys {
		if _, ok := out[k]; !ok {
			out[k] = map[int]float64{}
		}
	}
	return out
}

// PivotColumns returns the sorted distinct column keys of a pivot.
func PivotColumns(pivot models.PivotTable) []int {
	seen := make(map[int]struct{})
	for _, cells := range pivot {
		for col := range cells {
			seen[col] = struct{}{}
		}
	}
	cols := make([]int, 0, len(seen))
	for c := range seen {
		cols = append(cols, c)
	}
	sort.Ints(cols)
	return cols
}

// PivotRows returns the sorted row keys of a pivot.
func PivotRows(pivot models.PivotTable) []string {
	rows := make([]string, 0, len(pivot))
	for r := range pivot {
		rows = append(rows, r)
	}
	sort.Strings(rows)
	return rows
}

// Split is the result of MedianThresholdSplit.
type Split struct {
	Median       models.Float
	Below        []models.Record
	AboveOrEqual []models.Record
	// Missing holds records without a value for the split key.
	Missing []models.Record
}

// MedianThresholdSplit partitions records around the median of valueKey.
// Partitions keep the input order.
func MedianThresholdSplit(records []models.Record, valueKey string) Split {
	var values []float64
	for i := range records {
		if v, ok := records[i].Value(valueKey); ok {
			values = append(values, v)
		}
	}
	split := Split{Median: Median(values)}
	for i := range records {
		v, ok := records[i].Value(valueKey)
		switch {
		case !ok || !split.Median.Valid:
			split.Missing = append(split.Missing, records[i])
		case v < split.Median.Value:
			split.Below = append(split.Below, records[i])
		default:
			split.AboveOrEqual = append(split.AboveOrEqual, records[i])
		}
	}
	return split
}

// Median returns the statistical median; for an even count it is the mean of
// the two middle values. values is not modified.
func Median(values []float64) models.Float {
	n := len(values)
	if n == 0 {
		return models.None
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	if n%2 == 1 {
		return models.Some(s[n/2])
	}
	return models.Some((s[n/2-1] + s[n/2]) / 2)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
