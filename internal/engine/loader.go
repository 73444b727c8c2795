package engine

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"roadsafety/internal/logger"
	"roadsafety/internal/models"
)

// Load decodes a JSON array of row objects into records.
//
// Numeric fields are coerced leniently: numbers, numeric strings, "" and null
// are all accepted, and anything unparsable becomes an absent value. Only a
// malformed document is an error. Rows without a country or a usable year are
// skipped.
func Load(r io.Reader) ([]models.Record, error) {
	start := time.Now()

	var rows []map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	records := make([]models.Record, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		rec, ok := parseRow(row)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		logger.Log.WithField("skipped", skipped).Warn("dataset rows without country or year were dropped")
	}
	logger.Log.WithFields(logrus.Fields{
		"rows":    len(records),
		"elapsed": time.Since(start).String(),
	}).Info("dataset loaded")
	return records, nil
}

// LoadFile reads and decodes the dataset at path.
func LoadFile(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func parseRow(row map[string]json.RawMessage) (models.Record, bool) {
	var rec models.Record

	country, ok := parseString(row["country"])
	if !ok || country == "" {
		return rec, false
	}
	rec.Country = country

	year := models.ParseFloat(row["year"])
	if !year.Valid {
		return rec, false
	}
	rec.Year = int(year.Value)

	for _, code := range models.AttributeCodes {
		raw, present := row[code]
		if !present {
			continue
		}
		if code == models.AttrDPS {
			// dps is a 0/1 indicator; a literal 0 must stay distinguishable from missing.
			rec.DPS = models.ParseNullBool(raw)
			continue
		}
		rec.SetAttr(code, models.ParseFloat(raw))
	}
	return rec, true
}

func parseString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] != '"' {
		return string(raw), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// FilterData projects each record onto attrs, preserving row order.
// "country" and "year" may be requested alongside attribute codes; absent
// values project as nil and unknown names are left out.
func FilterData(records []models.Record, attrs []string) []map[string]any {
	out := make([]map[string]any, len(records))
	for i := range records {
		r := &records[i]
		m := make(map[string]any, len(attrs))
		for _, a := range attrs {
			switch a {
			case "country":
				m[a] = r.Country
			case "year":
				m[a] = r.Year
			default:
				if !models.IsAttribute(a) {
					continue
				}
				if v, ok := r.Value(a); ok {
					m[a] = v
				} else {
					m[a] = nil
				}
			}
		}
		out[i] = m
	}
	return out
}
