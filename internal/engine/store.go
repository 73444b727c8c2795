package engine

import (
	"sort"

	"roadsafety/internal/models"
)

// RecordStore holds the loaded records plus column indexes used by the
// aggregation loops. It is immutable after NewRecordStore.
type RecordStore struct {
	Records []models.Record

	// Columns (Struct-of-Arrays, one entry per record)
	Years      []int32
	CountryIDs []int32

	// Dictionary (ID -> country, sorted)
	CountryDict []string

	years []int
}

// NewRecordStore indexes records. The slice is retained, not copied.
func NewRecordStore(records []models.Record) *RecordStore {
	s := &RecordStore{
		Records:    records,
		Years:      make([]int32, len(records)),
		CountryIDs: make([]int32, len(records)),
	}

	seenCountry := make(map[string]struct{})
	seenYear := make(map[int]struct{})
	for _, r := range records {
		seenCountry[r.Country] = struct{}{}
		seenYear[r.Year] = struct{}{}
	}
	for c := range seenCountry {
		s.CountryDict = append(s.CountryDict, c)
	}
	sort.Strings(s.CountryDict)
	for y := range seenYear {
		s.years = append(s.years, y)
	}
	sort.Ints(s.years)

	ids := make(map[string]int32, len(s.CountryDict))
	for i, c := range s.CountryDict {
		ids[c] = int32(i)
	}
	for i, r := range records {
		s.Years[i] = int32(r.Year)
		s.CountryIDs[i] = ids[r.Country]
	}
	return s
}

// Countries returns the sorted distinct countries.
func (s *RecordStore) Countries() []string {
	return append([]string(nil), s.CountryDict...)
}

// YearsAvailable returns the sorted distinct years.
func (s *RecordStore) YearsAvailable() []int {
	return append([]int(nil), s.years...)
}

// YearRange returns the first and last year. ok is false for an empty store.
func (s *RecordStore) YearRange() (min, max int, ok bool) {
	if len(s.years) == 0 {
		return 0, 0, false
	}
	return s.years[0], s.years[len(s.years)-1], true
}

// HasCountry reports whether any record belongs to country.
func (s *RecordStore) HasCountry(country string) bool {
	i := sort.SearchStrings(s.CountryDict, country)
	return i < len(s.CountryDict) && s.CountryDict[i] == country
}

// ByYear returns the records observed in year, in load order.
func (s *RecordStore) ByYear(year int) []models.Record {
	var out []models.Record
	y := int32(year)
	for i, ry := range s.Years {
		if ry == y {
			out = append(out, s.Records[i])
		}
	}
	return out
}

// ByCountry returns the records of country, in load order.
func (s *RecordStore) ByCountry(country string) []models.Record {
	i := sort.SearchStrings(s.CountryDict, country)
	if i >= len(s.CountryDict) || s.CountryDict[i] != country {
		return nil
	}
	id := int32(i)
	var out []models.Record
	for j, cid := range s.CountryIDs {
		if cid == id {
			out = append(out, s.Records[j])
		}
	}
	return out
}

// Select returns the records whose country passes sel.
func (s *RecordStore) Select(sel models.FilterSelection) []models.Record {
	if sel.AllCountries() {
		return s.Records
	}
	want := make(map[int32]bool, len(sel.Countries))
	for _, c := range sel.Countries {
		i := sort.SearchStrings(s.CountryDict, c)
		if i < len(s.CountryDict) && s.CountryDict[i] == c {
			want[int32(i)] = true
		}
	}
	var out []models.Record
	for j, cid := range s.CountryIDs {
		if want[cid] {
			out = append(out, s.Records[j])
		}
	}
	return out
}
