package engine

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"roadsafety/internal/models"
)

const sampleDataset = `[
 {"country":"France","year":2000,"fatal_pc_km":"2.0","cgdp":1500.5,"dps":0,"croad_inv_km":10},
 {"country":"France","year":"2001","fatal_pc_km":3,"cgdp":"n/a","dps":"1","croad_inv_km":20},
 {"country":"Spain","year":2000,"fatal_pc_km":5.0,"cgdp":null,"croad_inv_km":""},
 {"country":"","year":2000,"fatal_pc_km":1},
 {"country":"Italy","year":"soon"}
]`

func TestLoad(t *testing.T) {
	// 1. Run Loader
	records, err := Load(strings.NewReader(sampleDataset))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 2. Assertions

	// Rows without country or year are dropped
	if len(records) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(records))
	}

	// Row 0: numeric string and number both parse
	r0 := records[0]
	if r0.Country != "France" || r0.Year != 2000 {
		t.Errorf("Row 0 identity: got %s/%d", r0.Country, r0.Year)
	}
	if !r0.FatalPcKm.Valid || r0.FatalPcKm.Value != 2.0 {
		t.Errorf("Row 0 fatal_pc_km: got %+v", r0.FatalPcKm)
	}
	if !r0.Cgdp.Valid || r0.Cgdp.Value != 1500.5 {
		t.Errorf("Row 0 cgdp: got %+v", r0.Cgdp)
	}

	// Row 1: string year, unparsable cgdp becomes absent
	r1 := records[1]
	if r1.Year != 2001 {
		t.Errorf("Row 1 year: expected 2001, got %d", r1.Year)
	}
	if r1.Cgdp.Valid {
		t.Errorf("Row 1 cgdp should be absent, got %v", r1.Cgdp.Value)
	}

	// Row 2: null and empty string are absent; a missing field is absent
	r2 := records[2]
	if r2.Cgdp.Valid || r2.CroadInvKm.Valid || r2.Alcohol.Valid {
		t.Errorf("Row 2 expected absent values, got %+v", r2)
	}
}

func TestLoad_DemeritPointZeroIsNotMissing(t *testing.T) {
	records, err := Load(strings.NewReader(sampleDataset))
	if err != nil {
		t.Fatal(err)
	}

	// France 2000 has dps 0: present and false
	if !records[0].DPS.Valid || records[0].DPS.Bool {
		t.Errorf("dps 0: expected valid false, got %+v", records[0].DPS)
	}
	v, ok := records[0].Value(models.AttrDPS)
	if !ok || v != 0 {
		t.Errorf("dps 0 as value: got %v ok=%v", v, ok)
	}

	// France 2001 has dps "1"
	if !records[1].DPS.Valid || !records[1].DPS.Bool {
		t.Errorf("dps 1: expected valid true, got %+v", records[1].DPS)
	}

	// Spain has no dps
	if _, ok := records[2].Value(models.AttrDPS); ok {
		t.Error("missing dps should be absent")
	}
}

func TestLoad_NonFiniteIsMissing(t *testing.T) {
	const doc = `[
 {"country":"France","year":2000,"fatal_pc_km":"NaN","cgdp":"Inf","alcohol":"-Infinity","dps":"NaN"},
 {"country":"Spain","year":2000,"fatal_pc_km":2}
]`
	records, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(records))
	}

	fr := records[0]
	if fr.FatalPcKm.Valid || fr.Cgdp.Valid || fr.Alcohol.Valid || fr.DPS.Valid {
		t.Errorf("non-finite values should be absent, got %+v", fr)
	}

	// The mean skips the absent value instead of turning into NaN
	rows := GroupMeanByYear(records, models.AttrFatalPcKm)
	if got := rows[0].Values[models.AttrFatalPcKm]; !got.Valid || got.Value != 2 {
		t.Errorf("mean 2000: expected 2, got %+v", got)
	}

	// A non-finite value that slips in still encodes as valid JSON
	out, err := models.Some(math.NaN()).MarshalJSON()
	if err != nil || string(out) != "null" {
		t.Errorf("NaN marshal: got %s, %v", out, err)
	}
}

func TestLoad_MalformedDocument(t *testing.T) {
	if _, err := Load(strings.NewReader(`{"country": "France"`)); err == nil {
		t.Fatal("expected an error for a malformed document")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(sampleDataset), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(records))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestFilterData(t *testing.T) {
	records, err := Load(strings.NewReader(sampleDataset))
	if err != nil {
		t.Fatal(err)
	}

	out := FilterData(records, []string{"country", "year", models.AttrCgdp, "bogus"})
	if len(out) != len(records) {
		t.Fatalf("Expected %d rows, got %d", len(records), len(out))
	}

	// Order is preserved
	for i, row := range out {
		if row["country"] != records[i].Country {
			t.Errorf("Row %d: expected %s, got %v", i, records[i].Country, row["country"])
		}
	}

	if out[0][models.AttrCgdp] != 1500.5 {
		t.Errorf("Row 0 cgdp: got %v", out[0][models.AttrCgdp])
	}
	if v, present := out[1][models.AttrCgdp]; !present || v != nil {
		t.Errorf("Row 1 cgdp: expected explicit nil, got %v (present=%v)", v, present)
	}
	if _, present := out[0]["bogus"]; present {
		t.Error("unknown attributes must not be projected")
	}
	if _, present := out[0][models.AttrAlcohol]; present {
		t.Error("unrequested attributes must not be projected")
	}
}

func TestNewRecordStore(t *testing.T) {
	records, err := Load(strings.NewReader(sampleDataset))
	if err != nil {
		t.Fatal(err)
	}
	store := NewRecordStore(records)

	// Dictionary Checks
	if len(store.CountryDict) != 2 || store.CountryDict[0] != "France" || store.CountryDict[1] != "Spain" {
		t.Errorf("Unexpected country dictionary: %v", store.CountryDict)
	}
	lo, hi, ok := store.YearRange()
	if !ok || lo != 2000 || hi != 2001 {
		t.Errorf("YearRange: got %d..%d ok=%v", lo, hi, ok)
	}
	if got := len(store.ByYear(2000)); got != 2 {
		t.Errorf("ByYear(2000): expected 2, got %d", got)
	}
	if got := len(store.ByCountry("France")); got != 2 {
		t.Errorf("ByCountry(France): expected 2, got %d", got)
	}
	if store.ByCountry("Atlantis") != nil {
		t.Error("ByCountry of unknown country should be nil")
	}

	sel := models.FilterSelection{Countries: []string{"Spain"}}
	if got := store.Select(sel); len(got) != 1 || got[0].Country != "Spain" {
		t.Errorf("Select(Spain): got %+v", got)
	}
	all := models.FilterSelection{Countries: []string{models.ShowAll}}
	if got := store.Select(all); len(got) != 3 {
		t.Errorf("Select(Show All): expected 3, got %d", len(got))
	}
}
