package models

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// ShowAll is the country-selection sentinel meaning "do not filter by country".
const ShowAll = "Show All"

// Float is a numeric attribute that may be absent.
type Float struct {
	Value float64
	Valid bool
}

// Some returns a present Float.
func Some(v float64) Float { return Float{Value: v, Valid: true} }

// None is the absent Float.
var None = Float{}

// MarshalJSON writes null for absent and non-finite values.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid || math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f.Value, 'g', -1, 64), nil
}

// UnmarshalJSON accepts numbers, numeric strings, empty strings and null.
// Anything it cannot parse becomes absent instead of an error.
func (f *Float) UnmarshalJSON(b []byte) error {
	*f = ParseFloat(b)
	return nil
}

// ParseFloat coerces a raw JSON token into a Float. NaN and infinities
// count as unparsable.
func ParseFloat(b []byte) Float {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return None
	}
	s := string(b)
	if b[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return None
		}
		s = strings.TrimSpace(unq)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return None
	}
	return Some(v)
}

// NullBool is a boolean indicator that may be absent. It is used for the
// demerit-point system flag so that "no" (0) is never confused with missing.
type NullBool struct {
	Bool  bool
	Valid bool
}

func (n NullBool) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	if n.Bool {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON reads 0/1 (as numbers, strings or booleans). Any non-zero
// number is true.
func (n *NullBool) UnmarshalJSON(b []byte) error {
	*n = ParseNullBool(b)
	return nil
}

// ParseNullBool coerces a raw JSON token into a NullBool. Unparsable input
// is absent.
func ParseNullBool(b []byte) NullBool {
	switch string(bytes.TrimSpace(b)) {
	case "true":
		return NullBool{Bool: true, Valid: true}
	case "false":
		return NullBool{Valid: true}
	}
	f := ParseFloat(b)
	if !f.Valid {
		return NullBool{}
	}
	return NullBool{Bool: f.Value != 0, Valid: true}
}

// Float returns the indicator as 0/1.
func (n NullBool) Float() Float {
	if !n.Valid {
		return None
	}
	if n.Bool {
		return Some(1)
	}
	return Some(0)
}

// Record is one country-year observation. Records are never mutated after load.
type Record struct {
	Country      string   `json:"country"`
	Year         int      `json:"year"`
	FatalPcKm    Float    `json:"fatal_pc_km"`
	FatalMIn     Float    `json:"fatal_mIn"`
	AccidAdjPcKm Float    `json:"accid_adj_pc_km"`
	PKm          Float    `json:"p_km"`
	CroadInvKm   Float    `json:"croad_inv_km"`
	CroadMaintKm Float    `json:"croad_maint_km"`
	PropMotorwa  Float    `json:"prop_motorwa"`
	Populat      Float    `json:"populat"`
	Unemploy     Float    `json:"unemploy"`
	PetrolCar    Float    `json:"petrol_car"`
	Alcohol      Float    `json:"alcohol"`
	MotIndex1000 Float    `json:"mot_index_1000"`
	DenPopulat   Float    `json:"den_populat"`
	Cgdp         Float    `json:"cgdp"`
	CgdpCap      Float    `json:"cgdp_cap"`
	Precipit     Float    `json:"precipit"`
	PropElder    Float    `json:"prop_elder"`
	DPS          NullBool `json:"dps"`
	Freight      Float    `json:"freight"`
}

// Attribute codes.
const (
	AttrFatalPcKm    = "fatal_pc_km"
	AttrFatalMIn     = "fatal_mIn"
	AttrAccidAdjPcKm = "accid_adj_pc_km"
	AttrPKm          = "p_km"
	AttrCroadInvKm   = "croad_inv_km"
	AttrCroadMaintKm = "croad_maint_km"
	AttrPropMotorwa  = "prop_motorwa"
	AttrPopulat      = "populat"
	AttrUnemploy     = "unemploy"
	AttrPetrolCar    = "petrol_car"
	AttrAlcohol      = "alcohol"
	AttrMotIndex1000 = "mot_index_1000"
	AttrDenPopulat   = "den_populat"
	AttrCgdp         = "cgdp"
	AttrCgdpCap      = "cgdp_cap"
	AttrPrecipit     = "precipit"
	AttrPropElder    = "prop_elder"
	AttrDPS          = "dps"
	AttrFreight      = "freight"
)

// AttributeCodes lists every numeric attribute in source column order.
var AttributeCodes = []string{
	AttrFatalPcKm, AttrFatalMIn, AttrAccidAdjPcKm, AttrPKm, AttrCroadInvKm,
	AttrCroadMaintKm, AttrPropMotorwa, AttrPopulat, AttrUnemploy, AttrPetrolCar,
	AttrAlcohol, AttrMotIndex1000, AttrDenPopulat, AttrCgdp, AttrCgdpCap,
	AttrPrecipit, AttrPropElder, AttrDPS, AttrFreight,
}

// field returns a pointer to the float attribute named code, or nil.
// dps is not a float attribute.
func (r *Record) field(code string) *Float {
	switch code {
	case AttrFatalPcKm:
		return &r.FatalPcKm
	case AttrFatalMIn:
		return &r.FatalMIn
	case AttrAccidAdjPcKm:
		return &r.AccidAdjPcKm
	case AttrPKm:
		return &r.PKm
	case AttrCroadInvKm:
		return &r.CroadInvKm
	case AttrCroadMaintKm:
		return &r.CroadMaintKm
	case AttrPropMotorwa:
		return &r.PropMotorwa
	case AttrPopulat:
		return &r.Populat
	case AttrUnemploy:
		return &r.Unemploy
	case AttrPetrolCar:
		return &r.PetrolCar
	case AttrAlcohol:
		return &r.Alcohol
	case AttrMotIndex1000:
		return &r.MotIndex1000
	case AttrDenPopulat:
		return &r.DenPopulat
	case AttrCgdp:
		return &r.Cgdp
	case AttrCgdpCap:
		return &r.CgdpCap
	case AttrPrecipit:
		return &r.Precipit
	case AttrPropElder:
		return &r.PropElder
	case AttrFreight:
		return &r.Freight
	}
	return nil
}

// Attr returns the named attribute. Unknown codes are reported as absent;
// dps reads as 0/1.
func (r *Record) Attr(code string) Float {
	if code == AttrDPS {
		return r.DPS.Float()
	}
	if f := r.field(code); f != nil {
		return *f
	}
	return None
}

// SetAttr stores a float attribute while the record is being built.
// It reports false for dps and unknown codes.
func (r *Record) SetAttr(code string, v Float) bool {
	f := r.field(code)
	if f == nil {
		return false
	}
	*f = v
	return true
}

// Value is Attr unpacked.
func (r *Record) Value(code string) (float64, bool) {
	f := r.Attr(code)
	return f.Value, f.Valid
}

// IsAttribute reports whether code names a Record attribute.
func IsAttribute(code string) bool {
	for _, c := range AttributeCodes {
		if c == code {
			return true
		}
	}
	return false
}

// AttributeDescriptor pairs an attribute code with its human label.
type AttributeDescriptor struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// PivotTable maps row key (country) -> column key (year) -> value.
// Absent cells are omitted, never zero-filled.
type PivotTable map[string]map[int]float64

// AggregateRow holds derived means for one year.
type AggregateRow struct {
	Year   int              `json:"year"`
	Values map[string]Float `json:"values"`
}

// CountryAggregate holds derived means for one country.
type CountryAggregate struct {
	Country string           `json:"country"`
	Values  map[string]Float `json:"values"`
}

// Point is one (x, y) observation.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MetricPair selects the two measures compared by the bidirectional chart.
type MetricPair string

const (
	PairFatalitiesVsPassengerKm MetricPair = "fatal_pkm_vs_passenger"
	PairInvestmentVsAccidents   MetricPair = "investment_vs_accidents"
)

// Valid reports whether p is a known pair.
func (p MetricPair) Valid() bool {
	return p == PairFatalitiesVsPassengerKm || p == PairInvestmentVsAccidents
}

// FilterSelection is the user's current selection across the dashboard.
type FilterSelection struct {
	Countries  []string   `json:"countries"`
	Attribute  string     `json:"attribute"`
	Year       int        `json:"year"`
	MetricPair MetricPair `json:"metric_pair"`
}

// AllCountries reports whether the country filter is off.
func (s FilterSelection) AllCountries() bool {
	return len(s.Countries) == 1 && s.Countries[0] == ShowAll
}

// Includes reports whether country passes the country filter.
func (s FilterSelection) Includes(country string) bool {
	for _, c := range s.Countries {
		if c == ShowAll || c == country {
			return true
		}
	}
	return false
}

// HighlightEvent is a transient cross-view event. Exactly one of Year or
// Country is meaningful, depending on the channel.
type HighlightEvent struct {
	Channel string `json:"channel"`
	Year    *int   `json:"year,omitempty"`
	Country string `json:"country,omitempty"`
	Attr    string `json:"attribute,omitempty"`
	Active  bool   `json:"active"`
}

// YearEvent builds an event carrying a year.
func YearEvent(year int, active bool) HighlightEvent {
	return HighlightEvent{Year: &year, Active: active}
}

// CountryEvent builds an event carrying a country.
func CountryEvent(country string, active bool) HighlightEvent {
	return HighlightEvent{Country: country, Active: active}
}
