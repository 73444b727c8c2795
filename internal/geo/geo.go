// Package geo reads the country boundary file and matches its feature names
// against dataset country names.
package geo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// NameProperty is the feature property holding the country name.
const NameProperty = "NAME"

var ErrNoFeatures = errors.New("boundary file has no named features")

// Boundaries is a parsed FeatureCollection. Shapes are kept as-is for the
// front end; the backend only needs the names.
type Boundaries struct {
	Collection *geojson.FeatureCollection
	names      []string
}

// Load parses a GeoJSON FeatureCollection. Features without a NAME property
// are kept in the collection but not listed in Names.
func Load(data []byte) (*Boundaries, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundaries: %w", err)
	}

	b := &Boundaries{Collection: fc}
	seen := make(map[string]struct{})
	for _, f := range fc.Features {
		name := f.Properties.MustString(NameProperty, "")
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		b.names = append(b.names, name)
	}
	if len(b.names) == 0 {
		return nil, ErrNoFeatures
	}
	sort.Strings(b.names)
	return b, nil
}

// Names returns the distinct feature names, sorted.
func (b *Boundaries) Names() []string {
	return append([]string(nil), b.names...)
}

// Feature returns the first feature named name.
func (b *Boundaries) Feature(name string) (*geojson.Feature, bool) {
	for _, f := range b.Collection.Features {
		if f.Properties.MustString(NameProperty, "") == name {
			return f, true
		}
	}
	return nil, false
}

// Match looks name up in values, first exactly and then lower-cased.
// A miss means "no data" and is not an error.
func Match[V any](name string, values map[string]V) (V, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	if v, ok := values[strings.ToLower(name)]; ok {
		return v, true
	}
	var zero V
	return zero, false
}

// Unmatched lists names for which Match finds nothing among countries.
func Unmatched(names []string, countries []string) []string {
	set := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		set[c] = struct{}{}
	}
	var out []string
	for _, n := range names {
		if _, ok := Match(n, set); !ok {
			out = append(out, n)
		}
	}
	return out
}
