package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const europe = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"NAME": "France"},
     "geometry": {"type": "Polygon", "coordinates": [[[2,46],[3,46],[3,47],[2,46]]]}},
    {"type": "Feature", "properties": {"NAME": "Spain"},
     "geometry": {"type": "Polygon", "coordinates": [[[-4,40],[-3,40],[-3,41],[-4,40]]]}},
    {"type": "Feature", "properties": {"ISO": "XX"},
     "geometry": {"type": "Point", "coordinates": [0,0]}}
  ]
}`

func TestLoad(t *testing.T) {
	b, err := Load([]byte(europe))
	require.NoError(t, err)

	assert.Equal(t, []string{"France", "Spain"}, b.Names())
	assert.Len(t, b.Collection.Features, 3)

	f, ok := b.Feature("Spain")
	require.True(t, ok)
	assert.Equal(t, "Spain", f.Properties.MustString(NameProperty))

	_, ok = b.Feature("Atlantis")
	assert.False(t, ok)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]byte(`not json`))
	assert.Error(t, err)

	_, err = Load([]byte(`{"type":"FeatureCollection","features":[]}`))
	assert.ErrorIs(t, err, ErrNoFeatures)
}

func TestMatch(t *testing.T) {
	values := map[string]float64{"France": 1, "spain": 2}

	v, ok := Match("France", values)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = Match("Spain", values)
	assert.True(t, ok, "falls back to the lower-cased name")
	assert.Equal(t, 2.0, v)

	_, ok = Match("Italy", values)
	assert.False(t, ok)
}

func TestUnmatched(t *testing.T) {
	got := Unmatched([]string{"France", "Spain", "Norway"}, []string{"France", "spain"})
	assert.Equal(t, []string{"Norway"}, got)
}
