package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	gommonlog "github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadsafety/internal/catalog"
	"roadsafety/internal/geo"
	"roadsafety/internal/models"
	"roadsafety/internal/source"
)

const boundaries = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"NAME":"France"},"geometry":{"type":"Point","coordinates":[2,46]}},
{"type":"Feature","properties":{"NAME":"Iceland"},"geometry":{"type":"Point","coordinates":[-19,65]}}
]}`

func TestPrintReport(t *testing.T) {
	color.NoColor = true
	cat, err := catalog.New(nil)
	require.NoError(t, err)
	bounds, err := geo.Load([]byte(boundaries))
	require.NoError(t, err)

	b := &source.Bundle{
		Records: []models.Record{
			{Country: "France", Year: 2000, FatalPcKm: models.Some(2)},
			{Country: "France", Year: 2001},
		},
		Boundaries: bounds,
	}

	var buf bytes.Buffer
	printReport(&buf, b, cat)
	out := buf.String()

	assert.Contains(t, out, "2 records, 1 countries, years 2000-2001")
	assert.Regexp(t, `fatal_pc_km\s+1 / 2`, out)
	assert.Regexp(t, `cgdp\s+2 / 2`, out)
	assert.Contains(t, out, "Iceland")
	assert.NotContains(t, out, "  France\n")
}

func TestEchoLevel(t *testing.T) {
	assert.Equal(t, gommonlog.DEBUG, echoLevel(logrus.TraceLevel))
	assert.Equal(t, gommonlog.DEBUG, echoLevel(logrus.DebugLevel))
	assert.Equal(t, gommonlog.INFO, echoLevel(logrus.InfoLevel))
	assert.Equal(t, gommonlog.WARN, echoLevel(logrus.WarnLevel))
	assert.Equal(t, gommonlog.ERROR, echoLevel(logrus.ErrorLevel))
}
