package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadsafety/internal/config"
	"roadsafety/internal/models"
)

const dataset = `[
 {"country":"France","year":2000,"fatal_pc_km":2},
 {"country":"Spain","year":2000,"fatal_pc_km":5}
]`

const boundaries = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"NAME":"France"},"geometry":{"type":"Point","coordinates":[2,46]}},
 {"type":"Feature","properties":{"NAME":"Spain"},"geometry":{"type":"Point","coordinates":[-4,40]}}
]}`

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestFetch_Files(t *testing.T) {
	b, err := Fetch(context.Background(), config.DataConfig{
		Dataset:    writeTemp(t, "data.json", dataset),
		Boundaries: writeTemp(t, "europe.geojson", boundaries),
	})
	require.NoError(t, err)
	assert.Len(t, b.Records, 2)
	assert.Equal(t, []string{"France", "Spain"}, b.Boundaries.Names())
}

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data.json":
			w.Write([]byte(dataset))
		case "/europe.geojson":
			w.Write([]byte(boundaries))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client()}
	b, err := f.Fetch(context.Background(), config.DataConfig{
		Dataset:    srv.URL + "/data.json",
		Boundaries: srv.URL + "/europe.geojson",
	})
	require.NoError(t, err)
	assert.Len(t, b.Records, 2)

	_, err = f.Fetch(context.Background(), config.DataConfig{
		Dataset:    srv.URL + "/missing.json",
		Boundaries: srv.URL + "/europe.geojson",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetch_EitherFailureFailsAll(t *testing.T) {
	good := writeTemp(t, "data.json", dataset)
	_, err := Fetch(context.Background(), config.DataConfig{
		Dataset:    good,
		Boundaries: filepath.Join(t.TempDir(), "nope.geojson"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boundaries")

	_, err = Fetch(context.Background(), config.DataConfig{
		Dataset:    writeTemp(t, "bad.json", `{"not":"an array"}`),
		Boundaries: writeTemp(t, "europe.geojson", boundaries),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset")
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := (&Fetcher{Client: srv.Client()}).Fetch(context.Background(), config.DataConfig{
		Dataset:      srv.URL + "/slow.json",
		Boundaries:   writeTemp(t, "europe.geojson", boundaries),
		FetchTimeout: 50 * time.Millisecond,
	})
	assert.Error(t, err)
}

type fakeDB struct {
	records []models.Record
	err     error
	closed  bool
}

func (f *fakeDB) LoadRecords(context.Context) ([]models.Record, error) { return f.records, f.err }

func (f *fakeDB) Close() error {
	f.closed = true
	return nil
}

func TestFetch_Database(t *testing.T) {
	db := &fakeDB{records: []models.Record{{Country: "France", Year: 2000}}}
	var gotDSN string
	f := &Fetcher{OpenDB: func(dsn string) (RecordLoader, error) {
		gotDSN = dsn
		return db, nil
	}}

	b, err := f.Fetch(context.Background(), config.DataConfig{
		Dataset:    "postgres://u@db/roads",
		Boundaries: writeTemp(t, "europe.geojson", boundaries),
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://u@db/roads", gotDSN)
	assert.Len(t, b.Records, 1)
	assert.True(t, db.closed)

	db.err = errors.New("relation does not exist")
	_, err = f.Fetch(context.Background(), config.DataConfig{
		Dataset:    "postgresql://u@db/roads",
		Boundaries: writeTemp(t, "europe.geojson", boundaries),
	})
	assert.ErrorIs(t, err, db.err)
}

func TestLocationKinds(t *testing.T) {
	assert.True(t, IsURL("https://x/y.json"))
	assert.False(t, IsURL("data/y.json"))
	assert.True(t, IsDatabase("postgres://db"))
	assert.False(t, IsDatabase("data/postgres.json"))
}
