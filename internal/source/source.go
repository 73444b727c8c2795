// Package source fetches the dataset and the boundary file at startup.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"roadsafety/internal/config"
	"roadsafety/internal/engine"
	"roadsafety/internal/geo"
	"roadsafety/internal/logger"
	"roadsafety/internal/models"
	"roadsafety/internal/storage"
)

// Bundle is everything the dashboard needs before any view can render.
type Bundle struct {
	Records    []models.Record
	Boundaries *geo.Boundaries
}

// Fetcher loads locations. The zero value uses http.DefaultClient for URLs
// and storage.Open for database DSNs.
type Fetcher struct {
	Client *http.Client
	// OpenDB opens a database location. Tests replace it.
	OpenDB func(dsn string) (RecordLoader, error)
}

// RecordLoader reads a stored dataset.
type RecordLoader interface {
	LoadRecords(ctx context.Context) ([]models.Record, error)
	Close() error
}

// Fetch loads the dataset and the boundaries with the default Fetcher.
func Fetch(ctx context.Context, cfg config.DataConfig) (*Bundle, error) {
	return (&Fetcher{}).Fetch(ctx, cfg)
}

// Fetch loads both locations concurrently. Either failure fails the whole
// fetch; a partial bundle is never returned.
func (f *Fetcher) Fetch(ctx context.Context, cfg config.DataConfig) (*Bundle, error) {
	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	var b Bundle
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, err := f.records(gctx, cfg.Dataset)
		if err != nil {
			return fmt.Errorf("dataset %s: %w", cfg.Dataset, err)
		}
		b.Records = recs
		return nil
	})
	g.Go(func() error {
		data, err := f.read(gctx, cfg.Boundaries)
		if err != nil {
			return fmt.Errorf("boundaries %s: %w", cfg.Boundaries, err)
		}
		bounds, err := geo.Load(data)
		if err != nil {
			return fmt.Errorf("boundaries %s: %w", cfg.Boundaries, err)
		}
		b.Boundaries = bounds
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"records":  len(b.Records),
		"features": len(b.Boundaries.Names()),
		"elapsed":  time.Since(start).String(),
	}).Info("sources fetched")
	return &b, nil
}

func (f *Fetcher) records(ctx context.Context, loc string) ([]models.Record, error) {
	if IsDatabase(loc) {
		open := f.OpenDB
		if open == nil {
			open = func(dsn string) (RecordLoader, error) { return storage.Open(dsn) }
		}
		db, err := open(loc)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.LoadRecords(ctx)
	}

	data, err := f.read(ctx, loc)
	if err != nil {
		return nil, err
	}
	return engine.Load(bytes.NewReader(data))
}

func (f *Fetcher) read(ctx context.Context, loc string) ([]byte, error) {
	if !IsURL(loc) {
		return os.ReadFile(loc) //nolint:gosec // operator-provided location
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func IsURL(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}

func IsDatabase(loc string) bool {
	return strings.HasPrefix(loc, "postgres://") || strings.HasPrefix(loc, "postgresql://")
}
