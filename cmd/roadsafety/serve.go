package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gommonlog "github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"roadsafety/internal/api"
	"roadsafety/internal/catalog"
	"roadsafety/internal/config"
	"roadsafety/internal/dashboard"
	"roadsafety/internal/logger"
	"roadsafety/internal/source"
	"roadsafety/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API",
	Long: `Start the HTTP API immediately and load the dataset in the background.
Data routes answer 503 until loading finishes, and 500 if it failed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := catalog.New(cfg.Attributes)
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Echo (starts instantly, data routes answer 503)
	h := api.NewHandler(cat)
	e := api.NewServer(h, cfg.Server)
	e.Logger.SetLevel(echoLevel(logger.Log.GetLevel()))

	// 2. Load in the background
	loaded := make(chan *dashboard.Dashboard, 1)
	go func() {
		logger.Log.Info("Starting background load")
		t0 := time.Now()

		d, err := load(ctx, cfg, cat)
		if err != nil {
			logger.Log.WithError(err).Error("Background load failed")
			h.SetError(err)
			loaded <- nil
			return
		}
		h.SetData(d)
		loaded <- d

		logger.Log.WithField("elapsed", time.Since(t0).String()).Info("Background load complete, API is fully ready")
	}()

	// 3. Start server
	errc := make(chan error, 1)
	go func() {
		logger.Log.WithField("addr", cfg.Server.Addr).Info("Server ready (data loading in background)")
		errc <- e.Start(cfg.Server.Addr)
	}()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutting down")
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			closeLoaded(loaded)
			return err
		}
	}
	stop()

	// Event streams hold their connections open, so end them first.
	h.Close()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		logger.Log.WithError(err).Warn("Server shutdown")
	}
	closeLoaded(loaded)
	return nil
}

func closeLoaded(loaded <-chan *dashboard.Dashboard) {
	if d := <-loaded; d != nil {
		d.Close()
	}
}

// load fetches the sources and builds the dashboard. With Postgres
// configured and a file or URL dataset, the records are also written to
// the database so later runs can load from it.
func load(ctx context.Context, cfg *config.Config, cat *catalog.Catalog) (*dashboard.Dashboard, error) {
	f := &source.Fetcher{
		Client: &http.Client{Timeout: cfg.Data.FetchTimeout},
	}
	bundle, err := f.Fetch(ctx, cfg.Data)
	if err != nil {
		return nil, err
	}

	if cfg.Postgres.Enabled() && !source.IsDatabase(cfg.Data.Dataset) {
		if err := snapshot(ctx, cfg.Postgres, bundle); err != nil {
			logger.Log.WithError(err).Warn("Postgres snapshot failed, continuing without it")
		}
	}

	return dashboard.New(bundle.Records, bundle.Boundaries, cat, dashboard.Options{
		Interval: cfg.Playback.Interval,
	})
}

func snapshot(ctx context.Context, pg config.PostgresConfig, b *source.Bundle) error {
	db, err := storage.New(pg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.SaveRecords(ctx, b.Records); err != nil {
		return err
	}
	logger.Log.WithFields(logrus.Fields{"records": len(b.Records), "host": pg.Host}).Info("Records saved to Postgres")
	return nil
}

// echoLevel keeps echo's own logger in step with logrus.
func echoLevel(l logrus.Level) gommonlog.Lvl {
	switch {
	case l >= logrus.DebugLevel:
		return gommonlog.DEBUG
	case l == logrus.InfoLevel:
		return gommonlog.INFO
	case l == logrus.WarnLevel:
		return gommonlog.WARN
	default:
		return gommonlog.ERROR
	}
}
