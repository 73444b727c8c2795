package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"roadsafety/internal/config"
	"roadsafety/internal/logger"
)

// Global flag values.
var (
	configPath string
	addr       string
	dataPath   string
	geoPath    string
	verbose    bool
	quiet      bool
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "roadsafety",
	Short: "Serve and inspect the European road safety dashboard data",
	Long: `roadsafety loads yearly road safety indicators for European countries,
aggregates them into chart datasets and serves them, together with the shared
filter and map state, over an HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "dataset file, URL or postgres:// DSN (overrides data.dataset)")
	rootCmd.PersistentFlags().StringVar(&geoPath, "geo", "", "GeoJSON boundaries file or URL (overrides data.boundaries)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(exportCmd)
}

// loadConfig reads the config file, applies flag overrides and sets up
// logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dataPath != "" {
		cfg.Data.Dataset = dataPath
	}
	if geoPath != "" {
		cfg.Data.Boundaries = geoPath
	}
	if err := logger.Init(logger.Level(verbose, quiet, cfg.Log.Level), cfg.Log.File); err != nil {
		return nil, err
	}
	return cfg, nil
}
