package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"roadsafety/internal/catalog"
	"roadsafety/internal/engine"
	"roadsafety/internal/logger"
	"roadsafety/internal/source"
)

var (
	exportOutput string
	exportAttrs  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the dataset as an Arrow IPC stream",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file path (default: stdout)")
	exportCmd.Flags().StringVar(&exportAttrs, "attrs", "", "comma-separated attribute codes to include (default: all)")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if exportOutput == "" {
		// stdout carries the stream
		logger.Log.SetOutput(os.Stderr)
	}
	cat, err := catalog.New(cfg.Attributes)
	if err != nil {
		return err
	}
	defer cat.Close()

	var attrs []string
	for _, a := range strings.Split(exportAttrs, ",") {
		if a = strings.TrimSpace(a); a == "" {
			continue
		}
		if err := cat.Validate(a); err != nil {
			return err
		}
		attrs = append(attrs, a)
	}

	bundle, err := source.Fetch(cmd.Context(), cfg.Data)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput) //nolint:gosec // operator-provided output path
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOutput, err)
		}
		defer f.Close()
		w = f
	}
	if err := engine.WriteArrow(w, bundle.Records, attrs); err != nil {
		return err
	}
	logger.Log.WithField("records", len(bundle.Records)).Info("Export written")
	return nil
}
