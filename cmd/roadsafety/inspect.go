package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"roadsafety/internal/catalog"
	"roadsafety/internal/engine"
	"roadsafety/internal/geo"
	"roadsafety/internal/source"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Report dataset coverage and boundary name mismatches",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := catalog.New(cfg.Attributes)
	if err != nil {
		return err
	}
	defer cat.Close()

	bundle, err := source.Fetch(cmd.Context(), cfg.Data)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), bundle, cat)
	return nil
}

func printReport(w io.Writer, b *source.Bundle, cat *catalog.Catalog) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	store := engine.NewRecordStore(b.Records)
	lo, hi, _ := store.YearRange()
	countries := store.Countries()

	_, _ = bold.Fprintln(w, "Dataset")
	_, _ = fmt.Fprintf(w, "  %d records, %d countries, years %d-%d\n\n", len(b.Records), len(countries), lo, hi)

	_, _ = bold.Fprintln(w, "Missing values")
	total := len(b.Records)
	for _, d := range cat.Descriptors() {
		missing := 0
		for i := range b.Records {
			if _, ok := b.Records[i].Value(d.Code); !ok {
				missing++
			}
		}
		c := green
		switch {
		case missing == total:
			c = red
		case missing > 0:
			c = yellow
		}
		_, _ = c.Fprintf(w, "  %-16s %5d / %d", d.Code, missing, total)
		_, _ = fmt.Fprintf(w, "  %s\n", d.Label)
	}

	if b.Boundaries == nil {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "Map regions without data")
	unmatched := geo.Unmatched(b.Boundaries.Names(), countries)
	if len(unmatched) == 0 {
		_, _ = green.Fprintln(w, "  none")
		return
	}
	for _, n := range unmatched {
		_, _ = yellow.Fprintf(w, "  %s\n", n)
	}
}
