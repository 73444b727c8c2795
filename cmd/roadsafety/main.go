package main

import (
	"fmt"
	"os"

	"roadsafety/internal/logger"
)

func main() {
	err := rootCmd.Execute()
	if cerr := logger.Close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "Error: close log file:", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
