// Command artisan is the command-line entry point for the harmonic
// artifact planner and incremental wave executor.
package main

import (
	"fmt"
	"os"

	"github.com/harrison/artisan/internal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
