package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Conduit - resilient external data source access layer",
	Long: `Conduit manages the external data sources a rules and enrichment
engine depends on: caches, file trees, SQL databases, REST APIs, and
message queues, all behind one capability interface.

It provides:
  - Per-source health monitoring with hysteresis
  - Round-robin load balancing across sources of a type
  - Automatic failover when a source fails mid-query
  - Read-through caching with TTL and LRU eviction
  - Prometheus metrics for the whole fleet`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
