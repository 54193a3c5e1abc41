// Package main is the zipsync command: the pipeline worker plus one-shot
// operations commands.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/zipsync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfgFile string

	// Populated by PersistentPreRunE
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "zipsync",
	Short: "Japanese postal-code dataset pipeline",
	Long: `zipsync watches the two upstream postal-code registries, re-parses their
archives when they change, merges them into one dataset and publishes it as
per-prefix shards.

The worker command runs the long-lived task worker, scheduler and ops HTTP
server. The other commands run single pipeline steps for operators.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = newLogger(os.Stderr, cfg.Log)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./zipsync.yaml)")
	rootCmd.Version = version
}

// newLogger builds the process logger from the log section.
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	if lc.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
