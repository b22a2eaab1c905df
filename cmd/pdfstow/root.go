package main

import (
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// verbosity is shared by all subcommands via the persistent flag.
var verbose bool

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdfstow",
		Short: "Archive files inside a viewable PDF document",
		Long: `pdfstow packs files and directories into a single PDF that opens in any
viewer as a file listing and losslessly extracts back to the original
bytes, paths, and modification times.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newListCmd())
	return cmd
}

// newLogger builds the CLI logger, routed through slog so the library
// options can consume it.
func newLogger() *slog.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: false,
	})
	return slog.New(handler)
}
