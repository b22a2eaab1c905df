package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdfstow/pdfstow"
)

func newExtractCmd() *cobra.Command {
	var (
		destDir string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "extract <archive.pdf>",
		Short: "Restore the files stored in an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			archive, err := pdfstow.DecodeFile(args[0])
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			stats, err := archive.ExtractAll(cmd.Context(), destDir,
				pdfstow.ExtractWithLogger(logger),
				pdfstow.ExtractWithWorkers(workers),
			)
			if err != nil {
				if stats != nil && stats.Failed > 0 {
					logger.Error("extraction incomplete", "restored", stats.FileCount, "failed", stats.Failed)
				}
				return err
			}

			logger.Info("done", "files", stats.FileCount, "dest", destDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&destDir, "dir", "C", ".", "destination directory")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "extraction workers (0 = all CPUs)")
	return cmd
}
