package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdfstow/pdfstow"
)

func newCreateCmd() *cobra.Command {
	var (
		output  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "create -o <output.pdf> <paths...>",
		Short: "Archive files and directories into a PDF",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			files, err := collectSources(args)
			if err != nil {
				return err
			}

			stats, err := pdfstow.CreateFile(cmd.Context(), output, files,
				pdfstow.CreateWithLogger(logger),
				pdfstow.CreateWithWorkers(workers),
			)
			if err != nil {
				return err
			}

			logger.Info("done",
				"archive", output,
				"files", stats.FileCount,
				"size", pdfstow.FormatSize(stats.ContainerBytes),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output PDF path (required)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "compression workers (0 = all CPUs)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// collectSources expands CLI arguments into archive sources: plain files
// are recorded under their base name, directories are walked recursively
// with paths relative to the directory itself.
func collectSources(args []string) ([]pdfstow.Source, error) {
	var files []pdfstow.Source
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		switch {
		case info.Mode().IsRegular():
			files = append(files, pdfstow.Source{
				Path:    filepath.Base(arg),
				AbsPath: arg,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		case info.IsDir():
			walked, err := pdfstow.WalkSources(arg)
			if err != nil {
				return nil, err
			}
			files = append(files, walked...)
		default:
			fmt.Fprintf(os.Stderr, "Warning: %s is neither a file nor directory, skipping\n", arg)
		}
	}
	return files, nil
}
