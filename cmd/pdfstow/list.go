package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdfstow/pdfstow"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive.pdf>",
		Short: "Print the archive catalog without extracting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := pdfstow.DecodeFile(args[0])
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tSIZE\tMODIFIED")
			var total int64
			entries := archive.Entries()
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Path, pdfstow.FormatSize(e.Size), e.ModTime.Format("2006-01-02 15:04"))
				total += e.Size
			}
			fmt.Fprintf(w, "\t\t\n%d files\t%s\t\n", len(entries), pdfstow.FormatSize(total))
			return w.Flush()
		},
	}
}
