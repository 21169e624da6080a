package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oshokin/distpack/internal/archive"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "List the entries of a distribution archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := archive.List(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)

			for _, entry := range entries {
				name := entry.Name
				if entry.Linkname != "" {
					name += " -> " + entry.Linkname
				}

				_, _ = fmt.Fprintf(w, "%s\t%d\t %s\t\n", entry.Mode, entry.Size, name)
			}

			return w.Flush()
		},
	}
}
