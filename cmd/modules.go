package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModulesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the module catalog without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp(cmd, nil)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tNAME\tSOURCE\tPATH")
			for i, d := range a.Catalog.Modules() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, orDash(d.Name), d.Source, orDash(d.ArtifactPath))
			}
			return tw.Flush()
		},
	}
}
