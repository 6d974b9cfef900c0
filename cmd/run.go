package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-modular/framework/modularity"
)

func newRunCommand(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every module once and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp(cmd, nil)
			if err != nil {
				return err
			}
			runErr := a.Run(cmd.Context())
			defer a.Close()

			report := a.Manager.Report()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				writeReport(cmd.OutOrStdout(), report)
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func writeReport(out io.Writer, r modularity.Report) {
	fmt.Fprintf(out, "run %s: %s\n\n", r.RunID, r.State)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSOURCE\tRESOLVED\tREGISTERED\tINITIALIZED\tPATH")
	for _, m := range r.Modules {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%t\t%s\n",
			orDash(m.Name), m.Source, m.Resolved, m.Registered, m.Initialized, orDash(m.Path))
	}
	tw.Flush()

	if len(r.Failures) == 0 {
		return
	}
	fmt.Fprintln(out, "\nfailures:")
	for _, f := range r.Failures {
		name := f.Module
		if name == "" {
			name = f.Path
		}
		fmt.Fprintf(out, "  [%s] %s: %s\n", f.Phase, name, f.Message)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
