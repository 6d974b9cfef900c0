package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-modular/modules/files"
)

func newCompareCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compare [source reference destination]",
		Short: "Copy reference files whose names appear in the source folder",
		Long: `Copies every file under the reference folder whose name matches a file
under the source folder into the destination folder. Without arguments the
last successful folder set (or the files.* configuration) is used.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 3 {
				return fmt.Errorf("expected 0 or 3 folders, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.runApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			svc, err := a.Files()
			if err != nil {
				return err
			}

			set := svc.Folders()
			if len(args) == 3 {
				set = files.FolderSet{Source: args[0], Reference: args[1], Destination: args[2]}
			}
			res, err := svc.Run(cmd.Context(), set)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, line := range res.Data.Lines {
				fmt.Fprintln(out, line)
			}
			if !res.Status {
				return errors.New(res.Message)
			}
			fmt.Fprintln(out, res.Message)
			return nil
		},
	}
}
