// Package cmd is the modhost command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-modular/app"
	"github.com/km-arc/go-modular/framework/config"
)

// options are the persistent flags shared by every command.
type options struct {
	configFile  string
	envFiles    []string
	logLevel    string
	modulesPath string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "modhost",
		Short:         "Host that discovers, registers and initializes pluggable modules.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (yaml, toml or json)")
	f.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level, overrides log.level")
	f.StringVar(&opts.modulesPath, "modules-path", "", "plugin directory, overrides modules.path")

	root.AddCommand(
		newRunCommand(opts),
		newModulesCommand(opts),
		newCompareCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// Execute runs the command line and exits non-zero on error.
func Execute() {
	root := NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the application from the persistent flags. Logs go to the
// command's stderr.
func (o *options) newApp(cmd *cobra.Command, overrides map[string]any) (*app.Application, error) {
	if overrides == nil {
		overrides = map[string]any{}
	}
	if o.logLevel != "" {
		overrides["log.level"] = o.logLevel
	}
	if o.modulesPath != "" {
		overrides["modules.path"] = o.modulesPath
	}
	return app.New(app.Options{
		Config: config.Options{
			ConfigFile: o.configFile,
			EnvFiles:   o.envFiles,
			Overrides:  overrides,
		},
		LogOutput: cmd.ErrOrStderr(),
	})
}

// runApp builds the application and runs every module.
func (o *options) runApp(cmd *cobra.Command, overrides map[string]any) (*app.Application, error) {
	a, err := o.newApp(cmd, overrides)
	if err != nil {
		return nil, err
	}
	if err := a.Run(cmd.Context()); err != nil {
		return nil, err
	}
	return a, nil
}
