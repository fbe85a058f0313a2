package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/restomatic/restomatic-go/cli/internal/config"
	"github.com/restomatic/restomatic-go/cli/internal/ui"
	"github.com/restomatic/restomatic-go/cli/internal/version"
	"github.com/restomatic/restomatic-go/internal/debug"
	"github.com/restomatic/restomatic-go/runtime/client"
)

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configFile string
	cfg        *config.Config
}

// NewRootCommand creates the restomatic command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "restomatic",
		Short: "Query and serve relational tables with JSON predicates",
		Long: `restomatic compiles JSON predicate trees into parameterized SQL
against a fixed set of table mappers, and can serve those tables as a
JSON REST API.

Configuration is read from restomatic.yaml (in ., $HOME or
$HOME/.config/restomatic), RESTOMATIC_* environment variables and flags.`,
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.Out = cmd.OutOrStdout()
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(config.Options{File: opts.configFile, Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			configureLogging(cfg)
			opts.cfg = cfg
			debug.Debug("configuration loaded", "file", cfg.File, "provider", cfg.Provider)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default restomatic.yaml in ., $HOME or $HOME/.config/restomatic)")
	flags.String("provider", "", "database provider: sqlite, postgres or mysql")
	flags.String("dsn", "", "database connection string")
	flags.Bool("debug", false, "log every statement")
	flags.String("log-level", "", "log level: DEBUG, INFO, WARN or ERROR")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Execute is the main entry point for the CLI
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

func configureLogging(cfg *config.Config) {
	level := cfg.Log.Level
	if cfg.Debug {
		level = "DEBUG"
	}
	debug.Configure(debug.Config{Level: level, Format: cfg.Log.Format, Output: os.Stderr})
}

// openDB opens a handle on the configured store.
func (o *rootOptions) openDB(ctx context.Context) (*client.DB, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []client.Option{client.WithIDColumn(o.cfg.IDColumn)}
	if o.cfg.ForeignKeys != nil {
		opts = append(opts, client.WithForeignKeys(*o.cfg.ForeignKeys))
	}
	return client.OpenContext(ctx, o.cfg.Provider, o.cfg.DSN, o.cfg.Tables, opts...)
}
