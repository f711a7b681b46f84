// Package cli implements the errtrack command line: schema migration,
// error queries and lifecycle changes against the configured store.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/errtrack/internal/config"
	"github.com/kiranshivaraju/errtrack/internal/report"
	"github.com/kiranshivaraju/errtrack/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	Driver string
	DSN    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the errtrack CLI. Storage
// defaults come from STORE_DRIVER, DATABASE_URL and SQLITE_PATH; --driver
// and --dsn override them.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "errtrack",
		Short: "Inspect and manage tracked CRM sync errors",
		Long: `errtrack queries the deduplicated error store shared with the
errtrack server and the tracking logger.

Each distinct problem is one record identified by a fingerprint of its
entity type, entity id, category and normalized message. Repeat
occurrences increase its count.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver (postgres|sqlite), defaults to STORE_DRIVER")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "postgres URL or sqlite path, defaults to DATABASE_URL / SQLITE_PATH")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewIgnoreCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewTrackCommand(opts))

	return cmd
}

// databaseConfig merges environment defaults with the global flags.
func (o *RootOptions) databaseConfig() (config.DatabaseConfig, error) {
	cfg := config.LoadDatabase()
	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	if o.DSN != "" {
		switch cfg.Driver {
		case config.DriverSQLite:
			cfg.SQLitePath = o.DSN
		default:
			cfg.URL = o.DSN
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid storage settings", err)
	}
	return cfg, nil
}

// openStore opens the configured store. The caller must call the returned
// function when done.
func (o *RootOptions) openStore(ctx context.Context) (store.Store, func(), error) {
	cfg, err := o.databaseConfig()
	if err != nil {
		return nil, nil, err
	}
	st, closeFn, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return st, closeFn, nil
}

// openService wraps the store in an uncached report service. Caches held by
// a running server expire on their own TTL.
func (o *RootOptions) openService(ctx context.Context) (*report.Service, func(), error) {
	st, closeFn, err := o.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return report.NewService(st, nil, 0, logger), closeFn, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
