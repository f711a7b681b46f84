package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	FilterOptions
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate error statistics",
		Long: `Show totals and breakdowns by entity type and category.

Accepts the same filters as list.

Examples:
  errtrack stats
  errtrack stats --status active --after 2024-03-01T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	opts.FilterOptions.register(cmd)

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	filter, err := opts.filter()
	if err != nil {
		return err
	}

	svc, closeFn, err := opts.openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	stats, err := svc.Stats(ctx, filter)
	if err != nil {
		return operationError("failed to compute stats", err)
	}

	return opts.formatter(cmd).Success(stats, func(w io.Writer) error {
		return writeStats(w, stats)
	})
}
