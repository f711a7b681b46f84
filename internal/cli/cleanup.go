package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const defaultDaysToKeep = 30

// CleanupOptions holds flags for the cleanup command.
type CleanupOptions struct {
	*RootOptions
	Days int
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete resolved and ignored errors past retention",
		Long: `Delete resolved and ignored errors whose terminal timestamp is older
than --days. Active errors are never deleted.

Examples:
  errtrack cleanup --days 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Days, "days", defaultDaysToKeep, "days to keep terminal errors")

	return cmd
}

func runCleanup(opts *CleanupOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	svc, closeFn, err := opts.openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	deleted, err := svc.Cleanup(ctx, opts.Days)
	if err != nil {
		return operationError("cleanup failed", err)
	}

	result := map[string]any{"days_to_keep": opts.Days, "deleted": deleted}
	return opts.formatter(cmd).Success(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "deleted %d errors older than %d days\n", deleted, opts.Days)
		return err
	})
}
