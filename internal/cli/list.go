package cli

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/errtrack/internal/store"
	"github.com/kiranshivaraju/errtrack/pkg/models"
)

// FilterOptions holds the filter flags shared by list and stats.
type FilterOptions struct {
	EntityType     string
	EntityID       string
	Status         string
	Category       string
	After          string
	Before         string
	MinOccurrences int
}

func (f *FilterOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.EntityType, "type", "", "filter by entity type")
	cmd.Flags().StringVar(&f.EntityID, "entity", "", "filter by entity id")
	cmd.Flags().StringVar(&f.Status, "status", "", "filter by status (active|resolved|ignored)")
	cmd.Flags().StringVar(&f.Category, "category", "", "filter by category")
	cmd.Flags().StringVar(&f.After, "after", "", "last seen at or after (RFC3339)")
	cmd.Flags().StringVar(&f.Before, "before", "", "first seen at or before (RFC3339)")
	cmd.Flags().IntVar(&f.MinOccurrences, "min-occurrences", 0, "minimum occurrence count")
}

func (f *FilterOptions) filter() (store.ErrorFilter, error) {
	after, err := parseTimeFlag("after", f.After)
	if err != nil {
		return store.ErrorFilter{}, err
	}
	before, err := parseTimeFlag("before", f.Before)
	if err != nil {
		return store.ErrorFilter{}, err
	}
	return store.ErrorFilter{
		EntityType:     f.EntityType,
		EntityID:       f.EntityID,
		Status:         models.Status(f.Status),
		Category:       models.Category(f.Category),
		OccurredAfter:  after,
		OccurredBefore: before,
		MinOccurrences: f.MinOccurrences,
	}, nil
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	FilterOptions
	Limit  int
	Offset int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked errors, most recent first",
		Long: `List tracked errors ordered by last occurrence, newest first.

Examples:
  errtrack list --status active --type contract
  errtrack list --category api_error --min-occurrences 5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	opts.FilterOptions.register(cmd)
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum number of records")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "records to skip")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	filter, err := opts.filter()
	if err != nil {
		return err
	}
	filter.Limit = opts.Limit
	filter.Offset = opts.Offset

	svc, closeFn, err := opts.openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	records, err := svc.ListErrors(ctx, filter)
	if err != nil {
		return operationError("failed to list errors", err)
	}

	return opts.formatter(cmd).Success(records, func(w io.Writer) error {
		return writeRecords(w, records)
	})
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <error-id>",
		Short: "Show one tracked error with its extensions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, cmd, args[0])
		},
	}
}

func runShow(opts *RootOptions, cmd *cobra.Command, arg string) error {
	ctx := context.Background()

	id, err := parseErrorID(arg)
	if err != nil {
		return err
	}

	svc, closeFn, err := opts.openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	record, err := svc.GetError(ctx, id)
	if err != nil {
		return operationError("failed to get error", err)
	}

	return opts.formatter(cmd).Success(record, func(w io.Writer) error {
		return writeRecord(w, record)
	})
}

func parseErrorID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, WrapExitError(ExitCommandError, "error id must be a UUID", err)
	}
	return id, nil
}
