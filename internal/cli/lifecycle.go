package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// LifecycleOptions holds flags for resolve and ignore.
type LifecycleOptions struct {
	*RootOptions
	Notes string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LifecycleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <error-id>",
		Short: "Mark an error as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(opts, cmd, args[0], "resolved",
				func(ctx context.Context, svc lifecycleService, id uuid.UUID) error {
					return svc.ResolveError(ctx, id, opts.Notes)
				})
		},
	}
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "resolution notes")

	return cmd
}

// NewIgnoreCommand creates the ignore command.
func NewIgnoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LifecycleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ignore <error-id>",
		Short: "Mark an error as ignored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(opts, cmd, args[0], "ignored",
				func(ctx context.Context, svc lifecycleService, id uuid.UUID) error {
					return svc.IgnoreError(ctx, id, opts.Notes)
				})
		},
	}
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "reason for ignoring")

	return cmd
}

type lifecycleService interface {
	ResolveError(ctx context.Context, id uuid.UUID, notes string) error
	IgnoreError(ctx context.Context, id uuid.UUID, notes string) error
}

func runLifecycle(opts *LifecycleOptions, cmd *cobra.Command, arg, verb string,
	apply func(context.Context, lifecycleService, uuid.UUID) error) error {
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

	if err := apply(ctx, svc, id); err != nil {
		return operationError(fmt.Sprintf("failed to mark error %s", verb), err)
	}
	record, err := svc.GetError(ctx, id)
	if err != nil {
		return operationError("failed to reload error", err)
	}

	return opts.formatter(cmd).Success(record, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "error %s marked %s\n", id, verb)
		return err
	})
}
