package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/errtrack/internal/classifier"
)

// TrackOptions holds flags for the track command.
type TrackOptions struct {
	*RootOptions
	EntityType string
	EntityID   string
	Message    string
	Context    string
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Record one error occurrence",
		Long: `Classify and record one error occurrence for an entity.

The message is categorized by the entity type's rules; whitelisted
context keys become extensions on the record.

Examples:
  errtrack track --type contract --id c-42 --message "Connection timeout"
  errtrack track --type tenant --id t-7 --message "Invalid email" --context '{"email_domain":"example.com"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EntityType, "type", "", "entity type (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&opts.EntityID, "id", "", "entity id (required)")
	_ = cmd.MarkFlagRequired("id")
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "error message (required)")
	_ = cmd.MarkFlagRequired("message")
	cmd.Flags().StringVar(&opts.Context, "context", "{}", "context fields as a JSON object")

	return cmd
}

func runTrack(opts *TrackOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	var fields map[string]any
	if err := json.Unmarshal([]byte(opts.Context), &fields); err != nil {
		return WrapExitError(ExitCommandError, "--context must be a JSON object", err)
	}

	st, closeFn, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	factory := classifier.NewFactory(st, classifier.DefaultProfiles()...)
	c, err := factory.Create(opts.EntityType)
	if err != nil {
		return operationError("cannot track error", err)
	}
	result, err := c.Track(ctx, opts.EntityID, opts.Message, fields)
	if err != nil {
		return operationError("cannot track error", err)
	}

	return opts.formatter(cmd).Success(result, func(w io.Writer) error {
		state := "repeat"
		if result.IsNew {
			state = "new"
		}
		_, err := fmt.Fprintf(w, "%s error %s (occurrences: %d)\n", state, result.ErrorID, result.OccurrenceCount)
		return err
	})
}
