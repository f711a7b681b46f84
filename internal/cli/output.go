package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kiranshivaraju/errtrack/internal/classifier"
	"github.com/kiranshivaraju/errtrack/internal/store"
	"github.com/kiranshivaraju/errtrack/pkg/models"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (record not found, store error)
	ExitCommandError = 2 // Command error (bad flags, invalid input, unreachable store)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// operationError classifies a domain error into an exit code.
func operationError(message string, err error) error {
	if errors.Is(err, store.ErrValidation) || errors.Is(err, classifier.ErrUnsupportedEntityType) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope for CLI output.
type CLIResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// JSON reports whether output is machine readable.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data in the JSON envelope. In text mode the text
// callback renders it instead.
func (f *OutputFormatter) Success(data any, text func(w io.Writer) error) error {
	if f.JSON() {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	return text(f.Writer)
}

const timeLayout = "2006-01-02 15:04:05"

func writeRecords(w io.Writer, records []*models.ErrorRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no errors found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENTITY\tCATEGORY\tSTATUS\tCOUNT\tLAST SEEN\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s/%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.EntityType, r.EntityID, r.Category, r.Status,
			r.OccurrenceCount, r.LastOccurrence.UTC().Format(timeLayout), truncate(r.Message, 60))
	}
	return tw.Flush()
}

func writeRecord(w io.Writer, r *models.ErrorRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", r.ID)
	fmt.Fprintf(tw, "Entity:\t%s/%s\n", r.EntityType, r.EntityID)
	fmt.Fprintf(tw, "Category:\t%s\n", r.Category)
	fmt.Fprintf(tw, "Status:\t%s\n", r.Status)
	fmt.Fprintf(tw, "Occurrences:\t%d\n", r.OccurrenceCount)
	fmt.Fprintf(tw, "First seen:\t%s\n", r.FirstOccurrence.UTC().Format(timeLayout))
	fmt.Fprintf(tw, "Last seen:\t%s\n", r.LastOccurrence.UTC().Format(timeLayout))
	fmt.Fprintf(tw, "Fingerprint:\t%s\n", r.Fingerprint)
	fmt.Fprintf(tw, "Message:\t%s\n", r.Message)
	if r.ResolvedAt != nil {
		fmt.Fprintf(tw, "Resolved at:\t%s\n", r.ResolvedAt.UTC().Format(timeLayout))
	}
	if r.ResolutionNotes != nil {
		fmt.Fprintf(tw, "Notes:\t%s\n", *r.ResolutionNotes)
	}
	for _, k := range sortedKeys(r.Extensions) {
		fmt.Fprintf(tw, "  %s:\t%v\n", k, r.Extensions[k])
	}
	return tw.Flush()
}

func writeStats(w io.Writer, s *models.ErrorStats) error {
	g := s.General
	fmt.Fprintf(w, "Errors: %d  Entity types: %d  Entities: %d  Occurrences: %d  Avg: %.2f\n",
		g.TotalErrors, g.UniqueEntityTypes, g.UniqueEntities, g.TotalOccurrences, g.AverageOccurrences)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeGroups(tw, "ENTITY TYPE", s.ByEntityType)
	writeGroups(tw, "CATEGORY", s.ByCategory)
	return tw.Flush()
}

func writeGroups(tw *tabwriter.Writer, title string, groups []models.StatsGroup) {
	fmt.Fprintf(tw, "\n%s\tERRORS\tENTITIES\tOCCURRENCES\tAVG\n", title)
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\n",
			g.Key, g.TotalErrors, g.UniqueEntities, g.TotalOccurrences, g.AverageOccurrences)
	}
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

func parseTimeFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, NewExitError(ExitCommandError,
			fmt.Sprintf("--%s must be an RFC3339 timestamp, got %q", name, v))
	}
	return t, nil
}
