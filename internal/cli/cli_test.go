package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// sqliteArgs prefixes args with the global flags for a fresh database.
func sqliteArgs(t *testing.T) func(args ...string) []string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "errtrack.db")
	return func(args ...string) []string {
		return append([]string{"--driver", "sqlite", "--dsn", path}, args...)
	}
}

func decodeData(t *testing.T, out string, dst any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

type trackOutput struct {
	ErrorID         string `json:"error_id"`
	IsNew           bool   `json:"is_new"`
	OccurrenceCount int    `json:"occurrence_count"`
}

func track(t *testing.T, args func(...string) []string, entityType, id, message string) trackOutput {
	t.Helper()
	out, err := execute(t, args("--format", "json", "track", "--type", entityType, "--id", id, "--message", message)...)
	require.NoError(t, err, out)
	var res trackOutput
	decodeData(t, out, &res)
	return res
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "errtrack", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"migrate", "list", "show", "stats", "resolve", "ignore", "cleanup", "track"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("driver"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("dsn"))
}

func TestInvalidFormat(t *testing.T) {
	args := sqliteArgs(t)
	_, err := execute(t, args("--format", "yaml", "list")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMissingSQLitePath(t *testing.T) {
	t.Setenv("SQLITE_PATH", "")
	_, err := execute(t, "--driver", "sqlite", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "SQLITE_PATH")
}

func TestMigrate_SQLite(t *testing.T) {
	args := sqliteArgs(t)
	out, err := execute(t, args("migrate")...)
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite schema is up to date")
}

func TestTrack_NewThenRepeat(t *testing.T) {
	args := sqliteArgs(t)

	first := track(t, args, "contract", "c-1", "Connection timeout after 30s")
	assert.True(t, first.IsNew)
	assert.Equal(t, 1, first.OccurrenceCount)

	second := track(t, args, "contract", "c-1", "Connection timeout after 45s")
	assert.False(t, second.IsNew)
	assert.Equal(t, 2, second.OccurrenceCount)
	assert.Equal(t, first.ErrorID, second.ErrorID)
}

func TestTrack_TextOutput(t *testing.T) {
	args := sqliteArgs(t)
	out, err := execute(t, args("track", "--type", "tenant", "--id", "t-1", "-m", "Invalid email")...)
	require.NoError(t, err)
	assert.Contains(t, out, "new error")
	assert.Contains(t, out, "occurrences: 1")
}

func TestTrack_UnsupportedEntityType(t *testing.T) {
	args := sqliteArgs(t)
	_, err := execute(t, args("track", "--type", "invoice", "--id", "i-1", "-m", "boom")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTrack_InvalidContext(t *testing.T) {
	args := sqliteArgs(t)
	_, err := execute(t, args("track", "--type", "tenant", "--id", "t-1", "-m", "x", "--context", "[1,2]")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--context")
}

func TestList_Filters(t *testing.T) {
	args := sqliteArgs(t)
	track(t, args, "contract", "c-1", "Start date is invalid")
	track(t, args, "tenant", "t-1", "Tenant not found")

	out, err := execute(t, args("--format", "json", "list", "--type", "tenant")...)
	require.NoError(t, err)
	var records []map[string]any
	decodeData(t, out, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "t-1", records[0]["entity_id"])

	out, err = execute(t, args("list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "ENTITY")
	assert.Contains(t, out, "contract/c-1")
	assert.Contains(t, out, "tenant/t-1")
}

func TestList_Empty(t *testing.T) {
	args := sqliteArgs(t)
	out, err := execute(t, args("list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "no errors found")
}

func TestList_InvalidStatus(t *testing.T) {
	args := sqliteArgs(t)
	_, err := execute(t, args("list", "--status", "archived")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestList_InvalidTimestamp(t *testing.T) {
	args := sqliteArgs(t)
	_, err := execute(t, args("list", "--after", "yesterday")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--after")
}

func TestShow(t *testing.T) {
	args := sqliteArgs(t)
	res := track(t, args, "payment", "p-1", "Card declined")

	out, err := execute(t, args("show", res.ErrorID)...)
	require.NoError(t, err)
	assert.Contains(t, out, res.ErrorID)
	assert.Contains(t, out, "payment/p-1")
}

func TestShow_NotFound(t *testing.T) {
	args := sqliteArgs(t)
	_, err := execute(t, args("show", "6f1c2a9e-3d4b-4c5d-8e6f-7a8b9c0d1e2f")...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestResolveAndIgnore(t *testing.T) {
	args := sqliteArgs(t)
	a := track(t, args, "apartment", "a-1", "Apartment not found")
	b := track(t, args, "webhook", "w-1", "Signature invalid")

	out, err := execute(t, args("--format", "json", "resolve", a.ErrorID, "--notes", "re-synced")...)
	require.NoError(t, err)
	var rec map[string]any
	decodeData(t, out, &rec)
	assert.Equal(t, "resolved", rec["status"])
	assert.Equal(t, "re-synced", rec["resolution_notes"])

	out, err = execute(t, args("ignore", b.ErrorID)...)
	require.NoError(t, err)
	assert.Contains(t, out, "marked ignored")
}

func TestResolve_InvalidID(t *testing.T) {
	args := sqliteArgs(t)
	_, err := execute(t, args("resolve", "not-a-uuid")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStats(t *testing.T) {
	args := sqliteArgs(t)
	track(t, args, "contract", "c-1", "Connection timeout")
	track(t, args, "contract", "c-1", "Connection timeout")
	track(t, args, "tenant", "t-1", "Invalid email")

	out, err := execute(t, args("--format", "json", "stats")...)
	require.NoError(t, err)
	var stats struct {
		General struct {
			TotalErrors      int `json:"total_errors"`
			TotalOccurrences int `json:"total_occurrences"`
		} `json:"general"`
		ByEntityType []struct {
			Key string `json:"key"`
		} `json:"by_entity_type"`
	}
	decodeData(t, out, &stats)
	assert.Equal(t, 2, stats.General.TotalErrors)
	assert.Equal(t, 3, stats.General.TotalOccurrences)
	assert.Len(t, stats.ByEntityType, 2)

	out, err = execute(t, args("stats")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Errors: 2")
	assert.Contains(t, out, "CATEGORY")
}

func TestCleanup(t *testing.T) {
	args := sqliteArgs(t)
	res := track(t, args, "contract", "c-1", "Connection timeout")
	_, err := execute(t, args("resolve", res.ErrorID)...)
	require.NoError(t, err)

	out, err := execute(t, args("cleanup")...)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 0 errors older than 30 days")

	_, err = execute(t, args("cleanup", "--days=-1")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
