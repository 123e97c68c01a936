package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tripdesk-mcp/internal/config"
	"github.com/dshills/tripdesk-mcp/internal/engine"
	"github.com/dshills/tripdesk-mcp/internal/trips"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() {
		configPath, dbPath, logLevel = "", "", ""
		recomputeLimit, reconcileRepair = 0, false
	})
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := Execute()
	return stdout.String(), stderr.String(), err
}

// seed creates a database with one trip and returns its path
func seed(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "tripdesk.db")

	cfg := config.Default()
	cfg.DBPath = path
	e, err := engine.New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Trips.Create(context.Background(), trips.Input{
		Name:         "Lisbon Weekend",
		Destinations: []string{"Lisbon"},
		StartDate:    "2025-04-10",
		EndDate:      "2025-04-13",
		Clients:      []trips.Client{{Email: "ana@example.com", Name: "Ana Silva"}},
	})
	require.NoError(t, err)
	return path
}

func TestSetVersionInfo(t *testing.T) {
	origVersion, origCommit, origDate := appVersion, appCommit, appDate
	defer func() { appVersion, appCommit, appDate = origVersion, origCommit, origDate }()

	SetVersionInfo("1.2.3", "abc1234", "2026-02-13")
	assert.Equal(t, "1.2.3", appVersion)
	assert.Equal(t, "abc1234", appCommit)
	assert.Equal(t, "2026-02-13", appDate)
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, _, err := run(t, "nonexistent-command")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestExecute_Version(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tripdesk ")
	assert.Contains(t, out, "sqlite driver:")
	assert.Contains(t, out, "schema:")
}

func TestExecute_Recompute(t *testing.T) {
	path := seed(t)

	out, _, err := run(t, "--db", path, "--log-level", "error", "recompute", "--limit", "5")
	require.NoError(t, err)

	var result struct {
		Processed int `json:"processed"`
		Remaining int `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Remaining)
}

func TestExecute_Reconcile(t *testing.T) {
	path := seed(t)

	out, _, err := run(t, "--db", path, "--log-level", "error", "reconcile")
	require.NoError(t, err)
	var report struct {
		Checked      int `json:"checked"`
		Inconsistent int `json:"inconsistent"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Checked)
	assert.Zero(t, report.Inconsistent)

	out, _, err = run(t, "--db", path, "--log-level", "error", "reconcile", "--repair", "1")
	require.NoError(t, err)
	var diffs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &diffs))
	require.Len(t, diffs, 1)
	assert.Equal(t, true, diffs[0]["consistent"])

	_, _, err = run(t, "--db", path, "reconcile", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid trip id")
}

func TestExecute_Reindex(t *testing.T) {
	path := seed(t)

	out, _, err := run(t, "--db", path, "--log-level", "error", "reindex")
	require.NoError(t, err)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, float64(1), stats["trips_indexed"])
}
