package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_AllPass(t *testing.T) {
	dir := copyScenarios(t)

	out, err := execute(t, NewScenarioCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ inert_stalls")
	assert.Contains(t, out, "✓ inverted_stall_range")
	assert.Contains(t, out, "Scenario Summary: 6 passed, 0 failed, 6 total")
}

func TestScenario_UpdateThenMatch(t *testing.T) {
	dir := copyScenarios(t)

	out, err := execute(t, NewScenarioCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ half_stalls (golden updated)")
	assert.FileExists(t, filepath.Join(dir, "golden", "half_stalls.golden"))
	assert.NoFileExists(t, filepath.Join(dir, "golden", "inverted_stall_range.golden"),
		"a rejected run has no trace")

	out, err = execute(t, NewScenarioCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   ScenarioSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 6)
	for _, sc := range resp.Data.Scenarios {
		if sc.Name == "inverted_stall_range" {
			assert.Empty(t, sc.Golden)
			continue
		}
		assert.Equal(t, "match", sc.Golden, sc.Name)
	}
}

func TestScenario_GoldenMismatchFails(t *testing.T) {
	dir := copyScenarios(t)
	_, err := execute(t, NewScenarioCommand(&RootOptions{Format: "text"}), dir, "--update", "--filter", "flip_bit")
	require.NoError(t, err)

	golden := filepath.Join(dir, "golden", "flip_bit.golden")
	require.NoError(t, os.WriteFile(golden, []byte("{}"), 0o644))

	out, err := execute(t, NewScenarioCommand(&RootOptions{Format: "text"}), dir, "--filter", "flip_bit")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ flip_bit")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestScenario_Filter(t *testing.T) {
	dir := copyScenarios(t)

	out, err := execute(t, NewScenarioCommand(&RootOptions{Format: "text"}), dir, "--filter", "*_stalls")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ inert_stalls")
	assert.Contains(t, out, "✓ half_stalls")
	assert.NotContains(t, out, "flip_bit")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestScenario_FailingAssertion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", `
name: wrong
description: "Expects a failure from a correct device"
seed: 1337
data_width: 8
fifo_depth: 7
assertions:
  - type: state
    state: failed_mismatch
`)

	out, err := execute(t, NewScenarioCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
}

func TestScenario_Errors(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		_, err := execute(t, NewScenarioCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "scenarios directory not found")
	})

	t.Run("malformed scenario", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "bad.yaml", "name: bad\nbogus: 1\n")
		_, err := execute(t, NewScenarioCommand(&RootOptions{Format: "text"}), dir)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "bad.yaml")
	})

	t.Run("bad filter", func(t *testing.T) {
		_, err := execute(t, NewScenarioCommand(&RootOptions{Format: "text"}), copyScenarios(t), "--filter", "[")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid filter pattern")
	})
}

func TestScenario_Empty(t *testing.T) {
	out, err := execute(t, NewScenarioCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
