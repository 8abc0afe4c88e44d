package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeFile creates dir/name with content and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// copyScenarios copies the harness scenario files into a temp dir so
// golden files can be written next to them.
func copyScenarios(t *testing.T) string {
	t.Helper()
	src := filepath.Join("..", "harness", "testdata", "scenarios")
	dst := t.TempDir()
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644))
	}
	return dst
}

// smallPlan is a two-point plan that passes.
const smallPlan = `
name:             "cli"
regression_seeds: [1337]
random_seeds:     0
data_widths:      [8]
fifo_depths:      [7, 15]
parallel:         2
`

// overflowPlan drives the no_ready variant far faster than it is read.
const overflowPlan = `
name:               "overflow"
regression_seeds:   [1337]
random_seeds:       0
data_widths:        [8]
fifo_depths:        [7]
variant:            "no_ready"
write_clock_period: 20
read_clock_period:  80
write_stall: {probability_percent: 0, min_stall_cycles: 1, max_stall_cycles: 1}
read_stall: {probability_percent: 0, min_stall_cycles: 1, max_stall_cycles: 1}
parallel:           1
`
