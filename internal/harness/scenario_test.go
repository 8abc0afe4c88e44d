package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenarios_AllPass(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 6)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			out, err := RunScenario(context.Background(), sc)
			require.NoError(t, err)
			assert.True(t, out.Pass(), "assertion failures: %v", out.Errors)
		})
	}
}

func TestLoadScenarios_SortedByFileName(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, sc := range scenarios {
		names[i] = sc.Name
	}
	assert.Equal(t, []string{
		"inert_stalls",
		"half_stalls",
		"flip_bit",
		"stuck_device",
		"inverted_stall_range",
		"no_ready_overflow",
	}, names)
}

func TestLoadScenarios_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	body := []byte("name: twice\ndescription: d\nassertions:\n  - type: in_order\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"twice" already used by a.yaml`)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: d\nfifo_dept: 7\nassertions:\n  - type: in_order\n",
			want: "field fifo_dept not found",
		},
		{
			name: "unknown stall field",
			yaml: "name: x\ndescription: d\nread_stall:\n  probability: 5\nassertions:\n  - type: in_order\n",
			want: "field probability not found",
		},
		{
			name: "missing name",
			yaml: "description: d\nassertions:\n  - type: in_order\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: x\nassertions:\n  - type: in_order\n",
			want: "description is required",
		},
		{
			name: "no assertions",
			yaml: "name: x\ndescription: d\n",
			want: "assertions list is required",
		},
		{
			name: "unknown device",
			yaml: "name: x\ndescription: d\ndevice: sram\nassertions:\n  - type: in_order\n",
			want: `unknown device "sram"`,
		},
		{
			name: "unknown variant",
			yaml: "name: x\ndescription: d\nvariant: turbo\nassertions:\n  - type: in_order\n",
			want: "turbo",
		},
		{
			name: "fault on stuck device",
			yaml: "name: x\ndescription: d\ndevice: stuck\nfault:\n  flip_bit:\n    index: 1\n    bit: 0\nassertions:\n  - type: in_order\n",
			want: "stuck device",
		},
		{
			name: "empty fault",
			yaml: "name: x\ndescription: d\nfault: {}\nassertions:\n  - type: in_order\n",
			want: "flip_bit is required",
		},
		{
			name: "bit out of range",
			yaml: "name: x\ndescription: d\nfault:\n  flip_bit:\n    index: 1\n    bit: 64\nassertions:\n  - type: in_order\n",
			want: "bit must be within 0..63",
		},
		{
			name: "assertion without type",
			yaml: "name: x\ndescription: d\nassertions:\n  - state: passed\n",
			want: "assertions[0]: type is required",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: d\nassertions:\n  - type: vibes\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "unknown state",
			yaml: "name: x\ndescription: d\nassertions:\n  - type: state\n    state: fine\n",
			want: `unknown state "fine"`,
		},
		{
			name: "inverted bounds",
			yaml: "name: x\ndescription: d\nassertions:\n  - type: words_checked\n    min: 5\n    max: 2\n",
			want: "min 5 exceeds max 2",
		},
		{
			name: "unbounded words_checked",
			yaml: "name: x\ndescription: d\nassertions:\n  - type: words_checked\n",
			want: "min or max is required",
		},
		{
			name: "unknown failure kind",
			yaml: "name: x\ndescription: d\nassertions:\n  - type: failure\n    kind: Oops\n",
			want: `unknown failure kind "Oops"`,
		},
		{
			name: "empty trace prefix",
			yaml: "name: x\ndescription: d\nassertions:\n  - type: trace_prefix\n",
			want: "values are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScenario_ParamsDefaults(t *testing.T) {
	sc, err := ParseScenario([]byte("name: x\ndescription: d\ndata_width: 16\nfifo_depth: 31\nassertions:\n  - type: in_order\n"))
	require.NoError(t, err)

	p := sc.Params()
	assert.Nil(t, p.Seed)
	assert.Equal(t, 16, p.DataWidth)
	assert.Equal(t, 31, p.FIFODepth)
	assert.True(t, p.WriteStall.Inert())
	assert.True(t, p.ReadStall.Inert())
	assert.NoError(t, p.Validate())
}

func TestRunScenario_FreshSeedIsRecorded(t *testing.T) {
	sc, err := ParseScenario([]byte("name: x\ndescription: d\ndata_width: 8\nfifo_depth: 7\nassertions:\n  - type: state\n    state: passed\n  - type: in_order\n"))
	require.NoError(t, err)

	out, err := RunScenario(context.Background(), sc, WithSeedSource(func() uint64 { return 99 }))
	require.NoError(t, err)
	assert.True(t, out.Pass(), "assertion failures: %v", out.Errors)
	assert.Equal(t, uint64(99), out.Result.Seed)
}

func TestRunScenario_ReportsFailedAssertions(t *testing.T) {
	sc, err := ParseScenario([]byte(`name: wrong_expectations
description: "every assertion here is wrong for a healthy run"
seed: 1337
data_width: 8
fifo_depth: 7
assertions:
  - type: state
    state: failed_timeout
  - type: words_checked
    max: 3
  - type: failure
    kind: RunTimeout
  - type: trace_prefix
    values: [1, 2]
  - type: config_error
`))
	require.NoError(t, err)

	out, err := RunScenario(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, out.Pass())
	require.Len(t, out.Errors, 5)
	assert.Contains(t, out.Errors[0], "assertion state failed: expected failed_timeout, got passed")
	assert.Contains(t, out.Errors[1], "<= 3")
	assert.Contains(t, out.Errors[2], "no failure")
	assert.Contains(t, out.Errors[3], "[1 2]")
	assert.Contains(t, out.Errors[4], "run accepted")
}

func TestEvaluateAssertions_RejectedRun(t *testing.T) {
	sc := &Scenario{Assertions: []Assertion{{Type: AssertState, State: string(StatePassed)}}}
	runErr := &ConfigError{Field: "fifo_depth", Message: "must be positive"}

	errs := EvaluateAssertions(sc, nil, runErr)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "a completed run")
}

func TestEvaluateAssertions_ConfigErrorField(t *testing.T) {
	runErr := &ConfigError{Field: "fifo_depth", Message: "must be positive"}

	match := &Scenario{Assertions: []Assertion{{Type: AssertConfigError, Field: "fifo_depth"}}}
	assert.Empty(t, EvaluateAssertions(match, nil, runErr))

	anyField := &Scenario{Assertions: []Assertion{{Type: AssertConfigError}}}
	assert.Empty(t, EvaluateAssertions(anyField, nil, runErr))

	other := &Scenario{Assertions: []Assertion{{Type: AssertConfigError, Field: "data_width"}}}
	errs := EvaluateAssertions(other, nil, runErr)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "error on data_width")
}

func TestEvaluateAssertions_InOrderCatchesWrongValue(t *testing.T) {
	sc := &Scenario{Assertions: []Assertion{{Type: AssertInOrder}}}
	res := &Result{
		DataWidth: 8,
		WordCount: 3,
		Transfers: []Transfer{{Index: 0, Value: 255}, {Index: 1, Value: 9}},
	}

	errs := EvaluateAssertions(sc, res, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "word 1 = 254")
}
