package store

import (
	"path/filepath"
	"testing"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/harness"
	"github.com/LukasVik/funny-fifo/internal/sweep"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSweep stores a small plan expanding to points points.
func createTestSweep(t *testing.T, s *Store, name string, points int) Sweep {
	t.Helper()
	plan := sweep.DefaultPlan()
	plan.Name = name
	sw, err := s.CreateSweep(t.Context(), plan, points)
	if err != nil {
		t.Fatalf("CreateSweep() failed: %v", err)
	}
	return sw
}

// createTestPoint builds a point at index with the default run parameters.
func createTestPoint(index int, seed uint64) sweep.Point {
	params := harness.DefaultParams()
	params.Seed = harness.Seed(seed)
	params.DataWidth = 8
	params.FIFODepth = 7
	return sweep.Point{
		Index:     index,
		Seed:      seed,
		DataWidth: 8,
		FIFODepth: 7,
		Variant:   dut.VariantHandshake,
		Params:    params,
	}
}

// passedResult is a minimal passing result for pt.
func passedResult(pt sweep.Point) sweep.PointResult {
	return sweep.PointResult{
		Point: pt,
		Result: &harness.Result{
			Passed:       true,
			State:        harness.StatePassed,
			WordsChecked: 20,
			WordCount:    20,
			Elapsed:      415,
			Digest:       "d1",
		},
	}
}

// failedResult is a data mismatch at word 3 for pt.
func failedResult(pt sweep.Point) sweep.PointResult {
	return sweep.PointResult{
		Point: pt,
		Result: &harness.Result{
			State: harness.StateFailedMismatch,
			Failure: &harness.Failure{
				Kind:     harness.FailureDataMismatch,
				Index:    3,
				Expected: 252,
				Observed: 253,
				Message:  "data mismatch",
				At:       95,
			},
			WordsChecked: 3,
			WordCount:    20,
			Elapsed:      95,
			Digest:       "d2",
		},
	}
}
