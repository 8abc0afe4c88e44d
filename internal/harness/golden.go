package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/LukasVik/funny-fifo/internal/trace"
)

// Canonical converts the reproducible part of a result to a map for
// canonical JSON. All times are simulated.
func (r *Result) Canonical() map[string]any {
	transfers := make([]any, len(r.Transfers))
	for i, t := range r.Transfers {
		transfers[i] = map[string]any{
			"index": t.Index,
			"value": t.Value,
			"at":    int64(t.At),
		}
	}

	m := map[string]any{
		"seed":               r.Seed,
		"data_width":         r.DataWidth,
		"fifo_depth":         r.FIFODepth,
		"word_count":         r.WordCount,
		"write_clock_period": int64(r.WriteClockPeriod),
		"read_clock_period":  int64(r.ReadClockPeriod),
		"budget":             int64(r.Budget),
		"state":              string(r.State),
		"words_checked":      r.WordsChecked,
		"words_accepted":     r.WordsAccepted,
		"ended_at":           int64(r.EndedAt),
		"transfers":          transfers,
		"write_stalls":       ints(r.WriteStalls),
		"read_stalls":        ints(r.ReadStalls),
	}
	if r.Failure != nil {
		m["failure"] = map[string]any{
			"kind":     string(r.Failure.Kind),
			"index":    r.Failure.Index,
			"expected": r.Failure.Expected,
			"observed": r.Failure.Observed,
			"message":  r.Failure.Message,
			"at":       int64(r.Failure.At),
		}
	}
	return m
}

// Snapshot renders the canonical JSON trace of a result. Two runs with the
// same parameters and seed produce identical snapshots.
func Snapshot(r *Result) ([]byte, error) {
	return trace.Marshal(r.Canonical())
}

func (r *Result) computeDigest() (string, error) {
	return trace.DigestValue(trace.DomainRun, r.Canonical())
}

func ints(in []int) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// AssertGolden compares the snapshot of result against
// {dir}/{name}.golden. Run the test with -update to regenerate.
func AssertGolden(t testing.TB, dir, name string, result *Result) {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
