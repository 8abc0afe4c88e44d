package store

import (
	"context"
	"fmt"
)

// SweepState summarizes how far a stored sweep got, for resuming or
// reporting an interrupted run.
type SweepState struct {
	Sweep   Sweep
	Points  []PointRecord
	Passed  int
	Failed  int
	LastSeq int64

	// Missing lists the point indices in [0, Sweep.Points) that have no
	// record, in ascending order.
	Missing []int

	// IsComplete is true when every expected point has a record.
	IsComplete bool
}

// OK reports whether the sweep finished with every point passing.
func (s SweepState) OK() bool {
	return s.IsComplete && s.Failed == 0
}

// GetSweepState retrieves a sweep with all its points and works out which
// points are still missing.
// Returns sql.ErrNoRows (wrapped) if the sweep does not exist.
func (s *Store) GetSweepState(ctx context.Context, sweepID string) (SweepState, error) {
	sw, err := s.ReadSweep(ctx, sweepID)
	if err != nil {
		return SweepState{}, fmt.Errorf("get sweep state: %w", err)
	}

	points, err := s.ReadPoints(ctx, sweepID)
	if err != nil {
		return SweepState{}, fmt.Errorf("get sweep state: %w", err)
	}

	state := SweepState{
		Sweep:   sw,
		Points:  points,
		Missing: []int{},
	}

	seen := make(map[int]bool, len(points))
	for _, p := range points {
		seen[p.Index] = true
		if p.Passed {
			state.Passed++
		} else {
			state.Failed++
		}
		if p.Seq > state.LastSeq {
			state.LastSeq = p.Seq
		}
	}

	for i := 0; i < sw.Points; i++ {
		if !seen[i] {
			state.Missing = append(state.Missing, i)
		}
	}
	state.IsComplete = len(state.Missing) == 0

	return state, nil
}
