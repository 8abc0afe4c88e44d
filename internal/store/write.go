package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/LukasVik/funny-fifo/internal/sweep"
)

// CreateSweep records the start of a sweep and returns it with a fresh
// UUIDv7 id and the next logical seq. points is how many points the plan
// expands to.
func (s *Store) CreateSweep(ctx context.Context, plan sweep.Plan, points int) (Sweep, error) {
	planJSON, err := marshalPlan(plan)
	if err != nil {
		return Sweep{}, fmt.Errorf("create sweep: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Sweep{}, fmt.Errorf("create sweep: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := nextSeq(ctx, tx, "sweeps")
	if err != nil {
		return Sweep{}, fmt.Errorf("create sweep: %w", err)
	}

	sw := Sweep{
		ID:     uuid.Must(uuid.NewV7()).String(),
		Seq:    seq,
		Name:   plan.Name,
		Plan:   plan,
		Points: points,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sweeps (id, seq, name, plan, points)
		VALUES (?, ?, ?, ?, ?)
	`, sw.ID, sw.Seq, sw.Name, planJSON, sw.Points)
	if err != nil {
		return Sweep{}, fmt.Errorf("create sweep: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Sweep{}, fmt.Errorf("create sweep: commit: %w", err)
	}
	return sw, nil
}

// WritePoint records one finished point of a sweep.
// Uses ON CONFLICT(sweep_id, idx) DO NOTHING, so writing the same point
// twice keeps the first record.
//
// Note: The sweep referenced by sweepID must exist (foreign key constraint).
func (s *Store) WritePoint(ctx context.Context, sweepID string, r sweep.PointResult) error {
	paramsJSON, err := marshalParams(r.Point.Params)
	if err != nil {
		return fmt.Errorf("write point %d: %w", r.Point.Index, err)
	}

	row := pointRow{
		state: StateRejected,
	}
	if r.Err != nil {
		msg := r.Err.Error()
		row.errMsg = &msg
	}
	if res := r.Result; res != nil {
		row.passed = res.Passed
		row.state = string(res.State)
		row.wordsChecked = res.WordsChecked
		row.wordCount = res.WordCount
		row.elapsed = int64(res.Elapsed)
		row.digest = res.Digest
		if row.failure, err = marshalFailure(res.Failure); err != nil {
			return fmt.Errorf("write point %d: %w", r.Point.Index, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write point %d: begin tx: %w", r.Point.Index, err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := nextSeq(ctx, tx, "points")
	if err != nil {
		return fmt.Errorf("write point %d: %w", r.Point.Index, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO points
		(sweep_id, idx, seq, seed, regression, variant, data_width, fifo_depth, params,
		 passed, state, failure, error, words_checked, word_count, elapsed, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sweep_id, idx) DO NOTHING
	`,
		sweepID,
		r.Point.Index,
		seq,
		strconv.FormatUint(r.Point.Seed, 10),
		r.Point.Regression,
		string(r.Point.Variant),
		r.Point.DataWidth,
		r.Point.FIFODepth,
		paramsJSON,
		row.passed,
		row.state,
		row.failure,
		row.errMsg,
		row.wordsChecked,
		row.wordCount,
		row.elapsed,
		row.digest,
	)
	if err != nil {
		return fmt.Errorf("write point %d: %w", r.Point.Index, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write point %d: commit: %w", r.Point.Index, err)
	}
	return nil
}

type pointRow struct {
	passed       bool
	state        string
	failure      *string
	errMsg       *string
	wordsChecked int
	wordCount    int
	elapsed      int64
	digest       string
}

// nextSeq returns the next logical sequence number of table.
func nextSeq(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
	var seq int64
	// table is one of two constants, never user input.
	err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM "+table).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

// Sink adapts the store to sweep.Sink for one sweep.
func (s *Store) Sink(sweepID string) sweep.Sink {
	return &pointSink{store: s, sweepID: sweepID}
}

type pointSink struct {
	store   *Store
	sweepID string
}

func (p *pointSink) WritePoint(ctx context.Context, r sweep.PointResult) error {
	return p.store.WritePoint(ctx, p.sweepID, r)
}
