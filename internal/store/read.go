package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/harness"
	"github.com/LukasVik/funny-fifo/internal/sweep"
)

// StateRejected marks a point that never ran, for example because its
// device could not be built.
const StateRejected = "rejected"

// Sweep is a stored sweep.
type Sweep struct {
	ID   string
	Seq  int64
	Name string
	Plan sweep.Plan

	// Points is how many points the plan expanded to.
	Points int
}

// PointRecord is a stored sweep point.
type PointRecord struct {
	SweepID string
	Index   int
	Seq     int64

	Seed       uint64
	Regression bool
	Variant    dut.Variant
	DataWidth  int
	FIFODepth  int

	// Params reproduce the run exactly, seed included.
	Params harness.Params

	Passed  bool
	State   string
	Failure *harness.Failure

	// Error is the rejection message of a point that never ran.
	Error string

	WordsChecked int
	WordCount    int
	Elapsed      int64
	Digest       string
}

// Point returns the sweep point the record was written from.
func (r PointRecord) Point() sweep.Point {
	return sweep.Point{
		Index:      r.Index,
		Seed:       r.Seed,
		Regression: r.Regression,
		DataWidth:  r.DataWidth,
		FIFODepth:  r.FIFODepth,
		Variant:    r.Variant,
		Params:     r.Params,
	}
}

// ListSweeps returns all sweeps ordered by seq.
//
// Returns empty slice (not nil) if the store holds no sweeps.
func (s *Store) ListSweeps(ctx context.Context) ([]Sweep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, name, plan, points
		FROM sweeps
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()

	sweeps := []Sweep{}
	for rows.Next() {
		sw, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		sweeps = append(sweeps, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweeps: %w", err)
	}
	return sweeps, nil
}

// ReadSweep retrieves a single sweep by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSweep(ctx context.Context, id string) (Sweep, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, name, plan, points
		FROM sweeps
		WHERE id = ?
	`, id)
	return scanSweep(row)
}

// LatestSweep returns the sweep with the highest seq.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) LatestSweep(ctx context.Context) (Sweep, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, name, plan, points
		FROM sweeps
		ORDER BY seq DESC
		LIMIT 1
	`)
	return scanSweep(row)
}

// ReadPoints returns every stored point of a sweep ordered by index.
//
// Returns empty slice (not nil) if none were written.
func (s *Store) ReadPoints(ctx context.Context, sweepID string) ([]PointRecord, error) {
	return s.queryPoints(ctx, `
		SELECT `+pointColumns+`
		FROM points
		WHERE sweep_id = ?
		ORDER BY idx ASC
	`, sweepID)
}

// ReadFailures returns the points of a sweep that did not pass, ordered by
// index.
func (s *Store) ReadFailures(ctx context.Context, sweepID string) ([]PointRecord, error) {
	return s.queryPoints(ctx, `
		SELECT `+pointColumns+`
		FROM points
		WHERE sweep_id = ? AND passed = 0
		ORDER BY idx ASC
	`, sweepID)
}

// ReadPoint retrieves one point of a sweep.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadPoint(ctx context.Context, sweepID string, index int) (PointRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+pointColumns+`
		FROM points
		WHERE sweep_id = ? AND idx = ?
	`, sweepID, index)
	return scanPoint(row)
}

func (s *Store) queryPoints(ctx context.Context, query string, args ...any) ([]PointRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	points := []PointRecord{}
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points: %w", err)
	}
	return points, nil
}

const pointColumns = `sweep_id, idx, seq, seed, regression, variant, data_width, fifo_depth, params,
		passed, state, failure, error, words_checked, word_count, elapsed, digest`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSweep(row scanner) (Sweep, error) {
	var sw Sweep
	var planJSON string
	if err := row.Scan(&sw.ID, &sw.Seq, &sw.Name, &planJSON, &sw.Points); err != nil {
		if err == sql.ErrNoRows {
			return Sweep{}, err
		}
		return Sweep{}, fmt.Errorf("scan sweep: %w", err)
	}

	plan, err := unmarshalPlan(planJSON)
	if err != nil {
		return Sweep{}, fmt.Errorf("sweep %s: %w", sw.ID, err)
	}
	sw.Plan = plan
	return sw, nil
}

func scanPoint(row scanner) (PointRecord, error) {
	var p PointRecord
	var seed, variant, paramsJSON string
	var failure, errMsg sql.NullString
	err := row.Scan(
		&p.SweepID, &p.Index, &p.Seq, &seed, &p.Regression, &variant,
		&p.DataWidth, &p.FIFODepth, &paramsJSON,
		&p.Passed, &p.State, &failure, &errMsg,
		&p.WordsChecked, &p.WordCount, &p.Elapsed, &p.Digest,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return PointRecord{}, err
		}
		return PointRecord{}, fmt.Errorf("scan point: %w", err)
	}

	if p.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return PointRecord{}, fmt.Errorf("point %d: seed: %w", p.Index, err)
	}
	p.Variant = dut.Variant(variant)
	if p.Params, err = unmarshalParams(paramsJSON); err != nil {
		return PointRecord{}, fmt.Errorf("point %d: %w", p.Index, err)
	}
	if failure.Valid {
		if p.Failure, err = unmarshalFailure(&failure.String); err != nil {
			return PointRecord{}, fmt.Errorf("point %d: %w", p.Index, err)
		}
	}
	p.Error = errMsg.String
	return p, nil
}
