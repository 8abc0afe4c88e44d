package sweep

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/harness"
)

// PointResult is the outcome of one sweep point.
type PointResult struct {
	Point Point `json:"point"`

	// Result is nil when the point was rejected with Err.
	Result *harness.Result `json:"result,omitempty"`
	Err    error           `json:"-"`
}

// Passed reports whether the point ran and passed.
func (r PointResult) Passed() bool {
	return r.Err == nil && r.Result != nil && r.Result.Passed
}

// Report aggregates a finished sweep.
type Report struct {
	Plan   Plan          `json:"-"`
	Points []PointResult `json:"points"`
	Passed int           `json:"passed"`
	Failed int           `json:"failed"`
}

// OK reports whether every point passed.
func (r *Report) OK() bool { return r.Failed == 0 }

// Failures returns the points that did not pass, in plan order.
func (r *Report) Failures() []PointResult {
	var out []PointResult
	for _, p := range r.Points {
		if !p.Passed() {
			out = append(out, p)
		}
	}
	return out
}

// Sink receives each point as soon as it finishes. Calls are serialized.
type Sink interface {
	WritePoint(ctx context.Context, r PointResult) error
}

// BuilderFunc returns the device builder for a point.
type BuilderFunc func(p Point) (dut.Builder, error)

// Runner executes sweep plans.
//
// Thread-safety: a Runner may execute several plans concurrently; it holds
// no per-sweep state.
type Runner struct {
	logger *slog.Logger
	seeds  func() uint64
	sink   Sink
	build  BuilderFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for sweep progress.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithSeedSource sets where fresh seeds come from.
func WithSeedSource(next func() uint64) Option {
	return func(r *Runner) {
		r.seeds = next
	}
}

// WithSink persists each point as it finishes.
func WithSink(s Sink) Option {
	return func(r *Runner) {
		r.sink = s
	}
}

// WithBuilder replaces the device builder. The default builds an
// AsyncFIFO of the point's variant.
func WithBuilder(b BuilderFunc) Option {
	return func(r *Runner) {
		r.build = b
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		seeds:  rand.Uint64,
		build: func(p Point) (dut.Builder, error) {
			return dut.NewBuilder(p.Variant)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every point of plan, at most plan.Parallel at a time.
//
// A failing or rejected point never stops the others; it is counted in the
// report. The returned error is reserved for an invalid plan, a sink error
// or ctx cancellation.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	points := plan.Points(r.seeds)
	results := make([]PointResult, len(points))
	r.logger.Info("sweep started",
		slog.String("name", plan.Name),
		slog.Int("points", len(points)),
		slog.Int("parallel", plan.Parallel))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(plan.Parallel)

	for i, pt := range points {
		g.Go(func() error {
			pr, err := r.runPoint(gctx, pt)
			if err != nil {
				return err
			}
			results[i] = pr

			if r.sink == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if err := r.sink.WritePoint(gctx, pr); err != nil {
				return fmt.Errorf("sweep point %d: %w", pt.Index, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Plan: plan, Points: results}
	for _, pr := range results {
		if pr.Passed() {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	r.logger.Info("sweep finished",
		slog.String("name", plan.Name),
		slog.Int("passed", report.Passed),
		slog.Int("failed", report.Failed))
	return report, nil
}

// runPoint runs one point. Only cancellation is returned as an error;
// everything else is recorded in the PointResult.
func (r *Runner) runPoint(ctx context.Context, pt Point) (PointResult, error) {
	logger := r.logger.With(
		slog.Int("point", pt.Index),
		slog.Uint64("seed", pt.Seed),
		slog.Int("width", pt.DataWidth),
		slog.Int("depth", pt.FIFODepth))

	build, err := r.build(pt)
	if err != nil {
		logger.Warn("point rejected", slog.Any("error", err))
		return PointResult{Point: pt, Err: err}, nil
	}

	res, err := harness.Run(ctx, pt.Params, build, harness.WithLogger(logger))
	if err != nil {
		if ctx.Err() != nil {
			return PointResult{}, fmt.Errorf("sweep point %d: %w", pt.Index, err)
		}
		logger.Warn("point rejected", slog.Any("error", err))
		return PointResult{Point: pt, Err: err}, nil
	}

	if res.Passed {
		logger.Debug("point passed", slog.Int("words", res.WordsChecked))
	} else {
		logger.Info("point failed", slog.String("state", string(res.State)), slog.Any("failure", res.Failure))
	}
	return PointResult{Point: pt, Result: res}, nil
}

// Replay reruns a single point, typically one read back from the result
// store. The point's Params must carry a resolved seed; a run from the same
// parameters reproduces the stored digest.
func (r *Runner) Replay(ctx context.Context, pt Point) (PointResult, error) {
	if pt.Params.Seed == nil {
		return PointResult{}, fmt.Errorf("replay point %d: seed is not resolved", pt.Index)
	}
	return r.runPoint(ctx, pt)
}
