package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/sim"
	"github.com/LukasVik/funny-fifo/internal/stimulus"
)

// Independent PCG streams per consumer, so changing one side's stall config
// never shifts the other side's decisions or the setup draws.
const (
	streamSetup      uint64 = 0x7365747570
	streamWriteStall uint64 = 0x7772697465
	streamReadStall  uint64 = 0x7265616400
)

// Option configures a run.
type Option func(*options)

type options struct {
	logger *slog.Logger
	seeds  func() uint64
}

// WithLogger sets the logger for run and kernel diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSeedSource replaces the source of fresh seeds used when Params.Seed
// is nil.
func WithSeedSource(next func() uint64) Option {
	return func(o *options) {
		o.seeds = next
	}
}

// Run executes one run end to end against a device built by build.
//
// Invalid parameters return a *ConfigError before any clock starts. A
// completed run, passed or failed, returns a Result and a nil error; the
// error return is reserved for configuration problems and ctx cancellation.
//
// Execution flow:
//  1. Validate params and resolve the seed
//  2. Draw clock periods and word count from the setup stream
//  3. Build the device and start both clocks
//  4. Start driver, monitor and watchdog
//  5. Run the kernel under the simulated time budget
func Run(ctx context.Context, params Params, build dut.Builder, opts ...Option) (*Result, error) {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		seeds:  rand.Uint64,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	rule, _ := stimulus.ParseRule(string(params.Pattern))

	var seed uint64
	if params.Seed != nil {
		seed = *params.Seed
	} else {
		seed = o.seeds()
	}
	logger := o.logger.With(slog.Uint64("seed", seed))

	// Always draw, so explicit periods do not shift the word count.
	setup := rand.New(rand.NewPCG(seed, streamSetup))
	writePeriod := drawPeriod(setup)
	readPeriod := drawPeriod(setup)
	if params.WriteClockPeriod > 0 {
		writePeriod = params.WriteClockPeriod
	}
	if params.ReadClockPeriod > 0 {
		readPeriod = params.ReadClockPeriod
	}

	s := sim.New(sim.WithLogger(logger))
	dev, err := build(s, dut.Config{DataWidth: params.DataWidth, FIFODepth: params.FIFODepth})
	if err != nil {
		return nil, &ConfigError{Field: "device", Message: err.Error()}
	}
	if dev.DataWidth() != params.DataWidth || dev.FIFODepth() != params.FIFODepth {
		return nil, &ConfigError{
			Field: "device",
			Message: fmt.Sprintf("%s reports width %d depth %d, want width %d depth %d",
				dev.Name(), dev.DataWidth(), dev.FIFODepth(), params.DataWidth, params.FIFODepth),
		}
	}
	depth := dev.FIFODepth()

	words := 2*depth + setup.IntN(2*depth)
	if params.WordCount > 0 {
		words = params.WordCount
	}

	// The driver and the monitor each generate their own copy.
	seq, err := stimulus.Generate(rule, seed, params.DataWidth, words)
	if err != nil {
		return nil, &ConfigError{Field: "pattern", Message: err.Error()}
	}
	ref, err := stimulus.Generate(rule, seed, params.DataWidth, words)
	if err != nil {
		return nil, &ConfigError{Field: "pattern", Message: err.Error()}
	}

	drain := params.drainCycles()
	budget := params.Timeout
	if budget == 0 {
		budget = TimeoutBudget(words, depth, writePeriod, readPeriod, params.WriteStall, params.ReadStall, drain)
	}

	res := &Result{
		State:            StateInitialized,
		Seed:             seed,
		DataWidth:        params.DataWidth,
		FIFODepth:        depth,
		WordCount:        words,
		WriteClockPeriod: writePeriod,
		ReadClockPeriod:  readPeriod,
		Budget:           budget,
	}
	logger.Debug("run initialized",
		slog.String("device", dev.Name()),
		slog.Int("width", params.DataWidth),
		slog.Int("depth", depth),
		slog.Int("words", words),
		slog.Int64("write_period", int64(writePeriod)),
		slog.Int64("read_period", int64(readPeriod)),
		slog.Int64("budget", int64(budget)),
	)

	w, r := dev.WritePort(), dev.ReadPort()
	s.Spawn("write_clock", func(p *sim.Process) error { return RunClock(p, w.Clock, writePeriod) })
	s.Spawn("read_clock", func(p *sim.Process) error { return RunClock(p, r.Clock, readPeriod) })
	res.State = StateClocksRunning

	var drv DriverRecord
	var mon MonitorRecord
	writeRNG := rand.New(rand.NewPCG(seed, streamWriteStall))
	readRNG := rand.New(rand.NewPCG(seed, streamReadStall))

	s.Spawn("driver", func(p *sim.Process) error {
		return PushData(p, w, params.WriteStall, seq, writeRNG, &drv)
	})
	s.Spawn("monitor", func(p *sim.Process) error {
		mopts := MonitorOptions{DrainCycles: drain, StrictProtocol: params.StrictProtocol}
		if err := CheckData(p, r, params.ReadStall, ref, readRNG, mopts, &mon); err != nil {
			return err
		}
		p.Sim().Stop(nil)
		return nil
	})
	s.Spawn("watchdog", func(p *sim.Process) error {
		return watchQuiescence(p, r, drv.Delivered, words, QuiescenceLimit(params.ReadStall))
	})
	res.State = StateDrivingAndChecking

	runErr := s.Run(ctx, budget)

	res.EndedAt = s.Now()
	res.Transfers = mon.Transfers
	res.WriteStalls = drv.Stalls
	res.ReadStalls = mon.Stalls
	res.WordsAccepted = drv.Accepted
	res.WordsChecked = mon.Checked(ref)
	if n := len(mon.Transfers); n > 0 {
		res.Elapsed = mon.Transfers[n-1].At
	}

	switch f, isFailure := AsFailure(runErr); {
	case runErr == nil:
		res.State = StatePassed
		res.Passed = true
	case isFailure:
		res.State = f.Kind.State()
		res.Failure = f
	case sim.IsDeadline(runErr):
		res.State = StateFailedTimeout
		res.Failure = &Failure{
			Kind:    FailureTimeout,
			Index:   res.WordsChecked,
			Message: fmt.Sprintf("stalled or deadlocked: %d of %d words checked within %d time units", res.WordsChecked, words, budget),
			At:      res.EndedAt,
		}
	default:
		return nil, fmt.Errorf("run seed %d: %w", seed, runErr)
	}

	digest, err := res.computeDigest()
	if err != nil {
		return nil, fmt.Errorf("run seed %d: %w", seed, err)
	}
	res.Digest = digest

	attrs := []any{
		slog.String("state", string(res.State)),
		slog.Int("words_checked", res.WordsChecked),
		slog.Int("words", words),
		slog.Int64("elapsed", int64(res.Elapsed)),
	}
	if res.Failure != nil {
		attrs = append(attrs, slog.String("kind", string(res.Failure.Kind)), slog.Int("index", res.Failure.Index))
	}
	logger.Debug("run finished", attrs...)
	return res, nil
}

func drawPeriod(rng *rand.Rand) sim.Time {
	return sim.Time(2 * (MinHalfPeriod + rng.IntN(MaxHalfPeriod-MinHalfPeriod+1)))
}

// watchQuiescence fails the run with a sequence length mismatch when the
// driver has delivered everything but the read side stays silent for limit
// edges while words are still missing. It samples the boundary on its own
// and shares nothing with the monitor. The only state it reads outside the
// boundary is delivered; processes never run concurrently, so the read
// needs no lock.
func watchQuiescence(p *sim.Process, port dut.ReadPort, delivered func() bool, words, limit int) error {
	seen, idle := 0, 0
	for {
		if err := p.RisingEdge(port.Clock); err != nil {
			return err
		}
		if port.Valid.High() && port.Ready.High() {
			seen++
			idle = 0
			continue
		}
		if !delivered() || seen >= words {
			continue
		}
		idle++
		if idle >= limit {
			return &Failure{
				Kind:    FailureSequenceLength,
				Index:   seen,
				Message: fmt.Sprintf("device accepted all %d words but only %d came out; read side idle for %d cycles", words, seen, idle),
				At:      p.Now(),
			}
		}
	}
}
