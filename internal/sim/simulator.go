package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// DefaultMaxDeltas bounds the number of delta cycles in one time step.
const DefaultMaxDeltas = 1000

// Simulator is the discrete-event kernel.
//
// CRITICAL: Run must be called from exactly one goroutine. Signals and
// processes created by a simulator must not be shared with another one.
type Simulator struct {
	now     Time
	seq     uint64
	timers  timerQueue
	signals []*Signal
	dirty   []*Signal
	procs   []*Process

	runnable  []*Process
	callbacks []func()

	yield chan struct{}

	stopped bool
	stopErr error

	maxDeltas int
	logger    *slog.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger used for kernel diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = l
	}
}

// WithMaxDeltas sets the delta-cycle limit per time step.
func WithMaxDeltas(n int) Option {
	return func(s *Simulator) {
		s.maxDeltas = n
	}
}

// New creates an idle simulator at time 0.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		yield:     make(chan struct{}),
		maxDeltas: DefaultMaxDeltas,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current simulated time.
func (s *Simulator) Now() Time { return s.now }

// Spawn registers a process. It becomes runnable in the next delta cycle, or
// at time 0 if the kernel has not started yet.
func (s *Simulator) Spawn(name string, fn ProcessFunc) *Process {
	p := &Process{
		sim:    s,
		name:   name,
		fn:     fn,
		resume: make(chan bool),
	}
	s.procs = append(s.procs, p)
	s.runnable = append(s.runnable, p)
	return p
}

// Always registers fn to run on every edge e of sig for the lifetime of the
// simulator. Writes made by fn are deferred like process writes.
func (s *Simulator) Always(sig *Signal, e Edge, fn func()) {
	sig.callbacks[e] = append(sig.callbacks[e], fn)
}

// Stop ends the run after the currently executing process suspends. err is
// returned from Run; nil means a clean finish. Only the first call counts.
func (s *Simulator) Stop(err error) {
	if s.stopped {
		return
	}
	s.stopped = true
	s.stopErr = err
}

// Stopped reports whether Stop has been called.
func (s *Simulator) Stopped() bool { return s.stopped }

// Run executes the simulation until a process calls Stop, a process returns
// an error, the simulated time would pass budget, or ctx is cancelled.
//
// Exceeding the budget returns a *KernelError with ErrCodeDeadline. Every
// process goroutine has exited by the time Run returns.
func (s *Simulator) Run(ctx context.Context, budget Time) error {
	defer s.shutdown()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.settle(); err != nil {
			return err
		}
		if s.stopped {
			return s.stopErr
		}

		next, ok := s.timers.peek()
		if !ok {
			return &KernelError{Code: ErrCodeStarved, Message: "no pending events", At: s.now}
		}
		if next.at > budget {
			s.now = budget
			return newDeadlineError(s.now, budget)
		}
		s.now = next.at
		s.runnable = append(s.runnable, s.timers.popDue(s.now)...)
	}
}

// settle runs delta cycles at the current time until nothing is runnable and
// no writes are pending.
func (s *Simulator) settle() error {
	for deltas := 0; len(s.runnable) > 0 || len(s.callbacks) > 0 || len(s.dirty) > 0; deltas++ {
		if deltas >= s.maxDeltas {
			return &KernelError{
				Code:    ErrCodeDeltaOverflow,
				Message: fmt.Sprintf("more than %d delta cycles", s.maxDeltas),
				At:      s.now,
			}
		}
		s.delta()
		if s.stopped {
			return nil
		}
	}
	return nil
}

// delta runs one evaluation phase followed by one update phase.
func (s *Simulator) delta() {
	callbacks := s.callbacks
	batch := s.runnable
	s.callbacks = nil
	s.runnable = nil

	for _, fn := range callbacks {
		fn()
	}

	for _, p := range batch {
		if p.finished {
			continue
		}
		s.resume(p)
		if p.finished && p.err != nil && !errors.Is(p.err, ErrStopped) {
			s.Stop(p.err)
		}
		if s.stopped {
			return
		}
	}

	s.commit()
}

// commit applies buffered writes and queues whatever the edges wake.
func (s *Simulator) commit() {
	dirty := s.dirty
	s.dirty = nil
	for _, sig := range dirty {
		rose, fell, changed := sig.commit()
		if !changed {
			continue
		}
		if rose {
			s.callbacks = append(s.callbacks, sig.callbacks[Rising]...)
			s.runnable = append(s.runnable, sig.take(Rising)...)
		}
		if fell {
			s.callbacks = append(s.callbacks, sig.callbacks[Falling]...)
			s.runnable = append(s.runnable, sig.take(Falling)...)
		}
		s.callbacks = append(s.callbacks, sig.callbacks[AnyChange]...)
		s.runnable = append(s.runnable, sig.take(AnyChange)...)
	}
}

// resume hands control to p and blocks until it suspends or returns.
func (s *Simulator) resume(p *Process) {
	if !p.started {
		p.started = true
		go p.main()
	} else {
		p.resume <- true
	}
	<-s.yield
}

func (s *Simulator) schedule(at Time, p *Process) {
	s.seq++
	s.timers.schedule(timer{at: at, seq: s.seq, proc: p})
}

// shutdown terminates every suspended process goroutine.
func (s *Simulator) shutdown() {
	for _, p := range s.procs {
		if !p.started || p.finished {
			p.finished = true
			continue
		}
		// Once killed, further waits fail without yielding, so the next
		// yield comes from the goroutine's exit.
		p.resume <- false
		<-s.yield
	}
	s.runnable = nil
	s.callbacks = nil
	s.timers = nil
}
