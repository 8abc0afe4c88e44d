package sim

import (
	"errors"
	"fmt"
	"log/slog"
)

// ProcessFunc is the body of a process. It runs until it returns or a wait
// primitive reports ErrStopped.
type ProcessFunc func(p *Process) error

// Process is a cooperative activity scheduled by a Simulator.
//
// A process only runs while the kernel has handed control to it; every wait
// primitive hands control back. Process methods must only be called from the
// process's own goroutine.
type Process struct {
	sim    *Simulator
	name   string
	fn     ProcessFunc
	resume chan bool

	started  bool
	finished bool
	killed   bool
	err      error
}

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// Sim returns the owning simulator.
func (p *Process) Sim() *Simulator { return p.sim }

// Now returns the current simulated time.
func (p *Process) Now() Time { return p.sim.now }

// Done reports whether the process body has returned.
func (p *Process) Done() bool { return p.finished }

// Err returns the error the process body returned, if it has finished.
func (p *Process) Err() error { return p.err }

// Spawn starts a child process. It becomes runnable in the next delta cycle.
func (p *Process) Spawn(name string, fn ProcessFunc) *Process {
	return p.sim.Spawn(name, fn)
}

// Wait suspends the process for d time units. A zero duration yields until
// all delta cycles of the current time step have settled.
func (p *Process) Wait(d Time) error {
	if d < 0 {
		return fmt.Errorf("sim: process %s: negative wait %d", p.name, d)
	}
	p.sim.schedule(p.sim.now+d, p)
	return p.suspend()
}

// RisingEdge suspends until the next 0 -> 1 transition of sig.
func (p *Process) RisingEdge(sig *Signal) error {
	return p.await(sig, Rising)
}

// FallingEdge suspends until the next 1 -> 0 transition of sig.
func (p *Process) FallingEdge(sig *Signal) error {
	return p.await(sig, Falling)
}

// Changed suspends until the value of sig changes.
func (p *Process) Changed(sig *Signal) error {
	return p.await(sig, AnyChange)
}

// Cycles suspends for n rising edges of clk. n <= 0 returns immediately.
func (p *Process) Cycles(clk *Signal, n int) error {
	for i := 0; i < n; i++ {
		if err := p.RisingEdge(clk); err != nil {
			return err
		}
	}
	return nil
}

func (p *Process) await(sig *Signal, e Edge) error {
	if sig.sim != p.sim {
		return fmt.Errorf("sim: process %s waits on foreign signal %s", p.name, sig.name)
	}
	sig.addWaiter(e, p)
	return p.suspend()
}

// suspend hands control back to the kernel and blocks until resumed.
func (p *Process) suspend() error {
	if p.killed {
		return ErrStopped
	}
	p.sim.yield <- struct{}{}
	if ok := <-p.resume; !ok {
		p.killed = true
		return ErrStopped
	}
	return nil
}

// main is the goroutine entry point.
func (p *Process) main() {
	defer func() {
		if r := recover(); r != nil {
			p.err = &KernelError{
				Code:    ErrCodeProcessPanic,
				Message: fmt.Sprint(r),
				At:      p.sim.now,
				Process: p.name,
			}
		}
		p.finished = true
		p.sim.yield <- struct{}{}
	}()

	p.err = p.fn(p)
	if p.err != nil && !errors.Is(p.err, ErrStopped) {
		p.sim.logger.Debug("process failed", slog.String("process", p.name), slog.Any("error", p.err))
	}
}
