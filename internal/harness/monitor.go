package harness

import (
	"fmt"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/sim"
	"github.com/LukasVik/funny-fifo/internal/stall"
	"github.com/LukasVik/funny-fifo/internal/stimulus"
)

// MonitorOptions tunes the checks CheckData performs beyond strict order.
type MonitorOptions struct {
	// DrainCycles is how many read edges with ready asserted to keep
	// sampling after the last reference word. Any transfer in that window
	// is a duplicate. Edges where the toggler holds ready low do not count.
	DrainCycles int

	// StrictProtocol enables the hold check: once valid=1 meets ready=0,
	// valid and data must stay put until the transfer happens.
	StrictProtocol bool
}

// MonitorRecord collects what the monitor observed during a run.
type MonitorRecord struct {
	Transfers []Transfer

	// Stalls holds every decision of the ready toggler, in order.
	Stalls []int
}

// Checked returns how many transfers matched the reference.
func (r *MonitorRecord) Checked(ref stimulus.Sequence) int {
	n := 0
	for _, t := range r.Transfers {
		if t.Index >= ref.Len() || t.Value != ref.At(t.Index) {
			break
		}
		n++
	}
	return n
}

// CheckData drives read-side backpressure and scores every transfer against
// ref in strict order.
//
// It returns nil once all of ref has been seen and the drain window stayed
// quiet. A *Failure is returned on the first mismatch, duplicate or
// protocol violation; no further samples are taken.
func CheckData(p *sim.Process, port dut.ReadPort, cfg stall.Config, ref stimulus.Sequence, rng stall.Source, opts MonitorOptions, rec *MonitorRecord) error {
	p.Spawn(p.Name()+".toggle_ready", func(tp *sim.Process) error {
		return toggleReady(tp, port, cfg, rng, rec)
	})

	var h holdCheck
	next := 0
	for next < ref.Len() {
		if err := p.RisingEdge(port.Clock); err != nil {
			return err
		}
		valid, ready, data := port.Valid.High(), port.Ready.High(), port.Data.Get()
		if opts.StrictProtocol {
			if f := h.sample(valid, ready, data, next, p.Now()); f != nil {
				return f
			}
		}
		if !valid || !ready {
			continue
		}

		rec.Transfers = append(rec.Transfers, Transfer{Index: next, Value: data, At: p.Now()})
		if want := ref.At(next); data != want {
			return &Failure{
				Kind:     FailureDataMismatch,
				Index:    next,
				Expected: want,
				Observed: data,
				Message:  fmt.Sprintf("expected 0x%x, observed 0x%x", want, data),
				At:       p.Now(),
			}
		}
		next++
	}

	for open := opts.DrainCycles; open > 0; {
		if err := p.RisingEdge(port.Clock); err != nil {
			return err
		}
		if !port.Ready.High() {
			continue
		}
		open--
		if port.Valid.High() {
			data := port.Data.Get()
			rec.Transfers = append(rec.Transfers, Transfer{Index: next, Value: data, At: p.Now()})
			return &Failure{
				Kind:     FailureSequenceLength,
				Index:    next,
				Observed: data,
				Message:  fmt.Sprintf("extra transfer after all %d words were checked", ref.Len()),
				At:       p.Now(),
			}
		}
	}
	return nil
}

// toggleReady implements read-side backpressure. An inert config asserts
// ready once and returns. Otherwise ready is held low for a scheduled number
// of edges, then high for exactly one edge, forever.
func toggleReady(p *sim.Process, port dut.ReadPort, cfg stall.Config, rng stall.Source, rec *MonitorRecord) error {
	if cfg.Inert() {
		port.Ready.Set(1)
		return nil
	}
	for {
		n := stall.Decide(cfg, rng)
		rec.Stalls = append(rec.Stalls, n)

		port.Ready.Set(0)
		if err := p.Cycles(port.Clock, n); err != nil {
			return err
		}
		port.Ready.Set(1)
		if err := p.RisingEdge(port.Clock); err != nil {
			return err
		}
	}
}

// holdCheck remembers the previous edge to enforce the handshake hold rule.
type holdCheck struct {
	pending bool
	data    uint64
}

func (h *holdCheck) sample(valid, ready bool, data uint64, index int, at sim.Time) *Failure {
	if h.pending && (!valid || data != h.data) {
		msg := "valid dropped before the transfer completed"
		if valid {
			msg = fmt.Sprintf("data changed from 0x%x to 0x%x while waiting for ready", h.data, data)
		}
		return &Failure{
			Kind:     FailureProtocol,
			Index:    index,
			Expected: h.data,
			Observed: data,
			Message:  msg,
			At:       at,
		}
	}
	h.pending = valid && !ready
	h.data = data
	return nil
}
