package harness

import (
	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/sim"
	"github.com/LukasVik/funny-fifo/internal/stall"
	"github.com/LukasVik/funny-fifo/internal/stimulus"
)

// DriverRecord collects what the driver did during a run.
type DriverRecord struct {
	// Accepted counts words the device took.
	Accepted int

	// Stalls holds every stall decision, in order.
	Stalls []int

	// Done is set once the last word has been accepted.
	Done   bool
	DoneAt sim.Time
}

// Delivered reports whether the device has accepted every word. It is the
// one piece of driver state another activity may read, and only from a
// process running on the same kernel.
func (r *DriverRecord) Delivered() bool { return r.Done }

// PushData drives the write side of the handshake until every word of seq
// has been accepted.
//
// Each word is presented with valid=1 and held until a rising write-clock
// edge samples ready=1. Valid and data are then cleared and the driver idles
// for the number of edges the stall scheduler picks.
func PushData(p *sim.Process, port dut.WritePort, cfg stall.Config, seq stimulus.Sequence, rng stall.Source, rec *DriverRecord) error {
	port.Valid.Set(0)
	port.Data.Set(0)

	for i := 0; i < seq.Len(); i++ {
		port.Valid.Set(1)
		port.Data.Set(seq.At(i))
		for {
			if err := p.RisingEdge(port.Clock); err != nil {
				return err
			}
			if port.Ready.High() {
				break
			}
		}
		rec.Accepted++

		port.Valid.Set(0)
		port.Data.Set(0)

		n := stall.Decide(cfg, rng)
		rec.Stalls = append(rec.Stalls, n)
		if err := p.Cycles(port.Clock, n); err != nil {
			return err
		}
	}

	rec.Done = true
	rec.DoneAt = p.Now()
	return nil
}
