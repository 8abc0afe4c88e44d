package harness

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/sim"
	"github.com/LukasVik/funny-fifo/internal/stall"
	"github.com/LukasVik/funny-fifo/internal/stimulus"
)

func TestRunClock_EdgeTimes(t *testing.T) {
	s := sim.New()
	clk := s.NewSignal("clk", 1)
	var rising, falling []sim.Time

	s.Spawn("clock", func(p *sim.Process) error { return RunClock(p, clk, 5) })
	s.Spawn("rising", func(p *sim.Process) error {
		for i := 0; i < 3; i++ {
			if err := p.RisingEdge(clk); err != nil {
				return err
			}
			rising = append(rising, p.Now())
		}
		p.Sim().Stop(nil)
		return nil
	})
	s.Spawn("falling", func(p *sim.Process) error {
		for {
			if err := p.FallingEdge(clk); err != nil {
				return err
			}
			falling = append(falling, p.Now())
		}
	})

	require.NoError(t, s.Run(context.Background(), 100))
	assert.Equal(t, []sim.Time{2, 7, 12}, rising)
	assert.Equal(t, []sim.Time{5, 10}, falling)
}

type sample struct {
	at   sim.Time
	data uint64
}

// acceptor plays the device side of a write port: ready follows readyAt,
// and every edge that sees valid and ready is recorded.
func acceptor(port dut.WritePort, readyAt func(edge int) bool, got *[]sample) sim.ProcessFunc {
	return func(p *sim.Process) error {
		port.Ready.SetHigh(readyAt(0))
		for edge := 1; ; edge++ {
			if err := p.RisingEdge(port.Clock); err != nil {
				return err
			}
			if port.Valid.High() && port.Ready.High() {
				*got = append(*got, sample{at: p.Now(), data: port.Data.Get()})
			}
			port.Ready.SetHigh(readyAt(edge))
		}
	}
}

func descendingSeq(n int) (stimulus.Sequence, error) {
	return stimulus.Generate(stimulus.Descending, 0, 8, n)
}

func pushAndStop(port dut.WritePort, cfg stall.Config, n int, rec *DriverRecord) sim.ProcessFunc {
	return func(p *sim.Process) error {
		s, err := descendingSeq(n)
		if err != nil {
			return err
		}
		if err := PushData(p, port, cfg, s, rand.New(rand.NewPCG(3, 4)), rec); err != nil {
			return err
		}
		p.Sim().Stop(nil)
		return nil
	}
}

func TestPushData_HoldsUntilReady(t *testing.T) {
	b := newBench(10)
	var got []sample
	var rec DriverRecord
	// Ready rises after the second edge.
	b.s.Spawn("device", acceptor(b.w, func(edge int) bool { return edge >= 2 }, &got))
	b.s.Spawn("driver", pushAndStop(b.w, stall.Default(), 3, &rec))

	require.NoError(t, b.s.Run(context.Background(), 1000))
	assert.Equal(t, []sample{{25, 255}, {35, 254}, {45, 253}}, got)
	assert.Equal(t, 3, rec.Accepted)
	assert.Equal(t, []int{0, 0, 0}, rec.Stalls)
	assert.True(t, rec.Done)
	assert.True(t, rec.Delivered())
	assert.Equal(t, sim.Time(45), rec.DoneAt)
}

func TestPushData_StallsBetweenWords(t *testing.T) {
	b := newBench(10)
	var got []sample
	var rec DriverRecord
	cfg := stall.Config{ProbabilityPercent: 100, MinStallCycles: 2, MaxStallCycles: 2}
	b.s.Spawn("device", acceptor(b.w, func(int) bool { return true }, &got))
	b.s.Spawn("driver", pushAndStop(b.w, cfg, 3, &rec))

	require.NoError(t, b.s.Run(context.Background(), 1000))
	assert.Equal(t, []sample{{5, 255}, {35, 254}, {65, 253}}, got)
	assert.Equal(t, []int{2, 2, 2}, rec.Stalls)
	assert.Equal(t, sim.Time(85), rec.DoneAt)
}

func TestPushData_NeverReadyNeverDone(t *testing.T) {
	b := newBench(10)
	var got []sample
	var rec DriverRecord
	b.s.Spawn("device", acceptor(b.w, func(int) bool { return false }, &got))
	b.s.Spawn("driver", pushAndStop(b.w, stall.Default(), 3, &rec))

	err := b.s.Run(context.Background(), 500)
	assert.True(t, sim.IsDeadline(err), "got %v", err)
	assert.Empty(t, got)
	assert.Zero(t, rec.Accepted)
	assert.False(t, rec.Done)
	assert.False(t, rec.Delivered())
	assert.Equal(t, uint64(1), b.w.Valid.Get(), "the first word stays presented")
	assert.Equal(t, uint64(255), b.w.Data.Get())
}
