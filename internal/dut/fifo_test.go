package dut

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LukasVik/funny-fifo/internal/sim"
)

func startClock(s *sim.Simulator, clk *sim.Signal, period sim.Time) {
	s.Spawn(clk.Name(), func(p *sim.Process) error {
		for {
			clk.Set(0)
			if err := p.Wait(period / 2); err != nil {
				return err
			}
			clk.Set(1)
			if err := p.Wait(period - period/2); err != nil {
				return err
			}
		}
	})
}

// pushAll holds each word on the write port until the device accepts it.
func pushAll(words []uint64, w WritePort, accepted *int) sim.ProcessFunc {
	return func(p *sim.Process) error {
		for _, word := range words {
			w.Valid.Set(1)
			w.Data.Set(word)
			for {
				if err := p.RisingEdge(w.Clock); err != nil {
					return err
				}
				if w.Ready.High() {
					break
				}
			}
			*accepted++
			w.Valid.Set(0)
			w.Data.Set(0)
		}
		return nil
	}
}

func newFIFO(t *testing.T, s *sim.Simulator, width, depth int, variant Variant, opts ...Option) *AsyncFIFO {
	t.Helper()
	f, err := NewAsyncFIFO(s, Config{DataWidth: width, FIFODepth: depth}, variant, opts...)
	require.NoError(t, err)
	return f
}

func TestGrayRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 2, 3, 7, 8, 255, 1 << 40, ^uint64(0)} {
		assert.Equal(t, v, grayToBinary(binaryToGray(v)), "value %d", v)
	}
	// Consecutive Gray codes differ in exactly one bit.
	for v := uint64(0); v < 64; v++ {
		diff := binaryToGray(v) ^ binaryToGray(v+1)
		assert.Equal(t, uint64(0), diff&(diff-1), "value %d", v)
	}
}

func TestAsyncFIFO_TransfersInOrder(t *testing.T) {
	s := sim.New()
	f := newFIFO(t, s, 8, 4, VariantHandshake)
	w, r := f.WritePort(), f.ReadPort()
	startClock(s, w.Clock, 10)
	startClock(s, r.Clock, 14)

	words := []uint64{1, 2, 3, 4, 5, 6, 7}
	accepted := 0
	s.Spawn("push", pushAll(words, w, &accepted))

	var got []uint64
	s.Spawn("pop", func(p *sim.Process) error {
		r.Ready.Set(1)
		for len(got) < len(words) {
			if err := p.RisingEdge(r.Clock); err != nil {
				return err
			}
			if r.Valid.High() && r.Ready.High() {
				got = append(got, r.Data.Get())
			}
		}
		p.Sim().Stop(nil)
		return nil
	})

	require.NoError(t, s.Run(context.Background(), 10_000))
	assert.Equal(t, words, got)
	assert.Equal(t, len(words), accepted)
	assert.Equal(t, uint64(0), f.Dropped())
}

func TestAsyncFIFO_BackpressureWhenFull(t *testing.T) {
	s := sim.New()
	f := newFIFO(t, s, 8, 3, VariantHandshake)
	w, r := f.WritePort(), f.ReadPort()
	startClock(s, w.Clock, 10)
	startClock(s, r.Clock, 10)

	accepted := 0
	s.Spawn("push", pushAll([]uint64{1, 2, 3, 4, 5}, w, &accepted))

	var readyAtEnd bool
	s.Spawn("observe", func(p *sim.Process) error {
		if err := p.Cycles(w.Clock, 20); err != nil {
			return err
		}
		readyAtEnd = w.Ready.High()
		p.Sim().Stop(nil)
		return nil
	})

	require.NoError(t, s.Run(context.Background(), 10_000))
	assert.Equal(t, 3, accepted)
	assert.False(t, readyAtEnd)
	assert.Equal(t, uint64(3), f.Level())
	assert.False(t, r.Valid.High() && r.Ready.High())
}

func TestAsyncFIFO_NoReadyDropsOnOverflow(t *testing.T) {
	s := sim.New()
	f := newFIFO(t, s, 8, 2, VariantNoReady)
	w, r := f.WritePort(), f.ReadPort()
	startClock(s, w.Clock, 10)
	startClock(s, r.Clock, 10)

	accepted := 0
	s.Spawn("push", pushAll([]uint64{1, 2, 3, 4, 5}, w, &accepted))
	s.Spawn("observe", func(p *sim.Process) error {
		if err := p.Cycles(w.Clock, 20); err != nil {
			return err
		}
		p.Sim().Stop(nil)
		return nil
	})

	require.NoError(t, s.Run(context.Background(), 10_000))
	assert.Equal(t, 5, accepted, "ready is tied high")
	assert.Equal(t, uint64(3), f.Dropped())
	assert.Equal(t, uint64(2), f.Level())
	assert.True(t, r.Valid.High())
	assert.Equal(t, "pretty_fast_fifo_no_ready", f.Name())
}

func TestAsyncFIFO_OutputHook(t *testing.T) {
	s := sim.New()
	flipSecond := func(index, word uint64) uint64 {
		if index == 1 {
			return word ^ 0x80
		}
		return word
	}
	f := newFIFO(t, s, 8, 4, VariantHandshake, WithOutputHook(flipSecond))
	w, r := f.WritePort(), f.ReadPort()
	startClock(s, w.Clock, 10)
	startClock(s, r.Clock, 10)

	accepted := 0
	s.Spawn("push", pushAll([]uint64{1, 2, 3}, w, &accepted))

	var got []uint64
	s.Spawn("pop", func(p *sim.Process) error {
		r.Ready.Set(1)
		for len(got) < 3 {
			if err := p.RisingEdge(r.Clock); err != nil {
				return err
			}
			if r.Valid.High() && r.Ready.High() {
				got = append(got, r.Data.Get())
			}
		}
		p.Sim().Stop(nil)
		return nil
	})

	require.NoError(t, s.Run(context.Background(), 10_000))
	assert.Equal(t, []uint64{1, 0x82, 3}, got)
}

func TestAsyncFIFO_ReflectsParameters(t *testing.T) {
	s := sim.New()
	f := newFIFO(t, s, 16, 31, VariantHandshake, WithSyncStages(3))
	assert.Equal(t, 16, f.DataWidth())
	assert.Equal(t, 31, f.FIFODepth())
	assert.Equal(t, "pretty_fast_fifo", f.Name())
	assert.Equal(t, 16, f.WritePort().Data.Width())
	assert.Equal(t, 16, f.ReadPort().Data.Width())
	assert.Len(t, f.wsync, 3)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{DataWidth: 8, FIFODepth: 7}.Validate())
	assert.Error(t, Config{DataWidth: 0, FIFODepth: 7}.Validate())
	assert.Error(t, Config{DataWidth: 65, FIFODepth: 7}.Validate())
	assert.Error(t, Config{DataWidth: 8, FIFODepth: 0}.Validate())
	assert.Error(t, Config{DataWidth: 8, FIFODepth: MaxDepth + 1}.Validate())
}

func TestNewBuilder(t *testing.T) {
	build, err := NewBuilder("")
	require.NoError(t, err)

	dev, err := build(sim.New(), Config{DataWidth: 8, FIFODepth: 7})
	require.NoError(t, err)
	assert.Equal(t, "pretty_fast_fifo", dev.Name())

	_, err = build(sim.New(), Config{DataWidth: 8, FIFODepth: 0})
	assert.Error(t, err)

	_, err = NewBuilder(Variant("funny"))
	assert.Error(t, err)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("no_ready")
	require.NoError(t, err)
	assert.Equal(t, VariantNoReady, v)

	_, err = ParseVariant("bogus")
	assert.Error(t, err)
}
