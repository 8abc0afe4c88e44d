package dut

import (
	"fmt"

	"github.com/LukasVik/funny-fifo/internal/sim"
)

// Variant selects which top level of the FIFO is instantiated.
type Variant string

const (
	// VariantHandshake drives write ready low while the FIFO is full.
	VariantHandshake Variant = "handshake"

	// VariantNoReady ties write ready high. Words pushed while the FIFO is
	// full are dropped and counted.
	VariantNoReady Variant = "no_ready"
)

// Variants lists the supported variants.
var Variants = []Variant{VariantHandshake, VariantNoReady}

// ParseVariant validates a variant name. The empty string selects
// VariantHandshake.
func ParseVariant(s string) (Variant, error) {
	if s == "" {
		return VariantHandshake, nil
	}
	for _, v := range Variants {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown device variant %q: must be one of %v", s, Variants)
}

// DefaultSyncStages is the number of flip-flops each pointer crosses when it
// changes clock domain.
const DefaultSyncStages = 2

// OutputHook rewrites the word presented on the read port. index is the
// position of the word in the stream (0 for the first word ever pushed).
type OutputHook func(index, word uint64) uint64

// Option configures an AsyncFIFO.
type Option func(*AsyncFIFO)

// WithOutputHook installs a hook on the read data path, for fault injection.
func WithOutputHook(h OutputHook) Option {
	return func(f *AsyncFIFO) {
		f.hook = h
	}
}

// WithSyncStages sets the synchronizer length (at least 1).
func WithSyncStages(n int) Option {
	return func(f *AsyncFIFO) {
		if n >= 1 {
			f.syncStages = n
		}
	}
}

// AsyncFIFO models a dual-clock FIFO: Gray-coded pointers cross domains
// through flip-flop synchronizers and every output is registered.
//
// Pointers are free-running counters, so any depth works, not only powers
// of two. Storage is shared between the two domains; the pointer protocol
// guarantees a slot is never written and read in the same cycle.
type AsyncFIFO struct {
	name    string
	variant Variant
	cfg     Config

	w WritePort
	r ReadPort

	// Pointers as seen by the other domain, Gray coded.
	wgray *sim.Signal
	rgray *sim.Signal

	mem        []uint64
	wptr, rptr uint64
	wsync      []uint64
	rsync      []uint64
	syncStages int

	hook    OutputHook
	dropped uint64
}

// NewAsyncFIFO instantiates the model inside s and registers its clocked
// logic.
func NewAsyncFIFO(s *sim.Simulator, cfg Config, variant Variant, opts ...Option) (*AsyncFIFO, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := "pretty_fast_fifo"
	switch variant {
	case VariantHandshake:
	case VariantNoReady:
		name = "pretty_fast_fifo_no_ready"
	default:
		return nil, fmt.Errorf("unknown device variant %q", variant)
	}

	f := &AsyncFIFO{
		name:       name,
		variant:    variant,
		cfg:        cfg,
		mem:        make([]uint64, cfg.FIFODepth),
		syncStages: DefaultSyncStages,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.wsync = make([]uint64, f.syncStages)
	f.rsync = make([]uint64, f.syncStages)

	f.w, f.r = NewPorts(s, name, cfg.DataWidth)
	f.wgray = s.NewSignal(name+".write_pointer_gray", 64)
	f.rgray = s.NewSignal(name+".read_pointer_gray", 64)

	// Empty after reset: room to write, nothing to read.
	f.w.Ready.Set(1)

	s.Always(f.w.Clock, sim.Rising, f.onWriteEdge)
	s.Always(f.r.Clock, sim.Rising, f.onReadEdge)
	return f, nil
}

// Name returns the top-level name of the instantiated variant.
func (f *AsyncFIFO) Name() string { return f.name }

// DataWidth reflects the DATA_WIDTH parameter.
func (f *AsyncFIFO) DataWidth() int { return f.cfg.DataWidth }

// FIFODepth reflects the FIFO_DEPTH parameter.
func (f *AsyncFIFO) FIFODepth() int { return f.cfg.FIFODepth }

// WritePort returns the producer side.
func (f *AsyncFIFO) WritePort() WritePort { return f.w }

// ReadPort returns the consumer side.
func (f *AsyncFIFO) ReadPort() ReadPort { return f.r }

// Variant returns the instantiated variant.
func (f *AsyncFIFO) Variant() Variant { return f.variant }

// Level returns the true number of stored words.
func (f *AsyncFIFO) Level() uint64 { return f.wptr - f.rptr }

// Dropped returns how many words were lost to overflow (no_ready only).
func (f *AsyncFIFO) Dropped() uint64 { return f.dropped }

func (f *AsyncFIFO) onWriteEdge() {
	depth := uint64(f.cfg.FIFODepth)
	// Conservative view of the reader: never ahead of the real pointer.
	room := depth - (f.wptr - grayToBinary(f.rsync[f.syncStages-1]))

	if f.w.Valid.High() && f.w.Ready.High() {
		if room > 0 {
			f.mem[f.wptr%depth] = f.w.Data.Get()
			f.wptr++
		} else {
			f.dropped++
		}
	}

	shift(f.rsync, f.rgray.Get())

	if f.variant == VariantHandshake {
		f.w.Ready.SetHigh(f.wptr-grayToBinary(f.rsync[f.syncStages-1]) < depth)
	}
	f.wgray.Set(binaryToGray(f.wptr))
}

func (f *AsyncFIFO) onReadEdge() {
	depth := uint64(f.cfg.FIFODepth)

	if f.r.Valid.High() && f.r.Ready.High() {
		f.rptr++
	}

	shift(f.wsync, f.wgray.Get())

	if grayToBinary(f.wsync[f.syncStages-1]) > f.rptr {
		word := f.mem[f.rptr%depth]
		if f.hook != nil {
			word = f.hook(f.rptr, word)
		}
		f.r.Valid.Set(1)
		f.r.Data.Set(word)
	} else {
		f.r.Valid.Set(0)
		f.r.Data.Set(0)
	}
	f.rgray.Set(binaryToGray(f.rptr))
}

// shift clocks a synchronizer chain, stage 0 captures in.
func shift(stages []uint64, in uint64) {
	for i := len(stages) - 1; i > 0; i-- {
		stages[i] = stages[i-1]
	}
	stages[0] = in
}

func binaryToGray(b uint64) uint64 {
	return b ^ (b >> 1)
}

func grayToBinary(g uint64) uint64 {
	b := g
	for s := g >> 1; s != 0; s >>= 1 {
		b ^= s
	}
	return b
}

// NewBuilder returns a Builder that instantiates an AsyncFIFO of the given
// variant with opts applied.
func NewBuilder(variant Variant, opts ...Option) (Builder, error) {
	v, err := ParseVariant(string(variant))
	if err != nil {
		return nil, err
	}
	return func(s *sim.Simulator, cfg Config) (Device, error) {
		return NewAsyncFIFO(s, cfg, v, opts...)
	}, nil
}
