package sim

import "fmt"

// Edge selects which transitions of a signal's least significant bit wake a
// waiter.
type Edge int

const (
	// Rising fires on a 0 -> 1 transition of bit 0.
	Rising Edge = iota + 1
	// Falling fires on a 1 -> 0 transition of bit 0.
	Falling
	// AnyChange fires on any change of the signal value.
	AnyChange
)

// String returns the edge name.
func (e Edge) String() string {
	switch e {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	case AnyChange:
		return "change"
	default:
		return fmt.Sprintf("edge(%d)", int(e))
	}
}

// Signal is a named line or bus of the signal boundary.
//
// Reads always return the committed value. Writes are buffered until the end
// of the current delta cycle; the last write in a delta wins. Each signal is
// expected to have a single writer.
type Signal struct {
	sim   *Simulator
	name  string
	width int
	mask  uint64

	cur   uint64
	next  uint64
	dirty bool

	waiters   map[Edge][]*Process
	callbacks map[Edge][]func()
}

// NewSignal creates a signal of the given width in bits (1..64), initially 0.
func (s *Simulator) NewSignal(name string, width int) *Signal {
	if width < 1 || width > 64 {
		panic(fmt.Sprintf("sim: signal %q has invalid width %d", name, width))
	}
	mask := ^uint64(0)
	if width < 64 {
		mask = (uint64(1) << uint(width)) - 1
	}
	sig := &Signal{
		sim:       s,
		name:      name,
		width:     width,
		mask:      mask,
		waiters:   make(map[Edge][]*Process),
		callbacks: make(map[Edge][]func()),
	}
	s.signals = append(s.signals, sig)
	return sig
}

// Name returns the signal name.
func (g *Signal) Name() string { return g.name }

// Width returns the signal width in bits.
func (g *Signal) Width() int { return g.width }

// Get returns the committed value.
func (g *Signal) Get() uint64 { return g.cur }

// High reports whether bit 0 of the committed value is set.
func (g *Signal) High() bool { return g.cur&1 == 1 }

// Set schedules v (truncated to the signal width) for the end of the current
// delta cycle.
func (g *Signal) Set(v uint64) {
	g.next = v & g.mask
	if !g.dirty {
		g.dirty = true
		g.sim.dirty = append(g.sim.dirty, g)
	}
}

// SetHigh schedules bit value b.
func (g *Signal) SetHigh(b bool) {
	if b {
		g.Set(1)
		return
	}
	g.Set(0)
}

// commit applies the buffered write and reports which edges it produced.
func (g *Signal) commit() (rose, fell, changed bool) {
	old := g.cur
	g.cur = g.next
	g.dirty = false
	if old == g.cur {
		return false, false, false
	}
	rose = old&1 == 0 && g.cur&1 == 1
	fell = old&1 == 1 && g.cur&1 == 0
	return rose, fell, true
}

// take removes and returns the one-shot waiters for an edge.
func (g *Signal) take(e Edge) []*Process {
	w := g.waiters[e]
	if len(w) == 0 {
		return nil
	}
	delete(g.waiters, e)
	return w
}

func (g *Signal) addWaiter(e Edge, p *Process) {
	g.waiters[e] = append(g.waiters[e], p)
}
