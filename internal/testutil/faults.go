// Package testutil provides deterministic helpers for tests.
package testutil

import (
	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/sim"
)

// Misreport wraps a builder so the device reports a different width and
// depth than it was built with.
func Misreport(build dut.Builder, width, depth int) dut.Builder {
	return func(s *sim.Simulator, cfg dut.Config) (dut.Device, error) {
		dev, err := build(s, cfg)
		if err != nil {
			return nil, err
		}
		return misreported{Device: dev, width: width, depth: depth}, nil
	}
}

type misreported struct {
	dut.Device
	width, depth int
}

func (m misreported) DataWidth() int { return m.width }
func (m misreported) FIFODepth() int { return m.depth }
