package harness

import "github.com/LukasVik/funny-fifo/internal/sim"

// RunClock drives clk as a free-running clock: low for period/2, high for the
// rest of the period. It returns only when the kernel stops the process.
func RunClock(p *sim.Process, clk *sim.Signal, period sim.Time) error {
	low := period / 2
	high := period - low
	for {
		clk.Set(0)
		if err := p.Wait(low); err != nil {
			return err
		}
		clk.Set(1)
		if err := p.Wait(high); err != nil {
			return err
		}
	}
}
