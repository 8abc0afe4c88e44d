// Package harness runs randomized conformance and stress tests against a
// dual-clock FIFO through its ready/valid signal boundary.
//
// One run owns a fresh simulator with five processes: two free-running
// clocks, the stimulus driver, the response monitor (which spawns the read
// ready toggler) and a quiescence watchdog. They communicate only through
// the device's ports.
//
// # Determinism
//
// Every random draw comes from a PCG stream keyed by the run seed:
//
//   - setup: clock periods, then word count
//   - write stall decisions
//   - read stall decisions
//
// A recorded seed therefore reproduces the stimulus, the stall decisions and
// the transfer trace byte for byte; Result.Digest fingerprints the trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: inert_stalls
//	description: "Back-to-back traffic with no backpressure"
//	seed: 1337
//	data_width: 8
//	fifo_depth: 7
//	write_stall: {probability_percent: 50, min_stall_cycles: 1, max_stall_cycles: 1}
//	fault:
//	  flip_bit: {index: 3, bit: 0}
//	assertions:
//	  - type: state
//	    state: passed
//	  - type: words_checked
//	    min: 14
//	    max: 28
//
// # Usage
//
//	res, err := harness.Run(ctx, harness.DefaultParams(), build)
//	if err != nil {
//	    return err // *ConfigError or cancellation
//	}
//	if !res.Passed {
//	    log.Printf("seed %d: %v", res.Seed, res.Failure)
//	}
package harness
