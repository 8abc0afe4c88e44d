// Package sim implements a small cooperative discrete-event kernel used to
// drive a device under test through its signal boundary.
//
// ARCHITECTURE:
//
// Single-Runner Scheduling:
// Every activity (clock generator, driver, monitor) is a Process backed by a
// goroutine, but the kernel hands control to exactly one process at a time
// and waits for it to suspend. Processes suspend only at explicit wait
// points (Wait, RisingEdge, FallingEdge, Cycles). Execution order inside a
// delta cycle is registration order, so a run is fully reproducible.
//
// Delta Cycles:
// Signal writes made while processes run are buffered. When every runnable
// process has suspended, the buffered writes are committed together and the
// resulting edges wake the next batch of processes. All processes woken by
// the same edge therefore observe the same pre-edge values of every other
// signal, which is what makes same-edge ready&valid sampling well defined.
//
// Edge Callbacks:
// Device models register persistent callbacks with Always. They run in the
// same phase as processes and obey the same deferred-write rule, which gives
// register (flip-flop) semantics without a goroutine per flop.
//
// Shutdown:
// Run always returns with every process goroutine terminated. Processes that
// are still suspended are resumed with ErrStopped and must return.
package sim
