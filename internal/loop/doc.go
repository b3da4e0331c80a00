// Package loop implements ImplementationLoop, the top-level state machine
// that runs the Architect once, then drives the Driver and Navigator
// controllers from internal/pairing through the execution/review cycle
// until the run completes, fails, or its deadline is reached, per
// spec.md §4.6.
package loop
