package engine

import "sync"

// flightTracker counts dispatches currently in flight for one client and
// compares them against the client's concurrent requests target. The target
// is a sizing hint, not a cap: exceeding it is allowed and merely reported,
// so callers can tune their configuration.
type flightTracker struct {
	target int
	count  int
	peak   int
	mu     sync.Mutex
}

// newFlightTracker creates a tracker for the given target.
// If target == 0, no target comparison is made.
func newFlightTracker(target int) *flightTracker {
	return &flightTracker{target: target}
}

// enter records the start of a dispatch and reports whether the in-flight
// count now exceeds the configured target.
func (ft *flightTracker) enter() (over bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.count++
	if ft.count > ft.peak {
		ft.peak = ft.count
	}

	return ft.target > 0 && ft.count > ft.target
}

// exit records the end of a dispatch.
func (ft *flightTracker) exit() {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.count--
}

// inFlight returns the current number of dispatches in flight.
func (ft *flightTracker) inFlight() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	return ft.count
}

// peakInFlight returns the highest concurrency observed so far.
func (ft *flightTracker) peakInFlight() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	return ft.peak
}
