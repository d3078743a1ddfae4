package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlightTracker_CountsAndPeak(t *testing.T) {
	ft := newFlightTracker(2)

	assert.False(t, ft.enter())
	assert.False(t, ft.enter())
	assert.Equal(t, 2, ft.inFlight())

	// The target is advisory: the third dispatch is admitted but flagged
	assert.True(t, ft.enter())
	assert.Equal(t, 3, ft.inFlight())
	assert.Equal(t, 3, ft.peakInFlight())

	ft.exit()
	ft.exit()
	ft.exit()
	assert.Equal(t, 0, ft.inFlight())
	assert.Equal(t, 3, ft.peakInFlight())
}

func TestFlightTracker_ZeroTargetNeverFlags(t *testing.T) {
	ft := newFlightTracker(0)

	for i := 0; i < 5; i++ {
		assert.False(t, ft.enter())
	}
	assert.Equal(t, 5, ft.inFlight())
}
