package planning

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureMemoryRates(t *testing.T) {
	fm := NewFailureMemory()

	assert.Zero(t, fm.FailureRate("unknown"))
	assert.Zero(t, fm.AttemptCount("unknown"))

	fm.RecordSuccess("m")
	fm.RecordFailure("m", "precondition failed")

	assert.Equal(t, 2, fm.AttemptCount("m"))
	assert.InDelta(t, 0.5, fm.FailureRate("m"), 1e-9)

	attempts := fm.Attempts("m")
	assert.Len(t, attempts, 2)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, "precondition failed", attempts[1].Reason)
}

func TestFailureMemoryShouldPrune(t *testing.T) {
	fm := NewFailureMemory()

	// Below the attempt floor a method is never pruned, however bad.
	fm.RecordFailure("m", "x")
	fm.RecordFailure("m", "x")
	assert.False(t, fm.ShouldPrune("m"))

	fm.RecordFailure("m", "x")
	assert.True(t, fm.ShouldPrune("m"), "3 of 3 failures exceeds the threshold")

	// A reliable method is not pruned.
	for i := 0; i < 10; i++ {
		fm.RecordSuccess("solid")
	}
	fm.RecordFailure("solid", "one bad day")
	assert.False(t, fm.ShouldPrune("solid"))
}

func TestFailureMemoryWindowBounds(t *testing.T) {
	fm := NewFailureMemory()

	// Old failures slide out of the window as successes come in.
	for i := 0; i < historyWindow; i++ {
		fm.RecordFailure("m", fmt.Sprintf("failure %d", i))
	}
	assert.True(t, fm.ShouldPrune("m"))

	for i := 0; i < historyWindow; i++ {
		fm.RecordSuccess("m")
	}
	assert.Equal(t, historyWindow, fm.AttemptCount("m"))
	assert.Zero(t, fm.FailureRate("m"))
	assert.False(t, fm.ShouldPrune("m"))
}

func TestFailureMemoryClear(t *testing.T) {
	fm := NewFailureMemory()
	fm.RecordFailure("m", "x")

	fm.Clear()
	assert.Zero(t, fm.AttemptCount("m"))
	assert.Empty(t, fm.Attempts("m"))
}

func TestFailureMemoryAttemptsReturnsCopy(t *testing.T) {
	fm := NewFailureMemory()
	fm.RecordFailure("m", "original")

	attempts := fm.Attempts("m")
	attempts[0].Reason = "mutated"

	assert.Equal(t, "original", fm.Attempts("m")[0].Reason)
}
