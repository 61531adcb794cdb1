package planning

import (
	"sync"
	"time"
)

const (
	// pruneThreshold is the failure rate above which a method is no longer
	// selected during decomposition.
	pruneThreshold = 0.8

	// historyWindow bounds how many recent attempts feed the moving
	// failure rate per method.
	historyWindow = 20

	// minAttempts is how many observations a method needs before its
	// failure rate is trusted for pruning.
	minAttempts = 3
)

// DecompositionAttempt records one attempt to decompose a compound task
// with a method.
type DecompositionAttempt struct {
	Timestamp time.Time
	Success   bool
	Reason    string
}

// FailureMemory is the failure-rate oracle consulted during HTN
// decomposition. It keeps a bounded window of recent decomposition attempts
// per method and prunes methods whose recent failure rate exceeds the
// threshold, so the planner stops retrying historically bad decompositions.
type FailureMemory struct {
	mu       sync.RWMutex
	attempts map[string][]DecompositionAttempt
}

// NewFailureMemory creates an empty failure memory.
func NewFailureMemory() *FailureMemory {
	return &FailureMemory{
		attempts: make(map[string][]DecompositionAttempt),
	}
}

// RecordFailure records a failed decomposition attempt for a method.
func (fm *FailureMemory) RecordFailure(methodID, reason string) {
	fm.record(methodID, DecompositionAttempt{
		Timestamp: time.Now(),
		Success:   false,
		Reason:    reason,
	})
}

// RecordSuccess records a successful decomposition attempt for a method.
func (fm *FailureMemory) RecordSuccess(methodID string) {
	fm.record(methodID, DecompositionAttempt{
		Timestamp: time.Now(),
		Success:   true,
	})
}

func (fm *FailureMemory) record(methodID string, attempt DecompositionAttempt) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	history := append(fm.attempts[methodID], attempt)
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	fm.attempts[methodID] = history
}

// FailureRate returns the fraction of recent attempts that failed for the
// given method. Methods with no recorded attempts report 0.
func (fm *FailureMemory) FailureRate(methodID string) float64 {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	history := fm.attempts[methodID]
	if len(history) == 0 {
		return 0
	}

	failures := 0
	for _, attempt := range history {
		if !attempt.Success {
			failures++
		}
	}
	return float64(failures) / float64(len(history))
}

// AttemptCount returns how many attempts are recorded for the method.
func (fm *FailureMemory) AttemptCount(methodID string) int {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	return len(fm.attempts[methodID])
}

// ShouldPrune reports whether the method's recent failure rate disqualifies
// it from selection. Methods with fewer than minAttempts observations are
// never pruned, so a single bad run cannot blacklist a method.
func (fm *FailureMemory) ShouldPrune(methodID string) bool {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	history := fm.attempts[methodID]
	if len(history) < minAttempts {
		return false
	}

	failures := 0
	for _, attempt := range history {
		if !attempt.Success {
			failures++
		}
	}
	return float64(failures)/float64(len(history)) > pruneThreshold
}

// Attempts returns a copy of the recorded attempts for a method.
func (fm *FailureMemory) Attempts(methodID string) []DecompositionAttempt {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	history := fm.attempts[methodID]
	out := make([]DecompositionAttempt, len(history))
	copy(out, history)
	return out
}

// Clear resets all recorded attempts.
func (fm *FailureMemory) Clear() {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.attempts = make(map[string][]DecompositionAttempt)
}
