// Package schedule provides durable records of deferred and recurring work
// plus the poller that claims due tasks and executes them through a
// handler. The store builds on the storage layer; the poller is the only
// mutator besides task creation.
package schedule

import (
	"time"

	"github.com/loomlabs/loom/internal/types"
)

// TaskStatus represents the lifecycle state of a scheduled task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task awaits its next run time.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusRunning indicates a poller has claimed the task.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task finished with an error.
	TaskStatusFailed TaskStatus = "failed"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid checks if the TaskStatus is a known value.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses no further transition leaves. A
// recurring task never reaches a terminal status while rescheduling.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ScheduledTask is a durable record of deferred or recurring work. A task
// with a zero Interval runs once; otherwise completion reschedules it at
// completion time plus Interval (fixed-delay, so drift accumulates under
// load rather than runs piling up).
type ScheduledTask struct {
	ID          types.ID               `json:"id"`
	UserID      string                 `json:"user_id"`
	HandlerName string                 `json:"handler_name"`
	TaskData    map[string]types.Value `json:"task_data,omitempty"`
	NextRunAt   time.Time              `json:"next_run_at"`
	Interval    time.Duration          `json:"interval_ms,omitempty"`
	Status      TaskStatus             `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Recurring reports whether the task reschedules after completion.
func (t ScheduledTask) Recurring() bool {
	return t.Interval > 0
}
