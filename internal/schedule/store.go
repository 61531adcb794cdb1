package schedule

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/loomlabs/loom/internal/storage"
	"github.com/loomlabs/loom/internal/types"
)

// tasksKind is the storage repository kind holding scheduled tasks.
const tasksKind = "scheduled_tasks"

// defaultDueLimit caps FindDueTasks when the caller passes no limit.
const defaultDueLimit = 50

// TaskStore persists scheduled tasks. MarkRunning is an atomic
// pending->running transition serialized by an internal claim lock, so two
// pollers sharing one store can never claim the same task.
type TaskStore struct {
	repo   storage.Repository
	clock  func() time.Time
	logger *slog.Logger

	// claimMu serializes the read-check-write inside MarkRunning.
	claimMu sync.Mutex
}

// TaskStoreOption configures a TaskStore.
type TaskStoreOption func(*TaskStore)

// WithStoreClock overrides the store's time source.
func WithStoreClock(clock func() time.Time) TaskStoreOption {
	return func(s *TaskStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithStoreLogger sets the store's logger.
func WithStoreLogger(logger *slog.Logger) TaskStoreOption {
	return func(s *TaskStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewTaskStore creates a task store over the given storage backend.
func NewTaskStore(store storage.Storage, opts ...TaskStoreOption) *TaskStore {
	s := &TaskStore{
		repo:   store.GetRepository(tasksKind),
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask inserts a pending task due at nextRunAt. A zero interval
// makes the task one-shot.
func (s *TaskStore) CreateTask(ctx context.Context, userID, handlerName string, data map[string]types.Value, nextRunAt time.Time, interval time.Duration) (types.ID, error) {
	now := s.clock().UTC()
	task := ScheduledTask{
		ID:          types.NewID(),
		UserID:      userID,
		HandlerName: handlerName,
		TaskData:    data,
		NextRunAt:   nextRunAt.UTC(),
		Interval:    interval,
		Status:      TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	doc, err := taskToDocument(task)
	if err != nil {
		return "", err
	}

	if _, err := s.repo.Insert(ctx, doc); err != nil {
		return "", err
	}
	return task.ID, nil
}

// FindDueTasks returns pending tasks whose due time has passed, ordered
// ascending by due time so a backlog drains oldest first. limit <= 0
// applies the default cap of 50.
func (s *TaskStore) FindDueTasks(ctx context.Context, limit int) ([]ScheduledTask, error) {
	if limit <= 0 {
		limit = defaultDueLimit
	}

	docs, err := s.repo.Find(ctx,
		storage.Filter{
			"status":      {Eq: TaskStatusPending.String()},
			"next_run_at": {Lte: s.clock().UTC().UnixMilli()},
		},
		&storage.FindOptions{
			Limit: limit,
			Sort:  []storage.SortField{{Field: "next_run_at", Order: storage.Asc}},
		},
	)
	if err != nil {
		return nil, err
	}

	tasks := make([]ScheduledTask, 0, len(docs))
	for _, doc := range docs {
		task, err := documentToTask(doc)
		if err != nil {
			s.logger.Warn("skipping undecodable scheduled task", "id", doc.ID().String(), "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// GetTask returns the task with the given id.
func (s *TaskStore) GetTask(ctx context.Context, id types.ID) (ScheduledTask, error) {
	doc, err := s.repo.FindOne(ctx, storage.Eq("id", id.String()))
	if err != nil {
		return ScheduledTask{}, err
	}
	if doc == nil {
		return ScheduledTask{}, types.NewError(types.TASK_NOT_FOUND, "no task with id "+id.String())
	}
	return documentToTask(doc)
}

// MarkRunning claims a pending task before handler invocation. Claiming a
// task that is not pending fails with TASK_ALREADY_CLAIMED, which a second
// poller treats as "someone else got there first".
func (s *TaskStore) MarkRunning(ctx context.Context, id types.ID) error {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task.Status != TaskStatusPending {
		return types.NewError(types.TASK_ALREADY_CLAIMED,
			"task "+id.String()+" is "+task.Status.String()+", not pending")
	}

	return s.repo.Update(ctx, id, storage.Document{
		"status":     TaskStatusRunning.String(),
		"updated_at": s.clock().UTC().Format(time.RFC3339Nano),
	}, nil)
}

// MarkCompleted records a terminal outcome for the task.
func (s *TaskStore) MarkCompleted(ctx context.Context, id types.ID, failed bool) error {
	status := TaskStatusCompleted
	if failed {
		status = TaskStatusFailed
	}

	return s.repo.Update(ctx, id, storage.Document{
		"status":     status.String(),
		"updated_at": s.clock().UTC().Format(time.RFC3339Nano),
	}, nil)
}

// UpdateNextRun resets a task to pending with a new due time.
func (s *TaskStore) UpdateNextRun(ctx context.Context, id types.ID, nextRunAt time.Time) error {
	return s.repo.Update(ctx, id, storage.Document{
		"status":      TaskStatusPending.String(),
		"next_run_at": nextRunAt.UTC().UnixMilli(),
		"updated_at":  s.clock().UTC().Format(time.RFC3339Nano),
	}, nil)
}

// RescheduleIfRecurring completes a one-shot task, or resets a recurring
// task to pending at now + interval. Rescheduling is fixed-delay relative
// to completion time, not fixed-rate relative to the original due time.
func (s *TaskStore) RescheduleIfRecurring(ctx context.Context, task ScheduledTask) error {
	if !task.Recurring() {
		return s.MarkCompleted(ctx, task.ID, false)
	}
	return s.UpdateNextRun(ctx, task.ID, s.clock().UTC().Add(task.Interval))
}

// taskToDocument flattens a task for storage. Due times are stored as unix
// milliseconds so due-time filters compare numerically in every backend.
func taskToDocument(task ScheduledTask) (storage.Document, error) {
	data := "{}"
	if task.TaskData != nil {
		encoded, err := json.Marshal(task.TaskData)
		if err != nil {
			return nil, types.WrapError(types.STORAGE_INSERT_FAILED, "failed to encode task data", err)
		}
		data = string(encoded)
	}

	return storage.Document{
		"id":           task.ID.String(),
		"user_id":      task.UserID,
		"handler_name": task.HandlerName,
		"task_data":    data,
		"next_run_at":  task.NextRunAt.UTC().UnixMilli(),
		"interval_ms":  task.Interval.Milliseconds(),
		"status":       task.Status.String(),
		"created_at":   task.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":   task.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func documentToTask(doc storage.Document) (ScheduledTask, error) {
	task := ScheduledTask{
		ID:          doc.ID(),
		UserID:      stringField(doc, "user_id"),
		HandlerName: stringField(doc, "handler_name"),
		Status:      TaskStatus(stringField(doc, "status")),
	}

	if encoded := stringField(doc, "task_data"); encoded != "" {
		if err := json.Unmarshal([]byte(encoded), &task.TaskData); err != nil {
			return ScheduledTask{}, types.WrapError(types.STORAGE_QUERY_FAILED, "failed to decode task data", err)
		}
	}

	if ms, ok := numberField(doc, "next_run_at"); ok {
		task.NextRunAt = time.UnixMilli(ms).UTC()
	}
	if ms, ok := numberField(doc, "interval_ms"); ok {
		task.Interval = time.Duration(ms) * time.Millisecond
	}

	if ts := stringField(doc, "created_at"); ts != "" {
		task.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	if ts := stringField(doc, "updated_at"); ts != "" {
		task.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}

	return task, nil
}

func stringField(doc storage.Document, field string) string {
	s, _ := doc[field].(string)
	return s
}

func numberField(doc storage.Document, field string) (int64, bool) {
	switch v := doc[field].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
