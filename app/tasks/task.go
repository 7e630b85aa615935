package tasks

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeFetchRun   TaskType = "fetch_run"
	TaskTypeAnalyzeRun TaskType = "analyze_run"
	TaskTypeScoreRun   TaskType = "score_run"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetRunID() string
	Start()
	GetDuration() time.Duration
	Stop()
	Stopped() bool
}

// Task carries the bookkeeping shared by every run task. The stop flag is
// cooperative: Execute checks it between sources and between articles.
type Task struct {
	ID        string
	Type      TaskType
	RunID     string
	StartedAt *time.Time
	stop      *atomic.Bool
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetRunID() string {
	return t.RunID
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func (t *Task) Stop() {
	t.stop.Store(true)
}

func (t *Task) Stopped() bool {
	return t.stop.Load()
}

func NewTask(taskType TaskType, runID string) Task {
	return Task{
		ID:    uuid.NewString(),
		Type:  taskType,
		RunID: runID,
		stop:  new(atomic.Bool),
	}
}
