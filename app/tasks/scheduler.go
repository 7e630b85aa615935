package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lysyi3m/threat-comb/app/database"
	"github.com/lysyi3m/threat-comb/app/llm"
	"github.com/lysyi3m/threat-comb/app/telemetry"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var ErrLaneBusy = errors.New("a task of this kind is already running")

// follower is implemented by tasks that queue another task on success.
type follower interface {
	Next() TaskInterface
}

// lane runs tasks of one type, one at a time.
type lane struct {
	taskType TaskType
	queue    chan TaskInterface
	mu       sync.Mutex
	current  TaskInterface
}

func (l *lane) reserve(task TaskInterface) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil {
		return ErrLaneBusy
	}
	l.current = task
	return nil
}

func (l *lane) release() {
	l.mu.Lock()
	l.current = nil
	l.mu.Unlock()
}

func (l *lane) active() TaskInterface {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

type Options struct {
	CronSchedule string
	CronParams   RunParams
	Location     *time.Location
	TaskTimeout  time.Duration
}

type Scheduler struct {
	pipeline *Pipeline
	opts     Options
	lanes    map[TaskType]*lane
	cron     *cron.Cron
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewScheduler(pipeline *Pipeline, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	lanes := make(map[TaskType]*lane)
	for _, tt := range []TaskType{TaskTypeFetchRun, TaskTypeAnalyzeRun, TaskTypeScoreRun} {
		lanes[tt] = &lane{taskType: tt, queue: make(chan TaskInterface, 1)}
	}

	return &Scheduler{
		pipeline: pipeline,
		opts:     opts,
		lanes:    lanes,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() error {
	for _, l := range s.lanes {
		s.wg.Add(1)
		go s.worker(l)
	}

	if s.opts.CronSchedule == "" {
		return nil
	}

	s.cron = cron.New(cron.WithLocation(s.opts.Location))
	if _, err := s.cron.AddFunc(s.opts.CronSchedule, s.scheduledRun); err != nil {
		return fmt.Errorf("failed to schedule runs: %w", err)
	}
	s.cron.Start()
	slog.Info("Scheduled runs enabled", "schedule", s.opts.CronSchedule)
	return nil
}

// Stop halts the cron trigger, asks running tasks to stop and waits for the
// workers to exit.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	for _, l := range s.lanes {
		if task := l.active(); task != nil {
			task.Stop()
		}
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	l, ok := s.lanes[task.GetType()]
	if !ok {
		return fmt.Errorf("unknown task type: %s", task.GetType())
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if err := l.reserve(task); err != nil {
		return err
	}
	l.queue <- task
	return nil
}

func (s *Scheduler) Busy(taskType TaskType) bool {
	l, ok := s.lanes[taskType]
	return ok && l.active() != nil
}

// StartRun validates params, records a new run and queues its fetch task.
func (s *Scheduler) StartRun(params RunParams) (string, error) {
	return s.startRun(params, database.RunManual)
}

func (s *Scheduler) startRun(params RunParams, kind string) (string, error) {
	req, err := params.Request(s.pipeline.PrefetchMultiplier)
	if err != nil {
		return "", err
	}
	if s.Busy(TaskTypeFetchRun) {
		return "", ErrLaneBusy
	}

	runID := database.NewRunID(s.now().In(s.opts.Location))
	run := database.Run{
		ID:     runID,
		Kind:   kind,
		Status: database.RunPending,
		Mode:   string(req.Mode),
		Params: params.Map(),
	}
	if err := s.pipeline.Runs.CreateRun(run); err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	if err := s.EnqueueTask(NewFetchRunTask(runID, params, s.pipeline)); err != nil {
		s.setStatus(runID, database.RunFailed, err.Error())
		return "", err
	}
	return runID, nil
}

func (s *Scheduler) StartAnalyze(runID string, chain bool) error {
	if _, err := s.pipeline.Runs.GetRun(runID); err != nil {
		return err
	}
	return s.EnqueueTask(NewAnalyzeRunTask(runID, chain, s.pipeline))
}

func (s *Scheduler) StartScore(runID string, stage database.Stage) error {
	if s.pipeline.Model == nil {
		return llm.ErrModelUnavailable
	}
	if _, err := s.pipeline.Runs.GetRun(runID); err != nil {
		return err
	}
	return s.EnqueueTask(NewScoreRunTask(runID, stage, s.pipeline))
}

// StopRun flags every active task of the run to stop. It reports whether
// any task was found.
func (s *Scheduler) StopRun(runID string) bool {
	found := false
	for _, l := range s.lanes {
		if task := l.active(); task != nil && task.GetRunID() == runID {
			task.Stop()
			found = true
		}
	}
	if found {
		s.pipeline.log(runID, "Stop requested.")
	}
	return found
}

func (s *Scheduler) scheduledRun() {
	runID, err := s.startRun(s.opts.CronParams, database.RunScheduled)
	if err != nil {
		slog.Warn("Scheduled run skipped", "error", err)
		return
	}
	slog.Info("Scheduled run queued", "run", runID)
}

func (s *Scheduler) worker(l *lane) {
	defer s.wg.Done()

	for {
		select {
		case task := <-l.queue:
			s.executeTask(task)
			l.release()
			s.follow(task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()
	runID := task.GetRunID()
	taskType := string(task.GetType())

	s.setStatus(runID, database.RunRunning, "")

	ctx := s.ctx
	if s.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TaskTimeout)
		defer cancel()
	}

	ctx, span := telemetry.StartSpan(ctx, "tasks", "tasks."+taskType,
		attribute.String("run.id", runID),
		attribute.String("task.id", task.GetID()),
	)
	err := task.Execute(ctx)
	telemetry.EndSpan(span, err)

	telemetry.TaskRuns.WithLabelValues(taskType, telemetry.Result(err == nil)).Inc()
	telemetry.TaskDuration.WithLabelValues(taskType).Observe(task.GetDuration().Seconds())

	switch {
	case err != nil:
		slog.Error("Task execution failed", "type", taskType, "id", task.GetID(), "run", runID, "error", err)
		s.pipeline.log(runID, "%s failed: %v", taskType, err)
		s.setStatus(runID, database.RunFailed, err.Error())
	case task.Stopped():
		s.setStatus(runID, database.RunStopped, "")
	default:
		s.setStatus(runID, database.RunCompleted, "")
	}
}

func (s *Scheduler) follow(task TaskInterface) {
	f, ok := task.(follower)
	if !ok || s.ctx.Err() != nil {
		return
	}
	run, err := s.pipeline.Runs.GetRun(task.GetRunID())
	if err != nil || run.Status != database.RunCompleted {
		return
	}

	next := f.Next()
	if next == nil {
		return
	}
	if err := s.EnqueueTask(next); err != nil {
		slog.Warn("Failed to enqueue chained task", "type", string(next.GetType()), "run", next.GetRunID(), "error", err)
		s.pipeline.log(next.GetRunID(), "Could not start %s: %v", next.GetType(), err)
	}
}

func (s *Scheduler) setStatus(runID string, status database.RunStatus, errMsg string) {
	if err := s.pipeline.Runs.UpdateRunStatus(runID, status, errMsg); err != nil {
		slog.Warn("Failed to update run status", "run", runID, "status", string(status), "error", err)
	}
}
