// Package scheduler executes subtask phases on a bounded worker pool.
//
// Each phase is a hard barrier: RunPhase returns only after every subtask in
// the phase has a terminal result. Run drives phases in order and marks
// dependents of failed or skipped subtasks as skipped without submitting them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/intentrouter/internal/metrics"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

const (
	// DefaultWorkers is the worker pool size when none is configured.
	DefaultWorkers = 3
	// DefaultTaskTimeout bounds one executor invocation.
	DefaultTaskTimeout = 180 * time.Second
)

// Result error strings for outcomes the executor did not produce itself.
const (
	ErrorTimeout   = "timeout"
	ErrorCancelled = "cancelled"
)

// ErrTimeout is returned to callers that inspect executor errors directly.
var ErrTimeout = errors.New(ErrorTimeout)

// Executor runs one subtask and returns its output.
type Executor interface {
	Execute(ctx context.Context, subtask models.Subtask) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, subtask models.Subtask) (string, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, subtask models.Subtask) (string, error) {
	return f(ctx, subtask)
}

// Hooks observe scheduling progress. Hooks may be called from worker goroutines.
type Hooks struct {
	OnPhaseStart  func(phase models.ExecutionPhase)
	OnSubtaskDone func(result models.SubtaskResult)
}

// Scheduler runs phases with at most Workers concurrent executor calls.
type Scheduler struct {
	Workers     int
	TaskTimeout time.Duration
	Hooks       Hooks
	logger      *zap.Logger
}

// New creates a scheduler. Non-positive values fall back to the defaults.
func New(workers int, taskTimeout time.Duration, logger *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{Workers: workers, TaskTimeout: taskTimeout, logger: logger}
}

// Outcome is the result of running every phase.
type Outcome struct {
	// PhaseResults holds one slice per phase, in phase order.
	PhaseResults [][]models.SubtaskResult
	// Results holds one result per subtask, in the order subtasks were given.
	Results []models.SubtaskResult
	// Cancelled is set when ctx was cancelled before every subtask ran.
	Cancelled bool
}

// RunPhase executes subtasks concurrently and blocks until all are terminal.
// Results are returned in submission order. Subtasks that have not started
// when ctx is cancelled are skipped. Started subtasks keep running until
// they finish or hit TaskTimeout.
func (s *Scheduler) RunPhase(ctx context.Context, subtasks []*models.Subtask, exec Executor) []models.SubtaskResult {
	results := make([]models.SubtaskResult, len(subtasks))

	var g errgroup.Group
	g.SetLimit(s.Workers)
	for i, st := range subtasks {
		g.Go(func() error {
			// Each worker writes only its own slot.
			results[i] = s.runOne(ctx, st, exec)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Scheduler) runOne(ctx context.Context, st *models.Subtask, exec Executor) models.SubtaskResult {
	if ctx.Err() != nil {
		st.Status = models.SubtaskSkipped
		res := models.SubtaskResult{SubtaskID: st.ID, Status: models.SubtaskSkipped, Error: ErrorCancelled}
		s.finish(res)
		return res
	}

	st.Status = models.SubtaskRunning
	start := time.Now()

	// Running workers are not interrupted by caller cancellation.
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.TaskTimeout)
	defer cancel()

	type execResult struct {
		output string
		err    error
	}
	done := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: fmt.Errorf("executor panic: %v", r)}
			}
		}()
		out, err := exec.Execute(taskCtx, *st)
		done <- execResult{output: out, err: err}
	}()

	var res models.SubtaskResult
	select {
	case r := <-done:
		res = models.SubtaskResult{SubtaskID: st.ID, Output: r.output}
		switch {
		case r.err == nil:
			res.Status = models.SubtaskSuccess
			res.Success = true
		case errors.Is(r.err, context.DeadlineExceeded) && taskCtx.Err() != nil:
			res.Status = models.SubtaskFailed
			res.Error = ErrorTimeout
		default:
			res.Status = models.SubtaskFailed
			res.Error = r.err.Error()
		}
	case <-taskCtx.Done():
		// The executor goroutine is abandoned; its buffered send never blocks.
		res = models.SubtaskResult{SubtaskID: st.ID, Status: models.SubtaskFailed, Error: ErrorTimeout}
	}
	res.DurationSeconds = time.Since(start).Seconds()
	st.Status = res.Status

	metrics.SubtaskDuration.Observe(res.DurationSeconds)
	s.logger.Debug("subtask finished",
		zap.String("subtask_id", st.ID),
		zap.String("status", string(res.Status)),
		zap.Float64("duration_seconds", res.DurationSeconds),
		zap.String("error", res.Error),
	)
	s.finish(res)
	return res
}

func (s *Scheduler) finish(res models.SubtaskResult) {
	metrics.Subtasks.WithLabelValues(string(res.Status)).Inc()
	if s.Hooks.OnSubtaskDone != nil {
		s.Hooks.OnSubtaskDone(res)
	}
}

// Run executes phases in order. A subtask whose dependency failed or was
// skipped is marked skipped and never submitted; independent branches keep
// running. Cancelling ctx stops new phases from starting.
func (s *Scheduler) Run(ctx context.Context, phases []models.ExecutionPhase, subtasks []*models.Subtask, exec Executor) Outcome {
	byID := make(map[string]*models.Subtask, len(subtasks))
	for _, st := range subtasks {
		byID[st.ID] = st
	}
	final := make(map[string]models.SubtaskResult, len(subtasks))
	// blocked holds subtasks that did not succeed.
	blocked := make(map[string]bool)

	var out Outcome
	for _, phase := range phases {
		phaseResults := make([]models.SubtaskResult, len(phase.SubtaskIDs))

		if ctx.Err() != nil {
			out.Cancelled = true
			for i, id := range phase.SubtaskIDs {
				phaseResults[i] = s.skip(byID[id], ErrorCancelled)
				blocked[id] = true
				final[id] = phaseResults[i]
			}
			out.PhaseResults = append(out.PhaseResults, phaseResults)
			continue
		}

		if s.Hooks.OnPhaseStart != nil {
			s.Hooks.OnPhaseStart(phase)
		}
		s.logger.Debug("phase started",
			zap.Int("phase", phase.Index),
			zap.Strings("subtasks", phase.SubtaskIDs),
		)

		var submit []*models.Subtask
		var slots []int
		for i, id := range phase.SubtaskIDs {
			st := byID[id]
			if dep := firstBlocked(st, blocked); dep != "" {
				phaseResults[i] = s.skip(st, "dependency not satisfied: "+dep)
				continue
			}
			submit = append(submit, st)
			slots = append(slots, i)
		}

		for j, res := range s.RunPhase(ctx, submit, exec) {
			phaseResults[slots[j]] = res
			if res.Status == models.SubtaskSkipped && res.Error == ErrorCancelled {
				out.Cancelled = true
			}
		}

		for i, res := range phaseResults {
			id := phase.SubtaskIDs[i]
			final[id] = res
			if res.Status != models.SubtaskSuccess {
				blocked[id] = true
			}
		}
		out.PhaseResults = append(out.PhaseResults, phaseResults)
	}

	out.Results = make([]models.SubtaskResult, 0, len(subtasks))
	for _, st := range subtasks {
		if res, ok := final[st.ID]; ok {
			out.Results = append(out.Results, res)
		}
	}
	return out
}

func (s *Scheduler) skip(st *models.Subtask, reason string) models.SubtaskResult {
	st.Status = models.SubtaskSkipped
	res := models.SubtaskResult{SubtaskID: st.ID, Status: models.SubtaskSkipped, Error: reason}
	s.finish(res)
	return res
}

func firstBlocked(st *models.Subtask, blocked map[string]bool) string {
	for _, dep := range st.Dependencies {
		if blocked[dep] {
			return dep
		}
	}
	return ""
}
