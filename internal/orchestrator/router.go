package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/internal/cache"
	"github.com/ShayCichocki/intentrouter/internal/classify"
	"github.com/ShayCichocki/intentrouter/internal/decompose"
	"github.com/ShayCichocki/intentrouter/internal/graph"
	"github.com/ShayCichocki/intentrouter/internal/metrics"
	"github.com/ShayCichocki/intentrouter/internal/registry"
	"github.com/ShayCichocki/intentrouter/internal/scheduler"
	"github.com/ShayCichocki/intentrouter/internal/state"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

var (
	// ErrEmptyRequest is returned for blank request text.
	ErrEmptyRequest = errors.New("request text is empty")
	// ErrNoExecutor is returned when a non-dry-run request has nothing to run it.
	ErrNoExecutor = errors.New("no executor configured")
)

// Fallback reasons recorded when a parallel intent runs serially.
const (
	FallbackNoDecomposition = "no_decomposition"
	FallbackCycle           = "cycle"
	FallbackInvalidGraph    = "invalid_graph"
)

// EscalationTrace records what the gate decided and how escalation went.
type EscalationTrace struct {
	// Reasons lists every gate rule that fired, even when no backend is configured.
	Reasons []string `json:"reasons,omitempty"`
	// Escalated is set when the deep classifier was called.
	Escalated bool `json:"escalated"`
	// Degraded is set when the deep classifier failed and the rule intent was kept.
	Degraded        bool    `json:"degraded"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// Timing is the duration of one pipeline stage.
type Timing struct {
	Stage           string  `json:"stage"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Trace explains every routing decision for one request.
type Trace struct {
	CacheHit   bool            `json:"cache_hit"`
	RuleEntry  string          `json:"rule_entry,omitempty"`
	RuleScore  float64         `json:"rule_score"`
	Escalation EscalationTrace `json:"escalation"`
	Strategy   string          `json:"strategy"`
	// PhasePlan lists subtask IDs per phase.
	PhasePlan [][]string `json:"phase_plan"`
	// Fallback is set when a parallel intent was executed serially.
	Fallback  string   `json:"fallback,omitempty"`
	Execution string   `json:"execution"`
	Timings   []Timing `json:"timings"`
}

// Result is the outcome of routing one request.
type Result struct {
	RunID    string                  `json:"run_id"`
	Request  models.Request          `json:"request"`
	Intent   models.Intent           `json:"intent"`
	Subtasks []*models.Subtask       `json:"subtasks"`
	Phases   []models.ExecutionPhase `json:"phases"`
	// Aggregated is nil for dry runs.
	Aggregated *models.AggregatedResult `json:"aggregated,omitempty"`
	Trace      Trace                    `json:"trace"`
}

// Router classifies, plans and executes requests.
type Router struct {
	catalog    registry.Catalog
	executor   scheduler.Executor
	rules      *classify.RuleClassifier
	gate       *classify.Gate
	escalator  *classify.Escalator
	cache      *cache.IntentCache
	decomposer Decomposer
	recorder   RunRecorder
	emitter    *EventEmitter
	workers    int
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a Router.
func New(req RequiredConfig, opts ...Option) *Router {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	r := &Router{
		catalog:    req.Catalog,
		executor:   req.Executor,
		rules:      classify.NewRuleClassifier(o.lexicon, o.scoring, o.logger),
		gate:       classify.NewGate(o.lexicon, o.gate),
		cache:      o.cache,
		decomposer: o.decomposer,
		recorder:   o.recorder,
		emitter:    o.emitter,
		workers:    o.workers,
		timeout:    o.taskTimeout,
		logger:     o.logger,
	}
	if r.catalog == nil {
		r.catalog = registry.StaticCatalog(registry.BuiltinEntries())
	}
	if o.classifier != nil {
		r.escalator = classify.NewEscalator(o.classifier, o.escalation, o.logger)
	}
	if r.decomposer == nil {
		r.decomposer = decompose.New(o.lexicon, o.logger)
	}
	return r
}

// Route runs the full pipeline for one request. Classification, decomposition
// and execution failures are recorded in the result; only invalid input or
// missing configuration returns an error.
func (r *Router) Route(ctx context.Context, req models.Request) (*Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyRequest
	}
	if !req.DryRun && r.executor == nil {
		return nil, ErrNoExecutor
	}

	start := time.Now()
	res := &Result{RunID: uuid.New().String(), Request: req}
	log := r.logger.With(zap.String("run_id", res.RunID))

	stage := time.Now()
	res.Intent = r.classify(ctx, req, res, log)
	res.Trace.Timings = append(res.Trace.Timings, Timing{Stage: "classify", DurationSeconds: time.Since(stage).Seconds()})

	stage = time.Now()
	r.plan(req, res, log)
	res.Trace.Timings = append(res.Trace.Timings, Timing{Stage: "plan", DurationSeconds: time.Since(stage).Seconds()})

	if req.DryRun {
		res.Trace.Execution = state.ExecutionDryRun
		r.record(res, time.Since(start), log)
		log.Info("dry run planned",
			zap.String("task_type", res.Intent.TaskType),
			zap.Int("subtasks", len(res.Subtasks)),
			zap.Int("phases", len(res.Phases)),
		)
		return res, nil
	}

	stage = time.Now()
	sched := scheduler.New(r.workers, r.timeout, r.logger)
	sched.Hooks = scheduler.Hooks{
		OnPhaseStart: func(p models.ExecutionPhase) {
			r.emit(RouterEvent{Type: EventPhaseStarted, RunID: res.RunID, Phase: p.Index,
				Message: strings.Join(p.SubtaskIDs, ",")})
		},
		OnSubtaskDone: func(sr models.SubtaskResult) {
			ev := RouterEvent{Type: EventSubtaskCompleted, RunID: res.RunID, SubtaskID: sr.SubtaskID,
				Status: string(sr.Status), Duration: time.Duration(sr.DurationSeconds * float64(time.Second))}
			if sr.Error != "" {
				ev.Error = errors.New(sr.Error)
			}
			r.emit(ev)
		},
	}
	outcome := sched.Run(ctx, res.Phases, res.Subtasks, r.executor)
	res.Trace.Timings = append(res.Trace.Timings, Timing{Stage: "execute", DurationSeconds: time.Since(stage).Seconds()})

	elapsed := time.Since(start)
	agg := Aggregate(outcome.PhaseResults, elapsed, outcome.Cancelled)
	res.Aggregated = &agg

	metrics.Runs.WithLabelValues(res.Trace.Execution).Inc()
	metrics.RunDuration.WithLabelValues(res.Trace.Execution).Observe(elapsed.Seconds())
	r.record(res, elapsed, log)
	r.emit(RouterEvent{Type: EventRunCompleted, RunID: res.RunID, Duration: elapsed,
		Message: fmt.Sprintf("%d succeeded, %d failed, %d skipped", agg.Succeeded, agg.Failed, agg.Skipped)})

	log.Info("run completed",
		zap.String("execution", res.Trace.Execution),
		zap.Int("total", agg.Total),
		zap.Int("succeeded", agg.Succeeded),
		zap.Int("failed", agg.Failed),
		zap.Int("skipped", agg.Skipped),
		zap.Bool("cancelled", agg.Cancelled),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

// classify resolves the intent: cache first, then rules, then escalation.
func (r *Router) classify(ctx context.Context, req models.Request, res *Result, log *zap.Logger) models.Intent {
	if r.cache != nil {
		if intent, ok := r.cache.Get(req.Text); ok {
			res.Trace.CacheHit = true
			metrics.Classifications.WithLabelValues("cache").Inc()
			r.emit(RouterEvent{Type: EventClassified, RunID: res.RunID, Message: "cache hit: " + intent.TaskType})
			return intent
		}
	}

	entries := registry.Resolved(r.catalog)
	match := r.rules.Classify(req.Text, entries)
	res.Trace.RuleEntry = match.Entry
	res.Trace.RuleScore = match.Score
	intent := match.Intent

	decision := r.gate.Evaluate(intent, req.Text)
	res.Trace.Escalation.Reasons = decision.Reasons
	for _, reason := range decision.Reasons {
		metrics.Escalations.WithLabelValues(reason).Inc()
	}

	if decision.Escalate && r.escalator != nil {
		esc := r.escalator.Escalate(ctx, req, entries, intent)
		res.Trace.Escalation.Escalated = true
		res.Trace.Escalation.DurationSeconds = esc.Duration.Seconds()
		intent = esc.Intent
		ev := RouterEvent{Type: EventEscalated, RunID: res.RunID, Duration: esc.Duration,
			Message: strings.Join(decision.Reasons, ",")}
		if esc.Err != nil {
			res.Trace.Escalation.Degraded = true
			res.Trace.Escalation.Error = esc.Err.Error()
			metrics.EscalationFailures.Inc()
			ev.Error = esc.Err
		}
		r.emit(ev)
	} else if decision.Escalate {
		log.Debug("escalation wanted but no deep classifier configured",
			zap.Strings("reasons", decision.Reasons))
	}

	metrics.Classifications.WithLabelValues(string(intent.Source)).Inc()
	// An intent that still wants escalation is not final, so a later run with
	// a deep classifier must not hit it.
	unresolved := decision.Escalate && r.escalator == nil
	if r.cache != nil && !intent.Degraded && !unresolved {
		r.cache.Put(req.Text, intent)
	}

	r.emit(RouterEvent{Type: EventClassified, RunID: res.RunID,
		Message: fmt.Sprintf("%s (%s, %.2f)", intent.TaskType, intent.Source, intent.Confidence)})
	log.Debug("request classified",
		zap.String("task_type", intent.TaskType),
		zap.String("source", string(intent.Source)),
		zap.Float64("confidence", intent.Confidence),
		zap.Bool("parallel", intent.EnableParallel),
	)
	return intent
}

// plan decomposes the request and levels the subtasks. Any planning failure
// falls back to a single serial subtask carrying the whole request.
func (r *Router) plan(req models.Request, res *Result, log *zap.Logger) {
	dec := r.decomposer.Decompose(req.Text, res.Intent)
	res.Trace.Strategy = string(dec.Strategy)

	if len(dec.Subtasks) >= 2 {
		phases, err := graph.BuildPhases(dec.Subtasks)
		if err == nil {
			res.Subtasks = dec.Subtasks
			res.Phases = phases
			res.Trace.Execution = state.ExecutionParallel
			res.Trace.PhasePlan = phasePlan(phases)
			return
		}

		reason := FallbackInvalidGraph
		if errors.Is(err, graph.ErrCycleDetected) {
			reason = FallbackCycle
		}
		r.fallback(res, reason, log, zap.Error(err))
	} else if res.Intent.EnableParallel {
		r.fallback(res, FallbackNoDecomposition, log)
	}

	res.Subtasks = []*models.Subtask{{
		ID:          "task-1",
		Description: req.Text,
		Status:      models.SubtaskPending,
	}}
	res.Phases = []models.ExecutionPhase{{Index: 0, SubtaskIDs: []string{"task-1"}}}
	res.Trace.Execution = state.ExecutionSerial
	res.Trace.PhasePlan = phasePlan(res.Phases)
}

func (r *Router) fallback(res *Result, reason string, log *zap.Logger, fields ...zap.Field) {
	res.Trace.Fallback = reason
	metrics.SerialFallbacks.WithLabelValues(reason).Inc()
	log.Warn("falling back to serial execution", append([]zap.Field{zap.String("reason", reason)}, fields...)...)
}

func phasePlan(phases []models.ExecutionPhase) [][]string {
	plan := make([][]string, len(phases))
	for i, p := range phases {
		plan[i] = append([]string(nil), p.SubtaskIDs...)
	}
	return plan
}

// record saves the run. Failures are logged and never surface to the caller.
func (r *Router) record(res *Result, elapsed time.Duration, log *zap.Logger) {
	if r.recorder == nil {
		return
	}

	run := &state.RunRecord{
		ID:              res.RunID,
		Request:         res.Request.Text,
		TaskType:        res.Intent.TaskType,
		Mode:            res.Intent.Mode,
		Source:          string(res.Intent.Source),
		Execution:       res.Trace.Execution,
		Total:           len(res.Subtasks),
		DurationSeconds: elapsed.Seconds(),
		CreatedAt:       time.Now(),
	}

	results := make(map[string]models.SubtaskResult)
	if res.Aggregated != nil {
		run.Total = res.Aggregated.Total
		run.Succeeded = res.Aggregated.Succeeded
		run.Failed = res.Aggregated.Failed
		run.Skipped = res.Aggregated.Skipped
		run.Cancelled = res.Aggregated.Cancelled
		for _, sr := range res.Aggregated.SubtaskResults {
			results[sr.SubtaskID] = sr
		}
	}
	for _, st := range res.Subtasks {
		rec := state.SubtaskRecord{SubtaskID: st.ID, Description: st.Description, Status: string(st.Status)}
		if sr, ok := results[st.ID]; ok {
			rec.Status = string(sr.Status)
			rec.DurationSeconds = sr.DurationSeconds
			rec.Error = sr.Error
		}
		run.Subtasks = append(run.Subtasks, rec)
	}

	if err := r.recorder.SaveRun(run); err != nil {
		log.Warn("failed to record run", zap.Error(err))
	}
}

func (r *Router) emit(ev RouterEvent) {
	if r.emitter != nil {
		r.emitter.Emit(ev)
	}
}
