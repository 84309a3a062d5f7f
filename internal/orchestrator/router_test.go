package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/intentrouter/internal/cache"
	"github.com/ShayCichocki/intentrouter/internal/classify"
	"github.com/ShayCichocki/intentrouter/internal/decompose"
	"github.com/ShayCichocki/intentrouter/internal/registry"
	"github.com/ShayCichocki/intentrouter/internal/scheduler"
	"github.com/ShayCichocki/intentrouter/internal/state"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

type decomposerFunc func(text string, intent models.Intent) decompose.Result

func (f decomposerFunc) Decompose(text string, intent models.Intent) decompose.Result {
	return f(text, intent)
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []*state.RunRecord
	err  error
}

func (f *fakeRecorder) SaveRun(run *state.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return f.err
}

// recordingExecutor remembers every description it ran.
type recordingExecutor struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]bool
	delay time.Duration
}

func (e *recordingExecutor) Execute(ctx context.Context, st models.Subtask) (string, error) {
	e.mu.Lock()
	e.seen = append(e.seen, st.Description)
	e.mu.Unlock()
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.fail[st.ID] {
		return "", errors.New("executor failed")
	}
	return "done: " + st.Description, nil
}

func (e *recordingExecutor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.seen...)
}

func newTestRouter(exec scheduler.Executor, opts ...Option) *Router {
	return New(RequiredConfig{
		Catalog:  registry.StaticCatalog(registry.BuiltinEntries()),
		Executor: exec,
	}, opts...)
}

func TestRoute_ParallelEnumeration(t *testing.T) {
	// Every subtask waits until all three have started, so the run only
	// finishes quickly when they execute concurrently.
	var started sync.WaitGroup
	started.Add(3)
	exec := scheduler.ExecutorFunc(func(ctx context.Context, st models.Subtask) (string, error) {
		started.Done()
		waited := make(chan struct{})
		go func() { started.Wait(); close(waited) }()
		select {
		case <-waited:
			return "ok", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	rec := &fakeRecorder{}
	router := newTestRouter(exec, WithTaskTimeout(2*time.Second), WithRunRecorder(rec))
	res, err := router.Route(context.Background(), models.Request{Text: "实现用户管理、商品管理、订单处理"})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}

	if !res.Intent.EnableParallel {
		t.Fatalf("expected parallel intent, got %+v", res.Intent)
	}
	if res.Intent.TaskType != "development" {
		t.Errorf("TaskType = %q, want development", res.Intent.TaskType)
	}
	if res.Trace.Strategy != string(decompose.StrategySeparator) {
		t.Errorf("Strategy = %q, want separator_list", res.Trace.Strategy)
	}
	if res.Trace.Execution != state.ExecutionParallel {
		t.Errorf("Execution = %q, want parallel", res.Trace.Execution)
	}
	if len(res.Phases) != 1 || len(res.Phases[0].SubtaskIDs) != 3 {
		t.Errorf("phases = %+v, want one phase of 3", res.Phases)
	}
	agg := res.Aggregated
	if agg == nil || agg.Total != 3 || agg.Succeeded != 3 {
		t.Fatalf("aggregated = %+v, want 3/3 succeeded", agg)
	}
	for i, want := range []string{"task-1", "task-2", "task-3"} {
		if agg.SubtaskResults[i].SubtaskID != want {
			t.Errorf("result[%d] = %s, want %s", i, agg.SubtaskResults[i].SubtaskID, want)
		}
	}
	if res.Trace.Escalation.Escalated || len(res.Trace.Escalation.Reasons) != 0 {
		t.Errorf("unexpected escalation: %+v", res.Trace.Escalation)
	}

	if len(rec.runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(rec.runs))
	}
	if run := rec.runs[0]; run.ID != res.RunID || run.Succeeded != 3 || len(run.Subtasks) != 3 {
		t.Errorf("recorded run = %+v", run)
	}
}

func TestRoute_SerialAnalysis(t *testing.T) {
	exec := &recordingExecutor{}
	router := newTestRouter(exec)

	text := "分析这个函数的时间复杂度"
	res, err := router.Route(context.Background(), models.Request{Text: text})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}

	if res.Intent.TaskType != "analysis" || res.Intent.EnableParallel {
		t.Errorf("intent = %+v, want serial analysis", res.Intent)
	}
	if res.Trace.Strategy != string(decompose.StrategyNone) || res.Trace.Execution != state.ExecutionSerial {
		t.Errorf("trace = %+v, want serial with no strategy", res.Trace)
	}
	if res.Trace.Fallback != "" {
		t.Errorf("Fallback = %q, want none for a non-parallel intent", res.Trace.Fallback)
	}
	if res.Aggregated.Total != 1 || res.Aggregated.Succeeded != 1 {
		t.Errorf("aggregated = %+v, want 1/1", res.Aggregated)
	}
	if calls := exec.calls(); len(calls) != 1 || calls[0] != text {
		t.Errorf("executor calls = %q, want the whole request once", calls)
	}
}

func TestRoute_CacheHit(t *testing.T) {
	c := cache.New(cache.Options{Capacity: 10})
	router := newTestRouter(nil, WithCache(c))

	first, err := router.Route(context.Background(), models.Request{Text: "Fix the Login Bug", DryRun: true})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if first.Trace.CacheHit {
		t.Error("first request should miss the cache")
	}

	second, err := router.Route(context.Background(), models.Request{Text: "fix   the login bug", DryRun: true})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if !second.Trace.CacheHit {
		t.Error("normalized request should hit the cache")
	}
	if second.Intent != first.Intent {
		t.Errorf("cached intent = %+v, want %+v", second.Intent, first.Intent)
	}
}

func TestRoute_DryRun(t *testing.T) {
	rec := &fakeRecorder{}
	router := newTestRouter(nil, WithRunRecorder(rec))

	res, err := router.Route(context.Background(), models.Request{Text: "实现用户管理、商品管理、订单处理", DryRun: true})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if res.Aggregated != nil {
		t.Error("dry run must not execute")
	}
	if len(res.Subtasks) != 3 || len(res.Trace.PhasePlan) != 1 {
		t.Errorf("plan = %d subtasks, %v", len(res.Subtasks), res.Trace.PhasePlan)
	}
	if res.Trace.Execution != state.ExecutionDryRun {
		t.Errorf("Execution = %q, want dry_run", res.Trace.Execution)
	}
	if len(rec.runs) != 1 || rec.runs[0].Execution != state.ExecutionDryRun || rec.runs[0].Total != 3 {
		t.Errorf("recorded runs = %+v", rec.runs)
	}
}

func TestRoute_CycleFallsBackToSerial(t *testing.T) {
	cyclic := decomposerFunc(func(text string, intent models.Intent) decompose.Result {
		return decompose.Result{
			Strategy: decompose.StrategyOrdering,
			Subtasks: []*models.Subtask{
				{ID: "a", Description: "a", Dependencies: []string{"b"}, Status: models.SubtaskPending},
				{ID: "b", Description: "b", Dependencies: []string{"a"}, Status: models.SubtaskPending},
			},
		}
	})
	exec := &recordingExecutor{}
	router := newTestRouter(exec, WithDecomposer(cyclic))

	text := "实现用户管理、商品管理"
	res, err := router.Route(context.Background(), models.Request{Text: text})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if res.Trace.Fallback != FallbackCycle || res.Trace.Execution != state.ExecutionSerial {
		t.Errorf("trace = %+v, want serial cycle fallback", res.Trace)
	}
	if calls := exec.calls(); len(calls) != 1 || calls[0] != text {
		t.Errorf("executor calls = %q, want the whole request once", calls)
	}
}

func TestRoute_FailureIsolation(t *testing.T) {
	plan := decomposerFunc(func(text string, intent models.Intent) decompose.Result {
		return decompose.Result{
			Strategy: decompose.StrategySeparator,
			Subtasks: []*models.Subtask{
				{ID: "A", Description: "build api", Status: models.SubtaskPending},
				{ID: "B", Description: "wire client", Dependencies: []string{"A"}, Status: models.SubtaskPending},
				{ID: "C", Description: "write docs", Status: models.SubtaskPending},
			},
		}
	})
	exec := &recordingExecutor{fail: map[string]bool{"A": true}}
	router := newTestRouter(exec, WithDecomposer(plan))

	res, err := router.Route(context.Background(), models.Request{Text: "build the api, wire the client and write docs"})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}

	want := map[string]models.SubtaskStatus{"A": models.SubtaskFailed, "B": models.SubtaskSkipped, "C": models.SubtaskSuccess}
	for _, r := range res.Aggregated.SubtaskResults {
		if r.Status != want[r.SubtaskID] {
			t.Errorf("%s = %s, want %s", r.SubtaskID, r.Status, want[r.SubtaskID])
		}
	}
	agg := res.Aggregated
	if agg.Total != 3 || agg.Succeeded != 1 || agg.Failed != 1 || agg.Skipped != 1 {
		t.Errorf("aggregated = %+v", agg)
	}
	// Phase 0 holds A and C; B waits for phase 1.
	for i, id := range []string{"A", "C", "B"} {
		if agg.SubtaskResults[i].SubtaskID != id {
			t.Errorf("result[%d] = %s, want %s", i, agg.SubtaskResults[i].SubtaskID, id)
		}
	}
	for _, call := range exec.calls() {
		if call == "wire client" {
			t.Error("dependent of a failed subtask was executed")
		}
	}
}

func TestRoute_DegradedEscalation(t *testing.T) {
	failing := classify.ClassifierFunc(func(ctx context.Context, req models.Request, entries []models.RegistryEntry) (models.Intent, error) {
		return models.Intent{}, errors.New("backend unavailable")
	})
	c := cache.New(cache.Options{Capacity: 10})
	router := newTestRouter(nil,
		WithCache(c),
		WithClassifier(failing),
		WithEscalation(classify.EscalatorConfig{Timeout: time.Second, MaxAttempts: 1, RetryDelay: time.Millisecond}),
	)

	res, err := router.Route(context.Background(), models.Request{Text: "maybe improve something", DryRun: true})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	esc := res.Trace.Escalation
	if !esc.Escalated || !esc.Degraded || esc.Error == "" {
		t.Errorf("escalation trace = %+v, want degraded", esc)
	}
	if res.Intent.Source != models.SourceRule || !res.Intent.Degraded {
		t.Errorf("intent = %+v, want degraded rule intent", res.Intent)
	}
	if c.Len() != 0 {
		t.Error("degraded intents must not be cached")
	}
}

func TestRoute_EscalationSucceeds(t *testing.T) {
	deep := classify.ClassifierFunc(func(ctx context.Context, req models.Request, entries []models.RegistryEntry) (models.Intent, error) {
		return models.Intent{
			Mode:       "agent",
			TaskType:   "analysis",
			Complexity: models.ComplexitySimple,
			Confidence: 0.9,
		}, nil
	})
	c := cache.New(cache.Options{Capacity: 10})
	router := newTestRouter(nil, WithCache(c), WithClassifier(deep))

	res, err := router.Route(context.Background(), models.Request{Text: "maybe improve something", DryRun: true})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if res.Intent.Source != models.SourceEscalated || res.Intent.TaskType != "analysis" {
		t.Errorf("intent = %+v, want escalated analysis", res.Intent)
	}
	if res.Trace.Escalation.Degraded {
		t.Error("successful escalation must not be degraded")
	}
	if c.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", c.Len())
	}
}

func TestRoute_UnescalatedIntentIsNotCached(t *testing.T) {
	c := cache.New(cache.Options{Capacity: 10})
	offline := newTestRouter(nil, WithCache(c))

	res, err := offline.Route(context.Background(), models.Request{Text: "maybe improve something", DryRun: true})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if len(res.Trace.Escalation.Reasons) == 0 || res.Trace.Escalation.Escalated {
		t.Fatalf("escalation trace = %+v, want reasons without escalation", res.Trace.Escalation)
	}
	if c.Len() != 0 {
		t.Errorf("cache holds %d entries, want 0", c.Len())
	}

	deep := classify.ClassifierFunc(func(ctx context.Context, req models.Request, entries []models.RegistryEntry) (models.Intent, error) {
		return models.Intent{Mode: "agent", TaskType: "analysis", Complexity: models.ComplexitySimple, Confidence: 0.9}, nil
	})
	online := newTestRouter(nil, WithCache(c), WithClassifier(deep))
	res, err = online.Route(context.Background(), models.Request{Text: "maybe improve something", DryRun: true})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if res.Trace.CacheHit || !res.Trace.Escalation.Escalated {
		t.Errorf("trace = %+v, want a cache miss that escalates", res.Trace)
	}
}

func TestRoute_Events(t *testing.T) {
	emitter := NewEventEmitter(100, nil)
	router := newTestRouter(&recordingExecutor{}, WithEventEmitter(emitter))

	if _, err := router.Route(context.Background(), models.Request{Text: "实现用户管理、商品管理、订单处理"}); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	emitter.Close()

	counts := make(map[EventType]int)
	for ev := range emitter.Events() {
		counts[ev.Type]++
	}
	if counts[EventClassified] != 1 || counts[EventPhaseStarted] != 1 || counts[EventRunCompleted] != 1 {
		t.Errorf("event counts = %v", counts)
	}
	if counts[EventSubtaskCompleted] != 3 {
		t.Errorf("subtask events = %d, want 3", counts[EventSubtaskCompleted])
	}
}

func TestRoute_InvalidInput(t *testing.T) {
	router := newTestRouter(nil)

	if _, err := router.Route(context.Background(), models.Request{Text: "   "}); !errors.Is(err, ErrEmptyRequest) {
		t.Errorf("expected ErrEmptyRequest, got %v", err)
	}
	if _, err := router.Route(context.Background(), models.Request{Text: "fix the login bug"}); !errors.Is(err, ErrNoExecutor) {
		t.Errorf("expected ErrNoExecutor, got %v", err)
	}
}

func TestRoute_RecorderFailureIsNotFatal(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	router := newTestRouter(&recordingExecutor{}, WithRunRecorder(rec))

	if _, err := router.Route(context.Background(), models.Request{Text: "fix the login bug"}); err != nil {
		t.Errorf("recorder failure surfaced: %v", err)
	}
}
