package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/internal/cache"
	"github.com/ShayCichocki/intentrouter/internal/classify"
	"github.com/ShayCichocki/intentrouter/internal/decompose"
	"github.com/ShayCichocki/intentrouter/internal/lexicon"
	"github.com/ShayCichocki/intentrouter/internal/registry"
	"github.com/ShayCichocki/intentrouter/internal/scheduler"
	"github.com/ShayCichocki/intentrouter/internal/state"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// Decomposer splits a request into subtasks.
type Decomposer interface {
	Decompose(text string, intent models.Intent) decompose.Result
}

// RunRecorder persists a finished run. Recording is best effort.
type RunRecorder interface {
	SaveRun(run *state.RunRecord) error
}

// RequiredConfig contains the minimal required configuration for a Router.
type RequiredConfig struct {
	// Catalog supplies the routable entries.
	Catalog registry.Catalog
	// Executor runs subtasks. It may be nil when every request is a dry run.
	Executor scheduler.Executor
}

// Option configures a Router. Use With* functions to create Options.
type Option func(*routerOptions)

// routerOptions holds all optional configuration.
type routerOptions struct {
	lexicon     lexicon.Lexicon
	scoring     classify.Scoring
	gate        classify.GateConfig
	escalation  classify.EscalatorConfig
	classifier  classify.Classifier
	cache       *cache.IntentCache
	recorder    RunRecorder
	decomposer  Decomposer
	workers     int
	taskTimeout time.Duration
	logger      *zap.Logger
	emitter     *EventEmitter
}

func defaultOptions() routerOptions {
	return routerOptions{
		lexicon:     lexicon.Default(),
		scoring:     classify.DefaultScoring(),
		gate:        classify.DefaultGateConfig(),
		escalation:  classify.DefaultEscalatorConfig(),
		workers:     scheduler.DefaultWorkers,
		taskTimeout: scheduler.DefaultTaskTimeout,
	}
}

// WithLexicon sets the keyword lists shared by classification and decomposition.
func WithLexicon(l lexicon.Lexicon) Option {
	return func(o *routerOptions) { o.lexicon = l }
}

// WithScoring sets the rule classifier weights.
func WithScoring(s classify.Scoring) Option {
	return func(o *routerOptions) { o.scoring = s }
}

// WithGateConfig sets the escalation thresholds.
func WithGateConfig(g classify.GateConfig) Option {
	return func(o *routerOptions) { o.gate = g }
}

// WithEscalation sets the escalation timeout and retry policy.
func WithEscalation(cfg classify.EscalatorConfig) Option {
	return func(o *routerOptions) { o.escalation = cfg }
}

// WithClassifier sets the deep classifier. Without one, escalation is disabled.
func WithClassifier(c classify.Classifier) Option {
	return func(o *routerOptions) { o.classifier = c }
}

// WithCache sets the intent cache. The caller owns its lifecycle.
func WithCache(c *cache.IntentCache) Option {
	return func(o *routerOptions) { o.cache = c }
}

// WithRunRecorder sets where finished runs are recorded.
func WithRunRecorder(r RunRecorder) Option {
	return func(o *routerOptions) { o.recorder = r }
}

// WithDecomposer sets a custom decomposer (mainly for testing).
func WithDecomposer(d Decomposer) Option {
	return func(o *routerOptions) { o.decomposer = d }
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(o *routerOptions) { o.workers = n }
}

// WithTaskTimeout sets the per-subtask deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *routerOptions) { o.taskTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *routerOptions) { o.logger = l }
}

// WithEventEmitter sets where progress events are sent.
func WithEventEmitter(e *EventEmitter) Option {
	return func(o *routerOptions) { o.emitter = e }
}
