package classify

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// Classifier is the slow, higher-accuracy classification backend.
type Classifier interface {
	ClassifyDeep(ctx context.Context, req models.Request, entries []models.RegistryEntry) (models.Intent, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, req models.Request, entries []models.RegistryEntry) (models.Intent, error)

// ClassifyDeep calls f.
func (f ClassifierFunc) ClassifyDeep(ctx context.Context, req models.Request, entries []models.RegistryEntry) (models.Intent, error) {
	return f(ctx, req, entries)
}

// ClassificationError wraps a deep classifier failure. It is never fatal;
// the caller keeps the rule intent.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("deep classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// EscalatorConfig controls retries and the overall escalation deadline.
type EscalatorConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// DefaultEscalatorConfig returns a 30s budget with one retry.
func DefaultEscalatorConfig() EscalatorConfig {
	return EscalatorConfig{
		Timeout:     30 * time.Second,
		MaxAttempts: 2,
		RetryDelay:  500 * time.Millisecond,
	}
}

// Escalation is the result of an escalation attempt.
type Escalation struct {
	Intent models.Intent
	// Err is set when the deep classifier failed and Intent is the degraded rule intent.
	Err error
	// Duration is how long escalation took.
	Duration time.Duration
}

// Escalator runs a Classifier with retry and a deadline, falling back to the
// rule intent on any failure.
type Escalator struct {
	inner  Classifier
	cfg    EscalatorConfig
	logger *zap.Logger
}

// NewEscalator wraps inner. A nil logger disables logging.
func NewEscalator(inner Classifier, cfg EscalatorConfig, logger *zap.Logger) *Escalator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEscalatorConfig().Timeout
	}
	return &Escalator{inner: inner, cfg: cfg, logger: logger}
}

// Escalate asks the deep classifier for an intent. On error, timeout or an
// invalid answer it returns fallback with Source=rule and Degraded set.
func (e *Escalator) Escalate(ctx context.Context, req models.Request, entries []models.RegistryEntry, fallback models.Intent) Escalation {
	start := time.Now()

	r := retry.New[models.Intent](retry.Config{
		MaxAttempts:   e.cfg.MaxAttempts,
		InitialDelay:  e.cfg.RetryDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	t := timeout.New[models.Intent](timeout.Config{
		DefaultTimeout: e.cfg.Timeout,
	})

	intent, err := t.Execute(ctx, e.cfg.Timeout, func(ctx context.Context) (models.Intent, error) {
		return r.Do(ctx, func(ctx context.Context) (models.Intent, error) {
			intent, err := e.inner.ClassifyDeep(ctx, req, entries)
			if err != nil {
				return models.Intent{}, err
			}
			intent.Source = models.SourceEscalated
			intent.Degraded = false
			if err := intent.Validate(); err != nil {
				return models.Intent{}, err
			}
			return intent, nil
		})
	})
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	elapsed := time.Since(start)
	if err != nil {
		degraded := fallback
		degraded.Source = models.SourceRule
		degraded.Degraded = true
		e.logger.Warn("escalation failed, keeping rule intent",
			zap.Error(err),
			zap.String("task_type", degraded.TaskType),
			zap.Duration("elapsed", elapsed),
		)
		return Escalation{Intent: degraded, Err: &ClassificationError{Err: err}, Duration: elapsed}
	}

	e.logger.Debug("escalation succeeded",
		zap.String("task_type", intent.TaskType),
		zap.Float64("confidence", intent.Confidence),
		zap.Bool("parallel", intent.EnableParallel),
		zap.Duration("elapsed", elapsed),
	)
	return Escalation{Intent: intent, Duration: elapsed}
}
