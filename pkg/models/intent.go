package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidIntent is returned when an Intent violates its field constraints.
var ErrInvalidIntent = errors.New("invalid intent")

// Complexity is the inferred size of a request.
type Complexity string

const (
	// ComplexitySimple is a single small change or question.
	ComplexitySimple Complexity = "simple"
	// ComplexityStandard is a typical feature-sized request.
	ComplexityStandard Complexity = "standard"
	// ComplexityComplex spans several modules or a whole system.
	ComplexityComplex Complexity = "complex"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityStandard, ComplexityComplex:
		return true
	default:
		return false
	}
}

// IntentSource records which classifier produced an Intent.
type IntentSource string

const (
	// SourceRule means the fast keyword classifier produced the intent.
	SourceRule IntentSource = "rule"
	// SourceEscalated means the deep classifier produced the intent.
	SourceEscalated IntentSource = "escalated"
)

// Valid returns true if the source is a known value.
func (s IntentSource) Valid() bool {
	return s == SourceRule || s == SourceEscalated
}

// ModeDirect is the mode used when no catalog entry matched the request.
const ModeDirect = "direct"

// TaskTypeGeneral is the task type used when no catalog entry matched.
const TaskTypeGeneral = "general"

// Request is a single free-text task request. It is never mutated.
type Request struct {
	// Text is the raw request text as typed by the user.
	Text string `json:"text"`
	// Verbose asks for a full routing trace.
	Verbose bool `json:"verbose,omitempty"`
	// DryRun stops after planning without executing anything.
	DryRun bool `json:"dry_run,omitempty"`
}

// Intent is the classified meaning of a request.
type Intent struct {
	// Mode is the kind of target that will handle the request (agent, skill, command, direct).
	Mode string `json:"mode"`
	// TaskType is the name of the catalog entry that best matched.
	TaskType string `json:"task_type"`
	// Complexity is the inferred size of the request.
	Complexity Complexity `json:"complexity"`
	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`
	// EnableParallel marks the request as decomposable into parallel subtasks.
	EnableParallel bool `json:"enable_parallel"`
	// ParallelReasoning explains why EnableParallel was set. Required when it is.
	ParallelReasoning string `json:"parallel_reasoning,omitempty"`
	// Source is the classifier that produced this intent.
	Source IntentSource `json:"source"`
	// Degraded is set when escalation was attempted but failed.
	Degraded bool `json:"degraded,omitempty"`
}

// Validate checks the Intent field constraints.
func (i Intent) Validate() error {
	if !i.Complexity.Valid() {
		return fmt.Errorf("%w: unknown complexity %q", ErrInvalidIntent, i.Complexity)
	}
	if i.Confidence < 0 || i.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f out of range", ErrInvalidIntent, i.Confidence)
	}
	if !i.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidIntent, i.Source)
	}
	if i.EnableParallel && i.ParallelReasoning == "" {
		return fmt.Errorf("%w: parallel intent without reasoning", ErrInvalidIntent)
	}
	if i.TaskType == "" {
		return fmt.Errorf("%w: empty task type", ErrInvalidIntent)
	}
	return nil
}

// CacheEntry is one cached classification.
type CacheEntry struct {
	// Key is the hex SHA-256 of the normalized request text.
	Key string `json:"key"`
	// Text is the normalized request text.
	Text string `json:"text"`
	// Intent is the cached classification.
	Intent Intent `json:"intent"`
	// CreatedAt is when the entry was first stored.
	CreatedAt time.Time `json:"created_at"`
	// LastAccessedAt is updated on every hit.
	LastAccessedAt time.Time `json:"last_accessed_at"`
	// AccessCount counts hits since creation.
	AccessCount int64 `json:"access_count"`
}

// Expired reports whether the entry is older than ttl at now. A zero ttl never expires.
func (e CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > ttl
}
