package orchestrator

import (
	"time"
)

// EventType represents the type of router event.
type EventType string

const (
	// EventClassified indicates the request has an intent.
	EventClassified EventType = "classified"
	// EventEscalated indicates the deep classifier was consulted.
	EventEscalated EventType = "escalated"
	// EventPhaseStarted indicates a phase was handed to the worker pool.
	EventPhaseStarted EventType = "phase_started"
	// EventSubtaskCompleted indicates a subtask reached a terminal status.
	EventSubtaskCompleted EventType = "subtask_completed"
	// EventRunCompleted indicates the whole request finished.
	EventRunCompleted EventType = "run_completed"
)

// RouterEvent represents an event emitted while routing a request.
type RouterEvent struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the routed request.
	RunID string
	// SubtaskID is set for subtask events.
	SubtaskID string
	// Phase is the phase index for phase events.
	Phase int
	// Status is the subtask status for subtask events.
	Status string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed time, when meaningful.
	Duration time.Duration
}
