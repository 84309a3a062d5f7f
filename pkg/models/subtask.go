package models

// SubtaskStatus represents the lifecycle state of a subtask.
type SubtaskStatus string

const (
	// SubtaskPending indicates the subtask has not been submitted.
	SubtaskPending SubtaskStatus = "pending"
	// SubtaskRunning indicates a worker is executing the subtask.
	SubtaskRunning SubtaskStatus = "running"
	// SubtaskSuccess indicates the executor returned without error.
	SubtaskSuccess SubtaskStatus = "success"
	// SubtaskFailed indicates the executor errored, panicked or timed out.
	SubtaskFailed SubtaskStatus = "failed"
	// SubtaskSkipped indicates a dependency did not succeed, so the subtask never ran.
	SubtaskSkipped SubtaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s SubtaskStatus) Valid() bool {
	switch s {
	case SubtaskPending, SubtaskRunning, SubtaskSuccess, SubtaskFailed, SubtaskSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the subtask can no longer change state.
func (s SubtaskStatus) IsTerminal() bool {
	return s == SubtaskSuccess || s == SubtaskFailed || s == SubtaskSkipped
}

// Subtask is one unit of work produced by decomposing a request.
type Subtask struct {
	// ID is unique within a decomposition.
	ID string `json:"id"`
	// Description is the text handed to the executor.
	Description string `json:"description"`
	// Dependencies lists IDs of subtasks that must succeed first.
	Dependencies []string `json:"dependencies,omitempty"`
	// Status is mutated only by the scheduler.
	Status SubtaskStatus `json:"status"`
}

// ExecutionPhase is a set of subtasks with no edges between them.
type ExecutionPhase struct {
	// Index is the zero-based phase number.
	Index int `json:"index"`
	// SubtaskIDs are kept in decomposition order.
	SubtaskIDs []string `json:"subtask_ids"`
}

// SubtaskResult is the outcome of one subtask.
type SubtaskResult struct {
	SubtaskID       string        `json:"subtask_id"`
	Status          SubtaskStatus `json:"status"`
	Success         bool          `json:"success"`
	Output          string        `json:"output,omitempty"`
	DurationSeconds float64       `json:"duration_seconds"`
	Error           string        `json:"error,omitempty"`
}

// AggregatedResult summarizes a whole run.
type AggregatedResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	// DurationSeconds is wall-clock time for the run, not the sum of subtask durations.
	DurationSeconds float64 `json:"duration_seconds"`
	// Cancelled is set when the caller cancelled before all phases ran.
	Cancelled      bool            `json:"cancelled,omitempty"`
	SubtaskResults []SubtaskResult `json:"subtask_results"`
}
