package state

import (
	"database/sql"
	"fmt"
	"time"
)

// Execution modes recorded for a run.
const (
	ExecutionParallel = "parallel"
	ExecutionSerial   = "serial"
	ExecutionDryRun   = "dry_run"
)

// RunRecord is the persisted summary of one routed request.
type RunRecord struct {
	ID              string          `json:"id"`
	Request         string          `json:"request"`
	TaskType        string          `json:"task_type"`
	Mode            string          `json:"mode"`
	Source          string          `json:"source"`
	Execution       string          `json:"execution"`
	Total           int             `json:"total"`
	Succeeded       int             `json:"succeeded"`
	Failed          int             `json:"failed"`
	Skipped         int             `json:"skipped"`
	Cancelled       bool            `json:"cancelled"`
	DurationSeconds float64         `json:"duration_seconds"`
	CreatedAt       time.Time       `json:"created_at"`
	Subtasks        []SubtaskRecord `json:"subtasks,omitempty"`
}

// SubtaskRecord is one subtask outcome within a run.
type SubtaskRecord struct {
	SubtaskID       string  `json:"subtask_id"`
	Description     string  `json:"description"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

// SaveRun stores a run and its subtasks atomically.
func (db *DB) SaveRun(r *RunRecord) error {
	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (id, request, task_type, mode, source, execution, total, succeeded, failed, skipped, cancelled, duration_seconds, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Request, r.TaskType, r.Mode, r.Source, r.Execution,
			r.Total, r.Succeeded, r.Failed, r.Skipped, boolToInt(r.Cancelled), r.DurationSeconds, formatTime(r.CreatedAt))
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}

		for i, st := range r.Subtasks {
			_, err := tx.Exec(`
				INSERT INTO run_subtasks (run_id, position, subtask_id, description, status, duration_seconds, error)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, r.ID, i, st.SubtaskID, st.Description, st.Status, st.DurationSeconds, nullString(st.Error))
			if err != nil {
				return fmt.Errorf("create run subtask %s: %w", st.SubtaskID, err)
			}
		}
		return nil
	})
}

// GetRun retrieves a run with its subtasks. Returns nil, nil when not found.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	row := db.QueryRow(`
		SELECT id, request, task_type, mode, source, execution, total, succeeded, failed, skipped, cancelled, duration_seconds, created_at
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := db.Query(`
		SELECT subtask_id, description, status, duration_seconds, error
		FROM run_subtasks WHERE run_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list run subtasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st SubtaskRecord
		var errText sql.NullString
		if err := rows.Scan(&st.SubtaskID, &st.Description, &st.Status, &st.DurationSeconds, &errText); err != nil {
			return nil, fmt.Errorf("scan run subtask: %w", err)
		}
		st.Error = errText.String
		r.Subtasks = append(r.Subtasks, st)
	}
	return r, rows.Err()
}

// ListRuns returns the most recent runs first, without subtasks.
// A limit of zero or less returns all runs.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	query := `
		SELECT id, request, task_type, mode, source, execution, total, succeeded, failed, skipped, cancelled, duration_seconds, created_at
		FROM runs ORDER BY created_at DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// PurgeOldRuns deletes runs older than the specified duration.
// Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec("DELETE FROM runs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var r RunRecord
	var cancelled int
	var createdAt string
	err := row.Scan(&r.ID, &r.Request, &r.TaskType, &r.Mode, &r.Source, &r.Execution,
		&r.Total, &r.Succeeded, &r.Failed, &r.Skipped, &cancelled, &r.DurationSeconds, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Cancelled = cancelled != 0
	r.CreatedAt, _ = parseTime(createdAt)
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
