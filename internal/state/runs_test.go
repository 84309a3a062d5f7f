package state

import (
	"testing"
	"time"
)

func testRun(id string, created time.Time) *RunRecord {
	return &RunRecord{
		ID:              id,
		Request:         "实现用户管理、商品管理、订单处理",
		TaskType:        "development",
		Mode:            "agent",
		Source:          "rule",
		Execution:       ExecutionParallel,
		Total:           3,
		Succeeded:       2,
		Failed:          1,
		DurationSeconds: 1.5,
		CreatedAt:       created,
		Subtasks: []SubtaskRecord{
			{SubtaskID: "task-1", Description: "实现用户管理", Status: "success", DurationSeconds: 1.2},
			{SubtaskID: "task-2", Description: "实现商品管理", Status: "failed", DurationSeconds: 1.4, Error: "timeout"},
			{SubtaskID: "task-3", Description: "实现订单处理", Status: "success", DurationSeconds: 0.9},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	run := testRun("run-1", time.Now())

	if err := db.SaveRun(run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil")
	}
	if got.TaskType != "development" || got.Execution != ExecutionParallel {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.Total != 3 || got.Succeeded != 2 || got.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", got.Total, got.Succeeded, got.Failed)
	}
	if len(got.Subtasks) != 3 {
		t.Fatalf("subtasks = %d, want 3", len(got.Subtasks))
	}
	if got.Subtasks[1].Error != "timeout" {
		t.Errorf("subtask error = %q, want timeout", got.Subtasks[1].Error)
	}
	if got.Subtasks[0].Error != "" {
		t.Errorf("expected empty error for successful subtask, got %q", got.Subtasks[0].Error)
	}
	for i, want := range []string{"task-1", "task-2", "task-3"} {
		if got.Subtasks[i].SubtaskID != want {
			t.Errorf("subtask[%d] = %s, want %s", i, got.Subtasks[i].SubtaskID, want)
		}
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.GetRun("missing")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing run, got %+v", got)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		if err := db.SaveRun(testRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveRun %s failed: %v", id, err)
		}
	}

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("order = %s, %s; want new, mid", runs[0].ID, runs[1].ID)
	}

	all, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns(0) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListRuns(0) returned %d runs, want 3", len(all))
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)
	if err := db.SaveRun(testRun("ancient", time.Now().Add(-72*time.Hour))); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := db.SaveRun(testRun("recent", time.Now())); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	n, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d runs, want 1", n)
	}

	var subtasks int
	if err := db.QueryRow("SELECT COUNT(*) FROM run_subtasks WHERE run_id = ?", "ancient").Scan(&subtasks); err != nil {
		t.Fatalf("count subtasks: %v", err)
	}
	if subtasks != 0 {
		t.Errorf("expected cascade delete of subtasks, %d remain", subtasks)
	}
}
