package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

func TestExecutor_Execute(t *testing.T) {
	var gotSystem, gotPrompt string
	client, _ := fakeMessages(t, func(system, prompt string) (string, int) {
		gotSystem, gotPrompt = system, prompt
		return "  done: " + prompt + "\n", http.StatusOK
	})

	exec := NewExecutor(NewRunner(client, 0), "", nil)
	out, err := exec.Execute(context.Background(), models.Subtask{ID: "task-1", Description: "实现用户管理"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "done: 实现用户管理" {
		t.Errorf("out = %q", out)
	}
	if gotPrompt != "实现用户管理" {
		t.Errorf("prompt = %q", gotPrompt)
	}
	if !strings.Contains(gotSystem, "one subtask") {
		t.Errorf("expected default system prompt, got %q", gotSystem)
	}
}

func TestExecutor_EmptyReply(t *testing.T) {
	client, _ := fakeMessages(t, func(_, _ string) (string, int) {
		return "   ", http.StatusOK
	})

	_, err := NewExecutor(NewRunner(client, 0), "custom", nil).Execute(context.Background(), models.Subtask{ID: "task-2", Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "task-2") {
		t.Errorf("expected empty response error, got %v", err)
	}
}

func TestExecutor_ContextCancelled(t *testing.T) {
	client, _ := fakeMessages(t, func(_, _ string) (string, int) {
		return "late", http.StatusOK
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewExecutor(NewRunner(client, 0), "", nil).Execute(ctx, models.Subtask{ID: "task-1", Description: "x"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
