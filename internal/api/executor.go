package api

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

const executorSystemPrompt = `You are a software engineer completing one subtask of a larger request.
Do only the subtask you are given. Reply with the result.`

// Executor runs subtasks by sending each description to the model.
type Executor struct {
	runner *Runner
	system string
	logger *zap.Logger
}

// NewExecutor creates an Executor. An empty system prompt uses the default.
func NewExecutor(runner *Runner, system string, logger *zap.Logger) *Executor {
	if system == "" {
		system = executorSystemPrompt
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{runner: runner, system: system, logger: logger}
}

// Execute runs one subtask. An empty reply is an error.
func (e *Executor) Execute(ctx context.Context, subtask models.Subtask) (string, error) {
	out, err := e.runner.RunWithSystem(ctx, e.system, subtask.Description)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("subtask %s: empty response", subtask.ID)
	}
	e.logger.Debug("subtask executed",
		zap.String("subtask_id", subtask.ID),
		zap.Int("output_bytes", len(out)),
	)
	return out, nil
}
