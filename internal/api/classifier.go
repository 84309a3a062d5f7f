package api

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

const classifierSystemPrompt = `You route software development requests to a handler.
Reply with a single JSON object and nothing else:
{"task_type": "<entry name or general>", "complexity": "simple|standard|complex", "confidence": <0..1>, "enable_parallel": <bool>, "parallel_reasoning": "<why, required when enable_parallel is true>"}
Set enable_parallel only when the request names several independent pieces of work.`

// classification is the JSON shape the model is asked to return.
type classification struct {
	TaskType          string  `json:"task_type"`
	Complexity        string  `json:"complexity"`
	Confidence        float64 `json:"confidence"`
	EnableParallel    bool    `json:"enable_parallel"`
	ParallelReasoning string  `json:"parallel_reasoning"`
}

// Classifier is the model-backed deep classifier used on escalation.
type Classifier struct {
	runner *Runner
	logger *zap.Logger
}

// NewClassifier creates a Classifier. A nil logger disables logging.
func NewClassifier(runner *Runner, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{runner: runner, logger: logger}
}

// ClassifyDeep asks the model to pick one of entries for req.
func (c *Classifier) ClassifyDeep(ctx context.Context, req models.Request, entries []models.RegistryEntry) (models.Intent, error) {
	var out classification
	if err := c.runner.RunJSON(ctx, classifierSystemPrompt, buildClassifierPrompt(req, entries), &out); err != nil {
		return models.Intent{}, err
	}

	intent, err := toIntent(out, entries)
	if err != nil {
		return models.Intent{}, err
	}
	c.logger.Debug("model classification",
		zap.String("task_type", intent.TaskType),
		zap.String("complexity", string(intent.Complexity)),
		zap.Float64("confidence", intent.Confidence),
	)
	return intent, nil
}

func buildClassifierPrompt(req models.Request, entries []models.RegistryEntry) string {
	var sb strings.Builder
	sb.WriteString("Available handlers:\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "- %s (%s", e.Name, e.Type)
		if e.Category != "" {
			fmt.Fprintf(&sb, ", %s", e.Category)
		}
		sb.WriteString(")")
		if e.Description != "" {
			fmt.Fprintf(&sb, ": %s", e.Description)
		}
		if len(e.Keywords) > 0 {
			fmt.Fprintf(&sb, " [keywords: %s]", strings.Join(e.Keywords, ", "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nRequest:\n")
	sb.WriteString(req.Text)
	return sb.String()
}

// toIntent maps the model reply onto a catalog entry. Unknown task types
// become the general task handled directly.
func toIntent(out classification, entries []models.RegistryEntry) (models.Intent, error) {
	intent := models.Intent{
		Mode:              models.ModeDirect,
		TaskType:          models.TaskTypeGeneral,
		Complexity:        models.Complexity(strings.ToLower(strings.TrimSpace(out.Complexity))),
		Confidence:        out.Confidence,
		EnableParallel:    out.EnableParallel,
		ParallelReasoning: strings.TrimSpace(out.ParallelReasoning),
		Source:            models.SourceEscalated,
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name, strings.TrimSpace(out.TaskType)) {
			intent.Mode = e.Type
			intent.TaskType = e.Name
			break
		}
	}
	if intent.EnableParallel && intent.ParallelReasoning == "" {
		intent.ParallelReasoning = "model marked the request as parallel"
	}
	if err := intent.Validate(); err != nil {
		return models.Intent{}, err
	}
	return intent, nil
}
