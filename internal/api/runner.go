package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

const defaultMaxTokens = 4096

// Runner provides text-in/text-out calls without tools.
type Runner struct {
	client    *Client
	maxTokens int64
}

// NewRunner creates a runner. A non-positive maxTokens uses 4096.
func NewRunner(client *Client, maxTokens int) *Runner {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Runner{client: client, maxTokens: int64(maxTokens)}
}

// RunWithSystem executes a prompt with a system message and returns the
// concatenated text blocks of the reply.
func (r *Runner) RunWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     r.client.Model(),
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := r.client.sdk().Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	r.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	return result.String(), nil
}

// RunJSON executes a prompt and parses the first JSON object in the reply
// into target.
func (r *Runner) RunJSON(ctx context.Context, systemPrompt, userPrompt string, target any) error {
	response, err := r.RunWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return err
	}

	jsonStr, ok := extractJSON(response)
	if !ok {
		return fmt.Errorf("no valid JSON found in response: %s", truncate(response, 200))
	}
	if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
		return fmt.Errorf("parse JSON: %w (response: %s)", err, truncate(jsonStr, 200))
	}
	return nil
}

// extractJSON returns the outermost {...} span, skipping any markdown fence.
func extractJSON(response string) (string, bool) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return response[start : end+1], true
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
