package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/intentrouter/internal/orchestrator"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(14)
	phaseStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// statusColor maps a subtask status to its display color.
func statusColor(s models.SubtaskStatus) *color.Color {
	switch s {
	case models.SubtaskSuccess:
		return color.New(color.FgGreen)
	case models.SubtaskFailed:
		return color.New(color.FgRed)
	case models.SubtaskSkipped:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgWhite)
	}
}

func statusSymbol(s models.SubtaskStatus) string {
	switch s {
	case models.SubtaskSuccess:
		return "✓"
	case models.SubtaskFailed:
		return "✗"
	case models.SubtaskSkipped:
		return "⊘"
	default:
		return "•"
	}
}

func field(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label), value)
}

// renderResult prints the intent, the phase plan and the aggregated outcome.
func renderResult(w io.Writer, res *orchestrator.Result, verbose bool) {
	in := res.Intent

	fmt.Fprintln(w, titleStyle.Render("Intent"))
	field(w, "task type", fmt.Sprintf("%s (%s)", in.TaskType, in.Mode))
	field(w, "complexity", string(in.Complexity))
	field(w, "confidence", fmt.Sprintf("%.2f", in.Confidence))
	source := string(in.Source)
	if res.Trace.CacheHit {
		source += ", cached"
	}
	if in.Degraded {
		source += ", " + color.YellowString("degraded")
	}
	field(w, "source", source)
	if in.EnableParallel {
		field(w, "parallel", in.ParallelReasoning)
	}

	if verbose {
		renderTrace(w, res.Trace)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Plan"))
	fmt.Fprintln(w, renderPhases(res))

	if res.Aggregated == nil {
		fmt.Fprintln(w, color.CyanString("Dry run: nothing executed."))
		return
	}
	renderAggregate(w, res.Aggregated, verbose)
}

func renderTrace(w io.Writer, tr orchestrator.Trace) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Trace"))
	if tr.RuleEntry != "" {
		field(w, "rule match", fmt.Sprintf("%s (score %.2f)", tr.RuleEntry, tr.RuleScore))
	}
	if len(tr.Escalation.Reasons) > 0 {
		esc := strings.Join(tr.Escalation.Reasons, ", ")
		switch {
		case tr.Escalation.Degraded:
			esc += " → " + color.YellowString("failed: %s", tr.Escalation.Error)
		case tr.Escalation.Escalated:
			esc += fmt.Sprintf(" → escalated in %.2fs", tr.Escalation.DurationSeconds)
		default:
			esc += " → no classifier configured"
		}
		field(w, "escalation", esc)
	}
	if tr.Strategy != "" {
		field(w, "strategy", tr.Strategy)
	}
	if tr.Fallback != "" {
		field(w, "fallback", color.YellowString("serial (%s)", tr.Fallback))
	}
	for _, t := range tr.Timings {
		field(w, t.Stage, fmt.Sprintf("%.3fs", t.DurationSeconds))
	}
}

// renderPhases draws one bordered box per phase, side by side.
func renderPhases(res *orchestrator.Result) string {
	byID := make(map[string]*models.Subtask, len(res.Subtasks))
	for _, st := range res.Subtasks {
		byID[st.ID] = st
	}

	boxes := make([]string, 0, len(res.Phases))
	for _, p := range res.Phases {
		lines := []string{titleStyle.Render(fmt.Sprintf("Phase %d", p.Index+1))}
		for _, id := range p.SubtaskIDs {
			st, ok := byID[id]
			if !ok {
				continue
			}
			line := fmt.Sprintf("%s %s", statusColor(st.Status).Sprint(statusSymbol(st.Status)), st.Description)
			if len(st.Dependencies) > 0 {
				line += color.HiBlackString(" ← %s", strings.Join(st.Dependencies, ", "))
			}
			lines = append(lines, line)
		}
		boxes = append(boxes, phaseStyle.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func renderAggregate(w io.Writer, agg *models.AggregatedResult, verbose bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Result"))
	summary := fmt.Sprintf("%s succeeded, %s failed, %s skipped of %d in %.2fs",
		color.GreenString("%d", agg.Succeeded),
		color.RedString("%d", agg.Failed),
		color.YellowString("%d", agg.Skipped),
		agg.Total, agg.DurationSeconds)
	if agg.Cancelled {
		summary += color.RedString(" (cancelled)")
	}
	fmt.Fprintln(w, summary)

	for _, r := range agg.SubtaskResults {
		c := statusColor(r.Status)
		fmt.Fprintf(w, "  %s %-8s %6.2fs", c.Sprint(statusSymbol(r.Status)), r.SubtaskID, r.DurationSeconds)
		if r.Error != "" {
			fmt.Fprintf(w, "  %s", c.Sprint(r.Error))
		}
		fmt.Fprintln(w)
		if verbose && r.Output != "" {
			for _, line := range strings.Split(r.Output, "\n") {
				fmt.Fprintf(w, "      %s\n", line)
			}
		}
	}
}

// renderEvent prints one live progress line.
func renderEvent(w io.Writer, ev orchestrator.RouterEvent) {
	ts := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case orchestrator.EventPhaseStarted:
		fmt.Fprintf(w, "%s phase %d started: %s\n", ts, ev.Phase+1, ev.Message)
	case orchestrator.EventSubtaskCompleted:
		st := models.SubtaskStatus(ev.Status)
		line := fmt.Sprintf("%s %s %s %s (%s)", ts, statusColor(st).Sprint(statusSymbol(st)), ev.SubtaskID, ev.Status, ev.Duration.Round(10*time.Millisecond))
		if ev.Error != nil {
			line += ": " + ev.Error.Error()
		}
		fmt.Fprintln(w, line)
	case orchestrator.EventEscalated, orchestrator.EventClassified:
		fmt.Fprintf(w, "%s %s: %s\n", ts, ev.Type, ev.Message)
	}
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
