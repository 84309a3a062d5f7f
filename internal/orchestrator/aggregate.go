package orchestrator

import (
	"time"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// Aggregate flattens per-phase results in phase order and totals them. wall is
// the elapsed time of the whole run, so concurrent subtasks are not double
// counted.
func Aggregate(phaseResults [][]models.SubtaskResult, wall time.Duration, cancelled bool) models.AggregatedResult {
	agg := models.AggregatedResult{
		DurationSeconds: wall.Seconds(),
		Cancelled:       cancelled,
	}
	for _, phase := range phaseResults {
		for _, r := range phase {
			agg.SubtaskResults = append(agg.SubtaskResults, r)
			switch r.Status {
			case models.SubtaskSuccess:
				agg.Succeeded++
			case models.SubtaskFailed:
				agg.Failed++
			case models.SubtaskSkipped:
				agg.Skipped++
			}
		}
	}
	agg.Total = len(agg.SubtaskResults)
	return agg
}
