// Package classify turns request text into an Intent.
//
// Classification is two-tier. RuleClassifier scores the request against the
// catalog keywords in microseconds. Gate decides whether that result is good
// enough, and Escalator hands weak results to a slower Classifier backend.
package classify

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/internal/lexicon"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// Scoring holds the tunable weights of the rule classifier.
type Scoring struct {
	ExplicitWeight    float64 `mapstructure:"explicit_weight"`
	ImplicitWeight    float64 `mapstructure:"implicit_weight"`
	BaseConfidence    float64 `mapstructure:"base_confidence"`
	ConfidenceStep    float64 `mapstructure:"confidence_step"`
	MaxConfidence     float64 `mapstructure:"max_confidence"`
	DefaultConfidence float64 `mapstructure:"default_confidence"`
	TiePenalty        float64 `mapstructure:"tie_penalty"`
	// StandardTokens and ComplexTokens are token-count thresholds for complexity.
	StandardTokens int `mapstructure:"standard_tokens"`
	ComplexTokens  int `mapstructure:"complex_tokens"`
	// MultiModuleItems enumerated items make a request complex.
	MultiModuleItems int `mapstructure:"multi_module_items"`
}

// DefaultScoring returns the built-in weights.
func DefaultScoring() Scoring {
	return Scoring{
		ExplicitWeight:    3,
		ImplicitWeight:    1,
		BaseConfidence:    0.4,
		ConfidenceStep:    0.15,
		MaxConfidence:     0.95,
		DefaultConfidence: 0.3,
		TiePenalty:        0.1,
		StandardTokens:    15,
		ComplexTokens:     40,
		MultiModuleItems:  3,
	}
}

// Match is the outcome of rule classification.
type Match struct {
	Intent models.Intent
	// Score is the winning entry's keyword score. Zero when nothing matched.
	Score float64
	// Entry is the winning entry name, empty when nothing matched.
	Entry string
	// Tokens is the request token count.
	Tokens int
	// Items is the number of enumerated items found in the request.
	Items int
}

// RuleClassifier is the fast, deterministic first tier.
type RuleClassifier struct {
	lex     lexicon.Lexicon
	scoring Scoring
	logger  *zap.Logger
}

// NewRuleClassifier creates a rule classifier. A nil logger disables logging.
func NewRuleClassifier(lex lexicon.Lexicon, scoring Scoring, logger *zap.Logger) *RuleClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleClassifier{lex: lex, scoring: scoring, logger: logger}
}

type scored struct {
	entry models.RegistryEntry
	score float64
}

// Classify scores text against entries. Entries should already be deduplicated
// by name. It never fails: an unmatched request yields the general intent.
func (c *RuleClassifier) Classify(text string, entries []models.RegistryEntry) Match {
	tokens := lexicon.TokenCount(text)
	items := c.lex.EnumeratedItems(text)

	var candidates []scored
	for _, e := range entries {
		if s := c.score(text, e); s > 0 {
			candidates = append(candidates, scored{entry: e, score: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.entry.Priority != b.entry.Priority {
			return a.entry.Priority > b.entry.Priority
		}
		return a.entry.Name < b.entry.Name
	})

	match := Match{Tokens: tokens, Items: len(items)}
	intent := models.Intent{
		Mode:       models.ModeDirect,
		TaskType:   models.TaskTypeGeneral,
		Complexity: models.ComplexitySimple,
		Confidence: c.scoring.DefaultConfidence,
		Source:     models.SourceRule,
	}

	var category string
	if len(candidates) > 0 {
		best := candidates[0]
		match.Score = best.score
		match.Entry = best.entry.Name
		category = best.entry.Category

		intent.TaskType = best.entry.Name
		if best.entry.Type != "" {
			intent.Mode = best.entry.Type
		}
		conf := c.scoring.BaseConfidence + c.scoring.ConfidenceStep*best.score
		if len(candidates) > 1 && candidates[1].score == best.score {
			conf -= c.scoring.TiePenalty
		}
		intent.Confidence = clamp(math.Min(conf, c.scoring.MaxConfidence))
	}

	intent.Complexity = c.complexity(text, tokens, len(items))
	reasons := c.parallelReasons(text, intent, category, len(items))
	if len(reasons) > 0 {
		intent.EnableParallel = true
		intent.ParallelReasoning = strings.Join(reasons, "; ")
	}
	match.Intent = intent

	c.logger.Debug("rule classification",
		zap.String("task_type", intent.TaskType),
		zap.Float64("score", match.Score),
		zap.Float64("confidence", intent.Confidence),
		zap.String("complexity", string(intent.Complexity)),
		zap.Bool("parallel", intent.EnableParallel),
		zap.Int("tokens", tokens),
		zap.Int("candidates", len(candidates)),
	)
	return match
}

// score is ExplicitWeight per explicit keyword match plus ImplicitWeight per
// implicit one. Mentioning the entry by name counts as an explicit match.
func (c *RuleClassifier) score(text string, e models.RegistryEntry) float64 {
	var explicit, implicit int
	for _, kw := range e.Keywords {
		switch lexicon.MatchKind(text, kw) {
		case lexicon.Explicit:
			explicit++
		case lexicon.Implicit:
			implicit++
		}
	}
	if e.Name != "" && lexicon.MatchKind(text, e.Name) == lexicon.Explicit {
		explicit++
	}
	return c.scoring.ExplicitWeight*float64(explicit) + c.scoring.ImplicitWeight*float64(implicit)
}

func (c *RuleClassifier) complexity(text string, tokens, items int) models.Complexity {
	if tokens >= c.scoring.ComplexTokens || items >= c.scoring.MultiModuleItems {
		return models.ComplexityComplex
	}
	if _, ok := lexicon.FindAny(text, c.lex.ComplexMarkers); ok {
		return models.ComplexityComplex
	}
	if tokens >= c.scoring.StandardTokens {
		return models.ComplexityStandard
	}
	if _, ok := lexicon.FindAny(text, c.lex.StandardMarkers); ok {
		return models.ComplexityStandard
	}
	return models.ComplexitySimple
}

// parallelReasons returns one clause per parallel rule that fires.
func (c *RuleClassifier) parallelReasons(text string, intent models.Intent, category string, items int) []string {
	var reasons []string

	if kw, ok := lexicon.FindAny(text, c.lex.ExplicitParallel); ok {
		reasons = append(reasons, fmt.Sprintf("explicit parallel keyword %q", kw))
	}

	if kw, ok := lexicon.FindAny(text, c.lex.ImplicitParallel); ok {
		if nouns := lexicon.CountOccurrences(text, c.lex.NounMarkers); nouns >= 2 {
			reasons = append(reasons, fmt.Sprintf("implicit parallel keyword %q with %d noun references", kw, nouns))
		}
	}

	if intent.Complexity == models.ComplexityComplex && c.lex.IsDevelopment(intent.TaskType, category) {
		if items >= 2 {
			reasons = append(reasons, fmt.Sprintf("complex development task enumerates %d items", items))
		} else if kw, ok := lexicon.FindAny(text, c.lex.ContainsConnectives); ok {
			reasons = append(reasons, fmt.Sprintf("complex development task lists parts after %q", kw))
		}
	}

	return reasons
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
