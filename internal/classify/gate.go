package classify

import (
	"github.com/ShayCichocki/intentrouter/internal/lexicon"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// Escalation reasons recorded in the routing trace.
const (
	ReasonLowConfidence         = "low_confidence"
	ReasonAmbiguityKeyword      = "ambiguity_keyword"
	ReasonLongRequest           = "long_request"
	ReasonUnresolvedEnumeration = "unresolved_enumeration"
)

// GateConfig holds escalation thresholds.
type GateConfig struct {
	// ConfidenceThreshold escalates rule results below it.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// MaxTokens escalates requests longer than it.
	MaxTokens int `mapstructure:"max_tokens"`
}

// DefaultGateConfig returns the built-in thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ConfidenceThreshold: 0.6,
		MaxTokens:           50,
	}
}

// Decision is the gate's verdict. Reasons lists every rule that fired.
type Decision struct {
	Escalate bool     `json:"escalate"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Gate decides whether a rule intent needs the deep classifier.
type Gate struct {
	lex lexicon.Lexicon
	cfg GateConfig
}

// NewGate creates an escalation gate.
func NewGate(lex lexicon.Lexicon, cfg GateConfig) *Gate {
	return &Gate{lex: lex, cfg: cfg}
}

// Evaluate checks intent and text against every escalation rule.
func (g *Gate) Evaluate(intent models.Intent, text string) Decision {
	var reasons []string

	if intent.Confidence < g.cfg.ConfidenceThreshold {
		reasons = append(reasons, ReasonLowConfidence)
	}
	if _, ok := lexicon.FindAny(text, g.lex.Ambiguity); ok {
		reasons = append(reasons, ReasonAmbiguityKeyword)
	}
	if lexicon.TokenCount(text) > g.cfg.MaxTokens {
		reasons = append(reasons, ReasonLongRequest)
	}
	if !intent.EnableParallel && (len(g.lex.EnumeratedItems(text)) >= 2 || g.lex.HasOrdering(text)) {
		reasons = append(reasons, ReasonUnresolvedEnumeration)
	}

	return Decision{Escalate: len(reasons) > 0, Reasons: reasons}
}
