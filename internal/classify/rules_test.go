package classify

import (
	"math"
	"strings"
	"testing"

	"github.com/ShayCichocki/intentrouter/internal/lexicon"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

func testEntries() []models.RegistryEntry {
	return []models.RegistryEntry{
		{Name: "development", Type: "agent", Category: "development", Keywords: []string{"实现", "开发", "implement", "build"}},
		{Name: "analysis", Type: "agent", Category: "analysis", Keywords: []string{"分析", "analyze", "complexity"}},
		{Name: "testing", Type: "skill", Category: "testing", Keywords: []string{"test", "测试"}},
		{Name: "review", Type: "command", Keywords: []string{"review", "审查"}},
	}
}

func newTestClassifier() *RuleClassifier {
	return NewRuleClassifier(lexicon.Default(), DefaultScoring(), nil)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClassifyNoMatchReturnsGeneral(t *testing.T) {
	m := newTestClassifier().Classify("hello there", testEntries())

	if m.Intent.TaskType != models.TaskTypeGeneral {
		t.Errorf("TaskType = %q, want %q", m.Intent.TaskType, models.TaskTypeGeneral)
	}
	if m.Intent.Mode != models.ModeDirect {
		t.Errorf("Mode = %q, want %q", m.Intent.Mode, models.ModeDirect)
	}
	if m.Intent.Complexity != models.ComplexitySimple {
		t.Errorf("Complexity = %q, want simple", m.Intent.Complexity)
	}
	if !approx(m.Intent.Confidence, 0.3) {
		t.Errorf("Confidence = %v, want 0.3", m.Intent.Confidence)
	}
	if m.Intent.Source != models.SourceRule {
		t.Errorf("Source = %q, want rule", m.Intent.Source)
	}
	if m.Score != 0 || m.Entry != "" {
		t.Errorf("expected empty match, got score=%v entry=%q", m.Score, m.Entry)
	}
}

func TestClassifyScoring(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantType  string
		wantScore float64
		wantConf  float64
	}{
		{"single explicit", "analyze the cache", "analysis", 3, 0.85},
		{"implicit only", "improve retesting coverage", "testing", 1, 0.55},
		{"explicit plus name mention", "review the review queue", "review", 6, 0.95},
		{"han explicit", "分析这个函数的时间复杂度", "analysis", 3, 0.85},
	}

	c := newTestClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := c.Classify(tt.text, testEntries())
			if m.Intent.TaskType != tt.wantType {
				t.Fatalf("TaskType = %q, want %q", m.Intent.TaskType, tt.wantType)
			}
			if m.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", m.Score, tt.wantScore)
			}
			if !approx(m.Intent.Confidence, tt.wantConf) {
				t.Errorf("Confidence = %v, want %v", m.Intent.Confidence, tt.wantConf)
			}
		})
	}
}

func TestClassifyTieBreaks(t *testing.T) {
	entries := []models.RegistryEntry{
		{Name: "zeta", Type: "agent", Keywords: []string{"deploy"}},
		{Name: "alpha", Type: "agent", Keywords: []string{"deploy"}},
		{Name: "beta", Type: "skill", Priority: 5, Keywords: []string{"deploy"}},
	}
	c := newTestClassifier()

	m := c.Classify("deploy it", entries)
	if m.Intent.TaskType != "beta" {
		t.Errorf("expected higher priority to win the tie, got %q", m.Intent.TaskType)
	}
	if !approx(m.Intent.Confidence, 0.75) {
		t.Errorf("expected tie penalty applied, confidence = %v", m.Intent.Confidence)
	}

	m = c.Classify("deploy it", entries[:2])
	if m.Intent.TaskType != "alpha" {
		t.Errorf("expected lexical order to break equal priority, got %q", m.Intent.TaskType)
	}
}

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Complexity
	}{
		{"short", "fix typo", models.ComplexitySimple},
		{"standard marker", "implement login", models.ComplexityStandard},
		{"complex marker", "redesign the system", models.ComplexityComplex},
		{"three items", "实现用户管理、商品管理、订单处理", models.ComplexityComplex},
		{"long", strings.Repeat("word ", 45), models.ComplexityComplex},
		{"medium length", strings.Repeat("word ", 20), models.ComplexityStandard},
	}

	c := newTestClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.text, testEntries()).Intent.Complexity; got != tt.want {
				t.Errorf("Complexity = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyParallelRules(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		want       bool
		wantReason string
	}{
		{"explicit keyword", "run the checks in parallel", true, "explicit parallel keyword"},
		{"implicit with nouns", "update all pages and services", true, "implicit parallel keyword"},
		{"implicit with one noun", "update all pages", false, ""},
		{"development enumeration", "实现用户管理、商品管理、订单处理", true, "enumerates 3 items"},
		{"analysis enumeration", "分析用户管理、商品管理、订单处理", false, ""},
		{"single task", "分析这个函数的时间复杂度", false, ""},
	}

	c := newTestClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := c.Classify(tt.text, testEntries()).Intent
			if intent.EnableParallel != tt.want {
				t.Fatalf("EnableParallel = %v, want %v (reasoning %q)", intent.EnableParallel, tt.want, intent.ParallelReasoning)
			}
			if tt.want && !strings.Contains(intent.ParallelReasoning, tt.wantReason) {
				t.Errorf("ParallelReasoning = %q, want it to contain %q", intent.ParallelReasoning, tt.wantReason)
			}
			if err := intent.Validate(); err != nil {
				t.Errorf("rule intent should always validate: %v", err)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := newTestClassifier()
	text := "实现用户管理、商品管理、订单处理"
	first := c.Classify(text, testEntries())
	for i := 0; i < 10; i++ {
		if got := c.Classify(text, testEntries()); got != first {
			t.Fatalf("classification changed between runs: %+v vs %+v", got, first)
		}
	}
}
