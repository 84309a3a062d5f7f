// Package decompose splits a parallelizable request into subtasks.
//
// Three textual strategies are tried in order and the first whose trigger
// matches wins. A match with fewer than two items is not parallel work and
// yields no subtasks:
//
//   - contains: "<whole> 包含 A、B、C" produces one subtask per part
//   - separator list: "A、B、C" or "A, B, C" produces independent subtasks
//   - ordering: "先 A 再 B 然后 C" produces a dependency chain
package decompose

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/internal/lexicon"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// Strategy names the rule that produced a decomposition.
type Strategy string

const (
	StrategyNone      Strategy = "none"
	StrategyContains  Strategy = "contains"
	StrategySeparator Strategy = "separator_list"
	StrategyOrdering  Strategy = "ordering"
)

// Result is the outcome of decomposition. An empty Subtasks slice tells the
// caller to execute the request as a single task.
type Result struct {
	Strategy Strategy          `json:"strategy"`
	Subtasks []*models.Subtask `json:"subtasks"`
}

// Decomposer is stateless apart from its lexicon.
type Decomposer struct {
	lex    lexicon.Lexicon
	logger *zap.Logger
}

// New creates a decomposer. A nil logger disables logging.
func New(lex lexicon.Lexicon, logger *zap.Logger) *Decomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{lex: lex, logger: logger}
}

// strategyFunc reports whether its trigger matched, and the items it split.
type strategyFunc func(text string) (items []string, chained, matched bool)

// Decompose splits text when intent allows parallel execution.
func (d *Decomposer) Decompose(text string, intent models.Intent) Result {
	if !intent.EnableParallel {
		return Result{Strategy: StrategyNone}
	}

	strategies := []struct {
		name Strategy
		fn   strategyFunc
	}{
		{StrategyContains, d.contains},
		{StrategySeparator, d.separatorList},
		{StrategyOrdering, d.ordering},
	}

	for _, s := range strategies {
		items, chained, matched := s.fn(text)
		if !matched {
			continue
		}
		if len(items) < 2 {
			d.logger.Debug("decomposition matched too few items",
				zap.String("strategy", string(s.name)),
				zap.Int("items", len(items)),
			)
			return Result{Strategy: StrategyNone}
		}
		subtasks := buildSubtasks(items, chained)
		d.logger.Debug("request decomposed",
			zap.String("strategy", string(s.name)),
			zap.Int("subtasks", len(subtasks)),
			zap.Bool("chained", chained),
		)
		return Result{Strategy: s.name, Subtasks: subtasks}
	}

	d.logger.Debug("no decomposition strategy matched", zap.Int("tokens", lexicon.TokenCount(text)))
	return Result{Strategy: StrategyNone}
}

// contains splits the parts listed after a contains-connective. The text before
// the connective is kept as context on every subtask.
func (d *Decomposer) contains(text string) ([]string, bool, bool) {
	spans := lexicon.FindAll(text, d.lex.ContainsConnectives)
	if len(spans) == 0 {
		return nil, false, false
	}
	src := sourceFor(text)
	first := spans[0]
	prefix := lexicon.TrimItem(src[:first.Start])
	delims := append(append([]string{}, d.lex.Separators...), d.lex.Conjunctions...)
	parts := lexicon.Split(src[first.End:], delims)

	if prefix == "" {
		return parts, false, true
	}
	items := make([]string, len(parts))
	for i, p := range parts {
		items[i] = fmt.Sprintf("%s - %s", prefix, p)
	}
	return items, false, true
}

// separatorList splits an enumeration into independent items. It declines
// sequenced requests so the ordering strategy can chain them.
func (d *Decomposer) separatorList(text string) ([]string, bool, bool) {
	if d.lex.HasOrdering(text) {
		return nil, false, false
	}
	items := d.lex.EnumeratedItems(text)
	if len(items) < 2 {
		return nil, false, false
	}
	return d.carryLeadingVerb(items), false, true
}

// ordering splits on sequencing connectives and chains the steps.
func (d *Decomposer) ordering(text string) ([]string, bool, bool) {
	if !d.lex.HasOrdering(text) {
		return nil, false, false
	}
	delims := append(append([]string{}, d.lex.OrderingStart...), d.lex.OrderingThen...)
	return lexicon.Split(text, delims), true, true
}

// carryLeadingVerb copies the verb that opens the first item onto later items
// that have none: "实现用户管理、商品管理" becomes "实现用户管理", "实现商品管理".
func (d *Decomposer) carryLeadingVerb(items []string) []string {
	verb := d.leadingVerb(items[0])
	if verb == "" {
		return items
	}
	out := make([]string, len(items))
	out[0] = items[0]
	for i, item := range items[1:] {
		if d.leadingVerb(item) != "" {
			out[i+1] = item
			continue
		}
		if isHanSuffix(verb) {
			out[i+1] = verb + item
		} else {
			out[i+1] = verb + " " + item
		}
	}
	return out
}

func (d *Decomposer) leadingVerb(item string) string {
	lower := strings.ToLower(item)
	for _, v := range d.lex.LeadingVerbs {
		lv := strings.ToLower(v)
		if lv == "" || !strings.HasPrefix(lower, lv) {
			continue
		}
		if isHanSuffix(lv) {
			return item[:len(lv)]
		}
		// Latin verbs must be whole words.
		rest := lower[len(lv):]
		if rest == "" || rest[0] == ' ' {
			return item[:len(lv)]
		}
	}
	return ""
}

func buildSubtasks(items []string, chained bool) []*models.Subtask {
	subtasks := make([]*models.Subtask, len(items))
	for i, item := range items {
		st := &models.Subtask{
			ID:          fmt.Sprintf("task-%d", i+1),
			Description: item,
			Status:      models.SubtaskPending,
		}
		if chained && i > 0 {
			st.Dependencies = []string{subtasks[i-1].ID}
		}
		subtasks[i] = st
	}
	return subtasks
}

func isHanSuffix(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.Is(unicode.Han, r)
}

// sourceFor returns the string that FindAll offsets index into.
func sourceFor(text string) string {
	if lower := strings.ToLower(text); len(lower) != len(text) {
		return lower
	}
	return text
}
