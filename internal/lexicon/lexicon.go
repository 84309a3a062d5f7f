// Package lexicon holds the tunable word lists used to classify and split requests.
// The classifier, the escalation gate and the decomposer all read from the same
// Lexicon so that a request is never enumerated one way and split another.
package lexicon

// Lexicon is the set of keyword lists that drive rule-based routing.
// All lists are matched case-insensitively.
type Lexicon struct {
	// ExplicitParallel keywords ask for parallel execution outright.
	ExplicitParallel []string `mapstructure:"explicit_parallel" yaml:"explicit_parallel"`
	// ImplicitParallel keywords suggest parallelism when several nouns are referenced.
	ImplicitParallel []string `mapstructure:"implicit_parallel" yaml:"implicit_parallel"`
	// NounMarkers identify references to distinct work items (modules, pages, services).
	NounMarkers []string `mapstructure:"noun_markers" yaml:"noun_markers"`
	// ComplexMarkers push complexity to complex.
	ComplexMarkers []string `mapstructure:"complex_markers" yaml:"complex_markers"`
	// StandardMarkers push complexity to at least standard.
	StandardMarkers []string `mapstructure:"standard_markers" yaml:"standard_markers"`
	// Ambiguity keywords make the rule result untrustworthy.
	Ambiguity []string `mapstructure:"ambiguity" yaml:"ambiguity"`
	// Separators split enumerations.
	Separators []string `mapstructure:"separators" yaml:"separators"`
	// Conjunctions join the final item of an enumeration.
	Conjunctions []string `mapstructure:"conjunctions" yaml:"conjunctions"`
	// ContainsConnectives introduce a list of parts ("包含", "including").
	ContainsConnectives []string `mapstructure:"contains_connectives" yaml:"contains_connectives"`
	// OrderingStart opens a sequence ("先", "first").
	OrderingStart []string `mapstructure:"ordering_start" yaml:"ordering_start"`
	// OrderingThen continues a sequence ("再", "then").
	OrderingThen []string `mapstructure:"ordering_then" yaml:"ordering_then"`
	// LeadingVerbs are carried from the first enumerated item onto verbless ones.
	LeadingVerbs []string `mapstructure:"leading_verbs" yaml:"leading_verbs"`
	// DevelopmentTaskTypes are task types and entry categories eligible for decomposition.
	DevelopmentTaskTypes []string `mapstructure:"development_task_types" yaml:"development_task_types"`
}

// Default returns the built-in lexicon covering English and Chinese requests.
func Default() Lexicon {
	return Lexicon{
		ExplicitParallel: []string{
			"parallel", "in parallel", "concurrently", "simultaneously", "batch",
			"并行", "同时", "批量", "并发",
		},
		ImplicitParallel: []string{
			"all", "each", "every", "multiple", "both", "respectively",
			"所有", "每个", "多个", "分别", "各个", "全部",
		},
		NounMarkers: []string{
			"module", "modules", "service", "services", "page", "pages",
			"component", "components", "api", "apis", "endpoint", "endpoints",
			"file", "files", "function", "functions", "feature", "features",
			"模块", "服务", "页面", "组件", "接口", "文件", "函数", "功能",
		},
		ComplexMarkers: []string{
			"multi-module", "multiple modules", "system", "architecture",
			"microservice", "microservices", "end-to-end", "full-stack",
			"多模块", "系统", "架构", "微服务", "全栈",
		},
		StandardMarkers: []string{
			"feature", "implement", "integrate", "refactor", "migrate",
			"功能", "实现", "集成", "重构", "迁移",
		},
		Ambiguity: []string{
			"maybe", "perhaps", "or", "not sure", "either", "somehow",
			"可能", "或者", "还是", "不确定", "也许", "大概",
		},
		Separators:          []string{"、", "，", ",", "；", ";"},
		Conjunctions:        []string{"以及", "和", "与", "及", "and", "&"},
		ContainsConnectives: []string{"包含", "包括", "including", "includes", "consisting of", "contains"},
		OrderingStart:       []string{"首先", "先", "first"},
		OrderingThen:        []string{"然后", "接着", "之后", "最后", "再", "after that", "afterwards", "finally", "then"},
		LeadingVerbs: []string{
			"实现", "开发", "编写", "创建", "添加", "修复", "优化", "重构", "测试",
			"implement", "build", "create", "add", "write", "fix", "develop", "refactor", "test", "update",
		},
		DevelopmentTaskTypes: []string{"development", "feature", "implementation", "refactoring"},
	}
}

// IsDevelopment reports whether taskType or category names a development-class task.
func (l Lexicon) IsDevelopment(taskType, category string) bool {
	for _, t := range l.DevelopmentTaskTypes {
		if equalFold(t, taskType) || (category != "" && equalFold(t, category)) {
			return true
		}
	}
	return false
}

// EnumeratedItems splits text on separators, then splits the final item on
// conjunctions so "A、B和C" yields three items. A request without separators is one item.
func (l Lexicon) EnumeratedItems(text string) []string {
	items := Split(text, l.Separators)
	if len(items) < 2 {
		return items
	}
	last := Split(items[len(items)-1], l.Conjunctions)
	return append(items[:len(items)-1], last...)
}

// HasOrdering reports whether text sequences work with a "then"-class connective.
func (l Lexicon) HasOrdering(text string) bool {
	_, ok := FindAny(text, l.OrderingThen)
	return ok
}
