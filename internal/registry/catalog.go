package registry

import "github.com/ShayCichocki/intentrouter/pkg/models"

// Catalog supplies registry entries. Implementations return a snapshot the
// caller may keep; entries are never mutated after load.
type Catalog interface {
	ListEntries() []models.RegistryEntry
}

// StaticCatalog is a fixed in-memory catalog.
type StaticCatalog []models.RegistryEntry

// ListEntries returns a copy of the catalog.
func (c StaticCatalog) ListEntries() []models.RegistryEntry {
	return append([]models.RegistryEntry(nil), c...)
}

// Resolved returns the deduplicated entries of any catalog.
func Resolved(c Catalog) []models.RegistryEntry {
	return Dedupe(c.ListEntries())
}

// BuiltinEntries returns the entries that ship with the binary.
func BuiltinEntries() []models.RegistryEntry {
	entries := []models.RegistryEntry{
		{
			Name:        "development",
			Type:        "agent",
			Category:    "development",
			Keywords:    []string{"实现", "开发", "编写", "新增", "implement", "build", "develop", "create"},
			Description: "Writes new features and application code",
		},
		{
			Name:        "analysis",
			Type:        "agent",
			Category:    "analysis",
			Keywords:    []string{"分析", "评估", "analyze", "analyse", "evaluate", "explain"},
			Description: "Reads code and answers questions about behavior and performance",
		},
		{
			Name:        "debugging",
			Type:        "agent",
			Category:    "debugging",
			Keywords:    []string{"修复", "调试", "报错", "fix", "debug", "bug", "crash"},
			Description: "Reproduces and fixes defects",
		},
		{
			Name:        "testing",
			Type:        "skill",
			Category:    "testing",
			Keywords:    []string{"测试", "单测", "test", "coverage"},
			Description: "Writes and runs tests",
		},
		{
			Name:        "review",
			Type:        "command",
			Category:    "review",
			Keywords:    []string{"审查", "评审", "review", "audit"},
			Description: "Reviews a change for correctness and style",
		},
		{
			Name:        "documentation",
			Type:        "skill",
			Category:    "documentation",
			Keywords:    []string{"文档", "注释", "document", "docs", "readme"},
			Description: "Writes and updates documentation",
		},
		{
			Name:        "refactoring",
			Type:        "agent",
			Category:    "development",
			Keywords:    []string{"重构", "优化", "refactor", "restructure", "cleanup"},
			Description: "Restructures existing code without changing behavior",
		},
	}
	for i := range entries {
		entries[i].Source = models.SourceBuiltin
	}
	return entries
}
