package models

import "time"

// EntrySource is the tier a catalog entry was registered from.
type EntrySource string

const (
	// SourceBuiltin entries ship with the binary.
	SourceBuiltin EntrySource = "builtin"
	// SourceUser entries come from the user config directory.
	SourceUser EntrySource = "user"
	// SourceProject entries come from the current project.
	SourceProject EntrySource = "project"
)

// Rank orders sources for override resolution: project > user > builtin.
// Unknown sources rank below builtin.
func (s EntrySource) Rank() int {
	switch s {
	case SourceProject:
		return 3
	case SourceUser:
		return 2
	case SourceBuiltin:
		return 1
	default:
		return 0
	}
}

// Valid returns true if the source is a known value.
func (s EntrySource) Valid() bool {
	return s.Rank() > 0
}

// RegistryEntry is a routable target (agent, skill or command) in the catalog.
type RegistryEntry struct {
	// Name identifies the entry. Several sources may register the same name.
	Name string `json:"name" yaml:"name"`
	// Type is the kind of target: agent, skill or command.
	Type string `json:"type" yaml:"type"`
	// Source is set by the catalog that loaded the entry.
	Source EntrySource `json:"source" yaml:"-"`
	// Priority wins over source rank when resolving overrides.
	Priority int `json:"priority" yaml:"priority"`
	// Keywords drive rule classification.
	Keywords []string `json:"keywords" yaml:"keywords"`
	// Category groups entries; "development" entries are eligible for parallel decomposition.
	Category string `json:"category,omitempty" yaml:"category"`
	// Description is shown in catalog listings and handed to the deep classifier.
	Description string `json:"description,omitempty" yaml:"description"`
	// RegisteredAt breaks ties between otherwise equal overrides; later wins.
	RegisteredAt time.Time `json:"registered_at" yaml:"-"`
}
