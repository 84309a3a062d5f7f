// Package registry resolves routable targets from layered catalogs.
//
// The same name may be registered by several sources. Resolve picks one
// winner by priority, then source rank (project > user > builtin), then
// most recent registration.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// ErrNotFound is returned when no candidate carries the requested name.
var ErrNotFound = errors.New("registry entry not found")

// Resolve returns the winning entry named name among candidates. Names are
// compared case-insensitively. On a complete tie the later candidate wins.
func Resolve(name string, candidates []models.RegistryEntry) (models.RegistryEntry, error) {
	var (
		best  models.RegistryEntry
		found bool
	)
	for _, c := range candidates {
		if !strings.EqualFold(c.Name, name) {
			continue
		}
		if !found || !outranks(best, c) {
			best = c
			found = true
		}
	}
	if !found {
		return models.RegistryEntry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return best, nil
}

// outranks reports whether a strictly beats b.
func outranks(a, b models.RegistryEntry) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if ra, rb := a.Source.Rank(), b.Source.Rank(); ra != rb {
		return ra > rb
	}
	return a.RegisteredAt.After(b.RegisteredAt)
}

// Dedupe resolves every name once. The result keeps the order in which each
// name first appears.
func Dedupe(entries []models.RegistryEntry) []models.RegistryEntry {
	var order []string
	groups := make(map[string][]models.RegistryEntry)
	for _, e := range entries {
		key := strings.ToLower(e.Name)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	out := make([]models.RegistryEntry, 0, len(order))
	for _, key := range order {
		winner, err := Resolve(key, groups[key])
		if err != nil {
			continue
		}
		out = append(out, winner)
	}
	return out
}
