package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

func entry(name string, source models.EntrySource, priority int, at time.Time, desc string) models.RegistryEntry {
	return models.RegistryEntry{Name: name, Type: "agent", Source: source, Priority: priority, RegisteredAt: at, Description: desc}
}

func TestResolve(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		candidates []models.RegistryEntry
		want       string
	}{
		{
			name: "priority wins over source",
			candidates: []models.RegistryEntry{
				entry("dev", models.SourceProject, 0, base, "project"),
				entry("dev", models.SourceBuiltin, 5, base, "builtin"),
			},
			want: "builtin",
		},
		{
			name: "project over user over builtin",
			candidates: []models.RegistryEntry{
				entry("dev", models.SourceBuiltin, 1, base, "builtin"),
				entry("dev", models.SourceProject, 1, base, "project"),
				entry("dev", models.SourceUser, 1, base, "user"),
			},
			want: "project",
		},
		{
			name: "most recent registration breaks ties",
			candidates: []models.RegistryEntry{
				entry("dev", models.SourceUser, 1, base.Add(time.Hour), "newer"),
				entry("dev", models.SourceUser, 1, base, "older"),
			},
			want: "newer",
		},
		{
			name: "later candidate wins a complete tie",
			candidates: []models.RegistryEntry{
				entry("dev", models.SourceUser, 1, base, "first"),
				entry("dev", models.SourceUser, 1, base, "second"),
			},
			want: "second",
		},
		{
			name: "other names are ignored",
			candidates: []models.RegistryEntry{
				entry("review", models.SourceProject, 9, base, "review"),
				entry("DEV", models.SourceBuiltin, 0, base, "dev"),
			},
			want: "dev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve("dev", tt.candidates)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if got.Description != tt.want {
				t.Errorf("Resolve picked %q, want %q", got.Description, tt.want)
			}
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	_, err := Resolve("missing", BuiltinEntries())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDedupe(t *testing.T) {
	base := time.Now()
	entries := []models.RegistryEntry{
		entry("dev", models.SourceBuiltin, 0, base, "builtin dev"),
		entry("review", models.SourceBuiltin, 0, base, "builtin review"),
		entry("dev", models.SourceProject, 0, base, "project dev"),
	}

	got := Dedupe(entries)
	if len(got) != 2 {
		t.Fatalf("Dedupe returned %d entries, want 2", len(got))
	}
	if got[0].Description != "project dev" || got[1].Description != "builtin review" {
		t.Errorf("Dedupe = %+v", got)
	}
}

func TestBuiltinEntries(t *testing.T) {
	entries := BuiltinEntries()
	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.Name] {
			t.Errorf("duplicate builtin %s", e.Name)
		}
		seen[e.Name] = true
		if e.Source != models.SourceBuiltin {
			t.Errorf("%s source = %s, want builtin", e.Name, e.Source)
		}
		if len(e.Keywords) == 0 {
			t.Errorf("%s has no keywords", e.Name)
		}
	}
	for _, name := range []string{"development", "analysis", "testing"} {
		if !seen[name] {
			t.Errorf("missing builtin %s", name)
		}
	}

	if got := StaticCatalog(entries).ListEntries(); len(got) != len(entries) {
		t.Errorf("StaticCatalog returned %d entries, want %d", len(got), len(entries))
	}
}
