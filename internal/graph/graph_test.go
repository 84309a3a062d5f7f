package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

func st(id string, deps ...string) *models.Subtask {
	return &models.Subtask{ID: id, Description: id, Dependencies: deps, Status: models.SubtaskPending}
}

func phaseIDs(phases []models.ExecutionPhase) [][]string {
	out := make([][]string, len(phases))
	for i, p := range phases {
		out[i] = p.SubtaskIDs
	}
	return out
}

func TestBuildPhases(t *testing.T) {
	tests := []struct {
		name     string
		subtasks []*models.Subtask
		want     [][]string
	}{
		{
			name:     "independent subtasks share one phase",
			subtasks: []*models.Subtask{st("a"), st("b"), st("c")},
			want:     [][]string{{"a", "b", "c"}},
		},
		{
			name:     "chain",
			subtasks: []*models.Subtask{st("a"), st("b", "a"), st("c", "b")},
			want:     [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			name:     "diamond",
			subtasks: []*models.Subtask{st("a"), st("b", "a"), st("c", "a"), st("d", "b", "c")},
			want:     [][]string{{"a"}, {"b", "c"}, {"d"}},
		},
		{
			name:     "submission order within a phase",
			subtasks: []*models.Subtask{st("z"), st("y", "z"), st("x"), st("w", "z")},
			want:     [][]string{{"z", "x"}, {"y", "w"}},
		},
		{
			name:     "duplicate dependency counted once",
			subtasks: []*models.Subtask{st("a"), st("b", "a", "a")},
			want:     [][]string{{"a"}, {"b"}},
		},
		{
			name: "empty",
			want: [][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phases, err := BuildPhases(tt.subtasks)
			if err != nil {
				t.Fatalf("BuildPhases failed: %v", err)
			}
			if got := phaseIDs(phases); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("phases = %v, want %v", got, tt.want)
			}
			for i, p := range phases {
				if p.Index != i {
					t.Errorf("phase %d has Index %d", i, p.Index)
				}
			}
		})
	}
}

func TestBuild_PhasesRespectDependencies(t *testing.T) {
	subtasks := []*models.Subtask{
		st("a"), st("b", "a"), st("c"), st("d", "b", "c"), st("e", "a"), st("f", "d", "e"),
	}
	phases, err := BuildPhases(subtasks)
	if err != nil {
		t.Fatalf("BuildPhases failed: %v", err)
	}

	phaseOf := make(map[string]int)
	count := 0
	for _, p := range phases {
		for _, id := range p.SubtaskIDs {
			if _, dup := phaseOf[id]; dup {
				t.Fatalf("subtask %s appears twice", id)
			}
			phaseOf[id] = p.Index
			count++
		}
	}
	if count != len(subtasks) {
		t.Fatalf("phases cover %d subtasks, want %d", count, len(subtasks))
	}
	for _, s := range subtasks {
		for _, dep := range s.Dependencies {
			if phaseOf[dep] >= phaseOf[s.ID] {
				t.Errorf("%s (phase %d) does not follow dependency %s (phase %d)", s.ID, phaseOf[s.ID], dep, phaseOf[dep])
			}
		}
	}
}

func TestBuild_Cycle(t *testing.T) {
	g := New(nil)
	err := g.Build([]*models.Subtask{st("a", "c"), st("b", "a"), st("c", "b"), st("d")})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	path := cycleErr.Path
	if len(path) != 4 || path[0] != path[len(path)-1] {
		t.Errorf("cycle path = %v, want closed path of 3 nodes", path)
	}
	for _, id := range path {
		if id == "d" {
			t.Errorf("cycle path %v includes acyclic node d", path)
		}
	}
	if g.Size() != 0 || len(g.Phases()) != 0 {
		t.Error("expected graph to be empty after a failed build")
	}
}

func TestBuild_SelfDependency(t *testing.T) {
	_, err := BuildPhases([]*models.Subtask{st("a", "a")})
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %v", err)
	}
	if !reflect.DeepEqual(cycleErr.Path, []string{"a", "a"}) {
		t.Errorf("path = %v, want [a a]", cycleErr.Path)
	}
}

func TestBuild_UnknownDependency(t *testing.T) {
	_, err := BuildPhases([]*models.Subtask{st("a", "ghost")})
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("expected ErrUnknownDependency, got %v", err)
	}
}

func TestBuild_DuplicateID(t *testing.T) {
	_, err := BuildPhases([]*models.Subtask{st("a"), st("a")})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestDependents(t *testing.T) {
	g := New(nil)
	if err := g.Build([]*models.Subtask{st("a"), st("b", "a"), st("c", "b"), st("d", "a"), st("e")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := g.GetDependents("a"); !reflect.DeepEqual(got, []string{"b", "d"}) {
		t.Errorf("GetDependents(a) = %v, want [b d]", got)
	}
	if got := g.Downstream("a"); !reflect.DeepEqual(got, []string{"b", "c", "d"}) {
		t.Errorf("Downstream(a) = %v, want [b c d]", got)
	}
	if got := g.Downstream("e"); len(got) != 0 {
		t.Errorf("Downstream(e) = %v, want none", got)
	}
	if got := g.GetDependencies("c"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("GetDependencies(c) = %v, want [b]", got)
	}
	if g.GetSubtask("c") == nil || g.GetSubtask("missing") != nil {
		t.Error("GetSubtask returned unexpected result")
	}
}
