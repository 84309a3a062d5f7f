// Package graph builds execution phases from subtask dependencies.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

var (
	// ErrCycleDetected indicates a circular dependency was found among subtasks.
	ErrCycleDetected = errors.New("circular dependency detected")
	// ErrUnknownDependency indicates a subtask depends on an id not in the set.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrDuplicateID indicates two subtasks share an id.
	ErrDuplicateID = errors.New("duplicate subtask id")
)

// CycleError reports the ids along one detected cycle. The first id is repeated
// at the end: [a b c a].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

// Is lets errors.Is match ErrCycleDetected.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// DependencyGraph is a DAG of subtasks. Edges point from a subtask to the
// subtasks it depends on.
type DependencyGraph struct {
	mu sync.RWMutex
	// order is the submission order of subtask ids.
	order []string
	nodes map[string]*models.Subtask
	// edges maps subtask ID to IDs it depends on.
	edges map[string][]string
	// dependents maps subtask ID to IDs that depend on it, in submission order.
	dependents map[string][]string
	phases     []models.ExecutionPhase
	logger     *zap.Logger
}

// New creates a new empty dependency graph.
func New(logger *zap.Logger) *DependencyGraph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DependencyGraph{
		nodes:      make(map[string]*models.Subtask),
		edges:      make(map[string][]string),
		dependents: make(map[string][]string),
		logger:     logger,
	}
}

// Build constructs the graph and computes its phases. It fails on duplicate
// ids, unknown dependencies and cycles, leaving the graph empty.
func (g *DependencyGraph) Build(subtasks []*models.Subtask) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.reset()
	g.logger.Debug("building dependency graph", zap.Int("subtasks", len(subtasks)))

	for _, st := range subtasks {
		if _, exists := g.nodes[st.ID]; exists {
			g.reset()
			return fmt.Errorf("%w: %s", ErrDuplicateID, st.ID)
		}
		g.order = append(g.order, st.ID)
		g.nodes[st.ID] = st
		g.edges[st.ID] = nil
	}

	for _, st := range subtasks {
		seen := make(map[string]bool, len(st.Dependencies))
		for _, depID := range st.Dependencies {
			if seen[depID] {
				continue
			}
			seen[depID] = true
			if _, exists := g.nodes[depID]; !exists {
				g.reset()
				return fmt.Errorf("%w: subtask %s depends on %s", ErrUnknownDependency, st.ID, depID)
			}
			g.edges[st.ID] = append(g.edges[st.ID], depID)
		}
	}
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			g.dependents[depID] = append(g.dependents[depID], id)
		}
	}

	phases, err := g.levelLocked()
	if err != nil {
		g.logger.Debug("dependency graph rejected", zap.Error(err))
		g.reset()
		return err
	}
	g.phases = phases

	g.logger.Debug("dependency graph built",
		zap.Int("nodes", len(g.nodes)),
		zap.Int("phases", len(phases)),
	)
	return nil
}

func (g *DependencyGraph) reset() {
	g.order = nil
	g.nodes = make(map[string]*models.Subtask)
	g.edges = make(map[string][]string)
	g.dependents = make(map[string][]string)
	g.phases = nil
}

// levelLocked runs Kahn's algorithm one level at a time. Ids within a phase
// keep submission order.
func (g *DependencyGraph) levelLocked() ([]models.ExecutionPhase, error) {
	indegree := make(map[string]int, len(g.nodes))
	var ready []string
	for _, id := range g.order {
		indegree[id] = len(g.edges[id])
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	var phases []models.ExecutionPhase
	placed := 0
	for len(ready) > 0 {
		phases = append(phases, models.ExecutionPhase{Index: len(phases), SubtaskIDs: ready})
		placed += len(ready)

		released := make(map[string]bool)
		for _, id := range ready {
			for _, dep := range g.dependents[id] {
				indegree[dep]--
				if indegree[dep] == 0 {
					released[dep] = true
				}
			}
		}
		var next []string
		for _, id := range g.order {
			if released[id] {
				next = append(next, id)
			}
		}
		ready = next
	}

	if placed < len(g.order) {
		remaining := make(map[string]bool)
		for _, id := range g.order {
			if indegree[id] > 0 {
				remaining[id] = true
			}
		}
		return nil, &CycleError{Path: g.cyclePathLocked(remaining)}
	}
	return phases, nil
}

// cyclePathLocked finds one cycle among the given ids using depth-first search
// with coloring.
func (g *DependencyGraph) cyclePathLocked(within map[string]bool) []string {
	// 0 = unvisited, 1 = on stack, 2 = done.
	colors := make(map[string]int)
	var stack []string
	var path []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		stack = append(stack, id)
		for _, depID := range g.edges[id] {
			if !within[depID] {
				continue
			}
			switch colors[depID] {
			case 1:
				for i, s := range stack {
					if s == depID {
						path = append(append([]string{}, stack[i:]...), depID)
						return true
					}
				}
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if within[id] && colors[id] == 0 && visit(id) {
			return path
		}
	}
	return nil
}

// Phases returns the execution phases computed by Build.
func (g *DependencyGraph) Phases() []models.ExecutionPhase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.ExecutionPhase, len(g.phases))
	for i, p := range g.phases {
		out[i] = models.ExecutionPhase{Index: p.Index, SubtaskIDs: append([]string(nil), p.SubtaskIDs...)}
	}
	return out
}

// GetSubtask returns the subtask for a given ID, or nil if not found.
func (g *DependencyGraph) GetSubtask(id string) *models.Subtask {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of subtasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs the given subtask depends on.
func (g *DependencyGraph) GetDependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[id]...)
}

// GetDependents returns the IDs that depend directly on the given subtask.
func (g *DependencyGraph) GetDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[id]...)
}

// Downstream returns every subtask that transitively depends on id, in
// submission order.
func (g *DependencyGraph) Downstream(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	reached := make(map[string]bool)
	queue := append([]string(nil), g.dependents[id]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if reached[cur] {
			continue
		}
		reached[cur] = true
		queue = append(queue, g.dependents[cur]...)
	}

	var out []string
	for _, oid := range g.order {
		if reached[oid] {
			out = append(out, oid)
		}
	}
	return out
}

// BuildPhases is a convenience wrapper for one-shot leveling.
func BuildPhases(subtasks []*models.Subtask) ([]models.ExecutionPhase, error) {
	g := New(nil)
	if err := g.Build(subtasks); err != nil {
		return nil, err
	}
	return g.Phases(), nil
}
