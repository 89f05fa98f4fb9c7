// Package graph provides the dependency graph used to order checklist items.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found among checklist items.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrMissingDependency indicates an item depends on an item that does not exist.
var ErrMissingDependency = errors.New("missing dependency")

// DependencyCycleError reports the items forming a cycle, in dependency order.
type DependencyCycleError struct {
	Cycle []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycleDetected, strings.Join(e.Cycle, " -> "))
}

func (e *DependencyCycleError) Unwrap() error {
	return ErrCycleDetected
}

// MissingDependencyError reports a dependency on an unknown item.
type MissingDependencyError struct {
	ItemID       string
	DependencyID string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("item %s depends on unknown item %s", e.ItemID, e.DependencyID)
}

func (e *MissingDependencyError) Unwrap() error {
	return ErrMissingDependency
}

// DependencyGraph is a directed graph of checklist items.
// Edges point from an item to the items it depends on.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps item ID to the item itself.
	nodes map[string]models.ChecklistItem
	// order maps item ID to its position in the input, used for tie-breaking.
	order map[string]int
	// edges maps item ID to IDs of the items it depends on.
	edges map[string][]string
	// completed tracks which items have finished (with any status).
	completed map[string]bool
	debugLog  func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]models.ChecklistItem),
		order:     make(map[string]int),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
		debugLog:  func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from items. A dependency on an item outside
// the set is ignored when known reports it as a valid item (it was simply
// not selected); otherwise Build returns a *MissingDependencyError.
// Returns a *DependencyCycleError if the items form a cycle.
func (g *DependencyGraph) Build(items []models.ChecklistItem, known func(id string) bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d items", len(items))

	for i, item := range items {
		if _, dup := g.nodes[item.ID]; dup {
			return fmt.Errorf("duplicate item %s", item.ID)
		}
		g.nodes[item.ID] = item
		g.order[item.ID] = i
		g.edges[item.ID] = nil
	}

	for _, item := range items {
		for _, depID := range item.Dependencies {
			if _, exists := g.nodes[depID]; exists {
				g.edges[item.ID] = append(g.edges[item.ID], depID)
				continue
			}
			if known != nil && known(depID) {
				g.debugLog("[graph.Build] item %s: dependency %s not selected, ignoring", item.ID, depID)
				continue
			}
			return &MissingDependencyError{ItemID: item.ID, DependencyID: depID}
		}
	}

	if cycle := g.findCycleLocked(); cycle != nil {
		return &DependencyCycleError{Cycle: cycle}
	}

	g.debugLog("[graph.Build] graph built successfully with %d nodes", len(g.nodes))
	return nil
}

// findCycleLocked runs a depth-first search with coloring and returns the
// first cycle found, or nil. Nodes are visited in input order so the
// reported cycle is deterministic.
func (g *DependencyGraph) findCycleLocked() []string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = 1
		stack = append(stack, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge: the cycle is the stack from depID to here.
				for i, s := range stack {
					if s == depID {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, depID)
					}
				}
			case 0:
				if c := visit(depID); c != nil {
					return c
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2
		return nil
	}

	for _, id := range g.idsInOrderLocked() {
		if colors[id] == 0 {
			if c := visit(id); c != nil {
				return c
			}
		}
	}
	return nil
}

// TopologicalSort returns item IDs so that every dependency precedes its
// dependents. Among items that are ready at the same time, higher priority
// comes first, then input order. The result is deterministic.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if cycle := g.findCycleLocked(); cycle != nil {
		return nil, &DependencyCycleError{Cycle: cycle}
	}

	remaining := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for id, deps := range g.edges {
		remaining[id] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for id, n := range remaining {
		if n == 0 {
			ready = append(ready, id)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		best := 0
		for i := 1; i < len(ready); i++ {
			if g.lessLocked(ready[i], ready[best]) {
				best = i
			}
		}
		id := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		result = append(result, id)

		for _, dep := range dependents[id] {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	g.debugLog("[graph.TopologicalSort] order: %v", result)
	return result, nil
}

// lessLocked orders ready items by priority rank, then input order.
func (g *DependencyGraph) lessLocked(a, b string) bool {
	ra, rb := g.nodes[a].Priority.Rank(), g.nodes[b].Priority.Rank()
	if ra != rb {
		return ra < rb
	}
	return g.order[a] < g.order[b]
}

func (g *DependencyGraph) idsInOrderLocked() []string {
	ids := make([]string, len(g.order))
	for id, i := range g.order {
		ids[i] = id
	}
	return ids
}

// SortedItems returns the items in topological order.
func (g *DependencyGraph) SortedItems() ([]models.ChecklistItem, error) {
	ids, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	items := make([]models.ChecklistItem, len(ids))
	for i, id := range ids {
		items[i] = g.nodes[id]
	}
	return items, nil
}

// Ready reports whether every dependency of the item has been marked complete.
func (g *DependencyGraph) Ready(itemID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, depID := range g.edges[itemID] {
		if !g.completed[depID] {
			g.debugLog("[graph.Ready] item %s: dep %s not complete", itemID, depID)
			return false
		}
	}
	return true
}

// MarkComplete marks an item as finished. This affects subsequent calls to Ready.
func (g *DependencyGraph) MarkComplete(itemID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[itemID] = true
}
