// Package dag evaluates the build graph: a set of side-effect-free stages
// connected by explicit data dependencies. Stages sharing no edge run
// concurrently on a worker pool; a failed stage skips its dependents and the
// first real failure is reported as the root cause.
package dag

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// State of a node during execution.
const (
	statePending int32 = iota
	stateRunning
	stateDone
	stateFailed
)

// Stage is one unit of graph evaluation. Run must be a pure function of the
// stage's declared inputs; the graph relies on that for safe parallelism.
type Stage struct {
	// ID uniquely names the stage within the graph.
	ID string
	// After lists the stage IDs this stage consumes results from.
	After []string
	// Run performs the stage.
	Run func() error
}

// node is a vertex plus its execution bookkeeping.
type node struct {
	stage      Stage
	deps       map[string]*node
	dependents map[string]*node

	depCount atomic.Int32
	state    atomic.Int32
	err      error
	skipOnce sync.Once
}

// Graph is a collection of stages and their dependency edges.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	final bool
}

// New creates an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// Add registers a stage. It returns an error on a duplicate ID or when the
// graph is already finalized.
func (g *Graph) Add(stage Stage) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.final {
		return fmt.Errorf("graph is finalized, cannot add stage %q", stage.ID)
	}
	if _, ok := g.nodes[stage.ID]; ok {
		return fmt.Errorf("duplicate stage ID %q", stage.ID)
	}
	g.nodes[stage.ID] = &node{
		stage:      stage,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	return nil
}

// Len returns the number of stages in the graph.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Finalize resolves all After references into edges and verifies the graph
// is acyclic. It must be called once, before execution.
func (g *Graph) Finalize() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.final {
		return fmt.Errorf("graph already finalized")
	}
	for id, n := range g.nodes {
		for _, depID := range n.stage.After {
			if depID == id {
				return fmt.Errorf("self-referential edge not allowed: %s -> %s", id, id)
			}
			dep, ok := g.nodes[depID]
			if !ok {
				return fmt.Errorf("stage %q depends on unknown stage %q", id, depID)
			}
			if _, dup := n.deps[depID]; dup {
				continue
			}
			n.deps[depID] = dep
			dep.dependents[id] = n
		}
		n.depCount.Store(int32(len(n.deps)))
	}

	if err := g.detectCycles(); err != nil {
		return err
	}
	g.final = true
	return nil
}

// detectCycles checks the graph for cycles using depth-first search with
// permanent and temporary marks. Callers must hold the write lock.
func (g *Graph) detectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.stage.ID] {
			return nil
		}
		if temporary[n.stage.ID] {
			return fmt.Errorf("cycle detected involving stage '%s'", n.stage.ID)
		}

		temporary[n.stage.ID] = true
		for _, dependent := range n.dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, n.stage.ID)
		permanent[n.stage.ID] = true
		return nil
	}

	for _, n := range g.nodes {
		if !permanent[n.stage.ID] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Err returns the recorded error of a stage after execution, or nil.
func (g *Graph) Err(id string) error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	if n, ok := g.nodes[id]; ok {
		return n.err
	}
	return nil
}
