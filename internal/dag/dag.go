// Package dag provides directed acyclic graph operations for pipeline
// stage dependencies. It supports cycle detection, topological sorting,
// and downstream change propagation.
package dag

import (
	"fmt"
	"slices"
	"sort"
)

// Node is a single vertex of the graph.
type Node[T any] struct {
	// ID is the unique identifier (stage name)
	ID string
	// Data holds arbitrary node data
	Data T
}

// Graph is a directed acyclic graph keyed by node ID.
type Graph[T any] struct {
	nodes    map[string]*Node[T]
	children map[string][]string // parent -> children (dependents)
	parents  map[string][]string // child -> parents (dependencies)
}

// New creates a new empty graph.
func New[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:    make(map[string]*Node[T]),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// Clear removes all nodes and edges from the graph.
func (g *Graph[T]) Clear() {
	g.nodes = make(map[string]*Node[T])
	g.children = make(map[string][]string)
	g.parents = make(map[string][]string)
}

// AddNode adds a node to the graph, updating its data if it already
// exists.
func (g *Graph[T]) AddNode(id string, data T) {
	if _, exists := g.nodes[id]; !exists {
		g.nodes[id] = &Node[T]{ID: id, Data: data}
		g.children[id] = []string{}
		g.parents[id] = []string{}
	} else {
		g.nodes[id].Data = data
	}
}

// AddEdge adds a directed edge from parent to child (child depends on
// parent).
func (g *Graph[T]) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !slices.Contains(g.children[parentID], childID) {
		g.children[parentID] = append(g.children[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// Node returns a node by ID.
func (g *Graph[T]) Node(id string) (*Node[T], bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// Parents returns the parents (dependencies) of a node.
func (g *Graph[T]) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the children (dependents) of a node.
func (g *Graph[T]) Children(id string) []string {
	return g.children[id]
}

// Nodes returns all nodes sorted by ID.
func (g *Graph[T]) Nodes() []*Node[T] {
	nodes := make([]*Node[T], 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph[T]) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph[T]) EdgeCount() int {
	count := 0
	for _, children := range g.children {
		count += len(children)
	}
	return count
}

// HasCycle reports whether the graph contains a cycle, along with the
// cycle path.
func (g *Graph[T]) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.children[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				// Found a cycle, reconstruct its path
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for id := range g.nodes {
		if !visited[id] {
			if dfs(id) {
				return true, cyclePath
			}
		}
	}

	return false, nil
}

// TopologicalSort returns nodes in topological order (dependencies
// before dependents). Returns an error if the graph contains a cycle.
func (g *Graph[T]) TopologicalSort() ([]*Node[T], error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	visited := make(map[string]bool)
	var result []*Node[T]

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		for _, parentID := range g.parents[id] {
			visit(parentID)
		}

		result = append(result, g.nodes[id])
	}

	// Seed in sorted ID order for deterministic output
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		visit(id)
	}

	return result, nil
}

// ExecutionLevels returns node IDs grouped by execution level. Nodes at
// level N can run in parallel once level N-1 completes, and level 0
// holds nodes with no dependencies.
func (g *Graph[T]) ExecutionLevels() ([][]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	assigned := make(map[string]int)

	var level func(id string) int
	level = func(id string) int {
		if l, ok := assigned[id]; ok {
			return l
		}

		parents := g.parents[id]
		if len(parents) == 0 {
			assigned[id] = 0
			return 0
		}

		maxParent := 0
		for _, parentID := range parents {
			if l := level(parentID); l > maxParent {
				maxParent = l
			}
		}

		assigned[id] = maxParent + 1
		return maxParent + 1
	}

	maxLevel := 0
	for id := range g.nodes {
		if l := level(id); l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for i := range levels {
		levels[i] = []string{}
	}
	for id, l := range assigned {
		levels[l] = append(levels[l], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}

	return levels, nil
}

// Affected returns all nodes affected by changes to the given nodes:
// the changed nodes themselves plus every downstream dependent.
func (g *Graph[T]) Affected(changedIDs []string) []string {
	affected := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true

		for _, childID := range g.children[id] {
			mark(childID)
		}
	}

	for _, id := range changedIDs {
		if _, exists := g.nodes[id]; exists {
			mark(id)
		}
	}

	result := make([]string, 0, len(affected))
	for id := range affected {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// Upstream returns all nodes upstream of the given node, i.e. its
// dependencies and theirs, transitively.
func (g *Graph[T]) Upstream(id string) []string {
	upstream := make(map[string]bool)

	var mark func(nodeID string)
	mark = func(nodeID string) {
		for _, parentID := range g.parents[nodeID] {
			if !upstream[parentID] {
				upstream[parentID] = true
				mark(parentID)
			}
		}
	}

	mark(id)

	result := make([]string, 0, len(upstream))
	for nodeID := range upstream {
		result = append(result, nodeID)
	}
	sort.Strings(result)
	return result
}

// Roots returns nodes with no parents.
func (g *Graph[T]) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns nodes with no children.
func (g *Graph[T]) Leaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Subgraph returns a new graph containing only the specified nodes and
// the edges between them.
func (g *Graph[T]) Subgraph(nodeIDs []string) *Graph[T] {
	sub := New[T]()
	nodeSet := make(map[string]bool)

	for _, id := range nodeIDs {
		nodeSet[id] = true
		if node, exists := g.nodes[id]; exists {
			sub.AddNode(id, node.Data)
		}
	}

	for _, id := range nodeIDs {
		for _, childID := range g.children[id] {
			if nodeSet[childID] {
				_ = sub.AddEdge(id, childID)
			}
		}
	}

	return sub
}
