// Package graph maintains the directed dependency edges between executable
// nodes and detects cyclic subsets. Nodes are referenced by their stable ids
// and edges are stored as adjacency sets, which avoids the ownership
// problems of pointer-based graphs.
package graph

import (
	"fmt"
	"sync"

	"github.com/vk/notegrid/internal/node"
)

// Graph is a collection of nodes and their dependency edges. All operations
// on the graph are concurrency-safe.
type Graph struct {
	mutex sync.RWMutex
	nodes map[node.ID]*vertex
}

// vertex is a single entry in the adjacency structure. It is un-exported to
// enforce interaction with the graph via ids, not struct manipulation.
type vertex struct {
	id node.ID
	// deps holds the set of nodes this node depends on (predecessors).
	deps map[node.ID]*vertex
	// dependants holds the set of nodes that depend on this node (successors).
	dependants map[node.ID]*vertex
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[node.ID]*vertex),
	}
}

// AddNode adds a new node with the given id to the graph. If a node with
// the same id already exists, the function does nothing.
func (g *Graph) AddNode(id node.ID) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &vertex{
		id:         id,
		deps:       make(map[node.ID]*vertex),
		dependants: make(map[node.ID]*vertex),
	}
}

// RemoveNode deletes a node and every edge referencing it from neighboring
// adjacency sets. Removing an unknown id does nothing.
func (g *Graph) RemoveNode(id node.ID) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	v, ok := g.nodes[id]
	if !ok {
		return
	}
	for _, dep := range v.deps {
		delete(dep.dependants, id)
	}
	for _, dependant := range v.dependants {
		delete(dependant.deps, id)
	}
	delete(g.nodes, id)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID`
// node, meaning `toID` depends on `fromID`. An error is returned if either
// node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID node.ID) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromVertex, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toVertex, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toVertex.deps[fromID] = fromVertex
	fromVertex.dependants[toID] = toVertex

	return nil
}

// Dependencies returns the ids of the nodes the given node depends on.
func (g *Graph) Dependencies(id node.ID) ([]node.ID, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}

	deps := make([]node.ID, 0, len(v.deps))
	for depID := range v.deps {
		deps = append(deps, depID)
	}
	return deps, nil
}

// Dependants returns the ids of the nodes that depend on the given node.
func (g *Graph) Dependants(id node.ID) ([]node.ID, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}

	dependants := make([]node.ID, 0, len(v.dependants))
	for depID := range v.dependants {
		dependants = append(dependants, depID)
	}
	return dependants, nil
}

// Has reports whether a node with the given id exists in the graph.
func (g *Graph) Has(id node.ID) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Downstream returns the transitive closure of dependants reachable from
// the given seed nodes, excluding the seeds themselves unless reachable
// from another seed.
func (g *Graph) Downstream(seeds []node.ID) map[node.ID]struct{} {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	reached := make(map[node.ID]struct{})
	stack := make([]*vertex, 0, len(seeds))
	for _, id := range seeds {
		if v, ok := g.nodes[id]; ok {
			stack = append(stack, v)
		}
	}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for id, dependant := range v.dependants {
			if _, ok := reached[id]; ok {
				continue
			}
			reached[id] = struct{}{}
			stack = append(stack, dependant)
		}
	}
	return reached
}
