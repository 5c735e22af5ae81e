// SPDX-License-Identifier: MIT
//
// This file defines the Document structure, the root container for every
// executable node loaded from a source document.
//
// Why have a Document?
//
// The engine needs a single, workspace-wide view of all executable nodes to
// resolve dependencies that span files and to give scheduling a stable,
// deterministic document order. The Document is an arena: nodes are held in
// creation order and addressed by stable opaque ids, so edges can be plain
// id lists instead of pointers.
package document

import (
	"fmt"
	"sync"

	"github.com/vk/notegrid/internal/node"
)

// Config is the document-level configuration object. It is passed explicitly
// to the components that need it rather than living as ambient global state.
type Config struct {
	// MaximumRetries is the default retry bound for nodes that do not set
	// their own. Clamped to [1, 10] by Normalize.
	MaximumRetries int
	// Locked disallows execution of every node in the document.
	Locked bool
}

// Normalize clamps configuration values into their legal ranges.
func (c *Config) Normalize() {
	if c.MaximumRetries < 1 {
		c.MaximumRetries = 1
	}
	if c.MaximumRetries > 10 {
		c.MaximumRetries = 10
	}
}

// Document is the in-memory arena of executable nodes.
//
// Locking discipline: the compiler pass and the scheduler's result
// application take the write lock; dispatch decisions take the read lock so
// they observe a consistent snapshot per scheduling round.
type Document struct {
	sync.RWMutex

	Config Config

	nodes []*node.Node
	index map[node.ID]int
}

// New creates an empty document with a normalized config.
func New(cfg Config) *Document {
	cfg.Normalize()
	return &Document{
		Config: cfg,
		index:  make(map[node.ID]int),
	}
}

// Add appends a node to the document. Node ids must be unique; adding a
// duplicate id is an error. The caller must hold no lock.
func (d *Document) Add(n *node.Node) error {
	d.Lock()
	defer d.Unlock()

	if _, exists := d.index[n.ID]; exists {
		return fmt.Errorf("duplicate node id: %s", n.ID)
	}
	d.index[n.ID] = len(d.nodes)
	d.nodes = append(d.nodes, n)
	return nil
}

// Remove deletes a node from the document and strips every edge referencing
// it from neighboring nodes' dependency and dependant lists.
func (d *Document) Remove(id node.ID) {
	d.Lock()
	defer d.Unlock()

	i, ok := d.index[id]
	if !ok {
		return
	}
	d.nodes = append(d.nodes[:i], d.nodes[i+1:]...)
	delete(d.index, id)
	for j := i; j < len(d.nodes); j++ {
		d.index[d.nodes[j].ID] = j
	}

	for _, n := range d.nodes {
		n.Dependencies = dropDependencyEdges(n.Dependencies, id)
		n.Dependants = dropDependantEdges(n.Dependants, id)
	}
}

func dropDependencyEdges(edges []node.ExecutionDependency, id node.ID) []node.ExecutionDependency {
	kept := edges[:0]
	for _, e := range edges {
		if e.Node != id {
			kept = append(kept, e)
		}
	}
	return kept
}

func dropDependantEdges(edges []node.ExecutionDependant, id node.ID) []node.ExecutionDependant {
	kept := edges[:0]
	for _, e := range edges {
		if e.Node != id {
			kept = append(kept, e)
		}
	}
	return kept
}

// Get returns the node with the given id, or false if it does not exist.
// The returned pointer is shared; callers mutating it must hold the write
// lock.
func (d *Document) Get(id node.ID) (*node.Node, bool) {
	d.RLock()
	defer d.RUnlock()
	i, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return d.nodes[i], true
}

// Nodes returns the document's nodes in document order. The slice is a
// copy; the pointers are shared.
func (d *Document) Nodes() []*node.Node {
	d.RLock()
	defer d.RUnlock()
	return append([]*node.Node(nil), d.nodes...)
}

// Order returns the document-order position of a node, used as the
// deterministic tie-breaker in topological sorting. Unknown ids sort last.
func (d *Document) Order(id node.ID) int {
	d.RLock()
	defer d.RUnlock()
	if i, ok := d.index[id]; ok {
		return i
	}
	return len(d.nodes)
}

// Len returns the number of nodes in the document.
func (d *Document) Len() int {
	d.RLock()
	defer d.RUnlock()
	return len(d.nodes)
}

// GlobalTags collects the global execution tags declared on any node of the
// document, in document order.
func (d *Document) GlobalTags() []node.Tag {
	d.RLock()
	defer d.RUnlock()
	var tags []node.Tag
	for _, n := range d.nodes {
		for _, t := range n.Tags {
			if t.Global {
				tags = append(tags, t)
			}
		}
	}
	return tags
}
