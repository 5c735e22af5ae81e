// Package staleness compares a node's current digests against the snapshot
// recorded at its last successful execution and derives the
// executionRequired verdict.
package staleness

import (
	"github.com/vk/notegrid/internal/document"
	"github.com/vk/notegrid/internal/node"
)

// Generations reports the current generation of an execution instance.
// A generation newer than the one a node recorded means the instance was
// restarted since the node last ran.
type Generations interface {
	Generation(instanceID string) (uint64, bool)
}

// Evaluate recomputes the dependenciesStale and dependenciesFailed counts
// and the executionRequired reason for a single node, reading its direct
// dependencies' current digests and statuses from the document. It mutates
// only the given node. gens may be nil when no instance registry exists.
func Evaluate(n *node.Node, doc *document.Document, gens Generations) {
	stale := uint(0)
	failed := uint(0)

	var recorded map[node.ID]uint64
	if n.Last != nil {
		recorded = n.Last.DependencyDigests
	}

	for _, depID := range n.DependencyIDs() {
		dep, ok := doc.Get(depID)
		if !ok {
			continue
		}
		if dep.Status.Failed() {
			failed++
		}
		last, seen := recorded[depID]
		if !seen || last != dep.Digest.SemanticDigest {
			stale++
		}
	}

	n.Digest.DependenciesStale = stale
	n.Digest.DependenciesFailed = failed
	n.Required = reason(n, gens)
}

// EvaluateAll runs Evaluate over every node of the document, in document
// order.
func EvaluateAll(doc *document.Document, gens Generations) {
	for _, n := range doc.Nodes() {
		Evaluate(n, doc, gens)
	}
}

// reason derives the executionRequired verdict. The checks run in the
// reason enum's order; the first one that applies wins.
func reason(n *node.Node, gens Generations) node.RequiredReason {
	if n.Last == nil {
		return node.RequiredNeverExecuted
	}
	if n.Digest.SemanticDigest != n.Last.SemanticDigest {
		return node.RequiredSemanticsChanged
	}
	if n.Digest.DependenciesStale > 0 {
		return node.RequiredDependenciesChanged
	}
	if n.Digest.DependenciesFailed > 0 {
		return node.RequiredDependenciesFailed
	}
	if n.Status.Failed() {
		return node.RequiredExecutionFailed
	}
	if gens != nil && n.ExecutionInstance != "" {
		if gen, ok := gens.Generation(n.ExecutionInstance); ok && gen != n.Last.Generation {
			return node.RequiredKernelRestarted
		}
	}
	return node.RequiredNo
}
