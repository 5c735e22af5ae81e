// Package kernel defines the execution-instance collaborator: an
// addressable runtime capable of executing node code, holding shared
// mutable state across the nodes it has run. A local, in-process instance
// that evaluates expression code over a shared symbol table is provided as
// the reference implementation.
package kernel

import (
	"context"

	"github.com/vk/notegrid/internal/node"
)

// Request is one unit of code submitted to an instance.
type Request struct {
	NodeID node.ID
	Code   string
	Format string
	// Expression marks single-expression code whose result is published
	// under Symbol instead of as named assignments.
	Expression bool
	Symbol     string
	Bounds     node.Bounds
}

// Result is what an instance reports back after a run.
type Result struct {
	Messages        []node.ExecutionMessage
	ProducedSymbols []string
	// ExceptionRaised forces the terminal status to Exceptions regardless
	// of message levels.
	ExceptionRaised bool
}

// Instance is an execution back-end. An instance is a single mutable
// interpreter: implementations must serialize Submit calls internally, and
// Interrupt must be an idempotent, cooperative signal.
type Instance interface {
	// ID returns the instance's stable identifier.
	ID() string
	// Generation returns a counter that increases on every Restart. Nodes
	// record the generation they ran under; a newer generation means the
	// run's interpreter state is gone.
	Generation() uint64
	// Submit executes code and blocks until it completes or the context is
	// cancelled. Cancellation surfaces as ctx.Err().
	Submit(ctx context.Context, req Request) (*Result, error)
	// Interrupt delivers a cooperative cancellation signal to the run of
	// the given node, if one is in flight. Safe to call repeatedly.
	Interrupt(nodeID node.ID)
	// Restart discards all interpreter state and bumps the generation.
	Restart()
}
