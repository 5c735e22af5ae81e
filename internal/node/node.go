// Package node defines the executable-node data model: the identifier,
// execution mode, compilation digest, dependency edges, tags, statuses and
// messages that the rest of the engine operates on.
//
// The model is deliberately a plain struct rather than an interface
// hierarchy. Code chunks, expressions, forms and other concrete document
// node kinds all share this single capability; kind-specific behavior lives
// in free functions and in the components that consume the struct.
package node

import (
	"time"
)

// ID is the opaque, stable identifier of a node. It is unique within a
// document, assigned at creation and never reused while the node lives.
type ID string

// Kind distinguishes the concrete document node kinds that carry the
// executable capability.
type Kind int

const (
	// KindChunk is a code chunk: a body of named assignments.
	KindChunk Kind = iota
	// KindExpression is a single expression producing one value, named after
	// the node itself.
	KindExpression
)

// Mode is the author-controlled policy on when a node may run.
type Mode int

const (
	// ModeDefault runs the node when it is stale.
	ModeDefault Mode = iota
	// ModeAlways runs the node on every round it is part of, stale or not.
	ModeAlways
	// ModeNever excludes the node from scheduling.
	ModeNever
	// ModeLocked disallows execution entirely; scheduling marks it Locked.
	ModeLocked
)

// String returns the canonical name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "Default"
	case ModeAlways:
		return "Always"
	case ModeNever:
		return "Never"
	case ModeLocked:
		return "Locked"
	}
	return "Unknown"
}

// RequiredReason is the derived verdict of the staleness evaluator: why (or
// that) a node needs re-execution.
type RequiredReason int

const (
	RequiredNeverExecuted RequiredReason = iota
	RequiredSemanticsChanged
	RequiredDependenciesChanged
	RequiredDependenciesFailed
	RequiredExecutionFailed
	RequiredKernelRestarted
	RequiredNo
)

// String returns the canonical name of the reason.
func (r RequiredReason) String() string {
	switch r {
	case RequiredNeverExecuted:
		return "NeverExecuted"
	case RequiredSemanticsChanged:
		return "SemanticsChanged"
	case RequiredDependenciesChanged:
		return "DependenciesChanged"
	case RequiredDependenciesFailed:
		return "DependenciesFailed"
	case RequiredExecutionFailed:
		return "ExecutionFailed"
	case RequiredKernelRestarted:
		return "KernelRestarted"
	case RequiredNo:
		return "No"
	}
	return "Unknown"
}

// DependencyRelation is the kind of reference a node makes to an upstream
// dependency.
type DependencyRelation int

const (
	// RelationReads: the node reads a symbol the dependency produces.
	RelationReads DependencyRelation = iota
	// RelationCalls: the node calls a function the dependency defines.
	RelationCalls
	// RelationImports: the node imports content the dependency provides.
	RelationImports
	// RelationUses: an explicit dependency declared by the author
	// (a `requires` entry), not discovered by static analysis.
	RelationUses
)

// String returns the canonical name of the relation.
func (r DependencyRelation) String() string {
	switch r {
	case RelationReads:
		return "Reads"
	case RelationCalls:
		return "Calls"
	case RelationImports:
		return "Imports"
	case RelationUses:
		return "Uses"
	}
	return "Unknown"
}

// DependantRelation is the kind of effect a node has that a downstream
// dependant consumes.
type DependantRelation int

const (
	// RelationWrites: the node writes a symbol the dependant reads.
	RelationWrites DependantRelation = iota
	// RelationDeclares: the node declares a function or type.
	RelationDeclares
	// RelationAssigns: the node re-assigns an already-declared symbol.
	RelationAssigns
)

// String returns the canonical name of the relation.
func (r DependantRelation) String() string {
	switch r {
	case RelationWrites:
		return "Writes"
	case RelationDeclares:
		return "Declares"
	case RelationAssigns:
		return "Assigns"
	}
	return "Unknown"
}

// ExecutionDependency is a directed edge to an upstream node this node
// consumes.
type ExecutionDependency struct {
	Relation DependencyRelation
	Node     ID
	Location CodeLocation
}

// ExecutionDependant is the mirror edge: a downstream node that consumes
// this node's output.
type ExecutionDependant struct {
	Relation DependantRelation
	Node     ID
	Location CodeLocation
}

// Tag is a named annotation on a node that can override scheduling policy.
// Global tags apply document-wide.
type Tag struct {
	Name   string
	Value  string
	Global bool
}

// CompilationDigest summarizes a node's content, semantics and dependency
// state for cheap change detection.
type CompilationDigest struct {
	// StateDigest hashes the node's own declared content and configuration.
	StateDigest uint64
	// SemanticDigest hashes the state digest together with what the node
	// produces (its symbol table).
	SemanticDigest uint64
	// DependenciesDigest hashes the semantic digests of the node's direct
	// dependencies, sorted by dependency id.
	DependenciesDigest uint64
	// DependenciesStale counts direct dependencies whose semantic digest
	// differs from the value recorded at this node's last successful run.
	DependenciesStale uint
	// DependenciesFailed counts direct dependencies whose last terminal
	// status was a failure.
	DependenciesFailed uint
}

// Bounds is the isolation policy for a run: whether it reuses the execution
// instance's state, forks a copy of it, or starts from an empty sandbox.
type Bounds int

const (
	// BoundsMain reuses the existing instance state.
	BoundsMain Bounds = iota
	// BoundsFork runs against a copy of the instance state.
	BoundsFork
	// BoundsBox runs in a fresh, empty sandbox; a new instance per attempt.
	BoundsBox
)

// String returns the canonical name of the bounds.
func (b Bounds) String() string {
	switch b {
	case BoundsMain:
		return "Main"
	case BoundsFork:
		return "Fork"
	case BoundsBox:
		return "Box"
	}
	return "Unknown"
}

// LastRun is the snapshot recorded when a node last successfully executed.
// The staleness evaluator compares current digests against it.
type LastRun struct {
	// SemanticDigest is the node's own semantic digest at the time of the run.
	SemanticDigest uint64
	// DependencyDigests maps each direct dependency's id to the semantic
	// digest observed for it at the time of the run.
	DependencyDigests map[ID]uint64
	// Generation is the execution instance's generation at the time of the
	// run. A later restart of the instance invalidates the run.
	Generation uint64
}

// Node is a single executable node of a document. Fields up to Tags are
// supplied by the document-model collaborator; the remaining fields are
// produced by the engine.
type Node struct {
	ID   ID
	Kind Kind
	Name string

	// Code is the node's source text; Format names its language.
	Code   string
	Format string

	// Requires lists explicit dependency ids declared by the author.
	Requires []ID

	Mode           Mode
	Bounds         Bounds
	MaximumRetries int
	// ExecuteContent marks the content as executable. Prose-only nodes
	// carry false and never run, though their config still shapes the
	// state digest.
	ExecuteContent bool
	// RejectedSuggestion marks a node that is part of a rejected suggestion
	// and must not run.
	RejectedSuggestion bool

	// Generative replica configuration. Zero values mean "single execution".
	Replicates    int
	QualityWeight int
	CostWeight    int
	SpeedWeight   int
	MinimumScore  float64

	Tags []Tag

	// --- Produced by the compile pass ---

	Digest       CompilationDigest
	Dependencies []ExecutionDependency
	Dependants   []ExecutionDependant
	// ProducedSymbols is the node's statically resolved symbol table: the
	// names it makes available to dependants.
	ProducedSymbols     []string
	CompilationMessages []CompilationMessage

	// --- Produced by the execution engine ---

	Status            Status
	Required          RequiredReason
	ExecutionCount    uint64
	ExecutionInstance string
	ExecutionEnded    time.Time
	ExecutionDuration time.Duration
	ExecutionMessages []ExecutionMessage

	// Last holds the snapshot of the node's most recent successful run, or
	// nil if it has never succeeded.
	Last *LastRun
}

// DependencyIDs returns the ids of this node's direct dependencies, in edge
// order, without duplicates.
func (n *Node) DependencyIDs() []ID {
	seen := make(map[ID]struct{}, len(n.Dependencies))
	ids := make([]ID, 0, len(n.Dependencies))
	for _, d := range n.Dependencies {
		if _, ok := seen[d.Node]; ok {
			continue
		}
		seen[d.Node] = struct{}{}
		ids = append(ids, d.Node)
	}
	return ids
}

// DependantIDs returns the ids of this node's direct dependants, in edge
// order, without duplicates.
func (n *Node) DependantIDs() []ID {
	seen := make(map[ID]struct{}, len(n.Dependants))
	ids := make([]ID, 0, len(n.Dependants))
	for _, d := range n.Dependants {
		if _, ok := seen[d.Node]; ok {
			continue
		}
		seen[d.Node] = struct{}{}
		ids = append(ids, d.Node)
	}
	return ids
}

// HasCompilationErrors reports whether any error-level compilation message
// is attached to the node.
func (n *Node) HasCompilationErrors() bool {
	for _, m := range n.CompilationMessages {
		if m.Level == LevelError {
			return true
		}
	}
	return false
}
