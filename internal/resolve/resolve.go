// Package resolve implements the compile pass: static analysis of each
// node's code into produced and consumed symbols, construction of the
// bidirectional dependency edges, cycle detection and digest computation.
//
// The pass is the single writer of graph structure. It must run between
// scheduling rounds, never concurrently with the scheduler.
package resolve

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/vk/notegrid/internal/ctxlog"
	"github.com/vk/notegrid/internal/digest"
	"github.com/vk/notegrid/internal/document"
	"github.com/vk/notegrid/internal/graph"
	"github.com/vk/notegrid/internal/node"
)

// Result is the outcome of a compile pass.
type Result struct {
	// Graph holds the rebuilt dependency edges.
	Graph *graph.Graph
	// Cyclic is the set of nodes that belong to a dependency cycle. They are
	// marked Errors and are not eligible for scheduling until an edit breaks
	// the cycle.
	Cyclic map[node.ID]struct{}
}

// reference is a consumed symbol discovered by static analysis.
type reference struct {
	symbol   string
	relation node.DependencyRelation
	location node.CodeLocation
}

// analysis is the static-analysis result for one node.
type analysis struct {
	produced   []string
	references []reference
	messages   []node.CompilationMessage
}

// Pass compiles the document. For every node it recomputes produced
// symbols, dependency and dependant edges, compilation messages and the
// compilation digest, then rebuilds the graph and scans it for cycles.
func Pass(ctx context.Context, doc *document.Document) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	nodes := doc.Nodes()

	// Reset everything this pass owns.
	for _, n := range nodes {
		n.Dependencies = nil
		n.Dependants = nil
		n.ProducedSymbols = nil
		n.CompilationMessages = nil
	}

	// First pass: per-node static analysis and the document-wide producer
	// table. The first producer of a symbol, in document order, wins;
	// later producers re-assign it.
	analyses := make(map[node.ID]*analysis, len(nodes))
	producers := make(map[string]node.ID)
	for _, n := range nodes {
		a := analyze(n)
		analyses[n.ID] = a
		n.ProducedSymbols = a.produced
		n.CompilationMessages = a.messages
		for _, symbol := range a.produced {
			if _, taken := producers[symbol]; !taken {
				producers[symbol] = n.ID
			}
		}
	}

	// Second pass: edges. The referencing node records a dependency; the
	// producing node records the matching dependant.
	g := graph.New()
	for _, n := range nodes {
		g.AddNode(n.ID)
	}
	for _, n := range nodes {
		linkReferences(n, analyses[n.ID], producers, doc, g)
		linkExplicit(n, doc, g)
	}

	// Cycle scan. Every member of a strongly connected component of size
	// greater than one gets a compile error and is excluded from scheduling.
	cyclic := make(map[node.ID]struct{})
	for _, component := range g.Cycles() {
		names := make([]string, len(component))
		for i, id := range component {
			names[i] = string(id)
		}
		for _, id := range component {
			cyclic[id] = struct{}{}
			n, ok := doc.Get(id)
			if !ok {
				continue
			}
			n.CompilationMessages = append(n.CompilationMessages, node.CompilationMessage{
				Level:   node.LevelError,
				Message: fmt.Sprintf("cyclic dependency involving %v", names),
			})
			n.Status = node.StatusErrors
		}
		logger.Warn("Cyclic dependency detected.", "nodes", names)
	}

	computeDigests(nodes)

	logger.Debug("Compile pass finished.", "nodes", len(nodes), "cyclic", len(cyclic))
	return &Result{Graph: g, Cyclic: cyclic}, nil
}

// analyze statically analyzes one node's code into produced symbols and
// references. Unparseable code yields an error-level message, not a crash.
// Non-executable content is not code and is left unanalyzed.
func analyze(n *node.Node) *analysis {
	a := &analysis{}
	if !n.ExecuteContent {
		return a
	}
	switch n.Kind {
	case node.KindExpression:
		analyzeExpression(n, a)
	default:
		analyzeChunk(n, a)
	}
	return a
}

// analyzeExpression treats the node's code as a single expression whose
// result is published under the node's name.
func analyzeExpression(n *node.Node, a *analysis) {
	if n.Code == "" {
		return
	}
	expr, diags := hclsyntax.ParseExpression([]byte(n.Code), string(n.ID), hcl.InitialPos)
	if diags.HasErrors() {
		a.messages = append(a.messages, messagesFromDiags(diags)...)
		return
	}
	a.produced = []string{n.Name}
	collectReferences(expr, a)
}

// analyzeChunk treats the node's code as a body of named assignments. Each
// attribute name is a produced symbol; each expression variable is a
// consumed one.
func analyzeChunk(n *node.Node, a *analysis) {
	if n.Code == "" {
		return
	}
	file, diags := hclsyntax.ParseConfig([]byte(n.Code), string(n.ID), hcl.InitialPos)
	if diags.HasErrors() {
		a.messages = append(a.messages, messagesFromDiags(diags)...)
		return
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return
	}

	// Attributes come out of the parser as a map; order them by source
	// position so the produced-symbol list is deterministic.
	attrs := make([]*hclsyntax.Attribute, 0, len(body.Attributes))
	for _, attr := range body.Attributes {
		attrs = append(attrs, attr)
	}
	for i := 0; i < len(attrs); i++ {
		for j := i + 1; j < len(attrs); j++ {
			if attrs[j].SrcRange.Start.Byte < attrs[i].SrcRange.Start.Byte {
				attrs[i], attrs[j] = attrs[j], attrs[i]
			}
		}
	}

	local := make(map[string]struct{}, len(attrs))
	for _, attr := range attrs {
		a.produced = append(a.produced, attr.Name)
		local[attr.Name] = struct{}{}
	}
	for _, attr := range attrs {
		collectReferences(attr.Expr, a)
	}

	// References satisfied by the chunk's own assignments are not edges.
	kept := a.references[:0]
	for _, ref := range a.references {
		if _, own := local[ref.symbol]; !own {
			kept = append(kept, ref)
		}
	}
	a.references = kept
}

// collectReferences extracts variable reads and function calls from an
// expression, each pinned to its source range.
func collectReferences(expr hclsyntax.Expression, a *analysis) {
	for _, traversal := range expr.Variables() {
		a.references = append(a.references, reference{
			symbol:   traversal.RootName(),
			relation: node.RelationReads,
			location: node.LocationFromRange(traversal.SourceRange()),
		})
	}
	_ = hclsyntax.VisitAll(expr, func(hn hclsyntax.Node) hcl.Diagnostics {
		if call, ok := hn.(*hclsyntax.FunctionCallExpr); ok {
			a.references = append(a.references, reference{
				symbol:   call.Name,
				relation: node.RelationCalls,
				location: node.LocationFromRange(call.NameRange),
			})
		}
		return nil
	})
}

// linkReferences resolves a node's analyzed references against the producer
// table and creates the bidirectional edges. An unresolved read produces a
// warning on the node; unresolved calls are ignored since functions may
// come from the execution instance itself.
func linkReferences(n *node.Node, a *analysis, producers map[string]node.ID, doc *document.Document, g *graph.Graph) {
	for _, ref := range a.references {
		producerID, found := producers[ref.symbol]
		if !found || producerID == n.ID {
			if !found && ref.relation == node.RelationReads {
				loc := ref.location
				n.CompilationMessages = append(n.CompilationMessages, node.CompilationMessage{
					Level:    node.LevelWarning,
					Message:  fmt.Sprintf("unresolved reference to '%s'", ref.symbol),
					Location: &loc,
				})
			}
			continue
		}
		addEdge(n, producerID, ref.relation, ref.location, doc, g)
	}
}

// linkExplicit creates edges for the author-declared `requires` list.
func linkExplicit(n *node.Node, doc *document.Document, g *graph.Graph) {
	for _, req := range n.Requires {
		if req == n.ID {
			continue
		}
		if _, ok := doc.Get(req); !ok {
			n.CompilationMessages = append(n.CompilationMessages, node.CompilationMessage{
				Level:   node.LevelError,
				Message: fmt.Sprintf("requires non-existent node '%s'", req),
			})
			continue
		}
		addEdge(n, req, node.RelationUses, node.CodeLocation{}, doc, g)
	}
}

// addEdge records the dependency edge on the consumer, the mirror dependant
// edge on the producer, and the adjacency in the graph. Duplicate edges to
// the same producer with the same relation collapse.
func addEdge(n *node.Node, producerID node.ID, relation node.DependencyRelation, loc node.CodeLocation, doc *document.Document, g *graph.Graph) {
	for _, existing := range n.Dependencies {
		if existing.Node == producerID && existing.Relation == relation {
			return
		}
	}

	n.Dependencies = append(n.Dependencies, node.ExecutionDependency{
		Relation: relation,
		Node:     producerID,
		Location: loc,
	})

	producer, ok := doc.Get(producerID)
	if ok {
		producer.Dependants = append(producer.Dependants, node.ExecutionDependant{
			Relation: dependantRelation(relation),
			Node:     n.ID,
			Location: loc,
		})
	}

	if err := g.AddEdge(producerID, n.ID); err != nil {
		n.CompilationMessages = append(n.CompilationMessages, node.CompilationMessage{
			Level:   node.LevelError,
			Message: fmt.Sprintf("failed to link dependency '%s': %v", producerID, err),
		})
	}
}

// dependantRelation mirrors a dependency relation onto the producing side.
func dependantRelation(r node.DependencyRelation) node.DependantRelation {
	switch r {
	case node.RelationCalls:
		return node.RelationDeclares
	default:
		return node.RelationWrites
	}
}

// computeDigests recomputes every node's compilation digest. State and
// semantic digests only need the node itself; the dependencies digest needs
// each direct dependency's fresh semantic digest, so it runs second.
func computeDigests(nodes []*node.Node) {
	byID := make(map[node.ID]*node.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	for _, n := range nodes {
		n.Digest.StateDigest = digest.State(n)
		n.Digest.SemanticDigest = digest.Semantic(n.Digest.StateDigest, n.ProducedSymbols)
	}
	for _, n := range nodes {
		deps := make([]digest.DepDigest, 0, len(n.Dependencies))
		for _, id := range n.DependencyIDs() {
			dep, ok := byID[id]
			if !ok {
				continue
			}
			deps = append(deps, digest.DepDigest{ID: id, Digest: dep.Digest.SemanticDigest})
		}
		n.Digest.DependenciesDigest = digest.Dependencies(deps)
	}
}

// messagesFromDiags converts HCL diagnostics into compilation messages.
func messagesFromDiags(diags hcl.Diagnostics) []node.CompilationMessage {
	messages := make([]node.CompilationMessage, 0, len(diags))
	for _, diag := range diags {
		level := node.LevelError
		if diag.Severity == hcl.DiagWarning {
			level = node.LevelWarning
		}
		msg := node.CompilationMessage{Level: level, Message: diag.Summary}
		if diag.Detail != "" {
			msg.Message = fmt.Sprintf("%s: %s", diag.Summary, diag.Detail)
		}
		if diag.Subject != nil {
			loc := node.LocationFromRange(*diag.Subject)
			msg.Location = &loc
		}
		messages = append(messages, msg)
	}
	return messages
}
