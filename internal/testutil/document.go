package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/notegrid/internal/document"
	"github.com/vk/notegrid/internal/node"
)

// Chunk builds a code-chunk node with the given id and source.
func Chunk(id, code string) *node.Node {
	return &node.Node{
		ID:             node.ID(id),
		Kind:           node.KindChunk,
		Code:           code,
		ExecuteContent: true,
	}
}

// Expr builds an expression node. The symbol it produces is named after the
// id's local part, matching how the document loader names expressions.
func Expr(id, name, code string) *node.Node {
	return &node.Node{
		ID:             node.ID(id),
		Kind:           node.KindExpression,
		Name:           name,
		Code:           code,
		ExecuteContent: true,
	}
}

// NewDocument assembles a document from the given nodes, in order. It fails
// the test on duplicate ids.
func NewDocument(t *testing.T, nodes ...*node.Node) *document.Document {
	t.Helper()
	doc := document.New(document.Config{})
	for _, n := range nodes {
		require.NoError(t, doc.Add(n))
	}
	return doc
}
