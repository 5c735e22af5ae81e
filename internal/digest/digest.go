// Package digest derives the content, semantic and dependency hashes used
// to detect change cheaply. All functions are pure: identical inputs always
// yield identical digests.
package digest

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/vk/notegrid/internal/node"
)

// sep delimits fields inside a digest so that ("ab","c") and ("a","bc")
// hash differently.
const sep = "\x1f"

// State hashes a node's own declared content, format and configuration.
// It is independent of the node's dependencies and of its execution.
func State(n *node.Node) uint64 {
	h := xxhash.New()
	writeString(h, n.Code)
	writeString(h, n.Format)
	writeString(h, n.Mode.String())
	writeString(h, n.Bounds.String())
	if n.ExecuteContent {
		writeString(h, "execute-content")
	}
	for _, id := range n.Requires {
		writeString(h, string(id))
	}
	return h.Sum64()
}

// Semantic hashes the state digest together with the node's resolved symbol
// table: the names it produces. Two nodes with different surface code but
// identical state and produced symbols share a semantic digest.
func Semantic(state uint64, producedSymbols []string) uint64 {
	symbols := append([]string(nil), producedSymbols...)
	sort.Strings(symbols)

	h := xxhash.New()
	writeUint64(h, state)
	for _, s := range symbols {
		writeString(h, s)
	}
	return h.Sum64()
}

// DepDigest pairs a dependency's id with its current semantic digest.
type DepDigest struct {
	ID     node.ID
	Digest uint64
}

// Dependencies hashes the semantic digests of a node's direct dependencies.
// Entries are sorted by dependency id first, so the result is independent
// of edge order.
func Dependencies(deps []DepDigest) uint64 {
	sorted := append([]DepDigest(nil), deps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := xxhash.New()
	for _, d := range sorted {
		writeString(h, string(d.ID))
		writeUint64(h, d.Digest)
	}
	return h.Sum64()
}

func writeString(h *xxhash.Digest, s string) {
	_, _ = h.WriteString(s)
	_, _ = h.WriteString(sep)
}

func writeUint64(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
	_, _ = h.WriteString(sep)
}
