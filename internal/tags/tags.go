// Package tags applies node-local and document-global execution tags and
// computes the effective scheduling policy for a node.
//
// Resolution order: global tags first, then the node's own tags, then its
// executionMode. The most restrictive applicable policy wins; staleness is
// consulted afterwards by the scheduler.
package tags

import (
	"strconv"

	"github.com/vk/notegrid/internal/node"
)

// Recognized tag names.
const (
	// TagSkip forces the node (or, globally, every node) to Skipped.
	TagSkip = "skip"
	// TagLock forces Locked.
	TagLock = "lock"
	// TagAlways makes the node run on every round, like ModeAlways.
	TagAlways = "always"
	// TagInstance pins the execution instance a node runs on.
	TagInstance = "instance"
	// TagReplicates pins the replica count for generative nodes.
	TagReplicates = "replicates"
)

// Policy is the effective execution policy for one node after tag
// resolution.
type Policy struct {
	Skip       bool
	Lock       bool
	Always     bool
	Instance   string
	Replicates int
}

// Apply computes the effective policy for a node given the document's
// global tags. The caller obtains globals once per round via
// Document.GlobalTags.
func Apply(n *node.Node, globals []node.Tag) Policy {
	var p Policy

	for _, t := range globals {
		applyTag(&p, t)
	}
	for _, t := range n.Tags {
		if t.Global {
			// Already applied through the document-wide collection.
			continue
		}
		applyTag(&p, t)
	}

	switch n.Mode {
	case node.ModeAlways:
		p.Always = true
	case node.ModeNever:
		p.Skip = true
	case node.ModeLocked:
		p.Lock = true
	}

	return p
}

func applyTag(p *Policy, t node.Tag) {
	switch t.Name {
	case TagSkip:
		if !isFalse(t.Value) {
			p.Skip = true
		}
	case TagLock:
		if !isFalse(t.Value) {
			p.Lock = true
		}
	case TagAlways:
		if !isFalse(t.Value) {
			p.Always = true
		}
	case TagInstance:
		if t.Value != "" {
			p.Instance = t.Value
		}
	case TagReplicates:
		if count, err := strconv.Atoi(t.Value); err == nil && count > 0 {
			p.Replicates = count
		}
	}
}

// isFalse treats an explicit "false"/"0"/"no" value as disabling the tag;
// a bare tag or any other value enables it.
func isFalse(value string) bool {
	switch value {
	case "false", "0", "no", "off":
		return true
	}
	return false
}
