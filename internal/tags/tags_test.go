package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vk/notegrid/internal/node"
)

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("no tags yields the zero policy", func(t *testing.T) {
		p := Apply(&node.Node{}, nil)
		assert.Equal(t, Policy{}, p)
	})

	t.Run("local skip tag", func(t *testing.T) {
		n := &node.Node{Tags: []node.Tag{{Name: TagSkip}}}
		assert.True(t, Apply(n, nil).Skip)
	})

	t.Run("explicit false disables a tag", func(t *testing.T) {
		for _, value := range []string{"false", "0", "no", "off"} {
			n := &node.Node{Tags: []node.Tag{{Name: TagSkip, Value: value}}}
			assert.False(t, Apply(n, nil).Skip, "value %q should disable the tag", value)
		}
	})

	t.Run("global skip applies to a tagless node", func(t *testing.T) {
		globals := []node.Tag{{Name: TagSkip, Global: true}}
		assert.True(t, Apply(&node.Node{}, globals).Skip)
	})

	t.Run("lock and always tags", func(t *testing.T) {
		n := &node.Node{Tags: []node.Tag{{Name: TagLock}, {Name: TagAlways}}}
		p := Apply(n, nil)
		assert.True(t, p.Lock)
		assert.True(t, p.Always)
	})

	t.Run("instance pin", func(t *testing.T) {
		n := &node.Node{Tags: []node.Tag{{Name: TagInstance, Value: "gpu-1"}}}
		assert.Equal(t, "gpu-1", Apply(n, nil).Instance)
	})

	t.Run("replicates tag", func(t *testing.T) {
		n := &node.Node{Tags: []node.Tag{{Name: TagReplicates, Value: "5"}}}
		assert.Equal(t, 5, Apply(n, nil).Replicates)
	})

	t.Run("invalid replicates value is ignored", func(t *testing.T) {
		n := &node.Node{Tags: []node.Tag{{Name: TagReplicates, Value: "many"}}}
		assert.Equal(t, 0, Apply(n, nil).Replicates)

		n = &node.Node{Tags: []node.Tag{{Name: TagReplicates, Value: "-2"}}}
		assert.Equal(t, 0, Apply(n, nil).Replicates)
	})

	t.Run("unknown tag names are ignored", func(t *testing.T) {
		n := &node.Node{Tags: []node.Tag{{Name: "color", Value: "blue"}}}
		assert.Equal(t, Policy{}, Apply(n, nil))
	})

	t.Run("a global entry on the node itself is not applied twice", func(t *testing.T) {
		// Global tags reach Apply through the document-wide collection; the
		// node's own copy is skipped so its value is not re-applied locally.
		n := &node.Node{Tags: []node.Tag{{Name: TagSkip, Global: true}}}
		assert.False(t, Apply(n, nil).Skip)
	})
}

func TestApplyMode(t *testing.T) {
	t.Parallel()

	t.Run("mode always", func(t *testing.T) {
		n := &node.Node{Mode: node.ModeAlways}
		assert.True(t, Apply(n, nil).Always)
	})

	t.Run("mode never skips", func(t *testing.T) {
		n := &node.Node{Mode: node.ModeNever}
		assert.True(t, Apply(n, nil).Skip)
	})

	t.Run("mode locked", func(t *testing.T) {
		n := &node.Node{Mode: node.ModeLocked}
		assert.True(t, Apply(n, nil).Lock)
	})
}
