package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/notegrid/internal/node"
)

func TestLocalSubmit_Chunk(t *testing.T) {
	t.Parallel()

	l := NewLocal("local")
	result, err := l.Submit(context.Background(), Request{
		NodeID: "chunk.a",
		Code:   "x = 1\ny = x + 1",
	})
	require.NoError(t, err)

	assert.False(t, result.ExceptionRaised)
	assert.Empty(t, result.Messages)
	assert.Equal(t, []string{"x", "y"}, result.ProducedSymbols)

	y, ok := l.Value("y")
	require.True(t, ok)
	assert.True(t, cty.NumberIntVal(2).RawEquals(y))
}

func TestLocalSubmit_Expression(t *testing.T) {
	t.Parallel()

	l := NewLocal("local")
	_, err := l.Submit(context.Background(), Request{
		NodeID: "chunk.a",
		Code:   "base = 10",
	})
	require.NoError(t, err)

	result, err := l.Submit(context.Background(), Request{
		NodeID:     "expr.total",
		Code:       "base * 2",
		Expression: true,
		Symbol:     "total",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"total"}, result.ProducedSymbols)
	total, ok := l.Value("total")
	require.True(t, ok)
	assert.True(t, cty.NumberIntVal(20).RawEquals(total))
}

func TestLocalSubmit_EvaluationError(t *testing.T) {
	t.Parallel()

	l := NewLocal("local")
	result, err := l.Submit(context.Background(), Request{
		NodeID: "chunk.a",
		Code:   "y = missing + 1",
	})
	require.NoError(t, err)

	assert.False(t, result.ExceptionRaised)
	require.NotEmpty(t, result.Messages)
	assert.Equal(t, node.LevelError, result.Messages[0].Level)
	assert.Equal(t, "EvaluationError", result.Messages[0].ErrorType)
	assert.Empty(t, result.ProducedSymbols)
}

func TestLocalSubmit_EvaluationContinuesPastFailures(t *testing.T) {
	t.Parallel()

	// One bad assignment must not stop the rest of the chunk.
	l := NewLocal("local")
	result, err := l.Submit(context.Background(), Request{
		NodeID: "chunk.a",
		Code:   "a = 1\nb = missing\nc = 3",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, result.ProducedSymbols)
	assert.NotEmpty(t, result.Messages)
}

func TestLocalSubmit_ParseErrorRaisesException(t *testing.T) {
	t.Parallel()

	l := NewLocal("local")
	result, err := l.Submit(context.Background(), Request{
		NodeID: "chunk.a",
		Code:   "x = (",
	})
	require.NoError(t, err)

	assert.True(t, result.ExceptionRaised)
	require.NotEmpty(t, result.Messages)
	assert.Equal(t, "ParseError", result.Messages[0].ErrorType)
}

func TestLocalSubmit_Bounds(t *testing.T) {
	t.Parallel()

	t.Run("fork sees existing state and publishes its outputs", func(t *testing.T) {
		l := NewLocal("local")
		_, err := l.Submit(context.Background(), Request{NodeID: "chunk.a", Code: "base = 5"})
		require.NoError(t, err)

		result, err := l.Submit(context.Background(), Request{
			NodeID: "chunk.b",
			Code:   "derived = base + 1",
			Bounds: node.BoundsFork,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"derived"}, result.ProducedSymbols)

		derived, ok := l.Value("derived")
		require.True(t, ok)
		assert.True(t, cty.NumberIntVal(6).RawEquals(derived))
	})

	t.Run("box starts from an empty sandbox", func(t *testing.T) {
		l := NewLocal("local")
		_, err := l.Submit(context.Background(), Request{NodeID: "chunk.a", Code: "base = 5"})
		require.NoError(t, err)

		result, err := l.Submit(context.Background(), Request{
			NodeID: "chunk.b",
			Code:   "derived = base + 1",
			Bounds: node.BoundsBox,
		})
		require.NoError(t, err)

		// `base` is invisible inside the sandbox.
		assert.Empty(t, result.ProducedSymbols)
		assert.NotEmpty(t, result.Messages)
	})
}

func TestLocalRestart(t *testing.T) {
	t.Parallel()

	l := NewLocal("local")
	assert.Equal(t, uint64(1), l.Generation())

	_, err := l.Submit(context.Background(), Request{NodeID: "chunk.a", Code: "x = 1"})
	require.NoError(t, err)

	l.Restart()

	assert.Equal(t, uint64(2), l.Generation())
	_, ok := l.Value("x")
	assert.False(t, ok, "restart must discard interpreter state")
}

func TestLocalSubmit_CancelledContext(t *testing.T) {
	t.Parallel()

	l := NewLocal("local")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Submit(ctx, Request{NodeID: "chunk.a", Code: "x = 1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool(t *testing.T) {
	t.Parallel()

	t.Run("get is lazy and stable", func(t *testing.T) {
		p := NewPool(nil)
		first := p.Get("worker")
		second := p.Get("worker")
		assert.Same(t, first.(*Local), second.(*Local))
	})

	t.Run("empty id resolves to the default instance", func(t *testing.T) {
		p := NewPool(nil)
		assert.Equal(t, DefaultInstance, p.Get("").ID())
	})

	t.Run("fresh instances are unique", func(t *testing.T) {
		p := NewPool(nil)
		a := p.Fresh()
		b := p.Fresh()
		assert.NotEqual(t, a.ID(), b.ID())
	})

	t.Run("release forgets the instance", func(t *testing.T) {
		p := NewPool(nil)
		inst := p.Fresh()
		p.Release(inst.ID())

		_, ok := p.Generation(inst.ID())
		assert.False(t, ok)
	})

	t.Run("restart bumps the tracked generation", func(t *testing.T) {
		p := NewPool(nil)
		inst := p.Get("worker")

		before, ok := p.Generation("worker")
		require.True(t, ok)

		p.Restart("worker")

		after, ok := p.Generation("worker")
		require.True(t, ok)
		assert.Equal(t, before+1, after)
		assert.Equal(t, after, inst.Generation())
	})
}
