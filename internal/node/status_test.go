package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	nonTerminal := []Status{StatusScheduled, StatusPending, StatusRunning}
	for _, s := range nonTerminal {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}

	terminal := []Status{
		StatusSucceeded, StatusWarnings, StatusErrors, StatusExceptions,
		StatusCancelled, StatusInterrupted, StatusSkipped, StatusLocked,
		StatusRejected, StatusEmpty,
	}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
}

func TestStatusFailed(t *testing.T) {
	t.Parallel()

	failed := []Status{StatusErrors, StatusExceptions, StatusCancelled, StatusInterrupted}
	for _, s := range failed {
		assert.True(t, s.Failed(), "%s should count as failed", s)
	}

	notFailed := []Status{
		StatusScheduled, StatusPending, StatusRunning, StatusSucceeded,
		StatusWarnings, StatusSkipped, StatusLocked, StatusRejected, StatusEmpty,
	}
	for _, s := range notFailed {
		assert.False(t, s.Failed(), "%s should not count as failed", s)
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	t.Run("legal moves", func(t *testing.T) {
		assert.True(t, CanTransition(StatusScheduled, StatusPending))
		assert.True(t, CanTransition(StatusPending, StatusRunning))
		assert.True(t, CanTransition(StatusPending, StatusCancelled))
		assert.True(t, CanTransition(StatusRunning, StatusSucceeded))
		assert.True(t, CanTransition(StatusRunning, StatusInterrupted))
	})

	t.Run("illegal moves", func(t *testing.T) {
		// A node that never ran cannot land in a run outcome.
		assert.False(t, CanTransition(StatusPending, StatusSucceeded))
		assert.False(t, CanTransition(StatusPending, StatusErrors))
		// Pre-run cancellation does not apply to a running node.
		assert.False(t, CanTransition(StatusRunning, StatusCancelled))
		// Terminal states have no outgoing moves mid-round.
		assert.False(t, CanTransition(StatusSucceeded, StatusRunning))
		assert.False(t, CanTransition(StatusErrors, StatusPending))
	})
}

func TestStatusFromMessages(t *testing.T) {
	t.Parallel()

	t.Run("no messages means succeeded", func(t *testing.T) {
		assert.Equal(t, StatusSucceeded, StatusFromMessages(nil, false))
	})

	t.Run("info messages still succeed", func(t *testing.T) {
		messages := []ExecutionMessage{{Level: LevelInfo, Message: "hello"}}
		assert.Equal(t, StatusSucceeded, StatusFromMessages(messages, false))
	})

	t.Run("warnings only", func(t *testing.T) {
		messages := []ExecutionMessage{
			{Level: LevelInfo},
			{Level: LevelWarning},
		}
		assert.Equal(t, StatusWarnings, StatusFromMessages(messages, false))
	})

	t.Run("any error wins over warnings", func(t *testing.T) {
		messages := []ExecutionMessage{
			{Level: LevelWarning},
			{Level: LevelError},
			{Level: LevelWarning},
		}
		assert.Equal(t, StatusErrors, StatusFromMessages(messages, false))
	})

	t.Run("exception forces exceptions regardless of messages", func(t *testing.T) {
		assert.Equal(t, StatusExceptions, StatusFromMessages(nil, true))

		messages := []ExecutionMessage{{Level: LevelError}}
		assert.Equal(t, StatusExceptions, StatusFromMessages(messages, true))
	})
}
