package scheduler

import (
	"context"

	"github.com/vk/notegrid/internal/ctxlog"
	"github.com/vk/notegrid/internal/node"
)

// Cancel requests cancellation of a node in the current round.
//
// A node still queued is removed from dispatch and ends Cancelled. A node
// already Running receives a single, idempotent interrupt signal through
// its execution instance and ends Interrupted. Cancelling a node that is
// already terminal, or twice, is a no-op and yields the same terminal
// state as cancelling it once.
func (s *Scheduler) Cancel(ctx context.Context, id node.ID) {
	logger := ctxlog.FromContext(ctx)

	s.mu.Lock()
	t, inRound := s.tasks[id]
	inst, isRunning := s.running[id]
	s.mu.Unlock()

	if !inRound {
		logger.Debug("Cancellation requested for node outside the round.", "nodeID", id)
		return
	}

	if isRunning {
		t.interruptOnce.Do(func() {
			logger.Info("Interrupting running node.", "nodeID", id)
			s.metrics.ObserveInterrupt()
			inst.Interrupt(id)
		})
		return
	}

	if t.cancelled.CompareAndSwap(false, true) {
		logger.Info("Cancelled queued node.", "nodeID", id)
	}
}
