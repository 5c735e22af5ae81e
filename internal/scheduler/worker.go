package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vk/notegrid/internal/ctxlog"
	"github.com/vk/notegrid/internal/digest"
	"github.com/vk/notegrid/internal/kernel"
	"github.com/vk/notegrid/internal/node"
)

// worker is the processing loop of one concurrent worker. It pulls ready
// tasks off the channel, executes them and unlocks their dependants.
func (s *Scheduler) worker(ctx context.Context, workerID int, readyChan chan *task, inRound map[node.ID]*task, wg *sync.WaitGroup) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for t := range readyChan {
		workerLogger := logger.With("workerID", workerID, "nodeID", t.n.ID)

		if t.cancelled.Load() || ctx.Err() != nil {
			// Cancelled while still queued: removed from dispatch, never run.
			s.apply(func() {
				t.n.Status = node.StatusCancelled
			})
			s.finish(ctx, t, inRound, readyChan, wg)
			continue
		}

		// A dependency outside the round may be sitting in a failed
		// terminal state from an earlier round.
		if upstream, failed := s.failedDependency(t.n); failed {
			s.cancelDownstream(ctx, t, inRound, readyChan, wg, upstream)
			continue
		}

		workerLogger.Debug("Worker picked up node for execution.")
		if t.n.Replicates > 1 || t.policy.Replicates > 1 {
			s.runReplicated(ctx, t)
		} else {
			s.runNode(ctx, t)
		}
		workerLogger.Debug("Node reached terminal status.", "status", t.n.Status.String())

		s.finish(ctx, t, inRound, readyChan, wg)
	}

	logger.Debug("Worker finished.", "workerID", workerID)
}

// failedDependency reports whether any direct dependency is in a failed
// terminal state right now.
func (s *Scheduler) failedDependency(n *node.Node) (node.ID, bool) {
	for _, dep := range n.Dependencies {
		d, ok := s.doc.Get(dep.Node)
		if !ok {
			continue
		}
		if d.Status.Failed() {
			return dep.Node, true
		}
	}
	return node.ID(""), false
}

// runNode executes one node with the retry policy: on a terminal Errors or
// Exceptions outcome it silently re-runs up to maximumRetries times, with
// exponential backoff between attempts, before letting the failure surface.
func (s *Scheduler) runNode(ctx context.Context, t *task) {
	logger := ctxlog.FromContext(ctx).With("nodeID", t.n.ID)

	retries := s.retryBudget(t.n)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.RetryInterval
	policy.Reset()

	for attempt := 0; attempt <= retries; attempt++ {
		status, result, inst, duration, interrupted := s.attempt(ctx, t)

		if interrupted {
			s.applyOutcome(t, node.StatusInterrupted, result, inst, duration)
			return
		}

		if (status == node.StatusErrors || status == node.StatusExceptions) && attempt < retries {
			s.metrics.ObserveRetry()
			if s.opts.VerboseRetries {
				s.apply(func() {
					t.n.ExecutionMessages = append(t.n.ExecutionMessages, result.Messages...)
				})
			}
			logger.Debug("Attempt failed, retrying.",
				"attempt", attempt+1, "status", status.String())
			select {
			case <-time.After(policy.NextBackOff()):
			case <-ctx.Done():
				s.applyOutcome(t, node.StatusInterrupted, result, inst, duration)
				return
			}
			continue
		}

		s.applyOutcome(t, status, result, inst, duration)
		return
	}
}

// attempt performs a single execution attempt: marks the node Running,
// submits its code and aggregates the outcome. The interrupted return is
// true when the run was cancelled mid-execution.
func (s *Scheduler) attempt(ctx context.Context, t *task) (node.Status, *kernel.Result, kernel.Instance, time.Duration, bool) {
	inst := s.instanceFor(t)

	// Entry into Running is the only place executionCount increments.
	s.apply(func() {
		t.n.Status = node.StatusRunning
		t.n.ExecutionCount++
		t.n.ExecutionMessages = nil
	})

	s.mu.Lock()
	s.running[t.n.ID] = inst
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, t.n.ID)
		s.mu.Unlock()
	}()

	started := s.opts.Now()
	result, err := inst.Submit(ctx, s.requestFor(t.n))
	duration := s.opts.Now().Sub(started)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return node.StatusInterrupted, &kernel.Result{}, inst, duration, true
		}
		// The instance is unreachable; treat as an exception outcome so the
		// retry budget applies.
		return node.StatusExceptions, &kernel.Result{
			Messages: []node.ExecutionMessage{{
				Level:     node.LevelError,
				Message:   err.Error(),
				ErrorType: "InstanceError",
			}},
			ExceptionRaised: true,
		}, inst, duration, false
	}

	return node.StatusFromMessages(result.Messages, result.ExceptionRaised), result, inst, duration, false
}

// instanceFor picks the execution instance for a task. A tag may pin a
// named instance; otherwise the node reuses the instance it last ran on,
// falling back to the default. Bounds do not pick the instance: forked and
// boxed runs get their scope isolation from the instance itself, which is
// also what lets their published outputs reach dependants.
func (s *Scheduler) instanceFor(t *task) kernel.Instance {
	if t.policy.Instance != "" {
		return s.pool.Get(t.policy.Instance)
	}
	return s.pool.Get(t.n.ExecutionInstance)
}

// requestFor translates a node into a kernel request.
func (s *Scheduler) requestFor(n *node.Node) kernel.Request {
	return kernel.Request{
		NodeID:     n.ID,
		Code:       n.Code,
		Format:     n.Format,
		Expression: n.Kind == node.KindExpression,
		Symbol:     n.Name,
		Bounds:     n.Bounds,
	}
}

// applyOutcome writes a terminal outcome back into the document atomically
// with respect to that node's readers. On success it refreshes the node's
// semantic digest from the symbols the run actually produced and records
// the last-run snapshot that future staleness evaluations compare against.
func (s *Scheduler) applyOutcome(t *task, status node.Status, result *kernel.Result, inst kernel.Instance, duration time.Duration) {
	n := t.n

	// Dependencies are terminal by the time this node ran, so their
	// semantic digests are stable; snapshot them before taking the lock.
	depDigests := make(map[node.ID]uint64, len(n.Dependencies))
	for _, depID := range n.DependencyIDs() {
		if dep, ok := s.doc.Get(depID); ok {
			depDigests[depID] = dep.Digest.SemanticDigest
		}
	}

	s.apply(func() {
		n.Status = status
		n.ExecutionMessages = append(n.ExecutionMessages, result.Messages...)
		n.ExecutionInstance = inst.ID()
		n.ExecutionEnded = s.opts.Now()
		n.ExecutionDuration = duration

		if status == node.StatusSucceeded || status == node.StatusWarnings {
			if len(result.ProducedSymbols) > 0 {
				n.ProducedSymbols = result.ProducedSymbols
				n.Digest.SemanticDigest = digest.Semantic(n.Digest.StateDigest, n.ProducedSymbols)
			}

			n.Last = &node.LastRun{
				SemanticDigest:    n.Digest.SemanticDigest,
				DependencyDigests: depDigests,
				Generation:        inst.Generation(),
			}
			n.Digest.DependenciesStale = 0
			n.Digest.DependenciesFailed = 0
			n.Required = node.RequiredNo
		} else if status.Failed() {
			n.Required = node.RequiredExecutionFailed
		}
	})

	s.metrics.ObserveExecution(status.String(), duration.Seconds())
}

// retryBudget returns how many automatic re-runs a node gets after its
// first attempt, clamped to [0, 10].
func (s *Scheduler) retryBudget(n *node.Node) int {
	retries := n.MaximumRetries
	if retries == 0 {
		retries = s.doc.Config.MaximumRetries
	}
	if retries < 0 {
		retries = 0
	}
	if retries > 10 {
		retries = 10
	}
	return retries
}
