package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/notegrid/internal/ctxlog"
	"github.com/vk/notegrid/internal/kernel"
	"github.com/vk/notegrid/internal/node"
)

// Candidate is one replica execution outcome presented to the scorer.
type Candidate struct {
	Result   *kernel.Result
	Status   node.Status
	Duration time.Duration
}

// Scorer ranks replica candidates of a generative node. The concrete
// weighting of quality, cost and speed is a pluggable strategy; the
// scheduler only requires scores to be comparable and a candidate below
// the node's minimumScore to be rejectable.
type Scorer interface {
	Score(n *node.Node, c Candidate) float64
}

// DefaultScorer combines the node's qualityWeight, costWeight and
// speedWeight (each 0-100) into a normalized weighted score in [0, 1].
// Quality is derived from the candidate's terminal status, speed from its
// duration and cost from the volume of messages it produced.
type DefaultScorer struct{}

// Score implements Scorer.
func (DefaultScorer) Score(n *node.Node, c Candidate) float64 {
	quality := 0.0
	switch c.Status {
	case node.StatusSucceeded:
		quality = 1.0
	case node.StatusWarnings:
		quality = 0.7
	}
	speed := 1.0 / (1.0 + c.Duration.Seconds())
	cost := 1.0 / (1.0 + float64(len(c.Result.Messages)))

	qw, cw, sw := float64(n.QualityWeight), float64(n.CostWeight), float64(n.SpeedWeight)
	total := qw + cw + sw
	if total == 0 {
		// No weights configured: quality alone decides.
		return quality
	}
	return (qw*quality + cw*cost + sw*speed) / total
}

// runReplicated issues the configured number of candidate executions of one
// node and selects the best-scoring one. Candidates run against the node's
// own instance under fork bounds, so each one evaluates in an isolated copy
// of the current shared state while its outputs still publish back for
// dependants; the instance serializes the actual evaluations. If no
// candidate clears minimumScore, the node ends in Errors.
func (s *Scheduler) runReplicated(ctx context.Context, t *task) {
	logger := ctxlog.FromContext(ctx).With("nodeID", t.n.ID)

	replicates := t.n.Replicates
	if t.policy.Replicates > 0 {
		replicates = t.policy.Replicates
	}
	logger.Debug("Running replicated node.", "replicates", replicates)

	inst := s.instanceFor(t)
	bounds := node.BoundsFork
	if t.n.Bounds == node.BoundsBox {
		bounds = node.BoundsBox
	}

	// One entry into Running for the whole replicated run.
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
	candidates := make([]Candidate, replicates)

	var group errgroup.Group
	for i := 0; i < replicates; i++ {
		i := i
		group.Go(func() error {
			req := s.requestFor(t.n)
			req.Bounds = bounds

			candidateStart := s.opts.Now()
			result, err := inst.Submit(ctx, req)
			elapsed := s.opts.Now().Sub(candidateStart)

			if err != nil {
				candidates[i] = Candidate{
					Result: &kernel.Result{ExceptionRaised: true},
					Status: node.StatusExceptions,
				}
				return nil
			}
			candidates[i] = Candidate{
				Result:   result,
				Status:   node.StatusFromMessages(result.Messages, result.ExceptionRaised),
				Duration: elapsed,
			}
			return nil
		})
	}
	_ = group.Wait()
	duration := s.opts.Now().Sub(started)

	bestIdx := -1
	bestScore := 0.0
	for i, c := range candidates {
		score := s.opts.Scorer.Score(t.n, c)
		logger.Debug("Scored replica candidate.", "candidate", i, "score", score, "status", c.Status.String())
		if score >= t.n.MinimumScore && (bestIdx == -1 || score > bestScore) {
			bestIdx = i
			bestScore = score
		}
	}

	if bestIdx == -1 {
		s.applyOutcome(t, node.StatusErrors, &kernel.Result{
			Messages: []node.ExecutionMessage{{
				Level:     node.LevelError,
				Message:   fmt.Sprintf("no replica candidate reached the minimum score %.2f", t.n.MinimumScore),
				ErrorType: "ReplicaSelectionError",
			}},
		}, inst, duration)
	} else {
		s.applyOutcome(t, candidates[bestIdx].Status, candidates[bestIdx].Result, inst, duration)
	}
}
