package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vk/notegrid/internal/kernel"
	"github.com/vk/notegrid/internal/node"
)

func TestDefaultScorer(t *testing.T) {
	t.Parallel()

	scorer := DefaultScorer{}

	t.Run("unweighted nodes score on quality alone", func(t *testing.T) {
		n := &node.Node{}
		success := Candidate{Result: &kernel.Result{}, Status: node.StatusSucceeded}
		failure := Candidate{Result: &kernel.Result{}, Status: node.StatusErrors}

		assert.Equal(t, 1.0, scorer.Score(n, success))
		assert.Equal(t, 0.0, scorer.Score(n, failure))
	})

	t.Run("warnings score below a clean success", func(t *testing.T) {
		n := &node.Node{QualityWeight: 100}
		clean := Candidate{Result: &kernel.Result{}, Status: node.StatusSucceeded}
		warned := Candidate{Result: &kernel.Result{}, Status: node.StatusWarnings}

		assert.Greater(t, scorer.Score(n, clean), scorer.Score(n, warned))
		assert.Greater(t, scorer.Score(n, warned), 0.0)
	})

	t.Run("speed weight favors the faster candidate", func(t *testing.T) {
		n := &node.Node{SpeedWeight: 100}
		fast := Candidate{Result: &kernel.Result{}, Status: node.StatusSucceeded, Duration: 10 * time.Millisecond}
		slow := Candidate{Result: &kernel.Result{}, Status: node.StatusSucceeded, Duration: 5 * time.Second}

		assert.Greater(t, scorer.Score(n, fast), scorer.Score(n, slow))
	})

	t.Run("cost weight penalizes noisy candidates", func(t *testing.T) {
		n := &node.Node{CostWeight: 100}
		quiet := Candidate{Result: &kernel.Result{}, Status: node.StatusSucceeded}
		noisy := Candidate{
			Result: &kernel.Result{Messages: make([]node.ExecutionMessage, 10)},
			Status: node.StatusSucceeded,
		}

		assert.Greater(t, scorer.Score(n, quiet), scorer.Score(n, noisy))
	})

	t.Run("scores stay within the unit interval", func(t *testing.T) {
		n := &node.Node{QualityWeight: 70, CostWeight: 20, SpeedWeight: 10}
		c := Candidate{Result: &kernel.Result{}, Status: node.StatusSucceeded, Duration: time.Second}

		score := scorer.Score(n, c)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	})
}
