package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vk/notegrid/internal/kernel"
	"github.com/vk/notegrid/internal/node"
)

// ScriptedInstance is a kernel instance whose outcomes are scripted per
// node. Each Submit for a node consumes the next scripted outcome; when the
// script runs out the instance keeps returning a plain success. It records
// every request it received, in order.
type ScriptedInstance struct {
	id  string
	gen atomic.Uint64

	mu       sync.Mutex
	scripts  map[node.ID][]Outcome
	requests []kernel.Request
}

// Outcome is one scripted Submit result.
type Outcome struct {
	Result *kernel.Result
	Err    error
}

// NewScriptedInstance creates an empty scripted instance.
func NewScriptedInstance(id string) *ScriptedInstance {
	return &ScriptedInstance{
		id:      id,
		scripts: make(map[node.ID][]Outcome),
	}
}

// Script appends outcomes to a node's script, consumed in order by Submit.
func (s *ScriptedInstance) Script(id node.ID, outcomes ...Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[id] = append(s.scripts[id], outcomes...)
}

// Fail is an Outcome carrying one error-level message.
func Fail(message string) Outcome {
	return Outcome{Result: &kernel.Result{
		Messages: []node.ExecutionMessage{{
			Level:     node.LevelError,
			Message:   message,
			ErrorType: "ScriptedError",
		}},
	}}
}

// Succeed is a plain success Outcome.
func Succeed() Outcome {
	return Outcome{Result: &kernel.Result{}}
}

// Requests returns a copy of all requests received so far.
func (s *ScriptedInstance) Requests() []kernel.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]kernel.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Submissions counts how many times the given node was submitted.
func (s *ScriptedInstance) Submissions(id node.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, req := range s.requests {
		if req.NodeID == id {
			count++
		}
	}
	return count
}

func (s *ScriptedInstance) ID() string         { return s.id }
func (s *ScriptedInstance) Generation() uint64 { return s.gen.Load() }

func (s *ScriptedInstance) Restart() {
	s.gen.Add(1)
}

func (s *ScriptedInstance) Interrupt(node.ID) {}

// Submit implements kernel.Instance.
func (s *ScriptedInstance) Submit(ctx context.Context, req kernel.Request) (*kernel.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	script := s.scripts[req.NodeID]
	if len(script) == 0 {
		return &kernel.Result{}, nil
	}
	next := script[0]
	s.scripts[req.NodeID] = script[1:]
	if next.Err != nil {
		return nil, next.Err
	}
	return next.Result, nil
}
