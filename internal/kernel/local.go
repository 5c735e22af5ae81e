package kernel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/notegrid/internal/node"
)

// Local is an in-process execution instance. Code is evaluated as HCL
// expressions over a shared table of cty values, which plays the role of
// the interpreter's mutable state.
type Local struct {
	id  string
	gen atomic.Uint64

	// mu serializes Submit: the instance is a single mutable interpreter
	// and cannot run two nodes simultaneously.
	mu    sync.Mutex
	state map[string]cty.Value

	// interruptMu guards the registry of in-flight runs.
	interruptMu sync.Mutex
	interrupts  map[node.ID]context.CancelFunc
}

// NewLocal creates a local instance with the given id and empty state.
func NewLocal(id string) *Local {
	l := &Local{
		id:         id,
		state:      make(map[string]cty.Value),
		interrupts: make(map[node.ID]context.CancelFunc),
	}
	l.gen.Store(1)
	return l
}

// ID implements Instance.
func (l *Local) ID() string { return l.id }

// Generation implements Instance.
func (l *Local) Generation() uint64 { return l.gen.Load() }

// Restart implements Instance. All interpreter state is discarded and the
// generation is bumped, invalidating every node that ran here.
func (l *Local) Restart() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = make(map[string]cty.Value)
	l.gen.Add(1)
}

// Interrupt implements Instance. A second interrupt of the same node is a
// no-op.
func (l *Local) Interrupt(nodeID node.ID) {
	l.interruptMu.Lock()
	cancel, ok := l.interrupts[nodeID]
	l.interruptMu.Unlock()
	if ok {
		cancel()
	}
}

// Submit implements Instance.
func (l *Local) Submit(ctx context.Context, req Request) (*Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.interruptMu.Lock()
	l.interrupts[req.NodeID] = cancel
	l.interruptMu.Unlock()
	defer func() {
		l.interruptMu.Lock()
		delete(l.interrupts, req.NodeID)
		l.interruptMu.Unlock()
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := runCtx.Err(); err != nil {
		return nil, err
	}

	// Bounds pick the scope the run mutates: the shared state, a copy of
	// it, or an empty sandbox.
	var scope map[string]cty.Value
	switch req.Bounds {
	case node.BoundsFork, node.BoundsBox:
		scope = make(map[string]cty.Value)
		if req.Bounds == node.BoundsFork {
			for k, v := range l.state {
				scope[k] = v
			}
		}
	default:
		scope = l.state
	}

	if req.Expression {
		return l.evalExpression(runCtx, req, scope)
	}
	return l.evalChunk(runCtx, req, scope)
}

// evalExpression evaluates single-expression code and publishes the result
// under the request's symbol.
func (l *Local) evalExpression(ctx context.Context, req Request, scope map[string]cty.Value) (*Result, error) {
	result := &Result{}

	expr, diags := hclsyntax.ParseExpression([]byte(req.Code), string(req.NodeID), hcl.InitialPos)
	if diags.HasErrors() {
		result.Messages = executionMessages(diags, "ParseError")
		result.ExceptionRaised = true
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	val, diags := expr.Value(l.evalContext(scope))
	if diags.HasErrors() {
		result.Messages = append(result.Messages, executionMessages(diags, "EvaluationError")...)
		return result, nil
	}

	scope[req.Symbol] = val
	l.publish(req.Bounds, req.Symbol, val)
	result.ProducedSymbols = []string{req.Symbol}
	return result, nil
}

// evalChunk evaluates a body of named assignments in source order. An
// assignment that fails leaves an error message and evaluation continues
// with the remaining assignments.
func (l *Local) evalChunk(ctx context.Context, req Request, scope map[string]cty.Value) (*Result, error) {
	result := &Result{}

	file, diags := hclsyntax.ParseConfig([]byte(req.Code), string(req.NodeID), hcl.InitialPos)
	if diags.HasErrors() {
		result.Messages = executionMessages(diags, "ParseError")
		result.ExceptionRaised = true
		return result, nil
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		result.ExceptionRaised = true
		return result, nil
	}

	attrs := make([]*hclsyntax.Attribute, 0, len(body.Attributes))
	for _, attr := range body.Attributes {
		attrs = append(attrs, attr)
	}
	for i := 0; i < len(attrs); i++ {
		for j := i + 1; j < len(attrs); j++ {
			if attrs[j].SrcRange.Start.Byte < attrs[i].SrcRange.Start.Byte {
				attrs[i], attrs[j] = attrs[j], attrs[i]
			}
		}
	}

	for _, attr := range attrs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		val, diags := attr.Expr.Value(l.evalContext(scope))
		if diags.HasErrors() {
			result.Messages = append(result.Messages, executionMessages(diags, "EvaluationError")...)
			continue
		}
		scope[attr.Name] = val
		l.publish(req.Bounds, attr.Name, val)
		result.ProducedSymbols = append(result.ProducedSymbols, attr.Name)
	}

	return result, nil
}

// publish writes a produced value back to the shared state. Forked and
// boxed runs keep their scope isolated but still publish their outputs, so
// dependants can read them.
func (l *Local) publish(bounds node.Bounds, symbol string, val cty.Value) {
	if bounds == node.BoundsFork || bounds == node.BoundsBox {
		l.state[symbol] = val
	}
}

// Value returns the current value of a symbol in the instance's state.
func (l *Local) Value(symbol string) (cty.Value, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.state[symbol]
	return v, ok
}

func (l *Local) evalContext(scope map[string]cty.Value) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(scope))
	for k, v := range scope {
		vars[k] = v
	}
	return &hcl.EvalContext{Variables: vars}
}

// executionMessages converts HCL diagnostics into execution messages.
func executionMessages(diags hcl.Diagnostics, errorType string) []node.ExecutionMessage {
	messages := make([]node.ExecutionMessage, 0, len(diags))
	for _, diag := range diags {
		level := node.LevelError
		if diag.Severity == hcl.DiagWarning {
			level = node.LevelWarning
		}
		msg := node.ExecutionMessage{
			Level:     level,
			Message:   diag.Summary,
			ErrorType: errorType,
		}
		if diag.Detail != "" {
			msg.Message = msg.Message + ": " + diag.Detail
		}
		if diag.Subject != nil {
			loc := node.LocationFromRange(*diag.Subject)
			msg.Location = &loc
		}
		messages = append(messages, msg)
	}
	return messages
}
