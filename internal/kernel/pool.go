package kernel

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultInstance is the instance nodes run on when nothing pins them
// elsewhere.
const DefaultInstance = "local"

// Factory creates a new instance with the given id.
type Factory func(id string) Instance

// Pool manages the set of live execution instances, keyed by id. Instances
// are created lazily on first use.
type Pool struct {
	mu        sync.Mutex
	instances map[string]Instance
	factory   Factory
}

// NewPool creates a pool backed by the given factory. A nil factory
// defaults to local in-process instances.
func NewPool(factory Factory) *Pool {
	if factory == nil {
		factory = func(id string) Instance { return NewLocal(id) }
	}
	return &Pool{
		instances: make(map[string]Instance),
		factory:   factory,
	}
}

// Get returns the instance with the given id, creating it if needed. An
// empty id resolves to DefaultInstance.
func (p *Pool) Get(id string) Instance {
	if id == "" {
		id = DefaultInstance
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if inst, ok := p.instances[id]; ok {
		return inst
	}
	inst := p.factory(id)
	p.instances[id] = inst
	return inst
}

// Fresh creates a throwaway instance under a unique id, for hosts that
// need an interpreter sharing no state with the live ones.
func (p *Pool) Fresh() Instance {
	id := "fresh-" + uuid.NewString()
	p.mu.Lock()
	defer p.mu.Unlock()
	inst := p.factory(id)
	p.instances[id] = inst
	return inst
}

// Release removes an instance from the pool, e.g. when its host session
// ends.
func (p *Pool) Release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.instances, id)
}

// Restart restarts the instance with the given id, if it exists. All nodes
// that previously ran there will report KernelRestarted on the next
// staleness evaluation.
func (p *Pool) Restart(id string) {
	p.mu.Lock()
	inst, ok := p.instances[id]
	p.mu.Unlock()
	if ok {
		inst.Restart()
	}
}

// Generation implements the staleness evaluator's Generations interface.
func (p *Pool) Generation(id string) (uint64, bool) {
	p.mu.Lock()
	inst, ok := p.instances[id]
	p.mu.Unlock()
	if !ok {
		return 0, false
	}
	return inst.Generation(), true
}
