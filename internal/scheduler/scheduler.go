// Package scheduler decides, after any edit, which executable nodes must
// re-run, orders them by their dependency edges and dispatches them to
// execution instances with bounded retries and cooperative cancellation.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/notegrid/internal/ctxlog"
	"github.com/vk/notegrid/internal/document"
	"github.com/vk/notegrid/internal/kernel"
	"github.com/vk/notegrid/internal/node"
	"github.com/vk/notegrid/internal/resolve"
	"github.com/vk/notegrid/internal/staleness"
	"github.com/vk/notegrid/internal/tags"
	"github.com/vk/notegrid/internal/telemetry"
)

// Options configures a Scheduler.
type Options struct {
	// Workers bounds how many nodes may be in flight at once. Defaults to 4.
	Workers int
	// Scorer ranks replica candidates. Defaults to DefaultScorer.
	Scorer Scorer
	// Metrics receives execution telemetry. May be nil.
	Metrics *telemetry.Metrics
	// VerboseRetries keeps the messages of every failed attempt instead of
	// only the final one.
	VerboseRetries bool
	// Now is the clock, injectable for tests.
	Now func() time.Time
	// RetryInterval is the initial backoff delay between attempts.
	// Defaults to 50ms.
	RetryInterval time.Duration
}

// Scheduler runs execution rounds over a document.
type Scheduler struct {
	doc     *document.Document
	pool    *kernel.Pool
	opts    Options
	metrics *telemetry.Metrics

	// round state, guarded by mu. Cancel consults it to find the task or
	// in-flight instance for a node.
	mu      sync.Mutex
	tasks   map[node.ID]*task
	running map[node.ID]kernel.Instance
}

// task is one node prepared for dispatch within a round.
type task struct {
	n      *node.Node
	policy tags.Policy

	// depCount is the number of unmet dependencies within the round.
	depCount atomic.Int32
	// cancelled is set by a pre-run cancellation request.
	cancelled atomic.Bool
	// finishOnce guarantees the task completes (and its dependants are
	// notified) exactly once, whether it ran, was cancelled or was swept
	// up by an upstream failure.
	finishOnce sync.Once
	// interruptOnce makes the interrupt signal idempotent.
	interruptOnce sync.Once
}

// New creates a scheduler over the given document and instance pool.
func New(doc *document.Document, pool *kernel.Pool, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Scorer == nil {
		opts.Scorer = DefaultScorer{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}
	return &Scheduler{
		doc:     doc,
		pool:    pool,
		opts:    opts,
		metrics: opts.Metrics,
		tasks:   make(map[node.ID]*task),
		running: make(map[node.ID]kernel.Instance),
	}
}

// Summary reports what one round did.
type Summary struct {
	Executed  int
	Succeeded int
	Failed    int
	Skipped   int
}

// Run executes one round: it compiles the document, evaluates staleness,
// computes the closure of nodes requiring execution from the trigger set,
// orders it topologically and dispatches ready nodes to instances. An empty
// trigger set means "everything".
//
// Node failures never surface as an error here; they surface in node
// statuses. The returned error reports only scheduler-level interruption.
func (s *Scheduler) Run(ctx context.Context, triggers []node.ID) (*Summary, error) {
	logger := ctxlog.FromContext(ctx)

	compiled, err := resolve.Pass(ctx, s.doc)
	if err != nil {
		return nil, err
	}
	staleness.EvaluateAll(s.doc, s.pool)

	if len(triggers) == 0 {
		for _, n := range s.doc.Nodes() {
			triggers = append(triggers, n.ID)
		}
	}

	runnable, summary := s.collect(ctx, compiled, triggers)
	if len(runnable) == 0 {
		logger.Debug("Nothing to execute this round.")
		return summary, nil
	}

	s.mu.Lock()
	s.tasks = make(map[node.ID]*task, len(runnable))
	for _, t := range runnable {
		s.tasks[t.n.ID] = t
	}
	s.mu.Unlock()

	s.dispatch(ctx, runnable)

	for _, t := range runnable {
		switch {
		case t.n.Status == node.StatusSucceeded || t.n.Status == node.StatusWarnings:
			summary.Succeeded++
		case t.n.Status.Failed():
			summary.Failed++
		}
		summary.Executed++
	}

	s.mu.Lock()
	s.tasks = make(map[node.ID]*task)
	s.running = make(map[node.ID]kernel.Instance)
	s.mu.Unlock()

	logger.Info("Round finished.",
		"executed", summary.Executed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, ctx.Err()
}

// collect computes the execution closure and the eligibility status of each
// member, returning the tasks that will actually run.
func (s *Scheduler) collect(ctx context.Context, compiled *resolve.Result, triggers []node.ID) ([]*task, *Summary) {
	logger := ctxlog.FromContext(ctx)
	summary := &Summary{}

	inTrigger := make(map[node.ID]struct{}, len(triggers))
	for _, id := range triggers {
		inTrigger[id] = struct{}{}
	}
	closure := compiled.Graph.Downstream(triggers)
	for id := range inTrigger {
		closure[id] = struct{}{}
	}

	globals := s.doc.GlobalTags()

	var runnable []*task
	for _, n := range s.doc.Nodes() {
		if _, ok := closure[n.ID]; !ok {
			continue
		}
		if _, cyclic := compiled.Cyclic[n.ID]; cyclic {
			// Already marked Errors by the compile pass.
			continue
		}
		if n.HasCompilationErrors() {
			n.Status = node.StatusErrors
			continue
		}

		policy := tags.Apply(n, globals)
		switch {
		case n.RejectedSuggestion:
			n.Status = node.StatusRejected
			summary.Skipped++
		case !n.ExecuteContent:
			// Prose-only content never executes.
			n.Status = node.StatusSkipped
			summary.Skipped++
		case n.Code == "":
			n.Status = node.StatusEmpty
			summary.Skipped++
		case s.doc.Config.Locked || policy.Lock:
			n.Status = node.StatusLocked
			summary.Skipped++
		case policy.Skip:
			n.Status = node.StatusSkipped
			summary.Skipped++
		default:
			_, triggered := inTrigger[n.ID]
			if !triggered && !policy.Always && n.Required == node.RequiredNo {
				// Up to date; leave its status and result untouched.
				continue
			}
			n.Status = node.StatusPending
			runnable = append(runnable, &task{n: n, policy: policy})
		}
	}

	logger.Debug("Execution closure computed.",
		"closure", len(closure), "runnable", len(runnable))
	return runnable, summary
}

// dispatch runs Kahn's algorithm over the runnable set with a worker pool:
// dependency counters within the round gate readiness, roots are seeded in
// document order and workers pull from a shared ready channel.
func (s *Scheduler) dispatch(ctx context.Context, runnable []*task) {
	logger := ctxlog.FromContext(ctx)

	inRound := make(map[node.ID]*task, len(runnable))
	for _, t := range runnable {
		inRound[t.n.ID] = t
	}
	for _, t := range runnable {
		count := int32(0)
		for _, depID := range t.n.DependencyIDs() {
			if _, ok := inRound[depID]; ok {
				count++
			}
		}
		t.depCount.Store(count)
	}

	// Deterministic seeding: roots enter the queue in document order.
	ordered := append([]*task(nil), runnable...)
	sort.Slice(ordered, func(i, j int) bool {
		return s.doc.Order(ordered[i].n.ID) < s.doc.Order(ordered[j].n.ID)
	})

	readyChan := make(chan *task, len(runnable))
	for _, t := range ordered {
		if t.depCount.Load() == 0 {
			readyChan <- t
		}
	}

	var wg sync.WaitGroup
	wg.Add(len(runnable))

	var group errgroup.Group
	for i := 0; i < s.opts.Workers; i++ {
		workerID := i
		group.Go(func() error {
			s.worker(ctx, workerID, readyChan, inRound, &wg)
			return nil
		})
	}

	wg.Wait()
	close(readyChan)
	if err := group.Wait(); err != nil {
		logger.Error("Worker pool reported an error.", "error", err)
	}
}

// finish marks a task terminal exactly once and either unlocks or cancels
// its dependants in the round.
func (s *Scheduler) finish(ctx context.Context, t *task, inRound map[node.ID]*task, readyChan chan *task, wg *sync.WaitGroup) {
	t.finishOnce.Do(func() {
		failed := t.n.Status.Failed()
		wg.Done()

		dependants := t.n.DependantIDs()
		sort.Slice(dependants, func(i, j int) bool {
			return s.doc.Order(dependants[i]) < s.doc.Order(dependants[j])
		})

		for _, depID := range dependants {
			dependant, ok := inRound[depID]
			if !ok {
				continue
			}
			if failed {
				s.cancelDownstream(ctx, dependant, inRound, readyChan, wg, t.n.ID)
				continue
			}
			if dependant.depCount.Add(-1) == 0 {
				readyChan <- dependant
			}
		}
	})
}

// cancelDownstream marks a dependant Cancelled because an upstream node
// failed, and sweeps its own dependants in turn.
func (s *Scheduler) cancelDownstream(ctx context.Context, t *task, inRound map[node.ID]*task, readyChan chan *task, wg *sync.WaitGroup, upstream node.ID) {
	logger := ctxlog.FromContext(ctx)
	t.finishOnce.Do(func() {
		logger.Warn("Cancelling dependant due to upstream failure.",
			"nodeID", t.n.ID, "upstream", upstream)

		s.apply(func() {
			t.n.Status = node.StatusCancelled
			t.n.Required = node.RequiredDependenciesFailed
		})
		wg.Done()

		for _, depID := range t.n.DependantIDs() {
			if dependant, ok := inRound[depID]; ok {
				s.cancelDownstream(ctx, dependant, inRound, readyChan, wg, t.n.ID)
			}
		}
	})
}

// apply runs a mutation of node state under the document write lock, so
// concurrent dispatch decisions observe a consistent snapshot.
func (s *Scheduler) apply(fn func()) {
	s.doc.Lock()
	defer s.doc.Unlock()
	fn()
}
