package pool

import (
	"context"
	"crypto/rand"
	"math/big"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/esbuild-dev/bundlerd/internal/installer"
)

// Options configures pool sizing, per spec.md §4.4: "clamp the machine's
// advertised hardware concurrency (default 2 when unknown) into
// [minConcurrency ?? 2, maxConcurrency ?? 5]".
type Options struct {
	MinConcurrency int
	MaxConcurrency int
}

func clamp(n, min, max int) int {
	if min <= 0 {
		min = 2
	}
	if max <= 0 {
		max = 5
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func poolSize(opts Options) int {
	return clamp(runtime.NumCPU(), opts.MinConcurrency, opts.MaxConcurrency)
}

// Pool is the worker pool and IPC multiplexer. It owns every worker, the
// idle list, and the waiting table of in-flight tasks.
type Pool struct {
	inst *installer.Installer

	mu      sync.Mutex
	workers []*worker
	idle    chan *worker
	waiting map[string]*task
}

// New constructs and warms a pool sized per Options.
func New(opts Options, inst *installer.Installer) *Pool {
	size := poolSize(opts)
	p := &Pool{
		inst:    inst,
		idle:    make(chan *worker, size),
		waiting: make(map[string]*task),
	}
	for i := 0; i < size; i++ {
		w := newWorker(inst)
		p.workers = append(p.workers, w)
		p.idle <- w
	}
	return p
}

// Size returns the current pool width.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

func newCorrelationID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	// fall back to a random base-36 string when a cryptographic UUID
	// is unavailable, per spec.md §4.4.
	buf := make([]byte, 16)
	rand.Read(buf)
	return new(big.Int).SetBytes(buf).Text(36)
}

// Submit reserves a slot in the bounded idle-worker queue, dispatches req
// to the worker that becomes available, and blocks until a terminal status
// is routed back for this task's correlation id. progress (optional)
// receives every non-terminal frame in the order the worker posted them.
func (p *Pool) Submit(ctx context.Context, req Request, progress ProgressFunc) (Response, error) {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	var w *worker
	select {
	case w = <-idle:
	case <-ctx.Done():
		return Response{}, ErrQueueTimeout
	}

	id := newCorrelationID()
	t := &task{
		id:       id,
		req:      req,
		resolve:  make(chan Response, 1),
		reject:   make(chan error, 1),
		progress: progress,
	}

	p.mu.Lock()
	p.waiting[id] = t
	p.mu.Unlock()

	// submit can lose the race to a concurrent Reload that already
	// stopped this worker after it left the idle channel; that's a
	// rejection, not a send on a closing channel.
	if !w.submit(t) {
		p.mu.Lock()
		delete(p.waiting, id)
		p.mu.Unlock()
		return Response{}, ErrReload
	}

	defer func() {
		p.mu.Lock()
		delete(p.waiting, id)
		stillCurrent := idle == p.idle
		p.mu.Unlock()
		// only return the worker to an idle list that still belongs to
		// the live pool; a worker stopped mid-task by Reload has no
		// business being offered to a future Submit.
		if stillCurrent {
			idle <- w
		}
	}()

	select {
	case resp := <-t.resolve:
		return resp, nil
	case err := <-t.reject:
		return Response{}, err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Reload rejects every outstanding task with ErrReload, terminates every
// worker in the current pool, and atomically swaps in a freshly warmed
// pool of the given size. Any reply a stale worker sends after this point
// targets an id no longer in the waiting table and is silently dropped.
func (p *Pool) Reload(opts Options) {
	p.mu.Lock()
	staleWorkers := p.workers
	for id, t := range p.waiting {
		select {
		case t.reject <- ErrReload:
		default:
		}
		delete(p.waiting, id)
	}
	p.mu.Unlock()

	// drain the idle channel so no Submit can hand out a worker we are
	// about to terminate.
	for {
		select {
		case <-p.idle:
		default:
			goto drained
		}
	}
drained:

	for _, w := range staleWorkers {
		w.stop()
	}

	size := poolSize(opts)
	newIdle := make(chan *worker, size)
	newWorkers := make([]*worker, 0, size)
	for i := 0; i < size; i++ {
		w := newWorker(p.inst)
		newWorkers = append(newWorkers, w)
		newIdle <- w
	}

	p.mu.Lock()
	p.workers = newWorkers
	p.idle = newIdle
	p.mu.Unlock()
}
