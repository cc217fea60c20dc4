// Package specialistpool implements SpecialistPool: a bounded worker
// pool that runs specialist Tasks off the Orchestrator's thread, with
// fingerprint-based in-flight/result-cache coalescing.
//
// The queue-and-worker shape is grounded in teacher's
// broker/zerodha.tickerManager (a mutex-guarded map fed by a background
// goroutine) and forensic/datasource.RateLimiter's token-bucket loop for
// the "worker polls a guarded resource under lock" idiom; the cache is
// grounded in forensic/datasource.Cache's key/TTL/GetOrFetch shape,
// generalized from a file-backed cache to an in-memory
// hashicorp/golang-lru/v2/expirable one.
package specialistpool

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/SeanStafford/ENTROPY/internal/entropytypes"
	"github.com/SeanStafford/ENTROPY/internal/obslog"
)

const (
	defaultWorkers   = 4
	defaultQueueCap  = 64
	defaultCacheSize = 256
	defaultCacheTTL  = 300 * time.Second
)

// Executor runs one Task end to end (agent loop, tool calls, LLM calls)
// and returns its result. Supplied by the caller so this package stays
// agnostic of agent.Agent's concrete type.
type Executor func(ctx context.Context, task entropytypes.Task) (entropytypes.SpecialistResult, error)

// Status is the outcome of a non-final TryGet call.
type Status string

const (
	StatusReady   Status = "ready"
	StatusPending Status = "pending"
	StatusExpired Status = "expired"
)

// Future is a handle to one submitted (or cached) Task's eventual result.
type Future struct {
	fingerprint string
	prefetch    bool
	createdAt   time.Time

	mu      sync.Mutex
	done    chan struct{}
	closed  bool
	result  entropytypes.SpecialistResult
	expired bool
}

func newFuture(fingerprint string, prefetch bool) *Future {
	return &Future{fingerprint: fingerprint, prefetch: prefetch, createdAt: time.Now(), done: make(chan struct{})}
}

func (f *Future) deliver(r entropytypes.SpecialistResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.result = r
	f.closed = true
	close(f.done)
}

func (f *Future) markExpired() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.expired = true
	f.closed = true
	close(f.done)
}

// TryGet is the non-blocking (timeout<=0) or bounded-wait (timeout>0)
// accessor spec.md §4.9 calls try_get/await.
func (f *Future) TryGet(timeout time.Duration) (entropytypes.SpecialistResult, Status) {
	if timeout <= 0 {
		select {
		case <-f.done:
			return f.snapshot()
		default:
			return entropytypes.SpecialistResult{}, StatusPending
		}
	}
	select {
	case <-f.done:
		return f.snapshot()
	case <-time.After(timeout):
		return entropytypes.SpecialistResult{}, StatusPending
	}
}

func (f *Future) snapshot() (entropytypes.SpecialistResult, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired {
		return entropytypes.SpecialistResult{}, StatusExpired
	}
	return f.result, StatusReady
}

type queuedTask struct {
	task   entropytypes.Task
	future *Future
}

// Pool is the bounded worker pool plus result cache.
type Pool struct {
	executor  Executor
	workers   int
	queueCap  int
	cacheSize int
	cacheTTL  time.Duration

	cache *lru.LRU[string, entropytypes.SpecialistResult]

	mu             sync.Mutex
	cond           *sync.Cond
	inflight       map[string]*Future
	immediateQueue []*queuedTask
	prefetchQueue  []*queuedTask
	shuttingDown   bool

	wg sync.WaitGroup
}

// Option configures a Pool at construction.
type Option func(*Pool)

func WithWorkers(n int) Option       { return func(p *Pool) { p.workers = n } }
func WithQueueCapacity(n int) Option { return func(p *Pool) { p.queueCap = n } }
func WithCacheTTL(d time.Duration) Option {
	return func(p *Pool) { p.cacheTTL = d }
}

// WithCacheCapacity bounds the number of distinct fingerprints the
// result cache holds, evicting least-recently-used entries beyond it
// (per Open Question decision 3 in DESIGN.md) independently of TTL
// expiry.
func WithCacheCapacity(n int) Option {
	return func(p *Pool) { p.cacheSize = n }
}

// New starts the pool's W worker goroutines immediately.
func New(executor Executor, opts ...Option) *Pool {
	p := &Pool{
		executor:  executor,
		workers:   defaultWorkers,
		queueCap:  defaultQueueCap,
		cacheSize: defaultCacheSize,
		cacheTTL:  defaultCacheTTL,
		inflight:  make(map[string]*Future),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cache = lru.NewLRU[string, entropytypes.SpecialistResult](p.cacheSize, nil, p.cacheTTL)
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.runWorker()
	}
	return p
}

// Submit enqueues task (or returns the existing in-flight/cached Future
// for an identical fingerprint). Immediate submissions are never
// dropped; if the queue is saturated, the oldest unconsumed pre-fetch
// future is dropped to make room.
func (p *Pool) Submit(task entropytypes.Task) *Future {
	fp := fingerprint(task)

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.inflight[fp]; ok {
		return existing
	}
	if cached, ok := p.cache.Get(fp); ok {
		fut := newFuture(fp, task.IsPrefetch)
		fut.deliver(cached)
		return fut
	}

	fut := newFuture(fp, task.IsPrefetch)
	p.inflight[fp] = fut
	qt := &queuedTask{task: task, future: fut}

	if p.queueLenLocked() >= p.queueCap {
		p.dropOldestPrefetchLocked()
	}
	if task.IsPrefetch {
		p.prefetchQueue = append(p.prefetchQueue, qt)
	} else {
		p.immediateQueue = append(p.immediateQueue, qt)
	}
	p.cond.Signal()
	return fut
}

// Workers reports the pool's configured worker count, so callers can
// decide whether background pre-fetch work is worth the contention it
// would add against a single worker's immediate-specialist latency.
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) queueLenLocked() int {
	return len(p.immediateQueue) + len(p.prefetchQueue)
}

func (p *Pool) dropOldestPrefetchLocked() {
	if len(p.prefetchQueue) == 0 {
		return // queue is saturated with immediate tasks only; those never drop
	}
	dropped := p.prefetchQueue[0]
	p.prefetchQueue = p.prefetchQueue[1:]
	delete(p.inflight, dropped.future.fingerprint)
	dropped.future.markExpired()
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.queueLenLocked() == 0 && !p.shuttingDown {
			p.cond.Wait()
		}
		if p.shuttingDown && p.queueLenLocked() == 0 {
			p.mu.Unlock()
			return
		}
		qt := p.dequeueLocked()
		p.mu.Unlock()

		result, err := p.executor(context.Background(), qt.task)

		p.mu.Lock()
		delete(p.inflight, qt.future.fingerprint)
		p.mu.Unlock()

		if err != nil {
			obslog.ErrorWithErr(context.Background(), "specialistpool: task execution failed", err, "fingerprint", qt.future.fingerprint, "kind", qt.task.Kind)
			qt.future.markExpired()
			continue
		}
		p.cache.Add(qt.future.fingerprint, result)
		qt.future.deliver(result)
	}
}

// dequeueLocked takes the next task, immediate queue first.
func (p *Pool) dequeueLocked() *queuedTask {
	if len(p.immediateQueue) > 0 {
		qt := p.immediateQueue[0]
		p.immediateQueue = p.immediateQueue[1:]
		return qt
	}
	qt := p.prefetchQueue[0]
	p.prefetchQueue = p.prefetchQueue[1:]
	return qt
}

// Shutdown drains the queue, expiring every not-yet-started Future, then
// blocks until every in-progress worker finishes its current Task.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shuttingDown = true
	for _, qt := range p.immediateQueue {
		delete(p.inflight, qt.future.fingerprint)
		qt.future.markExpired()
	}
	for _, qt := range p.prefetchQueue {
		delete(p.inflight, qt.future.fingerprint)
		qt.future.markExpired()
	}
	p.immediateQueue = nil
	p.prefetchQueue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

// fingerprint implements F = hash(kind, normalized(focused_brief), session_id).
func fingerprint(task entropytypes.Task) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(task.FocusedBrief)), " ")
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%s", task.Kind, normalized, task.SessionID)))
	return fmt.Sprintf("%x", sum)
}
