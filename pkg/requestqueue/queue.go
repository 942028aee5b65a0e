package requestqueue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Sentinel errors for queue operations.
var (
	// ErrQueueFull indicates the pending-request bound was reached.
	ErrQueueFull = errors.New("request queue is full")

	// ErrCleared indicates the request was rejected by Clear before it ran.
	ErrCleared = errors.New("request queue was cleared")

	// ErrShutdown indicates the queue no longer accepts work.
	ErrShutdown = errors.New("request queue is shut down")
)

// Request is one unit of work submitted to the queue.
type Request struct {
	// OperationName groups requests under one rate-limit budget.
	OperationName string

	// Priority orders requests; higher is served first.
	Priority int

	// MaxRetries bounds backoff re-schedules after retryable failures.
	MaxRetries int

	// Execute performs the work. It must honor ctx cancellation.
	Execute func(ctx context.Context) (interface{}, error)
}

// queuedRequest is a Request waiting in the queue.
type queuedRequest struct {
	id         string
	req        Request
	enqueuedAt time.Time
	readyAt    time.Time // zero until a backoff delay is scheduled
	retryCount int
	future     *Future
	seq        uint64
	index      int
}

// requestHeap orders queued requests by (priority desc, enqueuedAt asc),
// with a sequence number as the final FIFO tie-break.
type requestHeap []*queuedRequest

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	if !h[i].enqueuedAt.Equal(h[j].enqueuedAt) {
		return h[i].enqueuedAt.Before(h[j].enqueuedAt)
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *requestHeap) Push(x interface{}) {
	item := x.(*queuedRequest)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *requestHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Queue is the rate-limited priority request queue. Construct one at process
// start with New, call Start once, and share the instance via dependency
// injection.
type Queue struct {
	cfg     Config
	store   WindowStore
	metrics Metrics
	clock   Clock
	pace    *rate.Limiter

	mu      sync.Mutex
	heap    requestHeap
	depths  map[string]int
	seq     uint64
	stopped bool

	kick   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a request queue. Missing configuration values take their
// documented defaults. A nil metrics defaults to NoOpMetrics; a nil clock
// defaults to the system clock.
func New(cfg Config, store WindowStore, metrics Metrics, clock Clock) (*Queue, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("requestqueue: invalid config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("requestqueue: window store is required")
	}
	if metrics == nil {
		metrics = NewNoOpMetrics()
	}
	if clock == nil {
		clock = SystemClock{}
	}

	q := &Queue{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		clock:   clock,
		depths:  make(map[string]int),
		kick:    make(chan struct{}, 1),
	}
	if cfg.PolitenessDelay > 0 {
		q.pace = rate.NewLimiter(rate.Every(cfg.PolitenessDelay), 1)
	}
	return q, nil
}

// Start launches the scheduler goroutine. It runs until Shutdown is called
// or ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(runCtx)
	}()

	slog.Info("request queue scheduler started",
		slog.Duration("tick_interval", q.cfg.TickInterval),
		slog.Duration("politeness_delay", q.cfg.PolitenessDelay))
}

// Enqueue submits work and returns its completion future.
//
// The returned future resolves with the operation's result, or with an
// error once retries are exhausted, the error is classified permanent, or
// the queue is cleared.
func (q *Queue) Enqueue(ctx context.Context, req Request) (*Future, error) {
	if req.OperationName == "" {
		return nil, fmt.Errorf("requestqueue: operation name is required")
	}
	if req.Execute == nil {
		return nil, fmt.Errorf("requestqueue: execute closure is required")
	}
	if req.MaxRetries < 0 {
		return nil, fmt.Errorf("requestqueue: max retries must be non-negative, got %d", req.MaxRetries)
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil, ErrShutdown
	}
	if len(q.heap) >= q.cfg.MaxPending {
		q.mu.Unlock()
		return nil, ErrQueueFull
	}

	item := &queuedRequest{
		id:         uuid.NewString(),
		req:        req,
		enqueuedAt: q.clock.Now(),
		future:     newFuture(),
		seq:        q.seq,
	}
	q.seq++
	q.pushLocked(item)
	q.mu.Unlock()

	// Kick the scheduler so an idle queue serves the request immediately.
	select {
	case q.kick <- struct{}{}:
	default:
	}

	return item.future, nil
}

// Clear rejects every pending future immediately. In-flight work is not
// interrupted; only queued-but-unstarted requests are cancelled.
func (q *Queue) Clear() int {
	q.mu.Lock()
	items := make([]*queuedRequest, len(q.heap))
	copy(items, q.heap)
	q.heap = q.heap[:0]
	for op := range q.depths {
		delete(q.depths, op)
		q.metrics.SetDepth(op, 0)
	}
	q.mu.Unlock()

	for _, item := range items {
		item.future.resolve(nil, ErrCleared)
		q.metrics.RecordOutcome(item.req.OperationName, "cleared")
	}

	if len(items) > 0 {
		slog.Warn("request queue cleared", slog.Int("rejected", len(items)))
	}
	return len(items)
}

// Shutdown stops the scheduler, rejects pending work, and waits for the
// scheduler goroutine to exit or ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	q.Clear()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("requestqueue: shutdown wait: %w", ctx.Err())
	}
}

// Depth returns the total number of pending requests.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// DepthByOperation returns pending-request counts per operation.
func (q *Queue) DepthByOperation() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int, len(q.depths))
	for op, n := range q.depths {
		out[op] = n
	}
	return out
}

// run is the scheduler loop: drain ready work, then sleep until the next
// tick, an enqueue kick, or the hinted wake-up, whichever comes first.
func (q *Queue) run(ctx context.Context) {
	for {
		wait := q.dispatch(ctx)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("request queue scheduler stopped")
			return
		case <-q.kick:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// dispatch serves ready requests in priority order until the queue is
// drained, a rate-limit window is exhausted, or ctx is done. It returns how
// long the scheduler should sleep before the next attempt.
func (q *Queue) dispatch(ctx context.Context) time.Duration {
	for {
		if ctx.Err() != nil {
			return q.cfg.TickInterval
		}

		now := q.clock.Now()
		q.mu.Lock()
		item := q.popReadyLocked(now)
		q.mu.Unlock()
		if item == nil {
			return q.waitHint(now)
		}

		op := item.req.OperationName
		budget := q.cfg.BudgetFor(op)
		window := q.loadWindow(ctx, op, budget, now)

		if window.Count >= budget.MaxRequests {
			// Budget exhausted: put the request back at the front and sleep
			// until the window resets, capped so the loop never blocks
			// unboundedly.
			q.mu.Lock()
			q.pushLocked(item)
			q.mu.Unlock()

			q.metrics.RecordWindowExhausted(op)
			wait := window.WindowResetAt.Sub(now)
			if wait > q.cfg.MaxWindowWait {
				wait = q.cfg.MaxWindowWait
			}
			if wait <= 0 {
				wait = time.Millisecond
			}
			slog.Debug("rate limit window exhausted, pausing queue",
				slog.String("operation", op),
				slog.Int("count", window.Count),
				slog.Int("max_requests", budget.MaxRequests),
				slog.Duration("wait", wait))
			return wait
		}

		// Politeness delay between consecutive executions.
		if q.pace != nil {
			if err := q.pace.Wait(ctx); err != nil {
				q.mu.Lock()
				q.pushLocked(item)
				q.mu.Unlock()
				return q.cfg.TickInterval
			}
		}

		q.metrics.RecordWait(op, now.Sub(item.enqueuedAt))
		result, err := item.req.Execute(ctx)
		if err == nil {
			window.Count++
			q.storeWindow(ctx, window)
			item.future.resolve(result, nil)
			q.metrics.RecordOutcome(op, "resolved")
			continue
		}

		q.handleFailure(ctx, item, err)
	}
}

// handleFailure either re-schedules a retryable failure with backoff or
// rejects the future.
func (q *Queue) handleFailure(ctx context.Context, item *queuedRequest, err error) {
	op := item.req.OperationName

	if item.retryCount < item.req.MaxRetries && q.cfg.IsRetryable(err) {
		delay := q.backoff(item.retryCount)
		item.retryCount++
		item.readyAt = q.clock.Now().Add(delay)

		q.mu.Lock()
		q.pushLocked(item)
		q.mu.Unlock()

		q.metrics.RecordRetry(op)
		slog.Warn("queued request failed, scheduling retry",
			slog.String("operation", op),
			slog.String("request_id", item.id),
			slog.Int("retry", item.retryCount),
			slog.Int("max_retries", item.req.MaxRetries),
			slog.Duration("delay", delay),
			slog.Any("error", err))
		return
	}

	if item.retryCount >= item.req.MaxRetries && item.req.MaxRetries > 0 && q.cfg.IsRetryable(err) {
		err = fmt.Errorf("max retries (%d) exceeded: %w", item.req.MaxRetries, err)
	}
	item.future.resolve(nil, err)
	q.metrics.RecordOutcome(op, "rejected")
}

// backoff computes the delay before the given zero-based retry:
// initial * multiplier^retryCount plus jitter, capped at the maximum.
func (q *Queue) backoff(retryCount int) time.Duration {
	delay := q.cfg.BackoffInitialDelay
	for i := 0; i < retryCount && delay < q.cfg.BackoffMaxDelay; i++ {
		delay = time.Duration(float64(delay) * q.cfg.BackoffMultiplier)
	}
	if q.cfg.BackoffJitterFraction > 0 {
		// #nosec G404 -- jitter does not need cryptographic randomness.
		delay += time.Duration(rand.Float64() * float64(delay) * q.cfg.BackoffJitterFraction)
	}
	if delay > q.cfg.BackoffMaxDelay {
		delay = q.cfg.BackoffMaxDelay
	}
	return delay
}

// loadWindow fetches the operation's window, starting a fresh one when none
// exists or the stored one has expired. Store failures fail open with a
// fresh window so a broken store never wedges the queue.
func (q *Queue) loadWindow(ctx context.Context, op string, budget Budget, now time.Time) Window {
	w, ok, err := q.store.Get(ctx, op)
	if err != nil {
		slog.Warn("window store read failed, assuming fresh window",
			slog.String("operation", op),
			slog.Any("error", err))
		ok = false
	}
	if !ok || w.Expired(now) {
		return Window{
			OperationName: op,
			Count:         0,
			WindowResetAt: now.Add(budget.Window),
		}
	}
	return w
}

// storeWindow persists a window update. Failures are logged, not fatal;
// cross-process updates are read-modify-write and not atomic.
func (q *Queue) storeWindow(ctx context.Context, w Window) {
	if err := q.store.Put(ctx, w); err != nil {
		slog.Warn("window store write failed",
			slog.String("operation", w.OperationName),
			slog.Any("error", err))
	}
}

// popReadyLocked removes and returns the highest-priority request whose
// backoff delay has elapsed, or nil when none is ready. Callers must hold
// q.mu.
func (q *Queue) popReadyLocked(now time.Time) *queuedRequest {
	var deferred []*queuedRequest
	var picked *queuedRequest

	for q.heap.Len() > 0 {
		item := heap.Pop(&q.heap).(*queuedRequest)
		if item.readyAt.After(now) {
			deferred = append(deferred, item)
			continue
		}
		picked = item
		break
	}
	for _, item := range deferred {
		heap.Push(&q.heap, item)
	}

	if picked != nil {
		q.depths[picked.req.OperationName]--
		q.metrics.SetDepth(picked.req.OperationName, q.depths[picked.req.OperationName])
	}
	return picked
}

// pushLocked inserts a request and updates depth accounting. Callers must
// hold q.mu.
func (q *Queue) pushLocked(item *queuedRequest) {
	heap.Push(&q.heap, item)
	q.depths[item.req.OperationName]++
	q.metrics.SetDepth(item.req.OperationName, q.depths[item.req.OperationName])
}

// waitHint returns how long to sleep when no request is ready: until the
// earliest backoff expiry, bounded by the tick interval.
func (q *Queue) waitHint(now time.Time) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	wait := q.cfg.TickInterval
	for _, item := range q.heap {
		if item.readyAt.After(now) {
			if d := item.readyAt.Sub(now); d < wait {
				wait = d
			}
		}
	}
	return wait
}
