package horizon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/last-mile-dispatch/internal/batching"
	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/models"
	"github.com/example/last-mile-dispatch/internal/observability"
	"github.com/example/last-mile-dispatch/internal/policy"
	"github.com/example/last-mile-dispatch/internal/storage"
)

// Queue is the rolling-horizon holding area: it keeps young orders back so
// the batcher has more material, and guarantees that no order waits past the
// policy's MaxWaitTime before it is forced into a SINGLE job.
//
// A single mutex serializes cycles (RunCycle is never re-entered) and guards
// the pool against concurrent enqueues from handler goroutines. Durability
// is delegated to the store; the pool itself lives in memory only, and a new
// Queue starts empty without reloading RAW orders from the store.
type Queue struct {
	mu      sync.Mutex
	pool    map[string]models.Order
	ordered []string // pool insertion order, ids

	matrix eta.Matrix
	store  storage.Store
	pol    policy.Policy
	next   *policy.Policy // staged hot swap, applied at the next cycle boundary
	log    *slog.Logger

	// Now is swappable for tests.
	Now func() time.Time
}

func NewQueue(store storage.Store, matrix eta.Matrix, pol policy.Policy, log *slog.Logger) *Queue {
	return &Queue{
		pool:   make(map[string]models.Order),
		matrix: matrix,
		store:  store,
		pol:    pol,
		log:    log,
		Now:    time.Now,
	}
}

// EnqueueRaw admits an order into the pool. Re-enqueueing an id that is
// still pooled is a no-op; an id that already left the pool in a job is
// admitted again.
func (q *Queue) EnqueueRaw(ctx context.Context, o models.Order) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.pool[o.ID]; exists {
		return nil
	}
	o.Status = models.OrderRaw
	if o.CreatedAt.IsZero() {
		o.CreatedAt = q.Now().UTC()
	}
	if err := q.store.SaveOrder(ctx, o); err != nil {
		return err
	}
	q.pool[o.ID] = o
	q.ordered = append(q.ordered, o.ID)
	observability.PoolDepth.Set(float64(len(q.pool)))
	return nil
}

// EvictCancelled drops an order from the pool before it reaches a job.
func (q *Queue) EvictCancelled(ctx context.Context, orderID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pool[orderID]; !ok {
		return
	}
	q.remove(orderID)
	if err := q.store.UpdateOrderStatus(ctx, orderID, models.OrderCancelled); err != nil {
		q.log.Warn("cancel status update failed", "order_id", orderID, "error", err)
	}
	observability.PoolDepth.Set(float64(len(q.pool)))
}

// SetPolicy stages a new policy; it takes effect at the next cycle boundary.
func (q *Queue) SetPolicy(pol policy.Policy) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p := pol
	q.next = &p
}

// RunCycle feeds the full held pool through the batching engine, commits the
// produced jobs (orders go READY, jobs persist), and keeps deferred orders
// for the next tick.
func (q *Queue) RunCycle(ctx context.Context) ([]models.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.next != nil {
		q.pol = *q.next
		q.next = nil
	}
	if len(q.pool) == 0 {
		return nil, nil
	}

	started := time.Now()
	now := q.Now().UTC()

	pool := make([]models.Order, 0, len(q.pool))
	ages := make(map[string]float64, len(q.pool))
	for _, id := range q.ordered {
		o := q.pool[id]
		o.Status = models.OrderBatching
		pool = append(pool, o)
		ages[id] = now.Sub(o.CreatedAt).Seconds()
	}

	res := batching.BatchOrders(ctx, pool, q.matrix, q.pol, ages)

	emitted := make([]models.Job, 0, len(res.Jobs))
	for _, job := range res.Jobs {
		if err := q.store.SaveJob(ctx, job); err != nil {
			// Without a persisted job the dispatcher cannot resolve
			// acceptances against it; keep its orders pooled and retry.
			q.log.Error("job persist failed, orders stay pooled", "job_id", job.ID, "error", err)
			continue
		}
		for _, oid := range job.OrderIDs {
			q.remove(oid)
			if err := q.store.UpdateOrderStatus(ctx, oid, models.OrderReady); err != nil {
				q.log.Warn("ready status update failed", "order_id", oid, "error", err)
			}
		}
		observability.JobsEmitted.WithLabelValues(string(job.JobType)).Inc()
		emitted = append(emitted, job)
	}

	observability.BatchCyclesTotal.Inc()
	observability.BatchCycleLatency.Observe(time.Since(started).Seconds())
	observability.OrdersDeferred.Add(float64(len(res.UnbatchedOrders)))
	observability.PoolDepth.Set(float64(len(q.pool)))

	q.log.Info("batch cycle",
		"pool", len(pool),
		"jobs", len(emitted),
		"deferred", len(res.UnbatchedOrders),
		"took_ms", time.Since(started).Milliseconds(),
	)
	return emitted, nil
}

// Stats reports pool depth for health endpoints and dashboards.
func (q *Queue) Stats() (pooled int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pool)
}

// remove deletes an id from both the map and the insertion-order slice.
// Callers hold q.mu.
func (q *Queue) remove(orderID string) {
	delete(q.pool, orderID)
	for i, id := range q.ordered {
		if id == orderID {
			q.ordered = append(q.ordered[:i], q.ordered[i+1:]...)
			break
		}
	}
}
