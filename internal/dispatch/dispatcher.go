package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/lock"
	"github.com/example/last-mile-dispatch/internal/models"
	"github.com/example/last-mile-dispatch/internal/observability"
	"github.com/example/last-mile-dispatch/internal/policy"
	"github.com/example/last-mile-dispatch/internal/selection"
	"github.com/example/last-mile-dispatch/internal/storage"
)

// ErrAcceptanceLost means another driver claimed the job first. Surfaced to
// the losing driver as HTTP 409; every other dispatch error stays internal.
var ErrAcceptanceLost = errors.New("job already claimed")

// Dispatcher runs one cooperative task per live job: broadcast the offer to
// successive driver waves with a delay between them, and stand down the
// moment an acceptance commits or the deadline passes.
type Dispatcher struct {
	Lock   lock.JobLock
	Push   PushService
	Store  storage.Store
	Matrix eta.Matrix
	Log    *slog.Logger

	// OnAbandon receives jobs nobody accepted in time (the external abandon
	// queue). The dispatcher does not retry them.
	OnAbandon func(job models.Job)

	mu   sync.Mutex
	live map[string]*liveJob
}

type liveJob struct {
	job     models.Job
	drivers map[string]models.Driver // wave candidates by id, for capacity accounting
	done    chan struct{}
	once    sync.Once
}

func NewDispatcher(jobLock lock.JobLock, push PushService, store storage.Store, matrix eta.Matrix, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		Lock:   jobLock,
		Push:   push,
		Store:  store,
		Matrix: matrix,
		Log:    log,
		live:   make(map[string]*liveJob),
	}
}

// DispatchJob schedules the wave loop for a job against a snapshot of online
// drivers. Returns immediately; the loop owns its own goroutine.
func (d *Dispatcher) DispatchJob(ctx context.Context, job models.Job, drivers []models.Driver, pol policy.Policy) {
	waves := selection.BuildDriverWaves(job, drivers, d.Matrix, pol)

	byID := make(map[string]models.Driver, len(drivers))
	for _, dr := range drivers {
		byID[dr.ID] = dr
	}
	lj := &liveJob{job: job, drivers: byID, done: make(chan struct{})}

	d.mu.Lock()
	d.live[job.ID] = lj
	d.mu.Unlock()

	go d.run(ctx, lj, waves, pol)
}

func (d *Dispatcher) run(ctx context.Context, lj *liveJob, waves [][]string, pol policy.Policy) {
	defer func() {
		d.mu.Lock()
		delete(d.live, lj.job.ID)
		d.mu.Unlock()
	}()

	deadline := time.NewTimer(pol.AcceptanceDeadline)
	defer deadline.Stop()

	for k := 0; k < len(waves); k++ {
		if holder, err := d.Lock.Holder(ctx, lj.job.ID); err == nil && holder != "" {
			return
		}
		if len(waves[k]) > 0 {
			if err := d.Push.BroadcastOffer(ctx, waves[k], lj.job); err != nil {
				d.Log.Warn("wave broadcast failed", "job_id", lj.job.ID, "wave", k, "error", err)
			}
			observability.WavesBroadcast.Inc()
			d.Log.Info("wave broadcast", "job_id", lj.job.ID, "wave", k, "drivers", len(waves[k]))
		}

		select {
		case <-lj.done:
			return
		case <-ctx.Done():
			return
		case <-deadline.C:
			d.abandon(ctx, lj.job)
			return
		case <-time.After(pol.WaveInterval):
		}
	}

	// All waves are out; hold the job live until someone accepts or the
	// deadline expires.
	select {
	case <-lj.done:
	case <-ctx.Done():
	case <-deadline.C:
		d.abandon(ctx, lj.job)
	}
}

func (d *Dispatcher) abandon(ctx context.Context, job models.Job) {
	if err := d.Lock.Release(ctx, job.ID); err != nil {
		d.Log.Warn("abandon lock release failed", "job_id", job.ID, "error", err)
	}
	observability.JobsAbandoned.Inc()
	d.Log.Info("job abandoned", "job_id", job.ID, "orders", len(job.OrderIDs))
	if d.OnAbandon != nil {
		d.OnAbandon(job)
	}
}

// ResolveDriverAcceptance is the single exit from the OFFERING state: the
// first caller to win the job lock gets the job, everyone else gets
// ErrAcceptanceLost. On a win the claim persists, the wave loop is signalled
// to stop, and the driver's capacity is accounted for.
func (d *Dispatcher) ResolveDriverAcceptance(ctx context.Context, jobID, driverID string) error {
	won, err := d.Lock.TryClaim(ctx, jobID, driverID)
	if err != nil {
		return err
	}
	if !won {
		observability.AcceptanceLost.Inc()
		return ErrAcceptanceLost
	}

	claimed, err := d.Store.TryClaimJob(ctx, jobID, driverID)
	if err != nil {
		// The lock is won but the claim did not persist; release so another
		// wave or a retry can still place the job.
		_ = d.Lock.Release(ctx, jobID)
		return err
	}
	if !claimed {
		observability.AcceptanceLost.Inc()
		return ErrAcceptanceLost
	}

	d.mu.Lock()
	lj, live := d.live[jobID]
	d.mu.Unlock()

	if live {
		lj.once.Do(func() { close(lj.done) })
		if driver, ok := lj.drivers[driverID]; ok {
			updated := models.HandleDriverAcceptance(driver, lj.job)
			if err := d.Store.UpdateDriver(ctx, updated); err != nil {
				d.Log.Warn("driver update failed", "driver_id", driverID, "error", err)
			}
		}
		for _, oid := range lj.job.OrderIDs {
			if err := d.Store.UpdateOrderStatus(ctx, oid, models.OrderAssigned); err != nil {
				d.Log.Warn("assigned status update failed", "order_id", oid, "error", err)
			}
		}
	}

	observability.JobsAssigned.Inc()
	d.Log.Info("job assigned", "job_id", jobID, "driver_id", driverID)
	return nil
}

// LiveJobs reports how many jobs currently own a wave loop.
func (d *Dispatcher) LiveJobs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}
