package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Coord is a (lon, lat) pair. Equality is bitwise; coordinates that differ
// in any bit are distinct keys in the matrix cache.
type Coord struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type OrderStatus string

const (
	OrderRaw       OrderStatus = "RAW"
	OrderBatching  OrderStatus = "BATCHING"
	OrderReady     OrderStatus = "READY"
	OrderAssigned  OrderStatus = "ASSIGNED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	ID        string      `json:"id"`
	PickupID  string      `json:"pickup_id"`
	Pickup    Coord       `json:"pickup"`
	Dropoff   Coord       `json:"dropoff"`
	CreatedAt time.Time   `json:"created_at"`
	Status    OrderStatus `json:"status"`
}

type StopKind string

const (
	StopPickup  StopKind = "PICKUP"
	StopDropoff StopKind = "DROPOFF"
)

// Stop references its order by id only; jobs hold no pointers back into the
// order pool.
type Stop struct {
	Kind    StopKind `json:"kind"`
	OrderID string   `json:"order_id"`
	Coord   Coord    `json:"coord"`
}

func PickupStop(o Order) Stop  { return Stop{Kind: StopPickup, OrderID: o.ID, Coord: o.Pickup} }
func DropoffStop(o Order) Stop { return Stop{Kind: StopDropoff, OrderID: o.ID, Coord: o.Dropoff} }

type JobType string

const (
	JobSingle JobType = "SINGLE"
	JobBatch  JobType = "BATCH"
)

// Job is immutable after construction; the dispatcher holds it by value.
type Job struct {
	ID               string    `json:"id"`
	JobType          JobType   `json:"job_type"`
	OrderIDs         []string  `json:"order_ids"`
	Stops            []Stop    `json:"stops"`
	TotalTimeSeconds float64   `json:"total_time_seconds"`
	ETA              float64   `json:"eta_seconds"`
	DetourFactor     float64   `json:"detour_factor"`
	SavingsSeconds   float64   `json:"savings_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

// ErrInvariantViolation marks a programmer error in job assembly. The
// batching engine drops the offending cluster for the cycle and leaves its
// orders in the pool.
var ErrInvariantViolation = errors.New("job invariant violation")

// NewJob validates the stop sequence against every job invariant and stamps
// a fresh id. Construction fails loudly rather than emitting a broken job.
func NewJob(orderIDs []string, stops []Stop, totalTime float64) (Job, error) {
	if len(orderIDs) == 0 {
		return Job{}, fmt.Errorf("%w: empty order_ids", ErrInvariantViolation)
	}
	if len(stops) != 2*len(orderIDs) {
		return Job{}, fmt.Errorf("%w: %d stops for %d orders", ErrInvariantViolation, len(stops), len(orderIDs))
	}
	if stops[0].Kind != StopPickup {
		return Job{}, fmt.Errorf("%w: first stop is %s", ErrInvariantViolation, stops[0].Kind)
	}
	if stops[len(stops)-1].Kind != StopDropoff {
		return Job{}, fmt.Errorf("%w: last stop is %s", ErrInvariantViolation, stops[len(stops)-1].Kind)
	}

	want := make(map[string]bool, len(orderIDs))
	for _, id := range orderIDs {
		if want[id] {
			return Job{}, fmt.Errorf("%w: duplicate order %s", ErrInvariantViolation, id)
		}
		want[id] = true
	}

	pickupAt := make(map[string]int, len(orderIDs))
	dropoffAt := make(map[string]int, len(orderIDs))
	for i, s := range stops {
		if !want[s.OrderID] {
			return Job{}, fmt.Errorf("%w: stop for unknown order %s", ErrInvariantViolation, s.OrderID)
		}
		switch s.Kind {
		case StopPickup:
			if _, dup := pickupAt[s.OrderID]; dup {
				return Job{}, fmt.Errorf("%w: two pickups for order %s", ErrInvariantViolation, s.OrderID)
			}
			pickupAt[s.OrderID] = i
		case StopDropoff:
			if _, dup := dropoffAt[s.OrderID]; dup {
				return Job{}, fmt.Errorf("%w: two dropoffs for order %s", ErrInvariantViolation, s.OrderID)
			}
			dropoffAt[s.OrderID] = i
		default:
			return Job{}, fmt.Errorf("%w: bad stop kind %q", ErrInvariantViolation, s.Kind)
		}
	}
	for _, id := range orderIDs {
		p, ok := pickupAt[id]
		if !ok {
			return Job{}, fmt.Errorf("%w: no pickup for order %s", ErrInvariantViolation, id)
		}
		d, ok := dropoffAt[id]
		if !ok {
			return Job{}, fmt.Errorf("%w: no dropoff for order %s", ErrInvariantViolation, id)
		}
		if p > d {
			return Job{}, fmt.Errorf("%w: dropoff before pickup for order %s", ErrInvariantViolation, id)
		}
	}

	jt := JobBatch
	if len(orderIDs) == 1 {
		jt = JobSingle
	}
	return Job{
		ID:               uuid.NewString(),
		JobType:          jt,
		OrderIDs:         append([]string(nil), orderIDs...),
		Stops:            append([]Stop(nil), stops...),
		TotalTimeSeconds: totalTime,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// BatchResult partitions a batching run's input pool: every input order is
// in exactly one job or in UnbatchedOrders.
type BatchResult struct {
	Jobs            []Job
	UnbatchedOrders []Order
}

type DriverStatus string

const (
	DriverAvailable        DriverStatus = "AVAILABLE"
	DriverTransitToCollect DriverStatus = "TRANSIT_TO_COLLECT"
	DriverTransitToDropoff DriverStatus = "TRANSIT_TO_DROPOFF"
	DriverPaused           DriverStatus = "PAUSED"
	DriverOffline          DriverStatus = "OFFLINE"
)

type Driver struct {
	ID          string       `json:"id"`
	Location    Coord        `json:"location"`
	Status      DriverStatus `json:"status"`
	MaxCapacity int          `json:"max_capacity"`
	PushToken   string       `json:"push_token"`
	Updated     time.Time    `json:"updated"`
}

// HandleDriverAcceptance returns the driver after committing to a job:
// capacity drops by the job's order count and the driver heads to collect.
// Pure value update; persistence is the caller's problem.
func HandleDriverAcceptance(d Driver, job Job) Driver {
	d.MaxCapacity -= len(job.OrderIDs)
	if d.MaxCapacity < 0 {
		d.MaxCapacity = 0
	}
	d.Status = DriverTransitToCollect
	return d
}
