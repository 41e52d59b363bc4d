package storage

import (
	"context"
	"sync"

	"github.com/example/last-mile-dispatch/internal/models"
)

// Store defines the persistence commands the core issues. The core only ever
// holds value copies; durability and schema are the store's business.
type Store interface {
	SaveOrder(ctx context.Context, o models.Order) error
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
	SaveJob(ctx context.Context, j models.Job) error
	GetJob(ctx context.Context, jobID string) (models.Job, bool, error)
	// TryClaimJob atomically assigns a driver to a job iff nobody has claimed
	// it yet. Returns true only for the first successful caller.
	TryClaimJob(ctx context.Context, jobID, driverID string) (bool, error)
	UpdateDriver(ctx context.Context, d models.Driver) error
}

// MemoryStore backs tests and single-node local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	orders  map[string]models.Order
	jobs    map[string]models.Job
	drivers map[string]models.Driver
	claims  map[string]string // job id -> driver id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:  make(map[string]models.Order),
		jobs:    make(map[string]models.Job),
		drivers: make(map[string]models.Driver),
		claims:  make(map[string]string),
	}
}

func (m *MemoryStore) SaveOrder(ctx context.Context, o models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *MemoryStore) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.Status = status
		m.orders[orderID] = o
	}
	return nil
}

func (m *MemoryStore) SaveJob(ctx context.Context, j models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
	return nil
}

func (m *MemoryStore) GetJob(ctx context.Context, jobID string) (models.Job, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	return j, ok, nil
}

func (m *MemoryStore) TryClaimJob(ctx context.Context, jobID, driverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.claims[jobID]; taken {
		return false, nil
	}
	m.claims[jobID] = driverID
	return true, nil
}

func (m *MemoryStore) UpdateDriver(ctx context.Context, d models.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
	return nil
}

// GetOrder is a test helper; production reads go through the query layer that
// owns the schema.
func (m *MemoryStore) GetOrder(orderID string) (models.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	return o, ok
}

// AssignedDriver reports who claimed a job, if anyone.
func (m *MemoryStore) AssignedDriver(jobID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.claims[jobID]
	return d, ok
}
