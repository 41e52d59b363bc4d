package geo

import (
	"sort"
	"sync"
	"time"

	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/models"
)

// Geo supplies the online-driver snapshots the dispatcher hands to driver
// selection. It does not subscribe to driver state changes; each wave
// schedule reads a fresh snapshot.
type Geo interface {
	Nearby(pickup models.Coord, limit int) []models.Driver
	Upsert(d models.Driver)
}

// Index is the in-memory implementation for tests and single-node runs.
type Index struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]models.Driver)}
}

func (g *Index) Upsert(d models.Driver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d.Updated = time.Now()
	g.drivers[d.ID] = d
}

// naive scan; in prod use the Redis GEO index
func (g *Index) Nearby(pickup models.Coord, limit int) []models.Driver {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		d    models.Driver
		dist float64
	}
	arr := make([]pair, 0, len(g.drivers))
	for _, d := range g.drivers {
		if d.Status == models.DriverOffline {
			continue
		}
		arr = append(arr, pair{d, eta.Haversine(pickup, d.Location)})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].dist != arr[j].dist {
			return arr[i].dist < arr[j].dist
		}
		return arr[i].d.ID < arr[j].d.ID
	})
	if limit > len(arr) {
		limit = len(arr)
	}
	out := make([]models.Driver, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, arr[i].d)
	}
	return out
}
