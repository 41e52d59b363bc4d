package batching

import (
	"context"

	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/models"
	"github.com/example/last-mile-dispatch/internal/policy"
)

// BatchOrders is the sole batching entry point: cluster the pool, bulk-prefetch
// each cluster's coordinates, run the greedy insertion loop per cluster, and
// stitch the results together.
//
// The grouping is deterministic — same pool, matrix state, policy, and ages
// produce the same jobs (order ids, stops, times) and the same
// UnbatchedOrders — and it never mutates the pool. Each job's ID and
// CreatedAt are freshly generated by models.NewJob, so those fields differ
// between runs. UnbatchedOrders preserves the pool's insertion order.
//
// A cluster whose job assembly trips ErrInvariantViolation is skipped for the
// cycle; its orders fall through to UnbatchedOrders and stay in the pool.
func BatchOrders(
	ctx context.Context,
	pool []models.Order,
	m eta.Matrix,
	pol policy.Policy,
	orderAgeSeconds map[string]float64,
) models.BatchResult {
	if len(pool) == 0 {
		return models.BatchResult{}
	}
	if orderAgeSeconds == nil {
		orderAgeSeconds = map[string]float64{}
	}

	var jobs []models.Job
	used := make(map[string]bool, len(pool))

	for _, cluster := range BuildClusters(pool, pol) {
		// One bulk prefetch per cluster keeps the insertion search off the
		// network. A failed prefetch is not fatal: per-pair lookups below
		// either fall back to single route calls or skip the pair.
		_ = m.Prefetch(ctx, clusterCoords(cluster))

		clusterJobs, _, err := ScoreCluster(cluster, m, pol, orderAgeSeconds)
		if err != nil {
			continue
		}
		for _, j := range clusterJobs {
			for _, oid := range j.OrderIDs {
				used[oid] = true
			}
		}
		jobs = append(jobs, clusterJobs...)
	}

	var unbatched []models.Order
	for _, o := range pool {
		if !used[o.ID] {
			unbatched = append(unbatched, o)
		}
	}
	return models.BatchResult{Jobs: jobs, UnbatchedOrders: unbatched}
}

// clusterCoords collects the distinct pickup and dropoff coordinates of a
// cluster for bulk prefetch.
func clusterCoords(cluster []models.Order) []models.Coord {
	seen := make(map[models.Coord]bool, 2*len(cluster))
	coords := make([]models.Coord, 0, 2*len(cluster))
	for _, o := range cluster {
		for _, c := range []models.Coord{o.Pickup, o.Dropoff} {
			if !seen[c] {
				seen[c] = true
				coords = append(coords, c)
			}
		}
	}
	return coords
}
