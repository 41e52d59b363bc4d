package batching

import (
	"github.com/example/last-mile-dispatch/internal/models"
	"github.com/example/last-mile-dispatch/internal/policy"
)

// BuildClusters partitions the pool into groups of orders that may ride
// together. No cross-cluster batching happens downstream.
//
// With continuous chaining the whole pool is one global group and the
// insertion search alone decides what combines. Otherwise orders group by
// pickup_id, preserving pool order within each group; groups larger than
// MaxClusterCandidates split into chunks to bound the quadratic search.
func BuildClusters(pool []models.Order, pol policy.Policy) [][]models.Order {
	if len(pool) == 0 {
		return nil
	}
	if pol.EnableContinuousChaining {
		return [][]models.Order{append([]models.Order(nil), pool...)}
	}

	byPickup := make(map[string][]models.Order)
	var keys []string
	for _, o := range pool {
		if _, seen := byPickup[o.PickupID]; !seen {
			keys = append(keys, o.PickupID)
		}
		byPickup[o.PickupID] = append(byPickup[o.PickupID], o)
	}

	var clusters [][]models.Order
	for _, k := range keys {
		group := byPickup[k]
		for len(group) > pol.MaxClusterCandidates {
			clusters = append(clusters, group[:pol.MaxClusterCandidates])
			group = group[pol.MaxClusterCandidates:]
		}
		clusters = append(clusters, group)
	}
	return clusters
}
