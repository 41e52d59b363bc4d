package batching

import (
	"testing"

	"github.com/example/last-mile-dispatch/internal/models"
)

func TestBuildClustersGlobalWhenChaining(t *testing.T) {
	pol := testPolicy()
	pol.EnableContinuousChaining = true

	pool := []models.Order{
		{ID: "o1", PickupID: "r1"},
		{ID: "o2", PickupID: "r2"},
		{ID: "o3", PickupID: "r3"},
	}
	clusters := BuildClusters(pool, pol)
	if len(clusters) != 1 || len(clusters[0]) != 3 {
		t.Fatalf("chaining must produce one global cluster, got %d", len(clusters))
	}
}

func TestBuildClustersGroupsByPickupID(t *testing.T) {
	pol := testPolicy()
	pol.EnableContinuousChaining = false

	pool := []models.Order{
		{ID: "o1", PickupID: "r1"},
		{ID: "o2", PickupID: "r2"},
		{ID: "o3", PickupID: "r1"},
	}
	clusters := BuildClusters(pool, pol)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	// First-seen pickup_id comes first, insertion order kept inside.
	if clusters[0][0].ID != "o1" || clusters[0][1].ID != "o3" {
		t.Fatalf("r1 cluster out of order: %+v", clusters[0])
	}
	if clusters[1][0].ID != "o2" {
		t.Fatalf("r2 cluster wrong: %+v", clusters[1])
	}
}

func TestBuildClustersSplitsOversizedGroups(t *testing.T) {
	pol := testPolicy()
	pol.EnableContinuousChaining = false
	pol.MaxClusterCandidates = 2

	pool := make([]models.Order, 5)
	for i := range pool {
		pool[i] = models.Order{ID: string(rune('a' + i)), PickupID: "r1"}
	}
	clusters := BuildClusters(pool, pol)
	if len(clusters) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(clusters))
	}
	total := 0
	for _, c := range clusters {
		if len(c) > 2 {
			t.Fatalf("chunk exceeds cap: %d", len(c))
		}
		total += len(c)
	}
	if total != 5 {
		t.Fatalf("chunking lost orders: %d of 5", total)
	}
}
