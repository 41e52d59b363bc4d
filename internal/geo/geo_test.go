package geo

import (
	"testing"

	"github.com/example/last-mile-dispatch/internal/models"
)

func TestIndexNearbyOrdersAndFilters(t *testing.T) {
	g := NewIndex()
	g.Upsert(models.Driver{ID: "far", Location: models.Coord{Lon: 0, Lat: 0.05}, Status: models.DriverAvailable})
	g.Upsert(models.Driver{ID: "near", Location: models.Coord{Lon: 0, Lat: 0.01}, Status: models.DriverAvailable})
	g.Upsert(models.Driver{ID: "gone", Location: models.Coord{Lon: 0, Lat: 0.001}, Status: models.DriverOffline})

	out := g.Nearby(models.Coord{Lon: 0, Lat: 0}, 10)
	if len(out) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(out))
	}
	if out[0].ID != "near" || out[1].ID != "far" {
		t.Fatalf("wrong ordering: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestIndexNearbyHonorsLimit(t *testing.T) {
	g := NewIndex()
	g.Upsert(models.Driver{ID: "a", Location: models.Coord{Lon: 0, Lat: 0.01}, Status: models.DriverAvailable})
	g.Upsert(models.Driver{ID: "b", Location: models.Coord{Lon: 0, Lat: 0.02}, Status: models.DriverAvailable})

	out := g.Nearby(models.Coord{Lon: 0, Lat: 0}, 1)
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("expected just a, got %+v", out)
	}
}
