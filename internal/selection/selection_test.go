package selection

import (
	"testing"

	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/models"
	"github.com/example/last-mile-dispatch/internal/policy"
)

var mockMatrix = eta.ManhattanMatrix{SpeedMps: 10}

func testJob(t *testing.T, orderCount int) models.Job {
	t.Helper()
	var ids []string
	var stops []models.Stop
	for i := 0; i < orderCount; i++ {
		o := models.Order{
			ID:      string(rune('a' + i)),
			Pickup:  models.Coord{Lon: 0, Lat: 0},
			Dropoff: models.Coord{Lon: 0, Lat: 0.01 + float64(i)*0.001},
		}
		ids = append(ids, o.ID)
		stops = append([]models.Stop{models.PickupStop(o)}, stops...)
		stops = append(stops, models.DropoffStop(o))
	}
	job, err := models.NewJob(ids, stops, 100)
	if err != nil {
		t.Fatalf("job construction: %v", err)
	}
	return job
}

func driverAt(id string, lat float64, status models.DriverStatus, capacity int) models.Driver {
	return models.Driver{ID: id, Location: models.Coord{Lon: 0, Lat: lat}, Status: status, MaxCapacity: capacity}
}

func TestBuildDriverWavesOrdersByTravelTime(t *testing.T) {
	pol := policy.Default()
	pol.WaveSize = 2
	pol.WaveCount = 3

	drivers := []models.Driver{
		driverAt("far", 0.05, models.DriverAvailable, 3),
		driverAt("near", 0.001, models.DriverAvailable, 3),
		driverAt("mid", 0.01, models.DriverTransitToCollect, 3),
		driverAt("midder", 0.02, models.DriverAvailable, 3),
		driverAt("farthest", 0.09, models.DriverAvailable, 3),
	}

	waves := BuildDriverWaves(testJob(t, 1), drivers, mockMatrix, pol)
	if len(waves) != 3 {
		t.Fatalf("expected %d waves, got %d", pol.WaveCount, len(waves))
	}
	if waves[0][0] != "near" || waves[0][1] != "mid" {
		t.Fatalf("wave 0 wrong: %v", waves[0])
	}
	if waves[1][0] != "midder" || waves[1][1] != "far" {
		t.Fatalf("wave 1 wrong: %v", waves[1])
	}
	if len(waves[2]) != 1 || waves[2][0] != "farthest" {
		t.Fatalf("wave 2 wrong: %v", waves[2])
	}
}

func TestBuildDriverWavesExcludesIneligible(t *testing.T) {
	pol := policy.Default()
	pol.WaveSize = 5
	pol.WaveCount = 2

	drivers := []models.Driver{
		driverAt("ok", 0.001, models.DriverAvailable, 3),
		driverAt("offline", 0.001, models.DriverOffline, 3),
		driverAt("paused", 0.001, models.DriverPaused, 3),
		driverAt("dropping", 0.001, models.DriverTransitToDropoff, 3),
		driverAt("full", 0.001, models.DriverAvailable, 1),
	}

	// Two-order job: "full" lacks capacity, the rest are in the wrong state.
	waves := BuildDriverWaves(testJob(t, 2), drivers, mockMatrix, pol)
	if len(waves[0]) != 1 || waves[0][0] != "ok" {
		t.Fatalf("expected only ok in wave 0, got %v", waves[0])
	}
}

func TestBuildDriverWavesTieBreaksOnID(t *testing.T) {
	pol := policy.Default()
	pol.WaveSize = 3
	pol.WaveCount = 1

	drivers := []models.Driver{
		driverAt("b", 0.01, models.DriverAvailable, 3),
		driverAt("a", 0.01, models.DriverAvailable, 3),
		driverAt("c", 0.01, models.DriverAvailable, 3),
	}
	waves := BuildDriverWaves(testJob(t, 1), drivers, mockMatrix, pol)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if waves[0][i] != id {
			t.Fatalf("wave order %v, want %v", waves[0], want)
		}
	}
}

func TestBuildDriverWavesPadsEmptyWaves(t *testing.T) {
	pol := policy.Default()
	pol.WaveSize = 2
	pol.WaveCount = 5

	drivers := []models.Driver{driverAt("only", 0.001, models.DriverAvailable, 3)}
	waves := BuildDriverWaves(testJob(t, 1), drivers, mockMatrix, pol)
	if len(waves) != 5 {
		t.Fatalf("expected 5 waves, got %d", len(waves))
	}
	if len(waves[0]) != 1 {
		t.Fatalf("wave 0 should hold the only driver, got %v", waves[0])
	}
	for i := 1; i < 5; i++ {
		if len(waves[i]) != 0 {
			t.Fatalf("wave %d should be empty, got %v", i, waves[i])
		}
	}
}
