package batching

import (
	"context"
	"testing"

	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/models"
)

// Coordinates in the batching tests sit near the equator so a degree of
// longitude and latitude both come out to ~111.32 km under the Manhattan mock.
var mockMatrix = eta.ManhattanMatrix{SpeedMps: 10}

func coord(lon, lat float64) models.Coord { return models.Coord{Lon: lon, Lat: lat} }

func TestEvaluateInsertionEmptySequence(t *testing.T) {
	o := models.Order{ID: "o1", Pickup: coord(0, 0), Dropoff: coord(0, 0.01)}
	res := EvaluateInsertion(nil, o, mockMatrix)
	if !res.IsFeasible {
		t.Fatal("trivial insertion must be feasible")
	}
	if len(res.BestStops) != 2 || res.BestStops[0].Kind != models.StopPickup || res.BestStops[1].Kind != models.StopDropoff {
		t.Fatalf("expected [P D], got %+v", res.BestStops)
	}
	if res.BestTimeSeconds <= 0 {
		t.Fatalf("expected positive route time, got %f", res.BestTimeSeconds)
	}
}

func TestEvaluateInsertionChainsSequentialRoutes(t *testing.T) {
	// O2 starts 50m past O1's dropoff and continues in the same direction;
	// the cheapest legal insertion is to append it: P1 D1 P2 D2.
	o1 := models.Order{ID: "o1", Pickup: coord(0, 0), Dropoff: coord(0, 0.01)}
	o2 := models.Order{ID: "o2", Pickup: coord(0, 0.010449), Dropoff: coord(0, 0.02)}

	existing := []models.Stop{models.PickupStop(o1), models.DropoffStop(o1)}
	res := EvaluateInsertion(existing, o2, mockMatrix)
	if !res.IsFeasible {
		t.Fatal("expected feasible insertion")
	}
	wantOrder := []string{"o1", "o1", "o2", "o2"}
	wantKind := []models.StopKind{models.StopPickup, models.StopDropoff, models.StopPickup, models.StopDropoff}
	for i, s := range res.BestStops {
		if s.OrderID != wantOrder[i] || s.Kind != wantKind[i] {
			t.Fatalf("stop %d: got %s/%s, want %s/%s", i, s.OrderID, s.Kind, wantOrder[i], wantKind[i])
		}
	}
}

func TestEvaluateInsertionPreservesPrecedence(t *testing.T) {
	o1 := models.Order{ID: "o1", Pickup: coord(0, 0), Dropoff: coord(0, 0.02)}
	o2 := models.Order{ID: "o2", Pickup: coord(0, 0.005), Dropoff: coord(0, 0.015)}

	existing := []models.Stop{models.PickupStop(o1), models.DropoffStop(o1)}
	res := EvaluateInsertion(existing, o2, mockMatrix)
	if !res.IsFeasible {
		t.Fatal("expected feasible insertion")
	}
	if len(res.BestStops) != 4 {
		t.Fatalf("expected 4 stops, got %d", len(res.BestStops))
	}
	assertStopInvariant(t, res.BestStops)

	// The nested corridor makes P1 P2 D2 D1 strictly cheapest: no backtracking.
	want := 0.02 * 111320 / 10
	if diff := res.BestTimeSeconds - want; diff > 1 || diff < -1 {
		t.Fatalf("expected ~%f seconds, got %f", want, res.BestTimeSeconds)
	}
}

func TestEvaluateInsertionSkipsUnpriceablePairs(t *testing.T) {
	bad := coord(0, 0.005)
	m := failMatrix{inner: mockMatrix, deny: bad}

	o1 := models.Order{ID: "o1", Pickup: coord(0, 0), Dropoff: coord(0, 0.02)}
	o2 := models.Order{ID: "o2", Pickup: bad, Dropoff: coord(0, 0.015)}

	existing := []models.Stop{models.PickupStop(o1), models.DropoffStop(o1)}
	res := EvaluateInsertion(existing, o2, m)
	if res.IsFeasible {
		t.Fatal("every candidate touches the denied coord; insertion must be infeasible")
	}
}

// failMatrix refuses to price any leg touching the denied coordinate.
type failMatrix struct {
	inner eta.Matrix
	deny  models.Coord
}

func (f failMatrix) Time(a, b models.Coord) (float64, error) {
	if a == f.deny || b == f.deny {
		return 0, eta.ErrMatrixUnavailable
	}
	return f.inner.Time(a, b)
}

func (f failMatrix) Prefetch(ctx context.Context, coords []models.Coord) error { return nil }

func assertStopInvariant(t *testing.T, stops []models.Stop) {
	t.Helper()
	pickupAt := map[string]int{}
	dropoffAt := map[string]int{}
	for i, s := range stops {
		switch s.Kind {
		case models.StopPickup:
			if _, dup := pickupAt[s.OrderID]; dup {
				t.Fatalf("duplicate pickup for %s", s.OrderID)
			}
			pickupAt[s.OrderID] = i
		case models.StopDropoff:
			if _, dup := dropoffAt[s.OrderID]; dup {
				t.Fatalf("duplicate dropoff for %s", s.OrderID)
			}
			dropoffAt[s.OrderID] = i
		}
	}
	for id, p := range pickupAt {
		d, ok := dropoffAt[id]
		if !ok {
			t.Fatalf("no dropoff for %s", id)
		}
		if p > d {
			t.Fatalf("dropoff before pickup for %s", id)
		}
	}
}
