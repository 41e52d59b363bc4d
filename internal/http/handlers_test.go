package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/last-mile-dispatch/internal/dispatch"
	"github.com/example/last-mile-dispatch/internal/eta"
	"github.com/example/last-mile-dispatch/internal/geo"
	"github.com/example/last-mile-dispatch/internal/horizon"
	"github.com/example/last-mile-dispatch/internal/lock"
	"github.com/example/last-mile-dispatch/internal/models"
	"github.com/example/last-mile-dispatch/internal/policy"
	"github.com/example/last-mile-dispatch/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	matrix := eta.ManhattanMatrix{SpeedMps: 10}
	queue := horizon.NewQueue(store, matrix, policy.Default(), logger)
	wsreg := dispatch.NewWSRegistry()
	d := dispatch.NewDispatcher(lock.NewMemoryLock(), &dispatch.FanoutPush{WS: wsreg}, store, matrix, logger)
	return NewServer(queue, d, store, geo.NewIndex(), nil, wsreg, logger), store
}

func postJSON(t *testing.T, srv http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func TestOrderWebhookAcceptsAndPersists(t *testing.T) {
	srv, store := newTestServer(t)

	rr := postJSON(t, srv, "/orders/webhook", map[string]any{
		"order_id":      "o1",
		"restaurant_id": "r1",
		"pickup_lat":    1.30,
		"pickup_lon":    103.85,
		"dropoff_lat":   1.31,
		"dropoff_lon":   103.86,
		"created_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if o, ok := store.GetOrder("o1"); !ok || o.Status != models.OrderRaw {
		t.Fatalf("order not persisted as RAW: %+v", o)
	}
	if srv.Horizon.Stats() != 1 {
		t.Fatalf("order not pooled, pool=%d", srv.Horizon.Stats())
	}
}

func TestOrderWebhookRejectsIdenticalCoords(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := postJSON(t, srv, "/orders/webhook", map[string]any{
		"order_id":    "o1",
		"pickup_lat":  1.30,
		"pickup_lon":  103.85,
		"dropoff_lat": 1.30,
		"dropoff_lon": 103.85,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestOrderWebhookRejectsBadTimestamp(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := postJSON(t, srv, "/orders/webhook", map[string]any{
		"order_id":    "o1",
		"pickup_lat":  1.30,
		"pickup_lon":  103.85,
		"dropoff_lat": 1.31,
		"dropoff_lon": 103.86,
		"created_at":  "yesterday",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestJobAcceptWinnerThenConflict(t *testing.T) {
	srv, store := newTestServer(t)

	o := models.Order{ID: "o1", Pickup: models.Coord{Lon: 0, Lat: 0}, Dropoff: models.Coord{Lon: 0, Lat: 0.01}}
	job, err := models.NewJob([]string{"o1"}, []models.Stop{models.PickupStop(o), models.DropoffStop(o)}, 100)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if err := store.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("save job: %v", err)
	}

	rr := postJSON(t, srv, "/jobs/"+job.ID+"/accept", map[string]string{"driver_id": "d1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("winner expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["driver_id"] != "d1" || resp["status"] != "ASSIGNED" {
		t.Fatalf("unexpected response: %v", resp)
	}

	rr = postJSON(t, srv, "/jobs/"+job.ID+"/accept", map[string]string{"driver_id": "d2"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("loser expected 409, got %d", rr.Code)
	}

	if assigned, ok := store.AssignedDriver(job.ID); !ok || assigned != "d1" {
		t.Fatalf("store claim %q, want d1", assigned)
	}
}

func TestJobAcceptUnknownJob(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := postJSON(t, srv, "/jobs/nope/accept", map[string]string{"driver_id": "d1"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestJobAcceptRequiresDriverID(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := postJSON(t, srv, "/jobs/j1/accept", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestDriverLocationUpdatesIndex(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := postJSON(t, srv, "/internal/driver/locations", models.Driver{
		ID:          "d1",
		Location:    models.Coord{Lon: 103.85, Lat: 1.30},
		MaxCapacity: 3,
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	near := srv.Geo.Nearby(models.Coord{Lon: 103.85, Lat: 1.30}, 5)
	if len(near) != 1 || near[0].ID != "d1" {
		t.Fatalf("driver not indexed: %+v", near)
	}
}
