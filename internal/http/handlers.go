package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/last-mile-dispatch/internal/dispatch"
	"github.com/example/last-mile-dispatch/internal/geo"
	"github.com/example/last-mile-dispatch/internal/horizon"
	"github.com/example/last-mile-dispatch/internal/ingest"
	"github.com/example/last-mile-dispatch/internal/models"
	"github.com/example/last-mile-dispatch/internal/storage"
)

type Server struct {
	Horizon    *horizon.Queue
	Dispatcher *dispatch.Dispatcher
	Store      storage.Store
	Geo        geo.Geo
	Kafka      *ingest.KafkaProducer
	WSReg      *dispatch.WSRegistry

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(h *horizon.Queue, d *dispatch.Dispatcher, store storage.Store, g geo.Geo, kafka *ingest.KafkaProducer, wsreg *dispatch.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{
		Horizon:    h,
		Dispatcher: d,
		Store:      store,
		Geo:        g,
		Kafka:      kafka,
		WSReg:      wsreg,
		logger:     logger,
		mux:        mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/orders/webhook", s.handleOrderWebhook).Methods("POST")
	s.mux.HandleFunc("/jobs/{job_id}/accept", s.handleJobAccept).Methods("POST")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type orderWebhook struct {
	OrderID      string  `json:"order_id"`
	RestaurantID string  `json:"restaurant_id"`
	PickupLat    float64 `json:"pickup_lat"`
	PickupLon    float64 `json:"pickup_lon"`
	DropoffLat   float64 `json:"dropoff_lat"`
	DropoffLon   float64 `json:"dropoff_lon"`
	CreatedAt    string  `json:"created_at"`
}

func (s *Server) handleOrderWebhook(w http.ResponseWriter, r *http.Request) {
	var body orderWebhook
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.OrderID == "" {
		http.Error(w, "order_id required", http.StatusBadRequest)
		return
	}
	for _, v := range []float64{body.PickupLat, body.PickupLon, body.DropoffLat, body.DropoffLon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			http.Error(w, "coordinates must be finite", http.StatusBadRequest)
			return
		}
	}
	pickup := models.Coord{Lon: body.PickupLon, Lat: body.PickupLat}
	dropoff := models.Coord{Lon: body.DropoffLon, Lat: body.DropoffLat}
	if pickup == dropoff {
		http.Error(w, "pickup and dropoff must differ", http.StatusBadRequest)
		return
	}
	createdAt := time.Now().UTC()
	if body.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, body.CreatedAt)
		if err != nil {
			http.Error(w, "created_at must be RFC3339", http.StatusBadRequest)
			return
		}
		createdAt = t.UTC()
	}

	order := models.Order{
		ID:        body.OrderID,
		PickupID:  body.RestaurantID,
		Pickup:    pickup,
		Dropoff:   dropoff,
		CreatedAt: createdAt,
		Status:    models.OrderRaw,
	}
	if err := s.Horizon.EnqueueRaw(r.Context(), order); err != nil {
		http.Error(w, "enqueue failed", http.StatusInternalServerError)
		return
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishOrder(order); err != nil {
			s.logger.Warn("order event publish failed", "order_id", order.ID, "error", err)
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleJobAccept(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]
	var body struct {
		DriverID string `json:"driver_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}

	if _, found, err := s.Store.GetJob(r.Context(), jobID); err != nil {
		http.Error(w, "job lookup failed", http.StatusInternalServerError)
		return
	} else if !found {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}

	err := s.Dispatcher.ResolveDriverAcceptance(r.Context(), jobID, body.DriverID)
	switch {
	case errors.Is(err, dispatch.ErrAcceptanceLost):
		http.Error(w, "job already claimed", http.StatusConflict)
	case err != nil:
		http.Error(w, "acceptance failed", http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"job_id":    jobID,
			"driver_id": body.DriverID,
			"status":    "ASSIGNED",
		})
	}
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if d.Status == "" {
		d.Status = models.DriverAvailable
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishLocation(d); err != nil {
			s.logger.Warn("location publish failed", "driver_id", d.ID, "error", err)
		}
	}
	s.Geo.Upsert(d)
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(id, conn)
}
