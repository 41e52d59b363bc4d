package eta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/last-mile-dispatch/internal/models"
)

// OSRMMatrix serves pairwise travel times from an OSRM HTTP server.
// Prefetch pulls a full NxN table with one /table call and caches it, so the
// quadratic insertion search never talks to the network; a cache miss falls
// back to a single /route call.
type OSRMMatrix struct {
	Endpoint string
	Client   *http.Client

	mu    sync.RWMutex
	cache map[string]float64
}

func NewOSRMMatrix(endpoint string) *OSRMMatrix {
	return &OSRMMatrix{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   &http.Client{Timeout: 5 * time.Second},
		cache:    make(map[string]float64),
	}
}

// Prefetch fetches the full duration table for coords and stores every pair.
func (o *OSRMMatrix) Prefetch(ctx context.Context, coords []models.Coord) error {
	if len(coords) == 0 {
		return nil
	}
	url := fmt.Sprintf("%s/table/v1/driving/%s?annotations=duration", o.Endpoint, formatCoords(coords))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMatrixUnavailable, err)
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMatrixUnavailable, err)
	}
	defer resp.Body.Close()

	var out struct {
		Code      string       `json:"code"`
		Durations [][]*float64 `json:"durations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode table: %v", ErrMatrixUnavailable, err)
	}
	if out.Code != "Ok" || len(out.Durations) != len(coords) {
		return fmt.Errorf("%w: osrm table code=%q rows=%d", ErrMatrixUnavailable, out.Code, len(out.Durations))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for i, row := range out.Durations {
		if len(row) != len(coords) {
			continue
		}
		for j, d := range row {
			if d != nil {
				o.cache[pairKey(coords[i], coords[j])] = *d
			}
		}
	}
	return nil
}

// Time returns the cached duration for (a, b), falling back to one /route
// call when the pair was never prefetched. Unreachable pairs surface as
// ErrMatrixUnavailable.
func (o *OSRMMatrix) Time(a, b models.Coord) (float64, error) {
	if a == b {
		return 0, nil
	}
	o.mu.RLock()
	v, ok := o.cache[pairKey(a, b)]
	o.mu.RUnlock()
	if ok {
		return v, nil
	}

	url := fmt.Sprintf("%s/route/v1/driving/%.7f,%.7f;%.7f,%.7f?overview=false", o.Endpoint, a.Lon, a.Lat, b.Lon, b.Lat)
	resp, err := o.Client.Get(url)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMatrixUnavailable, err)
	}
	defer resp.Body.Close()

	var out struct {
		Code   string `json:"code"`
		Routes []struct {
			Duration float64 `json:"duration"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode route: %v", ErrMatrixUnavailable, err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return 0, fmt.Errorf("%w: osrm no route: %s", ErrMatrixUnavailable, out.Code)
	}

	d := out.Routes[0].Duration
	o.mu.Lock()
	o.cache[pairKey(a, b)] = d
	o.mu.Unlock()
	return d, nil
}

// OSRM wants lon,lat;lon,lat;...
func formatCoords(coords []models.Coord) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = fmt.Sprintf("%.7f,%.7f", c.Lon, c.Lat)
	}
	return strings.Join(parts, ";")
}
