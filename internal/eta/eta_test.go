package eta

import (
	"testing"
	"time"

	"github.com/example/last-mile-dispatch/internal/models"
)

func TestManhattanZeroDistance(t *testing.T) {
	m := ManhattanMatrix{SpeedMps: 10}
	c := models.Coord{Lon: 1, Lat: 1}
	d, err := m.Time(c, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestManhattanKnownDistance(t *testing.T) {
	m := ManhattanMatrix{SpeedMps: 10}
	a := models.Coord{Lon: 0, Lat: 0}
	b := models.Coord{Lon: 0, Lat: 0.01} // ~1113.2m of latitude
	d, err := m.Time(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 0.01 * 111320 / 10
	if diff := d - want; diff > 0.5 || diff < -0.5 {
		t.Fatalf("expected ~%f, got %f", want, d)
	}
}

func TestHaversineZero(t *testing.T) {
	c := models.Coord{Lon: 5, Lat: 5}
	if d := Haversine(c, c); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	a := models.Coord{Lon: 0, Lat: 0}
	b := models.Coord{Lon: 1, Lat: 1}

	c.Set(a, b, 42)
	if v, ok := c.Get(a, b); !ok || v != 42 {
		t.Fatalf("expected cached 42, got %f ok=%v", v, ok)
	}
	// Directionality matters: (b, a) is a different key.
	if _, ok := c.Get(b, a); ok {
		t.Fatal("reverse pair must miss")
	}

	time.Sleep(15 * time.Millisecond)
	if _, ok := c.Get(a, b); ok {
		t.Fatal("entry must expire")
	}
}
