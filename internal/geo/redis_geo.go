package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/last-mile-dispatch/internal/models"
)

// RedisGeo implements Geo on Redis GEO commands, with driver metadata kept in
// a hash beside the geo set. The Kafka consumer writes here; the dispatcher
// reads snapshots.
type RedisGeo struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisGeo(client *redis.Client, key string) *RedisGeo {
	return &RedisGeo{client: client, key: key, ctx: context.Background()}
}

func (r *RedisGeo) Upsert(d models.Driver) {
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{
		Longitude: d.Location.Lon,
		Latitude:  d.Location.Lat,
		Name:      d.ID,
	}).Result()
	_ = r.client.HSet(r.ctx, metaKey(d.ID), map[string]interface{}{
		"status":       string(d.Status),
		"max_capacity": strconv.Itoa(d.MaxCapacity),
		"push_token":   d.PushToken,
		"updated":      time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisGeo) Nearby(pickup models.Coord, limit int) []models.Driver {
	res, err := r.client.GeoRadius(r.ctx, r.key, pickup.Lon, pickup.Lat, &redis.GeoRadiusQuery{
		Radius: 10000, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil
	}
	out := make([]models.Driver, 0, len(res))
	for _, g := range res {
		d := models.Driver{ID: g.Name, Status: models.DriverOffline}
		d.Location.Lon = g.Longitude
		d.Location.Lat = g.Latitude
		if m, err := r.client.HGetAll(r.ctx, metaKey(g.Name)).Result(); err == nil {
			if v, ok := m["status"]; ok {
				d.Status = models.DriverStatus(v)
			}
			if v, ok := m["max_capacity"]; ok {
				if n, err := strconv.Atoi(v); err == nil {
					d.MaxCapacity = n
				}
			}
			d.PushToken = m["push_token"]
		}
		out = append(out, d)
	}
	return out
}

func metaKey(id string) string { return "driver:meta:" + id }
