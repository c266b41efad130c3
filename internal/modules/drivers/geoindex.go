// Redis GEO index of available drivers, used to prefilter proximity queries.
package drivers

import (
	"context"

	"github.com/redis/go-redis/v9"

	"cargoline/internal/types"
)

const driverGeoKey = "dispatch:drivers:geo"

type GeoIndex struct {
	redis *redis.Client
}

func NewGeoIndex(rdb *redis.Client) *GeoIndex {
	return &GeoIndex{redis: rdb}
}

func (g *GeoIndex) Add(ctx context.Context, id types.ID, pos types.Point) error {
	return g.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

func (g *GeoIndex) Remove(ctx context.Context, id types.ID) error {
	return g.redis.ZRem(ctx, driverGeoKey, string(id)).Err()
}

// Nearby returns driver IDs within radiusMeters of p, closest first.
func (g *GeoIndex) Nearby(ctx context.Context, p types.Point, radiusMeters float64) ([]types.ID, error) {
	results, err := g.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusMeters,
		RadiusUnit: "m",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
