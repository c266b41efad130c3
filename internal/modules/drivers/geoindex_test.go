package drivers

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"cargoline/internal/types"
)

func newTestGeoIndex(t *testing.T) *GeoIndex {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewGeoIndex(rdb)
}

func TestGeoIndex_NearbyOrdersByDistance(t *testing.T) {
	g := newTestGeoIndex(t)
	ctx := context.Background()

	require.NoError(t, g.Add(ctx, "d_near", types.Point{Lat: 25.0340, Lng: 121.5660}))
	require.NoError(t, g.Add(ctx, "d_mid", types.Point{Lat: 25.0420, Lng: 121.5654}))
	require.NoError(t, g.Add(ctx, "d_far", types.Point{Lat: 25.1330, Lng: 121.5654}))

	ids, err := g.Nearby(ctx, types.Point{Lat: 25.0330, Lng: 121.5654}, 5000)
	require.NoError(t, err)
	require.Equal(t, []types.ID{"d_near", "d_mid"}, ids)
}

func TestGeoIndex_AddOverwritesPosition(t *testing.T) {
	g := newTestGeoIndex(t)
	ctx := context.Background()

	require.NoError(t, g.Add(ctx, "d1", types.Point{Lat: 25.1330, Lng: 121.5654}))
	ids, err := g.Nearby(ctx, types.Point{Lat: 25.0330, Lng: 121.5654}, 1000)
	require.NoError(t, err)
	require.Empty(t, ids)

	// driver moved into range
	require.NoError(t, g.Add(ctx, "d1", types.Point{Lat: 25.0335, Lng: 121.5655}))
	ids, err = g.Nearby(ctx, types.Point{Lat: 25.0330, Lng: 121.5654}, 1000)
	require.NoError(t, err)
	require.Equal(t, []types.ID{"d1"}, ids)
}

func TestGeoIndex_Remove(t *testing.T) {
	g := newTestGeoIndex(t)
	ctx := context.Background()

	require.NoError(t, g.Add(ctx, "d1", types.Point{Lat: 25.0335, Lng: 121.5655}))
	require.NoError(t, g.Remove(ctx, "d1"))

	ids, err := g.Nearby(ctx, types.Point{Lat: 25.0330, Lng: 121.5654}, 5000)
	require.NoError(t, err)
	require.Empty(t, ids)

	// removing an unknown member is a no-op
	require.NoError(t, g.Remove(ctx, "ghost"))
}
