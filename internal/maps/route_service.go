// Route optimization via the Google Maps Directions API.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"cargoline/internal/types"
)

// RouteService asks Directions to reorder waypoints for the shortest drive.
// It implements the tracking route-optimizer contract: the returned slice is
// a permutation of destination indices.
type RouteService struct {
	client *maps.Client
}

func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

func (s *RouteService) OptimizeRoute(ctx context.Context, start types.Point, destinations []types.Point) ([]int, error) {
	if len(destinations) == 0 {
		return nil, nil
	}
	if len(destinations) == 1 {
		return []int{0}, nil
	}

	// All but the final destination become optimizable waypoints.
	last := destinations[len(destinations)-1]
	waypoints := make([]string, 0, len(destinations))
	waypoints = append(waypoints, "optimize:true")
	for _, d := range destinations[:len(destinations)-1] {
		waypoints = append(waypoints, formatPoint(d))
	}

	r := &maps.DirectionsRequest{
		Origin:      formatPoint(start),
		Destination: formatPoint(last),
		Waypoints:   waypoints,
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no route found")
	}

	order := routes[0].WaypointOrder
	out := make([]int, 0, len(destinations))
	out = append(out, order...)
	out = append(out, len(destinations)-1)
	return out, nil
}

func formatPoint(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
