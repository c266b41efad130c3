// In-memory backend double: records everything it receives and answers
// FetchDrivers from a seedable roster. Used in tests and in `fake` mode when
// no real backend is configured.
package fake

import (
	"context"
	"sync"

	"cargoline/internal/modules/drivers"
	"cargoline/internal/modules/jobs"
	"cargoline/internal/modules/tracking"
	"cargoline/internal/types"
)

type LocationRecord struct {
	SubjectID types.ID
	Sample    tracking.Sample
}

type BroadcastRecord struct {
	Roles   []types.Role
	Title   string
	Body    string
	Payload map[string]string
}

type Client struct {
	mu sync.Mutex

	Roster []drivers.Driver

	Locations  []LocationRecord
	Jobs       []jobs.Job
	Drivers    []drivers.Driver
	Broadcasts []BroadcastRecord

	// Err, when set, is returned by every call.
	Err error
}

func New() *Client { return &Client{} }

func (c *Client) PushLocation(ctx context.Context, subjectID types.ID, sample tracking.Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Locations = append(c.Locations, LocationRecord{SubjectID: subjectID, Sample: sample})
	return nil
}

func (c *Client) MirrorJob(ctx context.Context, j jobs.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Jobs = append(c.Jobs, j)
	return nil
}

func (c *Client) UpsertDriver(ctx context.Context, d drivers.Driver) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Drivers = append(c.Drivers, d)
	return nil
}

func (c *Client) FetchDrivers(ctx context.Context) ([]drivers.Driver, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]drivers.Driver, len(c.Roster))
	copy(out, c.Roster)
	return out, nil
}

func (c *Client) Broadcast(ctx context.Context, roles []types.Role, title, body string, payload map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Broadcasts = append(c.Broadcasts, BroadcastRecord{
		Roles: append([]types.Role(nil), roles...), Title: title, Body: body, Payload: payload,
	})
	return nil
}
