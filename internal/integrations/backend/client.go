// Package backend defines the remote platform API the dispatch core talks
// to: job/driver mirroring, location forwarding, and role broadcasts.
package backend

import (
	"context"
	"errors"

	"cargoline/internal/modules/drivers"
	"cargoline/internal/modules/jobs"
	"cargoline/internal/modules/tracking"
	"cargoline/internal/types"
)

// ErrUnavailable marks transport-level failure: the backend could not be
// reached or answered with a server error. Callers with a fallback keep
// going; reads such as FetchDrivers retry with backoff.
var ErrUnavailable = errors.New("backend unavailable")

type Client interface {
	PushLocation(ctx context.Context, subjectID types.ID, sample tracking.Sample) error
	MirrorJob(ctx context.Context, j jobs.Job) error
	UpsertDriver(ctx context.Context, d drivers.Driver) error
	FetchDrivers(ctx context.Context) ([]drivers.Driver, error)
	Broadcast(ctx context.Context, roles []types.Role, title, body string, payload map[string]string) error
}
