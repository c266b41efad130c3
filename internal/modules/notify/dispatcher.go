// Dispatcher turns job transition events into notifications. Routing and
// storage run inline on the emitting call (per-job order is the emission
// order and nothing client-visible can be lost); delivery is handed to a
// single worker draining a buffered channel.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cargoline/internal/modules/jobs"
	"cargoline/internal/types"
)

// Pusher delivers one notification to one recipient.
type Pusher interface {
	Send(ctx context.Context, recipient types.ID, title, body string, payload map[string]string) error
}

// Broadcaster fans a notification out to every user holding one of the
// given roles. The backend collaborator implements it.
type Broadcaster interface {
	Broadcast(ctx context.Context, roles []types.Role, title, body string, payload map[string]string) error
}

type Dispatcher struct {
	store       *Store
	push        Pusher
	broadcaster Broadcaster
	log         *zap.Logger

	pushTimeout time.Duration
	deliveries  chan Notification
}

func NewDispatcher(store *Store, push Pusher, broadcaster Broadcaster, log *zap.Logger, pushTimeout time.Duration) *Dispatcher {
	if pushTimeout <= 0 {
		pushTimeout = 5 * time.Second
	}
	return &Dispatcher{
		store:       store,
		push:        push,
		broadcaster: broadcaster,
		log:         log,
		pushTimeout: pushTimeout,
		deliveries:  make(chan Notification, 256),
	}
}

// JobEvent routes a transition event and stores the resulting notifications
// before queueing their delivery. Called while the job engine holds the
// per-job lock, so only the in-memory route+append happens here; when the
// delivery buffer is full only the push is dropped (and logged), the stored
// notification survives.
func (d *Dispatcher) JobEvent(e jobs.Event) {
	for _, n := range Route(e) {
		d.store.Append(n)
		select {
		case d.deliveries <- n:
		default:
			d.log.Warn("delivery queue full, dropping push",
				zap.String("notification_id", string(n.ID)),
				zap.String("job_id", string(e.JobID)))
		}
	}
}

// Run drains the delivery queue until ctx is cancelled. Call it once, in
// its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.deliveries:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	ctx, cancel := context.WithTimeout(ctx, d.pushTimeout)
	defer cancel()

	var err error
	switch {
	case n.Recipient != nil && d.push != nil:
		err = d.push.Send(ctx, *n.Recipient, n.Title, n.Body, n.Payload)
	case len(n.Roles) > 0 && d.broadcaster != nil:
		err = d.broadcaster.Broadcast(ctx, n.Roles, n.Title, n.Body, n.Payload)
	}
	if err != nil {
		d.log.Warn("notification delivery failed",
			zap.String("notification_id", string(n.ID)),
			zap.String("title", n.Title),
			zap.Error(err))
	}
}
