package notify

import (
	"time"

	"cargoline/internal/modules/jobs"
	"cargoline/internal/types"
)

// Notification is addressed either to a single recipient or to a set of
// roles (broadcast); exactly one of Recipient/Roles is set.
type Notification struct {
	ID      types.ID          `json:"id"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Payload map[string]string `json:"payload"`

	Recipient *types.ID    `json:"recipient,omitempty"`
	Roles     []types.Role `json:"roles,omitempty"`

	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type audience int

const (
	toDriver audience = iota
	toCustomer
	toRoles
)

type rule struct {
	audience audience
	roles    []types.Role
	title    string
	body     string
}

// routing maps a transition event tag to who gets told and what the message
// says. Tags without a row produce nothing.
var routing = map[jobs.EventKind]rule{
	jobs.EventJobCreated: {
		audience: toRoles,
		roles:    []types.Role{types.RoleDispatcher, types.RoleAdmin},
		title:    "New job",
		body:     "A new job is waiting for assignment.",
	},
	jobs.EventJobAssigned: {
		audience: toDriver,
		title:    "Job assigned",
		body:     "You have been assigned a new job.",
	},
	jobs.EventJobUnassigned: {
		audience: toDriver,
		title:    "Job unassigned",
		body:     "A job has been taken off your schedule.",
	},
	jobs.EventKind(jobs.StatusEnRoutePickup): {
		audience: toCustomer,
		title:    "Driver en route",
		body:     "Your driver is on the way to the pickup point.",
	},
	jobs.EventKind(jobs.StatusArrivedPickup): {
		audience: toCustomer,
		title:    "Driver arrived",
		body:     "Your driver has arrived at the pickup point.",
	},
	jobs.EventKind(jobs.StatusDelivered): {
		audience: toCustomer,
		title:    "Delivered",
		body:     "Your cargo has been delivered.",
	},
	jobs.EventJobCancelled: {
		audience: toCustomer,
		title:    "Job cancelled",
		body:     "Your job has been cancelled.",
	},
}

// Route maps one transition event to zero or more notifications. Pure; no
// delivery happens here.
func Route(e jobs.Event) []Notification {
	r, ok := routing[e.Kind]
	if !ok {
		return nil
	}

	n := Notification{
		ID:    newID(),
		Title: r.title,
		Body:  r.body,
		Payload: map[string]string{
			"type":   string(e.Kind),
			"job_id": string(e.JobID),
			"status": string(e.ToStatus),
		},
		CreatedAt: e.At,
	}

	switch r.audience {
	case toDriver:
		if e.DriverID == nil {
			return nil
		}
		id := *e.DriverID
		n.Recipient = &id
	case toCustomer:
		id := e.CustomerID
		n.Recipient = &id
	case toRoles:
		n.Roles = append([]types.Role(nil), r.roles...)
	}
	return []Notification{n}
}
