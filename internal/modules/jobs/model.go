// Job aggregate and status definitions.
package jobs

import (
	"time"

	"cargoline/internal/types"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusAssigned        Status = "assigned"
	StatusEnRoutePickup   Status = "en_route_pickup"
	StatusArrivedPickup   Status = "arrived_pickup"
	StatusPickedUp        Status = "picked_up"
	StatusEnRouteDelivery Status = "en_route_delivery"
	StatusArrivedDelivery Status = "arrived_delivery"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
	StatusOnHold          Status = "on_hold"
)

type JobType string

const (
	TypeDelivery  JobType = "delivery"
	TypePickup    JobType = "pickup"
	TypeEmergency JobType = "emergency"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// AllowedTransitions represents the job state flow as code. on_hold resumes
// to the state recorded in HeldFrom; that edge is validated in the service
// because it is not static.
var AllowedTransitions = map[Status][]Status{
	StatusPending:         {StatusAssigned, StatusOnHold, StatusCancelled},
	StatusAssigned:        {StatusEnRoutePickup, StatusPending, StatusOnHold, StatusCancelled},
	StatusEnRoutePickup:   {StatusArrivedPickup, StatusOnHold, StatusCancelled},
	StatusArrivedPickup:   {StatusPickedUp, StatusOnHold, StatusCancelled},
	StatusPickedUp:        {StatusEnRouteDelivery, StatusOnHold, StatusCancelled},
	StatusEnRouteDelivery: {StatusArrivedDelivery, StatusOnHold, StatusCancelled},
	StatusArrivedDelivery: {StatusDelivered, StatusOnHold, StatusCancelled},
	StatusOnHold:          {StatusCancelled},
}

// ValidStatus reports whether s is a known job status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAssigned, StatusEnRoutePickup, StatusArrivedPickup,
		StatusPickedUp, StatusEnRouteDelivery, StatusArrivedDelivery,
		StatusDelivered, StatusCancelled, StatusOnHold:
		return true
	}
	return false
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further mutation is permitted.
func Terminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// boundDriverStatuses is the set of states in which a job carries a driver
// reference. cancelled is deliberately absent: cancelling clears the binding.
var boundDriverStatuses = map[Status]struct{}{
	StatusAssigned:        {},
	StatusEnRoutePickup:   {},
	StatusArrivedPickup:   {},
	StatusPickedUp:        {},
	StatusEnRouteDelivery: {},
	StatusArrivedDelivery: {},
	StatusDelivered:       {},
}

// BindsDriver reports whether a job in status s carries a driver reference.
func BindsDriver(s Status) bool {
	_, ok := boundDriverStatuses[s]
	return ok
}

// Stop is one end of a job: a coordinate plus a free-text address.
type Stop struct {
	Position types.Point `json:"position"`
	Address  string      `json:"address"`
}

type Cargo struct {
	Description string  `json:"description"`
	WeightKg    float64 `json:"weight_kg"`
	Fragile     bool    `json:"fragile"`
}

type Job struct {
	ID            types.ID `json:"id"`
	Type          JobType  `json:"type"`
	Status        Status   `json:"status"`
	StatusVersion int      `json:"status_version"`
	Priority      Priority `json:"priority"`

	CustomerID types.ID  `json:"customer_id"`
	DriverID   *types.ID `json:"driver_id,omitempty"`

	Pickup   Stop `json:"pickup"`
	Delivery Stop `json:"delivery"`

	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	DistanceMeters   float64    `json:"distance_meters"`
	Cargo            Cargo      `json:"cargo"`

	// HeldFrom records which state an on_hold job resumes to.
	HeldFrom     *Status `json:"held_from,omitempty"`
	CancelReason *string `json:"cancel_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// EventKind tags a transition event for the notification dispatcher and the
// event stream. Plain walks along the happy path are tagged with the target
// status; assignment, unassignment, creation, and cancellation get their own
// tags because they address different audiences.
type EventKind string

const (
	EventJobCreated    EventKind = "new_job_created"
	EventJobAssigned   EventKind = "job_assigned"
	EventJobUnassigned EventKind = "job_unassigned"
	EventJobCancelled  EventKind = "job_cancelled"
)

// Event is emitted on every successful transition, in per-job order.
type Event struct {
	JobID      types.ID     `json:"job_id"`
	Kind       EventKind    `json:"kind"`
	FromStatus Status       `json:"from_status"`
	ToStatus   Status       `json:"to_status"`
	CustomerID types.ID     `json:"customer_id"`
	DriverID   *types.ID    `json:"driver_id,omitempty"`
	Location   *types.Point `json:"location,omitempty"`
	At         time.Time    `json:"at"`
}
