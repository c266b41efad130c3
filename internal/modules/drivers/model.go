// Driver aggregate and status definitions.
package drivers

import (
	"time"

	"cargoline/internal/types"
)

type Status string

const (
	StatusAvailable       Status = "available"
	StatusBusy            Status = "busy"
	StatusOffline         Status = "offline"
	StatusBreak           Status = "break"
	StatusPendingApproval Status = "pending_approval"
	StatusSuspended       Status = "suspended"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOffline, StatusBreak,
		StatusPendingApproval, StatusSuspended:
		return true
	}
	return false
}

type VehicleType string

const (
	VehicleVan     VehicleType = "van"
	VehicleBoxVan  VehicleType = "box_van"
	VehicleFlatbed VehicleType = "flatbed"
	VehicleReefer  VehicleType = "reefer"
)

type Vehicle struct {
	Type       VehicleType `json:"type"`
	Plate      string      `json:"plate"`
	CapacityKg float64     `json:"capacity_kg"`
}

// Driver is a registry record. Drivers are never hard-deleted; deactivation
// happens by moving them to suspended or offline.
type Driver struct {
	ID      types.ID `json:"id"`
	Name    string   `json:"name"`
	Status  Status   `json:"status"`
	Vehicle Vehicle  `json:"vehicle"`

	LastPosition  *types.Point `json:"last_position,omitempty"`
	LastSeenAt    *time.Time   `json:"last_seen_at,omitempty"`
	RegisteredAt  time.Time    `json:"registered_at"`
	DeactivatedAt *time.Time   `json:"deactivated_at,omitempty"`
}

// Criteria filters eligibility queries. Status is fixed to available by the
// service; only the optional parts live here.
type Criteria struct {
	Near         *types.Point
	RadiusMeters float64
	VehicleType  VehicleType
	Limit        int
}

// Candidate is an eligible driver with its computed distance from the
// reference point (0 when no location filter was supplied).
type Candidate struct {
	Driver         Driver  `json:"driver"`
	DistanceMeters float64 `json:"distance_meters"`
	Rating         float64 `json:"rating"`
}
