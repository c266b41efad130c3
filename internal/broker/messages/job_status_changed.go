package messages

import "time"

// JobStatusChanged is published to the job.status.changed topic on every
// successful job transition, keyed by job ID so partition order matches
// per-job order.
type JobStatusChanged struct {
	JobID      string    `json:"job_id"`
	Kind       string    `json:"kind"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	CustomerID string    `json:"customer_id"`
	DriverID   *string   `json:"driver_id,omitempty"`
	Lat        *float64  `json:"lat,omitempty"`
	Lng        *float64  `json:"lng,omitempty"`
	At         time.Time `json:"at"`
}
