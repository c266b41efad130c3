// Package types holds small value types shared across modules.
package types

// ID is an opaque entity identifier (job, driver, customer, notification).
type ID string

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Role identifies the kind of actor behind a request or notification target.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleDriver     Role = "driver"
	RoleDispatcher Role = "dispatcher"
	RoleAdmin      Role = "admin"
)
