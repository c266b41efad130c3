// Postgres-backed Store. Schema lives in migrations/.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cargoline/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, j *Job) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO jobs (
			id, job_type, status, status_version, priority,
			customer_id, driver_id,
			pickup_lat, pickup_lng, pickup_address,
			delivery_lat, delivery_lng, delivery_address,
			scheduled_at, estimated_minutes, distance_meters,
			cargo_description, cargo_weight_kg, cargo_fragile,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12, $13,
			$14, $15, $16,
			$17, $18, $19,
			$20
		)`,
		string(j.ID),
		string(j.Type),
		string(j.Status),
		j.StatusVersion,
		string(j.Priority),
		string(j.CustomerID),
		toStringPtr(j.DriverID),
		j.Pickup.Position.Lat, j.Pickup.Position.Lng, j.Pickup.Address,
		j.Delivery.Position.Lat, j.Delivery.Position.Lng, j.Delivery.Address,
		j.ScheduledAt,
		j.EstimatedMinutes,
		j.DistanceMeters,
		j.Cargo.Description, j.Cargo.WeightKg, j.Cargo.Fragile,
		j.CreatedAt,
	)
	return err
}

const jobColumns = `
	id, job_type, status, status_version, priority,
	customer_id, driver_id,
	pickup_lat, pickup_lng, pickup_address,
	delivery_lat, delivery_lng, delivery_address,
	scheduled_at, estimated_minutes, distance_meters,
	cargo_description, cargo_weight_kg, cargo_fragile,
	held_from, cancel_reason,
	created_at, assigned_at, delivered_at, cancelled_at`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Job, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE id = $1`, string(id),
	)
	j, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (s *PGStore) List(ctx context.Context, status *Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *PGStore) ApplyTransition(ctx context.Context, id types.ID, upd TransitionUpdate) (bool, error) {
	var heldFrom *string
	if upd.HeldFrom != nil {
		v := string(*upd.HeldFrom)
		heldFrom = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs
		SET status = $1,
			status_version = status_version + 1,
			driver_id = $2,
			held_from = $3,
			cancel_reason = $4,
			assigned_at = CASE WHEN $1 = 'assigned' THEN $5 ELSE assigned_at END,
			delivered_at = CASE WHEN $1 = 'delivered' THEN $5 ELSE delivered_at END,
			cancelled_at = CASE WHEN $1 = 'cancelled' THEN $5 ELSE cancelled_at END
		WHERE id = $6 AND status = $7 AND status_version = $8`,
		string(upd.To),
		toStringPtr(upd.DriverID),
		heldFrom,
		upd.CancelReason,
		upd.At,
		string(id),
		string(upd.From),
		upd.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// Either the CAS guard failed or the row is gone.
		var exists bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, string(id),
		).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	var lat, lng *float64
	if e.Location != nil {
		lat, lng = &e.Location.Lat, &e.Location.Lng
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO job_state_events (
			job_id, kind, from_status, to_status,
			customer_id, driver_id, lat, lng, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(e.JobID),
		string(e.Kind),
		string(e.FromStatus),
		string(e.ToStatus),
		string(e.CustomerID),
		toStringPtr(e.DriverID),
		lat, lng,
		e.At,
	)
	return err
}

func (s *PGStore) ListEvents(ctx context.Context, jobID types.ID) ([]*Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT job_id, kind, from_status, to_status,
		       customer_id, driver_id, lat, lng, recorded_at
		FROM job_state_events
		WHERE job_id = $1
		ORDER BY seq`, string(jobID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		var driverID sql.NullString
		var lat, lng sql.NullFloat64
		err := rows.Scan(
			&e.JobID, &e.Kind, &e.FromStatus, &e.ToStatus,
			&e.CustomerID, &driverID, &lat, &lng, &e.At,
		)
		if err != nil {
			return nil, err
		}
		if driverID.Valid {
			d := types.ID(driverID.String)
			e.DriverID = &d
		}
		if lat.Valid && lng.Valid {
			e.Location = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PGStore) HasActiveJobForDriver(ctx context.Context, driverID types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM jobs
			WHERE driver_id = $1 AND status NOT IN ('delivered', 'cancelled')
		)`, string(driverID),
	).Scan(&exists)
	return exists, err
}

func scanJob(scan func(dest ...any) error) (*Job, error) {
	var j Job
	var driverID, heldFrom, cancelReason sql.NullString
	var scheduledAt, assignedAt, deliveredAt, cancelledAt sql.NullTime

	err := scan(
		&j.ID, &j.Type, &j.Status, &j.StatusVersion, &j.Priority,
		&j.CustomerID, &driverID,
		&j.Pickup.Position.Lat, &j.Pickup.Position.Lng, &j.Pickup.Address,
		&j.Delivery.Position.Lat, &j.Delivery.Position.Lng, &j.Delivery.Address,
		&scheduledAt, &j.EstimatedMinutes, &j.DistanceMeters,
		&j.Cargo.Description, &j.Cargo.WeightKg, &j.Cargo.Fragile,
		&heldFrom, &cancelReason,
		&j.CreatedAt, &assignedAt, &deliveredAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		j.DriverID = &d
	}
	if heldFrom.Valid {
		h := Status(heldFrom.String)
		j.HeldFrom = &h
	}
	if cancelReason.Valid {
		j.CancelReason = &cancelReason.String
	}
	j.ScheduledAt = toTimePtr(scheduledAt)
	j.AssignedAt = toTimePtr(assignedAt)
	j.DeliveredAt = toTimePtr(deliveredAt)
	j.CancelledAt = toTimePtr(cancelledAt)
	return &j, nil
}

func toStringPtr(id *types.ID) *string {
	if id == nil {
		return nil
	}
	v := string(*id)
	return &v
}

func toTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
