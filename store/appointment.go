package store

import (
	"context"

	"github.com/pkg/errors"
)

// ErrAppointmentOverlap is returned by drivers whose schema rejects two
// overlapping appointments of the same customer at write time.
var ErrAppointmentOverlap = errors.New("appointment overlaps an existing appointment")

// Appointment is the object representing an appointment.
// StartTs and EndTs are Unix seconds; the interval is half-open [StartTs, EndTs).
type Appointment struct {
	ID          int32
	Title       string
	Description string
	Location    string
	Type        string
	StartTs     int64
	EndTs       int64
	CustomerID  int32
	UserID      int32
	ContactID   int32
	CreatedTs   int64
	UpdatedTs   int64
}

// FindAppointment is the find condition for appointment.
type FindAppointment struct {
	ID         *int32
	CustomerID *int32
	UserID     *int32
	ContactID  *int32

	// StartTsFrom and StartTsTo bound start_ts inclusively.
	StartTsFrom *int64
	StartTsTo   *int64

	// Pagination
	Limit  *int
	Offset *int
}

// FindOverlappingAppointment selects the appointments of a customer whose
// interval intersects [StartTs, EndTs), optionally excluding one appointment.
type FindOverlappingAppointment struct {
	CustomerID int32
	StartTs    int64
	EndTs      int64
	ExcludeID  *int32
}

// UpdateAppointment is the update request for appointment.
type UpdateAppointment struct {
	ID          int32
	UpdatedTs   *int64
	Title       *string
	Description *string
	Location    *string
	Type        *string
	StartTs     *int64
	EndTs       *int64
	CustomerID  *int32
	UserID      *int32
	ContactID   *int32
}

// DeleteAppointment is the delete request for appointment.
type DeleteAppointment struct {
	ID int32
}

// CreateAppointment creates a new appointment and returns it with the assigned ID.
func (s *Store) CreateAppointment(ctx context.Context, create *Appointment) (*Appointment, error) {
	return s.driver.CreateAppointment(ctx, create)
}

// ListAppointments lists appointments ordered by start time.
func (s *Store) ListAppointments(ctx context.Context, find *FindAppointment) ([]*Appointment, error) {
	return s.driver.ListAppointments(ctx, find)
}

// GetAppointment gets an appointment. Returns nil if none matches.
func (s *Store) GetAppointment(ctx context.Context, find *FindAppointment) (*Appointment, error) {
	list, err := s.driver.ListAppointments(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// CountAppointments counts appointments matching find. Pagination is ignored.
func (s *Store) CountAppointments(ctx context.Context, find *FindAppointment) (int, error) {
	return s.driver.CountAppointments(ctx, find)
}

// CountOverlappingAppointments counts the customer's appointments intersecting the interval.
func (s *Store) CountOverlappingAppointments(ctx context.Context, find *FindOverlappingAppointment) (int, error) {
	return s.driver.CountOverlappingAppointments(ctx, find)
}

// UpdateAppointment updates an appointment and returns the number of rows affected.
func (s *Store) UpdateAppointment(ctx context.Context, update *UpdateAppointment) (int64, error) {
	return s.driver.UpdateAppointment(ctx, update)
}

// DeleteAppointment deletes an appointment and returns the number of rows affected.
func (s *Store) DeleteAppointment(ctx context.Context, delete *DeleteAppointment) (int64, error) {
	return s.driver.DeleteAppointment(ctx, delete)
}

// Overlaps reports whether a and the half-open interval [startTs, endTs) intersect.
func (a *Appointment) Overlaps(startTs, endTs int64) bool {
	return startTs < a.EndTs && endTs > a.StartTs
}
