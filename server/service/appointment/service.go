// Package appointment validates and persists appointments.
//
// Every write goes through the same pipeline:
//   - field presence and time parsing of the local-zone input
//   - canonical ordering (end strictly after start)
//   - business hours in the reference zone, inclusive on both bounds
//   - overlap with the customer's other bookings, half-open intervals
//
// Writes for one customer are serialized in process. PostgreSQL additionally
// rejects overlaps with an exclusion constraint, which covers several
// instances sharing one database.
package appointment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hrygo/apptscheduler/plugin/events"
	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/server/timezone"
	"github.com/hrygo/apptscheduler/store"
)

// Store is the interface for store operations needed by the appointment service.
type Store interface {
	OverlapReader
	CreateAppointment(ctx context.Context, create *store.Appointment) (*store.Appointment, error)
	GetAppointment(ctx context.Context, find *store.FindAppointment) (*store.Appointment, error)
	ListAppointments(ctx context.Context, find *store.FindAppointment) ([]*store.Appointment, error)
	UpdateAppointment(ctx context.Context, update *store.UpdateAppointment) (int64, error)
	DeleteAppointment(ctx context.Context, delete *store.DeleteAppointment) (int64, error)

	GetCustomer(ctx context.Context, find *store.FindCustomer) (*store.Customer, error)
	ListUsers(ctx context.Context) ([]*store.User, error)
	ListContacts(ctx context.Context) ([]*store.Contact, error)
}

// Options configures the service. Zero business hours fall back to
// DefaultBusinessOpen and DefaultBusinessClose; a nil Publisher drops events.
type Options struct {
	Clock         *timezone.Clock
	BusinessOpen  time.Duration
	BusinessClose time.Duration
	Publisher     events.Publisher
}

type service struct {
	store     Store
	clock     *timezone.Clock
	hours     *BusinessHoursPolicy
	validator *Validator
	publisher events.Publisher
	locks     *customerLocks
}

// NewService creates a new appointment service.
func NewService(st Store, opts Options) Service {
	if opts.BusinessOpen == 0 && opts.BusinessClose == 0 {
		opts.BusinessOpen, opts.BusinessClose = DefaultBusinessOpen, DefaultBusinessClose
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	hours := NewBusinessHoursPolicy(opts.Clock, opts.BusinessOpen, opts.BusinessClose)
	return &service{
		store:     st,
		clock:     opts.Clock,
		hours:     hours,
		validator: NewValidator(opts.Clock, hours, NewOverlapDetector(st)),
		publisher: opts.Publisher,
		locks:     newCustomerLocks(),
	}
}

func (s *service) Hours() *BusinessHoursPolicy {
	return s.hours
}

func (s *service) Clock() *timezone.Clock {
	return s.clock
}

func (s *service) Validate(ctx context.Context, id *int32, raw RawFields) (*NormalizedAppointment, error) {
	if id != nil {
		return s.validator.ValidateModify(ctx, *id, raw)
	}
	return s.validator.ValidateAdd(ctx, raw)
}

func (s *service) IsWithinBusinessHours(w timezone.WallClock) (bool, error) {
	return s.validator.IsWithinBusinessHours(w)
}

// CreateAppointment validates raw and inserts it.
func (s *service) CreateAppointment(ctx context.Context, raw RawFields) (*store.Appointment, error) {
	start := time.Now()
	defer func() {
		slog.Debug("appointment create operation",
			"customer_id", raw.CustomerID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	unlock := s.locks.Lock(raw.CustomerID)
	defer unlock()

	normalized, err := s.validator.ValidateAdd(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, normalized); err != nil {
		return nil, err
	}

	created, err := s.store.CreateAppointment(ctx, normalized.ToStore())
	if err != nil {
		return nil, mapWriteError(err, normalized.CustomerID)
	}

	s.publish(ctx, events.TypeAppointmentCreated, created)
	return created, nil
}

// UpdateAppointment validates raw as a modification of id and overwrites the row.
func (s *service) UpdateAppointment(ctx context.Context, id int32, raw RawFields) (*store.Appointment, error) {
	existing, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	// Moving an appointment to another customer touches both schedules.
	unlock := s.locks.Lock(existing.CustomerID, raw.CustomerID)
	defer unlock()

	normalized, err := s.validator.ValidateModify(ctx, id, raw)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, normalized); err != nil {
		return nil, err
	}

	row := normalized.ToStore()
	affected, err := s.store.UpdateAppointment(ctx, &store.UpdateAppointment{
		ID:          id,
		Title:       &row.Title,
		Description: &row.Description,
		Location:    &row.Location,
		Type:        &row.Type,
		StartTs:     &row.StartTs,
		EndTs:       &row.EndTs,
		CustomerID:  &row.CustomerID,
		UserID:      &row.UserID,
		ContactID:   &row.ContactID,
	})
	if err != nil {
		return nil, mapWriteError(err, normalized.CustomerID)
	}
	if affected == 0 {
		return nil, apperrors.NotFound("appointment", id)
	}

	updated, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeAppointmentUpdated, updated)
	return updated, nil
}

// PatchAppointment loads id, overlays patch and runs the full update.
func (s *service) PatchAppointment(ctx context.Context, id int32, patch *PatchRequest) (*store.Appointment, error) {
	existing, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.UpdateAppointment(ctx, id, patch.Apply(RawFieldsOf(s.clock, existing)))
}

func (s *service) DeleteAppointment(ctx context.Context, id int32) error {
	existing, err := s.GetAppointment(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(existing.CustomerID)
	defer unlock()

	affected, err := s.store.DeleteAppointment(ctx, &store.DeleteAppointment{ID: id})
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if affected == 0 {
		return apperrors.NotFound("appointment", id)
	}

	s.publish(ctx, events.TypeAppointmentDeleted, existing)
	return nil
}

func (s *service) GetAppointment(ctx context.Context, id int32) (*store.Appointment, error) {
	appointment, err := s.store.GetAppointment(ctx, &store.FindAppointment{ID: &id})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if appointment == nil {
		return nil, apperrors.NotFound("appointment", id)
	}
	return appointment, nil
}

func (s *service) ListAppointments(ctx context.Context, find *store.FindAppointment) ([]*store.Appointment, error) {
	if find == nil {
		find = &store.FindAppointment{}
	}
	list, err := s.store.ListAppointments(ctx, find)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return list, nil
}

func (s *service) ListUpcoming(ctx context.Context, userID int32, now time.Time) ([]*store.Appointment, error) {
	from := now.Unix()
	to := now.Add(UpcomingWindow).Unix()
	return s.ListAppointments(ctx, &store.FindAppointment{
		UserID:      &userID,
		StartTsFrom: &from,
		StartTsTo:   &to,
	})
}

// checkReferences verifies the customer, user and contact exist.
func (s *service) checkReferences(ctx context.Context, n *NormalizedAppointment) error {
	customer, err := s.store.GetCustomer(ctx, &store.FindCustomer{ID: &n.CustomerID})
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if customer == nil {
		return apperrors.NotFound("customer", n.CustomerID)
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if !containsID(users, n.UserID, func(u *store.User) int32 { return u.ID }) {
		return apperrors.NotFound("user", n.UserID)
	}

	contacts, err := s.store.ListContacts(ctx)
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if !containsID(contacts, n.ContactID, func(c *store.Contact) int32 { return c.ID }) {
		return apperrors.NotFound("contact", n.ContactID)
	}
	return nil
}

func containsID[T any](list []*T, id int32, idOf func(*T) int32) bool {
	for _, item := range list {
		if idOf(item) == id {
			return true
		}
	}
	return false
}

// mapWriteError turns a store write failure into a scheduling error. The
// exclusion constraint reports a lost race as store.ErrAppointmentOverlap.
func mapWriteError(err error, customerID int32) error {
	if errors.Is(err, store.ErrAppointmentOverlap) {
		return apperrors.OverlappingAppointment(customerID)
	}
	return apperrors.StoreUnavailable(err)
}

// publish emits an event after a successful write. Failures are logged and
// never fail the write.
func (s *service) publish(ctx context.Context, eventType events.Type, a *store.Appointment) {
	event := events.NewEvent(eventType, events.AppointmentPayload{
		ID:         a.ID,
		Title:      a.Title,
		Type:       a.Type,
		StartTs:    a.StartTs,
		EndTs:      a.EndTs,
		CustomerID: a.CustomerID,
		UserID:     a.UserID,
		ContactID:  a.ContactID,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish appointment event",
			"event_type", eventType,
			"appointment_id", a.ID,
			"error", err,
		)
	}
}
