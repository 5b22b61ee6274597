package appointment

import (
	"context"
	"time"

	"github.com/hrygo/apptscheduler/server/timezone"
	"github.com/hrygo/apptscheduler/store"
)

// Service defines the appointment business logic used by the HTTP layer.
// Every write runs the full validation pipeline first.
type Service interface {
	// Validate runs the pipeline without writing. A non-nil id validates a
	// modification of that appointment.
	Validate(ctx context.Context, id *int32, raw RawFields) (*NormalizedAppointment, error)

	// IsWithinBusinessHours checks a single local wall clock.
	IsWithinBusinessHours(w timezone.WallClock) (bool, error)

	CreateAppointment(ctx context.Context, raw RawFields) (*store.Appointment, error)

	// UpdateAppointment replaces every field of appointment id.
	UpdateAppointment(ctx context.Context, id int32, raw RawFields) (*store.Appointment, error)

	// PatchAppointment overlays patch on the stored appointment and then
	// behaves like UpdateAppointment.
	PatchAppointment(ctx context.Context, id int32, patch *PatchRequest) (*store.Appointment, error)

	DeleteAppointment(ctx context.Context, id int32) error
	GetAppointment(ctx context.Context, id int32) (*store.Appointment, error)
	ListAppointments(ctx context.Context, find *store.FindAppointment) ([]*store.Appointment, error)

	// ListUpcoming returns the user's appointments starting within
	// UpcomingWindow of now, inclusive on both ends.
	ListUpcoming(ctx context.Context, userID int32, now time.Time) ([]*store.Appointment, error)

	// Clock exposes the zone configuration used for conversions.
	Clock() *timezone.Clock

	// Hours exposes the business hours policy the validator enforces.
	Hours() *BusinessHoursPolicy
}

// PatchRequest holds the fields to change. Nil fields keep their stored value.
type PatchRequest struct {
	Title       *string
	Description *string
	Location    *string
	Type        *string
	StartDate   *string
	StartTime   *string
	EndDate     *string
	EndTime     *string
	CustomerID  *int32
	UserID      *int32
	ContactID   *int32
}

// Apply overlays p on raw.
func (p *PatchRequest) Apply(raw RawFields) RawFields {
	if p == nil {
		return raw
	}
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setID := func(dst *int32, v *int32) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&raw.Title, p.Title)
	setString(&raw.Description, p.Description)
	setString(&raw.Location, p.Location)
	setString(&raw.Type, p.Type)
	setString(&raw.StartDate, p.StartDate)
	setString(&raw.StartTime, p.StartTime)
	setString(&raw.EndDate, p.EndDate)
	setString(&raw.EndTime, p.EndTime)
	setID(&raw.CustomerID, p.CustomerID)
	setID(&raw.UserID, p.UserID)
	setID(&raw.ContactID, p.ContactID)
	return raw
}
