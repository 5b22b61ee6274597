package appointment

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/server/timezone"
	"github.com/hrygo/apptscheduler/store"
)

// RawFields are appointment fields as entered, with dates and times in the
// local zone.
type RawFields struct {
	Title       string
	Description string
	Location    string
	Type        string
	StartDate   string // YYYY-MM-DD
	StartTime   string // HH:MM or HH:MM:SS
	EndDate     string
	EndTime     string
	CustomerID  int32
	UserID      int32
	ContactID   int32
}

// NormalizedAppointment is a validated appointment with trimmed text and
// canonical start and end instants.
type NormalizedAppointment struct {
	Title       string
	Description string
	Location    string
	Type        string
	Start       time.Time
	End         time.Time
	CustomerID  int32
	UserID      int32
	ContactID   int32
}

// ToStore converts n into a store row without an ID.
func (n *NormalizedAppointment) ToStore() *store.Appointment {
	return &store.Appointment{
		Title:       n.Title,
		Description: n.Description,
		Location:    n.Location,
		Type:        n.Type,
		StartTs:     n.Start.Unix(),
		EndTs:       n.End.Unix(),
		CustomerID:  n.CustomerID,
		UserID:      n.UserID,
		ContactID:   n.ContactID,
	}
}

// Validator runs the scheduling pipeline: field presence, time parsing,
// ordering, business hours and overlap. The first failing stage decides the
// returned *apperrors.SchedulingError; nothing is written.
type Validator struct {
	clock   *timezone.Clock
	hours   *BusinessHoursPolicy
	overlap *OverlapDetector
}

func NewValidator(clock *timezone.Clock, hours *BusinessHoursPolicy, overlap *OverlapDetector) *Validator {
	return &Validator{clock: clock, hours: hours, overlap: overlap}
}

// ValidateAdd validates a new appointment.
func (v *Validator) ValidateAdd(ctx context.Context, raw RawFields) (*NormalizedAppointment, error) {
	return v.validate(ctx, raw, nil)
}

// ValidateModify validates a replacement for appointment id. The
// appointment's current row is ignored by the overlap check.
func (v *Validator) ValidateModify(ctx context.Context, id int32, raw RawFields) (*NormalizedAppointment, error) {
	return v.validate(ctx, raw, &id)
}

// IsWithinBusinessHours checks a single local wall clock.
func (v *Validator) IsWithinBusinessHours(w timezone.WallClock) (bool, error) {
	return v.hours.IsWithinBusinessHours(w)
}

func (v *Validator) validate(ctx context.Context, raw RawFields, excludeID *int32) (*NormalizedAppointment, error) {
	if err := checkPresence(raw); err != nil {
		return nil, err
	}

	startWall, err := parseWallClock("start_date", raw.StartDate, "start_time", raw.StartTime)
	if err != nil {
		return nil, err
	}
	endWall, err := parseWallClock("end_date", raw.EndDate, "end_time", raw.EndTime)
	if err != nil {
		return nil, err
	}

	start, err := v.clock.ToCanonical(startWall)
	if err != nil {
		return nil, apperrors.InvalidTimestamp("start", err)
	}
	end, err := v.clock.ToCanonical(endWall)
	if err != nil {
		return nil, apperrors.InvalidTimestamp("end", err)
	}
	if !end.After(start) {
		return nil, apperrors.EndBeforeStart()
	}

	if !v.hours.Allows(start) {
		return nil, apperrors.OutsideBusinessHours("start", startWall.String()).
			WithContext("reference_time", v.clock.InReference(start).String())
	}
	if !v.hours.Allows(end) {
		return nil, apperrors.OutsideBusinessHours("end", endWall.String()).
			WithContext("reference_time", v.clock.InReference(end).String())
	}

	conflict, err := v.overlap.HasConflict(ctx, raw.CustomerID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, apperrors.OverlappingAppointment(raw.CustomerID)
	}

	return &NormalizedAppointment{
		Title:       strings.TrimSpace(raw.Title),
		Description: strings.TrimSpace(raw.Description),
		Location:    strings.TrimSpace(raw.Location),
		Type:        strings.TrimSpace(raw.Type),
		Start:       start,
		End:         end,
		CustomerID:  raw.CustomerID,
		UserID:      raw.UserID,
		ContactID:   raw.ContactID,
	}, nil
}

func checkPresence(raw RawFields) error {
	texts := []struct {
		name  string
		value string
	}{
		{"title", raw.Title},
		{"description", raw.Description},
		{"location", raw.Location},
		{"type", raw.Type},
		{"start_date", raw.StartDate},
		{"start_time", raw.StartTime},
		{"end_date", raw.EndDate},
		{"end_time", raw.EndTime},
	}
	for _, f := range texts {
		if strings.TrimSpace(f.value) == "" {
			return apperrors.MissingField(f.name)
		}
	}

	ids := []struct {
		name  string
		value int32
	}{
		{"customer_id", raw.CustomerID},
		{"user_id", raw.UserID},
		{"contact_id", raw.ContactID},
	}
	for _, f := range ids {
		if f.value <= 0 {
			return apperrors.MissingField(f.name)
		}
	}
	return nil
}

// parseWallClock parses a date and a time of day into a wall clock.
func parseWallClock(dateField, date, timeField, clock string) (timezone.WallClock, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return timezone.WallClock{}, apperrors.InvalidTimeFormat(dateField, date)
	}
	tod, ok := parseTimeOfDay(clock)
	if !ok {
		return timezone.WallClock{}, apperrors.InvalidTimeFormat(timeField, clock)
	}
	return timezone.WallClock{
		Year:   d.Year(),
		Month:  d.Month(),
		Day:    d.Day(),
		Hour:   tod.Hour(),
		Minute: tod.Minute(),
		Second: tod.Second(),
	}, nil
}

func parseTimeOfDay(s string) (time.Time, bool) {
	if !timeOfDayPattern.MatchString(s) {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseWallClock parses a local date and time as accepted by the validator.
func ParseWallClock(date, clock string) (timezone.WallClock, error) {
	return parseWallClock("date", date, "time", clock)
}

// RawFieldsOf renders a stored appointment back into local-zone raw fields.
func RawFieldsOf(clock *timezone.Clock, a *store.Appointment) RawFields {
	start := clock.ToLocal(clock.FromUnix(a.StartTs))
	end := clock.ToLocal(clock.FromUnix(a.EndTs))
	return RawFields{
		Title:       a.Title,
		Description: a.Description,
		Location:    a.Location,
		Type:        a.Type,
		StartDate:   formatDate(start),
		StartTime:   formatTime(start),
		EndDate:     formatDate(end),
		EndTime:     formatTime(end),
		CustomerID:  a.CustomerID,
		UserID:      a.UserID,
		ContactID:   a.ContactID,
	}
}

func formatDate(w timezone.WallClock) string {
	return w.String()[:len(DateLayout)]
}

func formatTime(w timezone.WallClock) string {
	return w.String()[len(DateLayout)+1:]
}
