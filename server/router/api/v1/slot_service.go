package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/apptscheduler/server/scheduler/suggestion"
	"github.com/hrygo/apptscheduler/server/service/appointment"
	"github.com/hrygo/apptscheduler/store"
)

const (
	defaultSlotDays = 7
	maxSlotDays     = 30
)

// FreeSlot is a bookable interval, in local wall clock and canonical form.
type FreeSlot struct {
	StartDate string    `json:"start_date"`
	StartTime string    `json:"start_time"`
	EndDate   string    `json:"end_date"`
	EndTime   string    `json:"end_time"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// ListFreeSlots handles GET /api/v1/customers/:id/free-slots.
//
// Query: from (local date, default today), days (default 7, at most 30),
// duration_minutes, step_minutes, limit, exclude_weekend. Slots never start
// in the past.
func (s *APIV1Service) ListFreeSlots(c echo.Context) error {
	ctx := c.Request().Context()
	customerID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := s.CustomerService.GetCustomer(ctx, customerID); err != nil {
		return err
	}

	clock := s.AppointmentService.Clock()
	now := s.now()
	from := now.In(clock.Local)
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, clock.Local)
	if raw := c.QueryParam("from"); raw != "" {
		w, err := appointment.ParseWallClock(raw, "00:00")
		if err != nil {
			return err
		}
		if from, err = clock.ToCanonical(w); err != nil {
			return err
		}
		from = from.In(clock.Local)
	}

	days := defaultSlotDays
	if v, err := parseOptionalInt(c, "days"); err != nil {
		return err
	} else if v != nil {
		days = *v
	}
	if days < 1 || days > maxSlotDays {
		return invalidArgument("days must be between 1 and %d", maxSlotDays)
	}
	to := from.AddDate(0, 0, days)
	if from.Before(now) {
		from = now
	}
	if !to.After(from) {
		return c.JSON(http.StatusOK, []*FreeSlot{})
	}

	opts := suggestion.Options{
		CustomerID: customerID,
		From:       from,
		To:         to,
	}
	if opts.Duration, err = minutesParam(c, "duration_minutes"); err != nil {
		return err
	}
	if opts.Step, err = minutesParam(c, "step_minutes"); err != nil {
		return err
	}
	if v, err := parseOptionalInt(c, "limit"); err != nil {
		return err
	} else if v != nil {
		opts.Limit = *v
	}
	if raw := c.QueryParam("exclude_weekend"); raw != "" {
		if opts.ExcludeWeekend, err = strconv.ParseBool(raw); err != nil {
			return invalidArgument("invalid exclude_weekend: %q", raw)
		}
	}

	slots, err := s.Slots.FindSlots(ctx, opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertList(slots, func(slot *suggestion.Slot) *FreeSlot {
		raw := appointment.RawFieldsOf(clock, &store.Appointment{StartTs: slot.Start.Unix(), EndTs: slot.End.Unix()})
		return &FreeSlot{
			StartDate: raw.StartDate,
			StartTime: raw.StartTime,
			EndDate:   raw.EndDate,
			EndTime:   raw.EndTime,
			Start:     slot.Start,
			End:       slot.End,
		}
	}))
}

// minutesParam reads an optional positive minute count. Absent means zero.
func minutesParam(c echo.Context, name string) (time.Duration, error) {
	v, err := parseOptionalInt(c, name)
	if err != nil || v == nil {
		return 0, err
	}
	if *v == 0 {
		return 0, invalidArgument("%s must be positive", name)
	}
	return time.Duration(*v) * time.Minute, nil
}
