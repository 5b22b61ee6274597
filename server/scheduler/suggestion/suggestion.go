// Package suggestion finds free appointment slots for a customer.
package suggestion

import (
	"context"
	"sort"
	"time"

	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/server/service/appointment"
	"github.com/hrygo/apptscheduler/server/timezone"
	"github.com/hrygo/apptscheduler/store"
)

const (
	DefaultDuration = time.Hour
	DefaultStep     = 30 * time.Minute
	DefaultLimit    = 10
	MaxLimit        = 100
	// MaxRange bounds the search window.
	MaxRange = 31 * 24 * time.Hour
)

// Store is the interface for store operations needed by the finder.
type Store interface {
	ListAppointments(ctx context.Context, find *store.FindAppointment) ([]*store.Appointment, error)
}

// Finder proposes slots that pass both the business hours and the overlap
// checks the validator applies to a new appointment.
type Finder struct {
	store Store
	clock *timezone.Clock
	hours *appointment.BusinessHoursPolicy
}

// NewFinder creates a new slot finder.
func NewFinder(st Store, clock *timezone.Clock, hours *appointment.BusinessHoursPolicy) *Finder {
	return &Finder{store: st, clock: clock, hours: hours}
}

// Slot is a free [Start, End) interval.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Options holds options for a slot search.
type Options struct {
	CustomerID int32
	// From and To bound the search; slots lie entirely within [From, To].
	From time.Time
	To   time.Time
	// Duration is the desired slot length, Step the distance between
	// candidate starts. Zero values use the defaults.
	Duration       time.Duration
	Step           time.Duration
	Limit          int
	ExcludeWeekend bool
}

func (o *Options) normalize() error {
	if o.Duration == 0 {
		o.Duration = DefaultDuration
	}
	if o.Step == 0 {
		o.Step = DefaultStep
	}
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	switch {
	case o.Duration < 0 || o.Step < 0 || o.Limit < 0:
		return apperrors.InvalidArgument("duration, step and limit must be positive")
	case o.Limit > MaxLimit:
		o.Limit = MaxLimit
	}
	if !o.To.After(o.From) {
		return apperrors.InvalidArgument("search range end must be after its start")
	}
	if o.To.Sub(o.From) > MaxRange {
		return apperrors.InvalidArgument("search range exceeds 31 days")
	}
	return nil
}

// FindSlots returns up to Limit free slots in chronological order. Candidates
// start at business opening on each reference-zone day and advance by Step.
func (f *Finder) FindSlots(ctx context.Context, opts Options) ([]*Slot, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	open, closing := f.hours.Window()
	if opts.Duration > closing-open {
		return nil, apperrors.InvalidArgument("duration is longer than business hours")
	}

	to := opts.To.Unix()
	booked, err := f.store.ListAppointments(ctx, &store.FindAppointment{
		CustomerID: &opts.CustomerID,
		StartTsTo:  &to,
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	busy := make([]appointment.Interval, 0, len(booked))
	for _, a := range booked {
		if a.EndTs <= opts.From.Unix() {
			continue
		}
		busy = append(busy, appointment.Interval{Start: f.clock.FromUnix(a.StartTs), End: f.clock.FromUnix(a.EndTs)})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	ref := f.clock.Reference
	from := opts.From.In(ref)
	slots := make([]*Slot, 0, opts.Limit)
	for day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, ref); !day.After(opts.To); day = day.AddDate(0, 0, 1) {
		if opts.ExcludeWeekend && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
			continue
		}
		dayOpen := atTimeOfDay(day, open)
		dayClose := atTimeOfDay(day, closing)
		for start := dayOpen; !start.Add(opts.Duration).After(dayClose); start = start.Add(opts.Step) {
			end := start.Add(opts.Duration)
			if start.Before(opts.From) || end.After(opts.To) {
				continue
			}
			if !f.hours.Allows(start) || !f.hours.Allows(end) {
				continue
			}
			candidate := appointment.Interval{Start: start, End: end}
			if conflicts(busy, candidate) {
				continue
			}
			slots = append(slots, &Slot{Start: start.In(f.clock.Canonical), End: end.In(f.clock.Canonical)})
			if len(slots) == opts.Limit {
				return slots, nil
			}
		}
	}
	return slots, nil
}

func conflicts(busy []appointment.Interval, candidate appointment.Interval) bool {
	for _, b := range busy {
		if !b.Start.Before(candidate.End) {
			return false
		}
		if b.Overlaps(candidate) {
			return true
		}
	}
	return false
}

// atTimeOfDay returns the wall clock offset d on day's date, so DST days keep
// their nominal opening time.
func atTimeOfDay(day time.Time, d time.Duration) time.Time {
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, day.Location())
}
