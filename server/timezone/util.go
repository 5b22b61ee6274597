// Package timezone provides the clock math used by the scheduler.
//
// Three zones matter: Local is the wall-clock zone of whoever enters
// appointment data, Canonical is the zone every persisted time is stored in,
// and Reference is the zone business hours are evaluated in. Conversions
// between them always preserve the absolute instant; only the wall-clock
// fields change.
package timezone

import (
	"errors"
	"fmt"
	"time"
)

// Default location constants
var (
	// UTC is the coordinated universal time timezone
	UTC = time.UTC

	// Local is the local timezone
	Local = time.Local
)

// Common timezone identifiers
const (
	TimezoneUTC            = "UTC"
	TimezoneLocal          = "Local"
	TimezoneAmericaNewYork = "America/New_York"
)

// ErrInvalidTimestamp is returned when a wall-clock value does not name a real
// calendar position (month 13, February 30, hour 24, ...).
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// ParseTimezone parses an IANA timezone identifier (e.g., "America/New_York").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == TimezoneUTC {
		return UTC, nil
	}
	if tz == TimezoneLocal {
		return Local, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// MustParseTimezone parses a timezone or panics if invalid.
// Use this for constants that are known to be valid at compile time.
func MustParseTimezone(tz string) *time.Location {
	loc, err := ParseTimezone(tz)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	_, err := ParseTimezone(tz)
	return err == nil
}

// ToUserTimezone converts a Unix timestamp to the given timezone.
func ToUserTimezone(ts int64, tz *time.Location) time.Time {
	if tz == nil {
		tz = UTC
	}
	return time.Unix(ts, 0).In(tz)
}

// WallClock is a zone-less calendar value with second precision.
type WallClock struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// WallClockOf returns the wall-clock fields of t in t's own location.
func WallClockOf(t time.Time) WallClock {
	return WallClock{
		Year:   t.Year(),
		Month:  t.Month(),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// Validate reports whether every field is inside its calendar range.
func (w WallClock) Validate() error {
	switch {
	case w.Year < 1 || w.Year > 9999:
		return fmt.Errorf("%w: year %d", ErrInvalidTimestamp, w.Year)
	case w.Month < time.January || w.Month > time.December:
		return fmt.Errorf("%w: month %d", ErrInvalidTimestamp, w.Month)
	case w.Day < 1 || w.Day > daysIn(w.Year, w.Month):
		return fmt.Errorf("%w: day %d of %04d-%02d", ErrInvalidTimestamp, w.Day, w.Year, w.Month)
	case w.Hour < 0 || w.Hour > 23:
		return fmt.Errorf("%w: hour %d", ErrInvalidTimestamp, w.Hour)
	case w.Minute < 0 || w.Minute > 59:
		return fmt.Errorf("%w: minute %d", ErrInvalidTimestamp, w.Minute)
	case w.Second < 0 || w.Second > 59:
		return fmt.Errorf("%w: second %d", ErrInvalidTimestamp, w.Second)
	}
	return nil
}

// In interprets w in loc. The caller must have validated w.
func (w WallClock) In(loc *time.Location) time.Time {
	return time.Date(w.Year, w.Month, w.Day, w.Hour, w.Minute, w.Second, 0, loc)
}

// TimeOfDay returns the offset of w from midnight.
func (w WallClock) TimeOfDay() time.Duration {
	return time.Duration(w.Hour)*time.Hour + time.Duration(w.Minute)*time.Minute + time.Duration(w.Second)*time.Second
}

func (w WallClock) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", w.Year, w.Month, w.Day, w.Hour, w.Minute, w.Second)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Clock converts between the local, canonical and reference zones.
type Clock struct {
	Local     *time.Location
	Canonical *time.Location
	Reference *time.Location
}

// NewClock builds a Clock from zone identifiers. An empty local zone means the
// process zone, an empty canonical zone means UTC and an empty reference zone
// means America/New_York.
func NewClock(local, canonical, reference string) (*Clock, error) {
	if local == "" {
		local = TimezoneLocal
	}
	if reference == "" {
		reference = TimezoneAmericaNewYork
	}
	localLoc, err := ParseTimezone(local)
	if err != nil {
		return nil, err
	}
	canonicalLoc, err := ParseTimezone(canonical)
	if err != nil {
		return nil, err
	}
	referenceLoc, err := ParseTimezone(reference)
	if err != nil {
		return nil, err
	}
	return &Clock{Local: localLoc, Canonical: canonicalLoc, Reference: referenceLoc}, nil
}

// ToCanonical interprets w as a Local wall clock and returns the same instant
// in the canonical zone. Wall clocks that fall in a DST gap are moved forward
// by the gap length, as time.Date does.
func (c *Clock) ToCanonical(w WallClock) (time.Time, error) {
	if err := w.Validate(); err != nil {
		return time.Time{}, err
	}
	return w.In(c.Local).In(c.Canonical), nil
}

// ToLocal returns the Local wall clock of an instant.
func (c *Clock) ToLocal(t time.Time) WallClock {
	return WallClockOf(t.In(c.Local))
}

// ToReference converts a Local wall clock to the Reference wall clock at the
// same instant.
func (c *Clock) ToReference(w WallClock) (WallClock, error) {
	if err := w.Validate(); err != nil {
		return WallClock{}, err
	}
	return c.InReference(w.In(c.Local)), nil
}

// InReference returns the Reference wall clock of an instant.
func (c *Clock) InReference(t time.Time) WallClock {
	return WallClockOf(t.In(c.Reference))
}

// FromUnix returns a stored Unix timestamp as an instant in the canonical zone.
func (c *Clock) FromUnix(ts int64) time.Time {
	return ToUserTimezone(ts, c.Canonical)
}
