package appointment

import (
	"regexp"
	"time"
)

// Package-level constants for appointment validation.

const (
	// DateLayout is the accepted layout of start_date and end_date.
	DateLayout = "2006-01-02"

	// UpcomingWindow is how far ahead ListUpcoming looks for appointments.
	UpcomingWindow = 15 * time.Minute

	// DefaultBusinessOpen and DefaultBusinessClose bound the business-hours
	// window in the reference zone, both inclusive.
	DefaultBusinessOpen  = 8 * time.Hour
	DefaultBusinessClose = 22 * time.Hour
)

// timeOfDayPattern is the accepted shape of start_time and end_time:
// two-digit HH:MM with optional :SS. time.Parse alone also takes one-digit
// hours and fractional seconds.
var timeOfDayPattern = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)

// timeLayouts are tried in order; seconds are optional.
var timeLayouts = []string{"15:04:05", "15:04"}
