package timezone

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimezone(t *testing.T) {
	tests := []struct {
		name    string
		tz      string
		want    string
		wantErr bool
	}{
		{"UTC", "UTC", "UTC", false},
		{"empty string defaults to UTC", "", "UTC", false},
		{"Local", "Local", "Local", false},
		{"America/New_York", "America/New_York", "America/New_York", false},
		{"Asia/Tokyo", "Asia/Tokyo", "Asia/Tokyo", false},
		{"invalid timezone", "Invalid/Timezone", "UTC", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseTimezone(tt.tz)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTimezone() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if loc.String() != tt.want {
				t.Errorf("ParseTimezone() location = %v, want %v", loc, tt.want)
			}
		})
	}
}

func TestIsValidTimezone(t *testing.T) {
	tests := []struct {
		tz   string
		want bool
	}{
		{"UTC", true},
		{"", true},
		{"America/New_York", true},
		{"Invalid/Timezone", false},
	}

	for _, tt := range tests {
		if got := IsValidTimezone(tt.tz); got != tt.want {
			t.Errorf("IsValidTimezone(%q) = %v, want %v", tt.tz, got, tt.want)
		}
	}
}

func TestMustParseTimezonePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParseTimezone() did not panic on invalid zone")
		}
	}()
	MustParseTimezone("Invalid/Timezone")
}

func TestWallClockValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       WallClock
		wantErr bool
	}{
		{"ordinary", WallClock{2024, time.March, 1, 9, 30, 0}, false},
		{"leap day", WallClock{2024, time.February, 29, 0, 0, 0}, false},
		{"not a leap year", WallClock{2023, time.February, 29, 0, 0, 0}, true},
		{"february 30", WallClock{2024, time.February, 30, 0, 0, 0}, true},
		{"month 13", WallClock{2024, 13, 1, 0, 0, 0}, true},
		{"month 0", WallClock{2024, 0, 1, 0, 0, 0}, true},
		{"hour 24", WallClock{2024, time.March, 1, 24, 0, 0}, true},
		{"minute 60", WallClock{2024, time.March, 1, 10, 60, 0}, true},
		{"second 60", WallClock{2024, time.March, 1, 10, 0, 60}, true},
		{"year 0", WallClock{0, time.March, 1, 10, 0, 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTimestamp) {
				t.Errorf("Validate() error = %v, want ErrInvalidTimestamp", err)
			}
		})
	}
}

func TestClockToCanonical(t *testing.T) {
	clock := &Clock{
		Local:     MustParseTimezone("America/Los_Angeles"),
		Canonical: UTC,
		Reference: MustParseTimezone(TimezoneAmericaNewYork),
	}

	// 2024-03-01 09:00 PST is 17:00 UTC.
	got, err := clock.ToCanonical(WallClock{2024, time.March, 1, 9, 0, 0})
	if err != nil {
		t.Fatalf("ToCanonical() error = %v", err)
	}
	if got.Location() != UTC {
		t.Errorf("ToCanonical() location = %v, want UTC", got.Location())
	}
	if got.Hour() != 17 || got.Day() != 1 {
		t.Errorf("ToCanonical() = %v, want 2024-03-01 17:00 UTC", got)
	}

	// Crossing midnight.
	got, err = clock.ToCanonical(WallClock{2024, time.March, 1, 20, 0, 0})
	if err != nil {
		t.Fatalf("ToCanonical() error = %v", err)
	}
	if got.Hour() != 4 || got.Day() != 2 {
		t.Errorf("ToCanonical() = %v, want 2024-03-02 04:00 UTC", got)
	}

	if _, err := clock.ToCanonical(WallClock{2024, 13, 1, 9, 0, 0}); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("ToCanonical() error = %v, want ErrInvalidTimestamp", err)
	}
}

func TestClockRoundTrip(t *testing.T) {
	zones := []string{"UTC", "America/New_York", "America/Los_Angeles", "Asia/Kolkata", "Australia/Sydney"}
	inputs := []WallClock{
		{2024, time.January, 15, 8, 0, 0},
		{2024, time.March, 1, 9, 30, 15},
		{2024, time.July, 4, 21, 59, 59},
		{2024, time.December, 31, 23, 59, 59},
		{2024, time.February, 29, 0, 0, 0},
	}

	for _, local := range zones {
		clock, err := NewClock(local, "UTC", "")
		if err != nil {
			t.Fatalf("NewClock(%q) error = %v", local, err)
		}
		for _, in := range inputs {
			canonical, err := clock.ToCanonical(in)
			if err != nil {
				t.Fatalf("ToCanonical(%v) error = %v", in, err)
			}
			if got := clock.ToLocal(canonical); got != in {
				t.Errorf("%s: ToLocal(ToCanonical(%v)) = %v", local, in, got)
			}
		}
	}
}

func TestClockToReference(t *testing.T) {
	clock, err := NewClock("UTC", "UTC", "America/New_York")
	if err != nil {
		t.Fatalf("NewClock() error = %v", err)
	}

	tests := []struct {
		name string
		in   WallClock
		want WallClock
	}{
		// EST is UTC-5 in winter.
		{"winter", WallClock{2024, time.January, 15, 13, 0, 0}, WallClock{2024, time.January, 15, 8, 0, 0}},
		// EDT is UTC-4 in summer.
		{"summer", WallClock{2024, time.July, 15, 12, 0, 0}, WallClock{2024, time.July, 15, 8, 0, 0}},
		{"previous day", WallClock{2024, time.January, 15, 2, 0, 0}, WallClock{2024, time.January, 14, 21, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := clock.ToReference(tt.in)
			if err != nil {
				t.Fatalf("ToReference() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ToReference() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewClockDefaults(t *testing.T) {
	clock, err := NewClock("", "", "")
	if err != nil {
		t.Fatalf("NewClock() error = %v", err)
	}
	if clock.Local != time.Local {
		t.Errorf("Local = %v, want process zone", clock.Local)
	}
	if clock.Canonical != UTC {
		t.Errorf("Canonical = %v, want UTC", clock.Canonical)
	}
	if clock.Reference.String() != TimezoneAmericaNewYork {
		t.Errorf("Reference = %v, want %s", clock.Reference, TimezoneAmericaNewYork)
	}

	if _, err := NewClock("Invalid/Timezone", "", ""); err == nil {
		t.Error("NewClock() expected error for invalid local zone")
	}
}

func TestFromUnix(t *testing.T) {
	clock, _ := NewClock("UTC", "UTC", "")
	// 2025-01-21 00:00:00 UTC
	got := clock.FromUnix(1737417600)
	if got.Location() != UTC || got.Day() != 21 || got.Hour() != 0 {
		t.Errorf("FromUnix() = %v", got)
	}
}

func TestWallClockString(t *testing.T) {
	w := WallClock{2024, time.March, 1, 9, 5, 7}
	if got := w.String(); got != "2024-03-01 09:05:07" {
		t.Errorf("String() = %q", got)
	}
	if got := w.TimeOfDay(); got != 9*time.Hour+5*time.Minute+7*time.Second {
		t.Errorf("TimeOfDay() = %v", got)
	}
}
