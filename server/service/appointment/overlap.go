package appointment

import (
	"context"
	"time"

	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/store"
)

// Interval is a half-open [Start, End) range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether i and o share at least one instant.
// Intervals that only touch at a boundary do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// OverlapReader is the single store read the detector performs.
type OverlapReader interface {
	CountOverlappingAppointments(ctx context.Context, find *store.FindOverlappingAppointment) (int, error)
}

// OverlapDetector finds bookings of the same customer that intersect a
// candidate interval. It reads the store on every call and keeps no state.
type OverlapDetector struct {
	store OverlapReader
}

func NewOverlapDetector(store OverlapReader) *OverlapDetector {
	return &OverlapDetector{store: store}
}

// HasConflict reports whether customerID has a booking intersecting
// [start, end), ignoring excludeID when set.
func (d *OverlapDetector) HasConflict(ctx context.Context, customerID int32, start, end time.Time, excludeID *int32) (bool, error) {
	count, err := d.store.CountOverlappingAppointments(ctx, &store.FindOverlappingAppointment{
		CustomerID: customerID,
		StartTs:    start.Unix(),
		EndTs:      end.Unix(),
		ExcludeID:  excludeID,
	})
	if err != nil {
		return false, apperrors.StoreUnavailable(err)
	}
	return count > 0, nil
}
