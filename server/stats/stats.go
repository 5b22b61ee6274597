// Package stats keeps periodically refreshed appointment statistics.
// Week and month boundaries are taken in the configured zone.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/apptscheduler/store"
)

// Store is the interface for store operations needed by the collector.
type Store interface {
	ListAppointments(ctx context.Context, find *store.FindAppointment) ([]*store.Appointment, error)
}

// Stats represents appointment statistics.
type Stats struct {
	TotalAppointments    int64 `json:"total_appointments"`
	AppointmentsThisWeek int64 `json:"appointments_this_week"`
	AppointmentsNextWeek int64 `json:"appointments_next_week"`

	// ByType counts appointments per type, ByMonth per "YYYY-MM" of the
	// start and ByUser per owning user.
	ByType  map[string]int64 `json:"by_type"`
	ByMonth map[string]int64 `json:"by_month"`
	ByUser  map[int32]int64  `json:"by_user"`

	LastUpdated time.Time `json:"last_updated"`
}

// Collector collects and manages appointment statistics.
type Collector struct {
	store Store
	loc   *time.Location
	now   func() time.Time

	mu    sync.Mutex
	stats *Stats

	stopOnce sync.Once
	tickStop chan struct{}
}

// NewCollector creates a new statistics collector. A nil loc means UTC.
func NewCollector(st Store, loc *time.Location) *Collector {
	if loc == nil {
		loc = time.UTC
	}
	return &Collector{
		store:    st,
		loc:      loc,
		now:      time.Now,
		stats:    &Stats{},
		tickStop: make(chan struct{}),
	}
}

// Start collects once and then every interval until ctx is done or Stop is called.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	if err := c.Collect(ctx); err != nil {
		slog.Warn("failed to collect appointment stats", "error", err)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Collect(ctx); err != nil {
					slog.Warn("failed to collect appointment stats", "error", err)
				}
			case <-ctx.Done():
				return
			case <-c.tickStop:
				return
			}
		}
	}()
}

// Stop stops the statistics collector.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.tickStop) })
}

// GetStats returns a copy of current statistics.
func (c *Collector) GetStats() *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &Stats{
		TotalAppointments:    c.stats.TotalAppointments,
		AppointmentsThisWeek: c.stats.AppointmentsThisWeek,
		AppointmentsNextWeek: c.stats.AppointmentsNextWeek,
		ByType:               copyMap(c.stats.ByType),
		ByMonth:              copyMap(c.stats.ByMonth),
		ByUser:               copyMap(c.stats.ByUser),
		LastUpdated:          c.stats.LastUpdated,
	}
}

// Collect recomputes the statistics from the store. On error the previous
// statistics are kept.
func (c *Collector) Collect(ctx context.Context) error {
	appointments, err := c.store.ListAppointments(ctx, &store.FindAppointment{})
	if err != nil {
		return err
	}

	now := c.now().In(c.loc)
	thisWeekStart := getWeekStart(now)
	nextWeekStart := thisWeekStart.AddDate(0, 0, 7)
	weekAfterNext := nextWeekStart.AddDate(0, 0, 7)

	next := &Stats{
		TotalAppointments: int64(len(appointments)),
		ByType:            make(map[string]int64),
		ByMonth:           make(map[string]int64),
		ByUser:            make(map[int32]int64),
		LastUpdated:       now,
	}
	for _, a := range appointments {
		start := time.Unix(a.StartTs, 0).In(c.loc)
		switch {
		case !start.Before(thisWeekStart) && start.Before(nextWeekStart):
			next.AppointmentsThisWeek++
		case !start.Before(nextWeekStart) && start.Before(weekAfterNext):
			next.AppointmentsNextWeek++
		}
		next.ByType[a.Type]++
		next.ByMonth[start.Format("2006-01")]++
		next.ByUser[a.UserID]++
	}

	c.mu.Lock()
	c.stats = next
	c.mu.Unlock()
	return nil
}

// getWeekStart returns Monday 00:00 of t's week in t's location.
func getWeekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()-weekday+1, 0, 0, 0, 0, t.Location())
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
