package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/apptscheduler/internal/profile"
	"github.com/hrygo/apptscheduler/plugin/events"
	teststore "github.com/hrygo/apptscheduler/store/test"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, *recordingPublisher) {
	t.Helper()
	ctx := context.Background()
	st := teststore.NewTestingStore(ctx, t)
	p := &profile.Profile{
		Mode:          "demo",
		LocalZone:     "UTC",
		CanonicalZone: "UTC",
		ReferenceZone: "America/New_York",
		BusinessOpen:  "08:00",
		BusinessClose: "22:00",
		RateLimit:     1000,
		RateBurst:     1000,
	}
	publisher := &recordingPublisher{}
	s, err := NewServer(ctx, p, st, publisher)
	require.NoError(t, err)
	return s, publisher
}

func serve(h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSchedulingEndToEnd(t *testing.T) {
	s, publisher := newTestServer(t)
	h := s.Handler()

	// Seeded appointment 1 holds customer 1 on 2024-03-01 14:00-15:00 UTC.
	request := map[string]any{
		"title":       "Follow-up",
		"description": "Go through the *numbers*",
		"location":    "New York",
		"type":        "Planning Session",
		"start_date":  "2024-03-01",
		"start_time":  "14:30",
		"end_date":    "2024-03-01",
		"end_time":    "15:30",
		"customer_id": 1,
		"user_id":     1,
		"contact_id":  1,
	}
	rec := serve(h, http.MethodPost, "/api/v1/appointments", request)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	request["start_time"], request["end_time"] = "15:00", "16:00"
	rec = serve(h, http.MethodPost, "/api/v1/appointments", request)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID    int32  `json:"id"`
		Start string `json:"start"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "2024-03-01T15:00:00Z", created.Start)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeAppointmentCreated, publisher.events[0].Type)
	assert.Equal(t, created.ID, publisher.events[0].Appointment.ID)

	// 03:00 UTC is 22:00 in New York the previous evening: the end is allowed,
	// one second more is not.
	request["start_date"], request["start_time"] = "2024-03-02", "02:00"
	request["end_date"], request["end_time"] = "2024-03-02", "03:00:01"
	rec = serve(h, http.MethodPost, "/api/v1/appointments:validate", request)
	require.Equal(t, http.StatusOK, rec.Code)
	var result struct {
		Valid bool `json:"valid"`
		Error struct {
			Code  string `json:"code"`
			Field string `json:"field"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	assert.Equal(t, "OUTSIDE_BUSINESS_HOURS", result.Error.Code)
	assert.Equal(t, "end", result.Error.Field)

	rec = serve(h, http.MethodDelete, "/api/v1/customers/1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(h, http.MethodGet, "/api/v1/customers/1/appointments.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, bytes.Count(rec.Body.Bytes(), []byte("BEGIN:VEVENT")))
}

func TestMetricsIncludeAppointmentStats(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.stats.Collect(context.Background()))

	rec := serve(s.Handler(), http.MethodGet, "/api/v1/system/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var overview struct {
		Appointments struct {
			Total  int64            `json:"total_appointments"`
			ByUser map[string]int64 `json:"by_user"`
		} `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.EqualValues(t, 2, overview.Appointments.Total)
	assert.EqualValues(t, 1, overview.Appointments.ByUser["1"])
}
