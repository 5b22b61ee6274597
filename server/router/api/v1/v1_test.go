package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/apptscheduler/internal/profile"
	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/server/service/appointment"
	"github.com/hrygo/apptscheduler/server/service/customer"
	"github.com/hrygo/apptscheduler/server/timezone"
	"github.com/hrygo/apptscheduler/store"
)

// fakeAppointmentService is a hand-written appointment.Service backed by a map.
type fakeAppointmentService struct {
	mu           sync.Mutex
	clock        *timezone.Clock
	hours        *appointment.BusinessHoursPolicy
	appointments map[int32]*store.Appointment
	nextID       int32
	// err is returned by every operation when set.
	err error

	lastFind    *store.FindAppointment
	lastPatch   *appointment.PatchRequest
	upcomingNow time.Time
}

func newFakeAppointmentService(clock *timezone.Clock) *fakeAppointmentService {
	return &fakeAppointmentService{
		clock:        clock,
		hours:        appointment.NewBusinessHoursPolicy(clock, 8*time.Hour, 22*time.Hour),
		appointments: make(map[int32]*store.Appointment),
		nextID:       1,
	}
}

func (f *fakeAppointmentService) seed(a *store.Appointment) *store.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.nextID
	f.nextID++
	f.appointments[a.ID] = a
	return a
}

func (f *fakeAppointmentService) normalize(raw appointment.RawFields) (*store.Appointment, error) {
	start, err := appointment.ParseWallClock(raw.StartDate, raw.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := appointment.ParseWallClock(raw.EndDate, raw.EndTime)
	if err != nil {
		return nil, err
	}
	s, err := f.clock.ToCanonical(start)
	if err != nil {
		return nil, err
	}
	e, err := f.clock.ToCanonical(end)
	if err != nil {
		return nil, err
	}
	return &store.Appointment{
		Title:      raw.Title,
		Type:       raw.Type,
		Location:   raw.Location,
		StartTs:    s.Unix(),
		EndTs:      e.Unix(),
		CustomerID: raw.CustomerID,
		UserID:     raw.UserID,
		ContactID:  raw.ContactID,
	}, nil
}

func (f *fakeAppointmentService) Validate(_ context.Context, _ *int32, raw appointment.RawFields) (*appointment.NormalizedAppointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, err := f.normalize(raw)
	if err != nil {
		return nil, err
	}
	return &appointment.NormalizedAppointment{
		Title: a.Title,
		Start: f.clock.FromUnix(a.StartTs),
		End:   f.clock.FromUnix(a.EndTs),
	}, nil
}

func (f *fakeAppointmentService) IsWithinBusinessHours(w timezone.WallClock) (bool, error) {
	return f.hours.IsWithinBusinessHours(w)
}

func (f *fakeAppointmentService) CreateAppointment(_ context.Context, raw appointment.RawFields) (*store.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, err := f.normalize(raw)
	if err != nil {
		return nil, err
	}
	return f.seed(a), nil
}

func (f *fakeAppointmentService) UpdateAppointment(ctx context.Context, id int32, raw appointment.RawFields) (*store.Appointment, error) {
	if _, err := f.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	a, err := f.normalize(raw)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = id
	f.appointments[id] = a
	return a, nil
}

func (f *fakeAppointmentService) PatchAppointment(ctx context.Context, id int32, patch *appointment.PatchRequest) (*store.Appointment, error) {
	existing, err := f.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	f.lastPatch = patch
	return f.UpdateAppointment(ctx, id, patch.Apply(appointment.RawFieldsOf(f.clock, existing)))
}

func (f *fakeAppointmentService) DeleteAppointment(ctx context.Context, id int32) error {
	if _, err := f.GetAppointment(ctx, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.appointments, id)
	return nil
}

func (f *fakeAppointmentService) GetAppointment(_ context.Context, id int32) (*store.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", id)
	}
	return a, nil
}

func (f *fakeAppointmentService) ListAppointments(_ context.Context, find *store.FindAppointment) ([]*store.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFind = find
	var list []*store.Appointment
	for _, a := range f.appointments {
		if find.CustomerID != nil && a.CustomerID != *find.CustomerID {
			continue
		}
		if find.UserID != nil && a.UserID != *find.UserID {
			continue
		}
		if find.StartTsFrom != nil && a.StartTs < *find.StartTsFrom {
			continue
		}
		if find.StartTsTo != nil && a.StartTs > *find.StartTsTo {
			continue
		}
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *fakeAppointmentService) ListUpcoming(ctx context.Context, userID int32, now time.Time) ([]*store.Appointment, error) {
	f.upcomingNow = now
	return f.ListAppointments(ctx, &store.FindAppointment{UserID: &userID})
}

func (f *fakeAppointmentService) Clock() *timezone.Clock {
	return f.clock
}

func (f *fakeAppointmentService) Hours() *appointment.BusinessHoursPolicy {
	return f.hours
}

// fakeCustomerService is a hand-written customer.Service.
type fakeCustomerService struct {
	customers map[int32]*store.Customer
	err       error
}

func (f *fakeCustomerService) CreateCustomer(_ context.Context, req *customer.Request) (*store.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.MissingField("name")
	}
	c := &store.Customer{ID: int32(len(f.customers) + 1), Name: req.Name, DivisionID: req.DivisionID}
	f.customers[c.ID] = c
	return c, nil
}

func (f *fakeCustomerService) UpdateCustomer(ctx context.Context, id int32, req *customer.Request) (*store.Customer, error) {
	existing, err := f.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Name = req.Name
	return existing, nil
}

func (f *fakeCustomerService) DeleteCustomer(_ context.Context, id int32) error {
	if f.err != nil {
		return f.err
	}
	delete(f.customers, id)
	return nil
}

func (f *fakeCustomerService) GetCustomer(_ context.Context, id int32) (*store.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.customers[id]
	if !ok {
		return nil, apperrors.NotFound("customer", id)
	}
	return c, nil
}

func (f *fakeCustomerService) ListCustomers(_ context.Context, divisionID *int32) ([]*store.Customer, error) {
	var list []*store.Customer
	for _, c := range f.customers {
		if divisionID != nil && c.DivisionID != *divisionID {
			continue
		}
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// fakeReferenceStore serves fixed reference tables.
type fakeReferenceStore struct {
	err error
}

func (f *fakeReferenceStore) ListCountries(context.Context) ([]*store.Country, error) {
	return []*store.Country{{ID: 1, Name: "U.S"}, {ID: 3, Name: "Canada"}}, f.err
}

func (f *fakeReferenceStore) ListDivisions(_ context.Context, find *store.FindDivision) ([]*store.Division, error) {
	all := []*store.Division{{ID: 1, Name: "Alabama", CountryID: 1}, {ID: 67, Name: "Ontario", CountryID: 3}}
	var list []*store.Division
	for _, d := range all {
		if find != nil && find.CountryID != nil && d.CountryID != *find.CountryID {
			continue
		}
		list = append(list, d)
	}
	return list, f.err
}

func (f *fakeReferenceStore) ListContacts(context.Context) ([]*store.Contact, error) {
	return []*store.Contact{{ID: 1, Name: "Anika Costa", Email: "acoasta@company.com"}}, f.err
}

func (f *fakeReferenceStore) ListUsers(context.Context) ([]*store.User, error) {
	return []*store.User{{ID: 1, Username: "test"}, {ID: 2, Username: "admin"}}, f.err
}

func (f *fakeReferenceStore) CacheStats() map[string]interface{} {
	return map[string]interface{}{"l1_enabled": true}
}

type testAPI struct {
	echo         *echo.Echo
	service      *APIV1Service
	appointments *fakeAppointmentService
	customers    *fakeCustomerService
	reference    *fakeReferenceStore
}

var testNow = time.Date(2024, 3, 1, 13, 50, 0, 0, time.UTC)

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	clock, err := timezone.NewClock("UTC", "UTC", "America/New_York")
	require.NoError(t, err)

	p := &profile.Profile{
		Mode:          "dev",
		BusinessOpen:  "08:00",
		BusinessClose: "22:00",
		RateLimit:     1000,
		RateBurst:     1000,
	}
	api := &testAPI{
		echo:         echo.New(),
		appointments: newFakeAppointmentService(clock),
		customers:    &fakeCustomerService{customers: map[int32]*store.Customer{1: {ID: 1, Name: "Daddy LLC", DivisionID: 1}}},
		reference:    &fakeReferenceStore{},
	}
	api.service = NewAPIV1Service(p, api.reference, api.appointments, api.customers)
	api.service.now = func() time.Time { return testNow }
	api.service.RegisterRoutes(api.echo)
	return api
}

func (a *testAPI) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func validRequest() *AppointmentRequest {
	return &AppointmentRequest{
		Title:      "Kickoff",
		Type:       "Planning",
		Location:   "Room 1",
		StartDate:  "2024-03-01",
		StartTime:  "14:00",
		EndDate:    "2024-03-01",
		EndTime:    "15:00",
		CustomerID: 1,
		UserID:     1,
		ContactID:  1,
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.MissingField("title"), http.StatusBadRequest, "MISSING_FIELD"},
		{apperrors.InvalidTimeFormat("start_time", "9am"), http.StatusBadRequest, "INVALID_TIME_FORMAT"},
		{apperrors.EndBeforeStart(), http.StatusBadRequest, "END_BEFORE_START"},
		{apperrors.OutsideBusinessHours("start", "2024-03-01 07:00:00"), http.StatusBadRequest, "OUTSIDE_BUSINESS_HOURS"},
		{apperrors.OverlappingAppointment(5), http.StatusConflict, "OVERLAPPING_APPOINTMENT"},
		{apperrors.CustomerHasAppointments(1, 2), http.StatusConflict, "CUSTOMER_HAS_APPOINTMENTS"},
		{apperrors.NotFound("appointment", 1), http.StatusNotFound, "NOT_FOUND"},
		{apperrors.UnknownDivision("Atlantis"), http.StatusBadRequest, "UNKNOWN_DIVISION"},
		{apperrors.StoreUnavailable(io.EOF), http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{apperrors.InvalidTimestamp("start", io.EOF), http.StatusInternalServerError, "INVALID_TIMESTAMP"},
		{apperrors.RateLimitExceeded("slow down"), http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{echo.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "INVALID_ARGUMENT"},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, errCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, body := toErrorResponse(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestCreateAppointment(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/appointments", validRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	got := decode[Appointment](t, rec)
	assert.Equal(t, int32(1), got.ID)
	assert.Equal(t, "2024-03-01", got.StartDate)
	assert.Equal(t, "14:00:00", got.StartTime)
	assert.True(t, got.Start.Equal(time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)))
	assert.True(t, got.End.Equal(time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)))
}

func TestCreateAppointmentErrors(t *testing.T) {
	t.Run("invalid body", func(t *testing.T) {
		api := newTestAPI(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader("{"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		api.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_ARGUMENT", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("bad time format carries field and value", func(t *testing.T) {
		api := newTestAPI(t)
		req := validRequest()
		req.StartTime = "2pm"
		rec := api.do(http.MethodPost, "/api/v1/appointments", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[ErrorResponse](t, rec)
		assert.Equal(t, "INVALID_TIME_FORMAT", body.Code)
		assert.Equal(t, "time", body.Field)
		assert.Equal(t, "2pm", body.Value)
	})

	t.Run("overlap is a conflict", func(t *testing.T) {
		api := newTestAPI(t)
		api.appointments.err = apperrors.OverlappingAppointment(1)
		rec := api.do(http.MethodPost, "/api/v1/appointments", validRequest())
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "OVERLAPPING_APPOINTMENT", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("store unavailable", func(t *testing.T) {
		api := newTestAPI(t)
		api.appointments.err = apperrors.StoreUnavailable(io.EOF)
		rec := api.do(http.MethodPost, "/api/v1/appointments", validRequest())
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestAppointmentLifecycle(t *testing.T) {
	api := newTestAPI(t)
	created := decode[Appointment](t, api.do(http.MethodPost, "/api/v1/appointments", validRequest()))

	rec := api.do(http.MethodGet, "/api/v1/appointments/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.Title, decode[Appointment](t, rec).Title)

	full := validRequest()
	full.Title = "Renamed"
	rec = api.do(http.MethodPut, "/api/v1/appointments/1", full)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", decode[Appointment](t, rec).Title)

	rec = api.do(http.MethodPatch, "/api/v1/appointments/1", map[string]string{"end_time": "16:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[Appointment](t, rec)
	assert.Equal(t, "16:00:00", patched.EndTime)
	assert.Equal(t, "Renamed", patched.Title)
	require.NotNil(t, api.appointments.lastPatch)
	assert.Nil(t, api.appointments.lastPatch.Title)

	rec = api.do(http.MethodDelete, "/api/v1/appointments/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/appointments/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/appointments/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAppointments(t *testing.T) {
	api := newTestAPI(t)
	base := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC).Unix()
	api.appointments.seed(&store.Appointment{Title: "Short", Type: "Planning", StartTs: base, EndTs: base + 900, CustomerID: 1, UserID: 1})
	api.appointments.seed(&store.Appointment{Title: "Long", Type: "Review", StartTs: base + 7200, EndTs: base + 10800, CustomerID: 2, UserID: 1})

	rec := api.do(http.MethodGet, "/api/v1/appointments?customer_id=1&limit=10&offset=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]Appointment](t, rec), 1)
	require.NotNil(t, api.appointments.lastFind.Limit)
	assert.Equal(t, 10, *api.appointments.lastFind.Limit)

	rec = api.do(http.MethodGet, "/api/v1/appointments?filter="+url.QueryEscape(`duration_minutes >= 60 && start_hour >= 16`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[[]Appointment](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Long", list[0].Title)

	rec = api.do(http.MethodGet, "/api/v1/appointments?filter="+url.QueryEscape(`appointment_type == "Planning"`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]Appointment](t, rec), 1)

	for _, bad := range []string{"customer_id=x", "user_id=-1", "limit=-5", "filter=" + url.QueryEscape("title +"), "filter=" + url.QueryEscape("title")} {
		rec = api.do(http.MethodGet, "/api/v1/appointments?"+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestListAppointmentsDateRange(t *testing.T) {
	api := newTestAPI(t)
	march1 := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC).Unix()
	march2 := time.Date(2024, 3, 2, 23, 30, 0, 0, time.UTC).Unix()
	api.appointments.seed(&store.Appointment{Title: "First", StartTs: march1, EndTs: march1 + 900, CustomerID: 1, UserID: 1})
	api.appointments.seed(&store.Appointment{Title: "Second", StartTs: march2, EndTs: march2 + 900, CustomerID: 1, UserID: 1})

	rec := api.do(http.MethodGet, "/api/v1/appointments?from=2024-03-01&to=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[[]Appointment](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "First", list[0].Title)
	find := api.appointments.lastFind
	require.NotNil(t, find.StartTsFrom)
	require.NotNil(t, find.StartTsTo)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Unix(), *find.StartTsFrom)
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC).Unix(), *find.StartTsTo)

	rec = api.do(http.MethodGet, "/api/v1/appointments?from=2024-03-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode[[]Appointment](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Second", list[0].Title)
	assert.Nil(t, api.appointments.lastFind.StartTsTo)

	for _, bad := range []string{"from=03/01/2024", "to=2024-02-30", "from=2024-03-02&to=2024-03-01"} {
		rec = api.do(http.MethodGet, "/api/v1/appointments?"+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestValidateAppointment(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/appointments:validate", validRequest())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[ValidationResult](t, rec)
	assert.True(t, result.Valid)
	require.NotNil(t, result.Start)
	assert.True(t, result.Start.Equal(time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)))

	api.appointments.err = apperrors.OutsideBusinessHours("start", "2024-03-01 07:00:00")
	rec = api.do(http.MethodPost, "/api/v1/appointments:validate", validRequest())
	require.Equal(t, http.StatusOK, rec.Code)
	result = decode[ValidationResult](t, rec)
	assert.False(t, result.Valid)
	require.NotNil(t, result.Error)
	assert.Equal(t, "OUTSIDE_BUSINESS_HOURS", result.Error.Code)
	assert.Equal(t, "start", result.Error.Field)

	api.appointments.err = apperrors.StoreUnavailable(io.EOF)
	rec = api.do(http.MethodPost, "/api/v1/appointments:validate", validRequest())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCheckBusinessHours(t *testing.T) {
	api := newTestAPI(t)
	tests := []struct {
		query  string
		within bool
	}{
		// UTC local, New York reference (EST, UTC-5).
		{"date=2024-03-01&time=13:00", true},
		{"date=2024-03-01&time=12:59:59", false},
		{"date=2024-03-02&time=03:00", true},
		{"date=2024-03-02&time=03:00:01", false},
	}
	for _, tt := range tests {
		rec := api.do(http.MethodGet, "/api/v1/business-hours?"+tt.query, nil)
		require.Equal(t, http.StatusOK, rec.Code, tt.query)
		result := decode[BusinessHoursResult](t, rec)
		assert.Equal(t, tt.within, result.Within, tt.query)
		assert.Equal(t, "America/New_York", result.ReferenceZone)
		assert.Equal(t, "08:00", result.Open)
	}

	rec := api.do(http.MethodGet, "/api/v1/business-hours?date=03/01/2024&time=13:00", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TIME_FORMAT", decode[ErrorResponse](t, rec).Code)
}

func TestListUpcomingAppointments(t *testing.T) {
	api := newTestAPI(t)
	base := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC).Unix()
	api.appointments.seed(&store.Appointment{Title: "Soon", StartTs: base, EndTs: base + 900, CustomerID: 1, UserID: 2})

	rec := api.do(http.MethodGet, "/api/v1/users/2/upcoming", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]Appointment](t, rec), 1)
	assert.Equal(t, testNow, api.appointments.upcomingNow)
}

func TestCustomerEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/v1/customers", &CustomerRequest{Name: "Lady Mary", DivisionID: 67})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[Customer](t, rec)
	assert.Equal(t, int32(67), created.DivisionID)

	rec = api.do(http.MethodPost, "/api/v1/customers", &CustomerRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", decode[ErrorResponse](t, rec).Field)

	rec = api.do(http.MethodGet, "/api/v1/customers?division_id=67", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]Customer](t, rec), 1)

	rec = api.do(http.MethodPut, "/api/v1/customers/1", &CustomerRequest{Name: "Daddy Inc"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Daddy Inc", decode[Customer](t, rec).Name)

	rec = api.do(http.MethodGet, "/api/v1/customers/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	api.customers.err = apperrors.CustomerHasAppointments(1, 2)
	rec = api.do(http.MethodDelete, "/api/v1/customers/1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "CUSTOMER_HAS_APPOINTMENTS", body.Code)
	assert.EqualValues(t, 2, body.Context["appointments"])

	api.customers.err = nil
	rec = api.do(http.MethodDelete, "/api/v1/customers/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReferenceEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/v1/divisions?country_id=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	divisions := decode[[]Division](t, rec)
	require.Len(t, divisions, 1)
	assert.Equal(t, "Ontario", divisions[0].Name)

	for _, path := range []string{"/api/v1/countries", "/api/v1/contacts", "/api/v1/users"} {
		rec = api.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	api.reference.err = io.EOF
	rec = api.do(http.MethodGet, "/api/v1/countries", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExportCustomerCalendar(t *testing.T) {
	api := newTestAPI(t)
	base := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC).Unix()
	api.appointments.seed(&store.Appointment{Title: "Kickoff", StartTs: base, EndTs: base + 3600, CustomerID: 1, UserID: 1, ContactID: 1})
	api.appointments.seed(&store.Appointment{Title: "Other customer", StartTs: base, EndTs: base + 3600, CustomerID: 2, UserID: 1})

	rec := api.do(http.MethodGet, "/api/v1/customers/1/appointments.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, calendarContentType, rec.Header().Get(echo.HeaderContentType))
	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "SUMMARY:Kickoff")
	assert.Contains(t, body, "DTSTART:20240301T140000Z")
	assert.Contains(t, body, "mailto:acoasta@company.com")

	rec = api.do(http.MethodGet, "/api/v1/customers/42/appointments.ics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUserFeed(t *testing.T) {
	api := newTestAPI(t)
	base := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC).Unix()
	api.appointments.seed(&store.Appointment{Title: "Kickoff", Description: "**bring** the contract", StartTs: base, EndTs: base + 3600, CustomerID: 1, UserID: 1})

	rec := api.do(http.MethodGet, "/api/v1/users/1/feed.rss", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, rssContentType, rec.Header().Get(echo.HeaderContentType))
	body := rec.Body.String()
	assert.Contains(t, body, "Appointments of test")
	assert.Contains(t, body, "Kickoff (2024-03-01 14:00:00)")
	assert.Contains(t, body, "&lt;strong&gt;bring&lt;/strong&gt;")

	find := api.appointments.lastFind
	require.NotNil(t, find.StartTsFrom)
	assert.Equal(t, testNow.Unix(), *find.StartTsFrom)
	assert.Equal(t, maxFeedItems, *find.Limit)

	rec = api.do(http.MethodGet, "/api/v1/users/9/feed.rss", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsOverview(t *testing.T) {
	api := newTestAPI(t)
	api.do(http.MethodGet, "/api/v1/countries", nil)
	api.do(http.MethodGet, "/api/v1/appointments/7", nil)

	rec := api.do(http.MethodGet, "/api/v1/system/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[MetricsOverviewResponse](t, rec)
	// The metrics request itself is recorded after the snapshot.
	assert.EqualValues(t, 2, overview.TotalRequests)
	assert.EqualValues(t, 1, overview.ErrorCount)
	assert.EqualValues(t, 1, overview.Rejections["NOT_FOUND"])
	assert.Contains(t, overview.Operations, "GET /api/v1/appointments/:id")
	assert.Equal(t, true, overview.Cache["l1_enabled"])
	assert.Nil(t, overview.Appointments)
}

func TestRateLimitAndUnknownRoute(t *testing.T) {
	api := newTestAPI(t)
	api.service.Profile.RateLimit, api.service.Profile.RateBurst = 0.001, 1
	limited := NewAPIV1Service(api.service.Profile, api.reference, api.appointments, api.customers)
	api.echo = echo.New()
	limited.RegisterRoutes(api.echo)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/countries", nil).Code)
	rec := api.do(http.MethodGet, "/api/v1/countries", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode[ErrorResponse](t, rec).Code)
	assert.EqualValues(t, 1, limited.Metrics.Snapshot().Rejections["RATE_LIMIT_EXCEEDED"])

	rec = api.do(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, rec).Code)
}

func TestListFreeSlots(t *testing.T) {
	api := newTestAPI(t)
	// 10:00-11:00 in New York.
	api.appointments.seed(&store.Appointment{
		Title: "Kickoff", CustomerID: 1,
		StartTs: time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC).Unix(),
		EndTs:   time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC).Unix(),
	})

	rec := api.do(http.MethodGet, "/api/v1/customers/1/free-slots?days=1&limit=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	slots := decode[[]*FreeSlot](t, rec)
	require.Len(t, slots, 3)
	// Slots before testNow are skipped; the one ending at 15:00 touches the booking.
	assert.Equal(t, "14:00:00", slots[0].StartTime)
	assert.Equal(t, "15:00:00", slots[0].EndTime)
	assert.Equal(t, "2024-03-01", slots[0].StartDate)
	assert.Equal(t, "16:00:00", slots[1].StartTime)
	assert.Equal(t, "16:30:00", slots[2].StartTime)
	assert.True(t, slots[1].Start.Equal(time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)))

	rec = api.do(http.MethodGet, "/api/v1/customers/1/free-slots?from=2024-03-04&days=1&duration_minutes=120&step_minutes=60&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	slots = decode[[]*FreeSlot](t, rec)
	require.Len(t, slots, 1)
	// UTC midnight is still Sunday evening in New York.
	assert.Equal(t, "2024-03-04", slots[0].StartDate)
	assert.Equal(t, "00:00:00", slots[0].StartTime)
	assert.Equal(t, "02:00:00", slots[0].EndTime)

	// A window entirely in the past is empty.
	rec = api.do(http.MethodGet, "/api/v1/customers/1/free-slots?from=2024-02-01&days=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]*FreeSlot](t, rec))

	tests := []struct {
		target string
		status int
		code   string
	}{
		{"/api/v1/customers/9/free-slots", http.StatusNotFound, "NOT_FOUND"},
		{"/api/v1/customers/1/free-slots?days=31", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"/api/v1/customers/1/free-slots?duration_minutes=0", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"/api/v1/customers/1/free-slots?exclude_weekend=maybe", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"/api/v1/customers/1/free-slots?from=2024-13-01", http.StatusBadRequest, "INVALID_TIME_FORMAT"},
	}
	for _, tt := range tests {
		rec := api.do(http.MethodGet, tt.target, nil)
		assert.Equal(t, tt.status, rec.Code, tt.target)
		assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code, tt.target)
	}
}
