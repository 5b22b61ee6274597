package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/server/internal/observability"
	"github.com/hrygo/apptscheduler/server/service/appointment"
	"github.com/hrygo/apptscheduler/server/timezone"
	"github.com/hrygo/apptscheduler/store"
)

// AppointmentRequest carries appointment fields as entered in the local zone.
type AppointmentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Type        string `json:"type"`
	StartDate   string `json:"start_date"`
	StartTime   string `json:"start_time"`
	EndDate     string `json:"end_date"`
	EndTime     string `json:"end_time"`
	CustomerID  int32  `json:"customer_id"`
	UserID      int32  `json:"user_id"`
	ContactID   int32  `json:"contact_id"`
}

func (r *AppointmentRequest) raw() appointment.RawFields {
	return appointment.RawFields{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Type:        r.Type,
		StartDate:   r.StartDate,
		StartTime:   r.StartTime,
		EndDate:     r.EndDate,
		EndTime:     r.EndTime,
		CustomerID:  r.CustomerID,
		UserID:      r.UserID,
		ContactID:   r.ContactID,
	}
}

// ValidateAppointmentRequest validates a modification of ID when it is set.
type ValidateAppointmentRequest struct {
	ID *int32 `json:"id"`
	AppointmentRequest
}

// PatchAppointmentRequest holds the fields to change; absent fields are kept.
type PatchAppointmentRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Type        *string `json:"type"`
	StartDate   *string `json:"start_date"`
	StartTime   *string `json:"start_time"`
	EndDate     *string `json:"end_date"`
	EndTime     *string `json:"end_time"`
	CustomerID  *int32  `json:"customer_id"`
	UserID      *int32  `json:"user_id"`
	ContactID   *int32  `json:"contact_id"`
}

func (r *PatchAppointmentRequest) patch() *appointment.PatchRequest {
	return &appointment.PatchRequest{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Type:        r.Type,
		StartDate:   r.StartDate,
		StartTime:   r.StartTime,
		EndDate:     r.EndDate,
		EndTime:     r.EndTime,
		CustomerID:  r.CustomerID,
		UserID:      r.UserID,
		ContactID:   r.ContactID,
	}
}

// Appointment is the API view of a stored appointment. Date and time fields
// are in the local zone; Start and End are the canonical instants.
type Appointment struct {
	ID          int32     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Type        string    `json:"type"`
	StartDate   string    `json:"start_date"`
	StartTime   string    `json:"start_time"`
	EndDate     string    `json:"end_date"`
	EndTime     string    `json:"end_time"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	CustomerID  int32     `json:"customer_id"`
	UserID      int32     `json:"user_id"`
	ContactID   int32     `json:"contact_id"`
	CreatedTs   int64     `json:"created_ts"`
	UpdatedTs   int64     `json:"updated_ts"`
}

// ValidationResult is the response of the validate endpoint. Validation
// failures are reported in Error with status 200 so forms can show them.
type ValidationResult struct {
	Valid bool           `json:"valid"`
	Start *time.Time     `json:"start,omitempty"`
	End   *time.Time     `json:"end,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// BusinessHoursResult is the response of the business hours check.
type BusinessHoursResult struct {
	Within        bool   `json:"within"`
	Open          string `json:"open"`
	Close         string `json:"close"`
	ReferenceZone string `json:"reference_zone"`
}

func (s *APIV1Service) convertAppointment(a *store.Appointment) *Appointment {
	clock := s.AppointmentService.Clock()
	raw := appointment.RawFieldsOf(clock, a)
	return &Appointment{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Location:    a.Location,
		Type:        a.Type,
		StartDate:   raw.StartDate,
		StartTime:   raw.StartTime,
		EndDate:     raw.EndDate,
		EndTime:     raw.EndTime,
		Start:       clock.FromUnix(a.StartTs),
		End:         clock.FromUnix(a.EndTs),
		CustomerID:  a.CustomerID,
		UserID:      a.UserID,
		ContactID:   a.ContactID,
		CreatedTs:   a.CreatedTs,
		UpdatedTs:   a.UpdatedTs,
	}
}

func (s *APIV1Service) convertAppointments(list []*store.Appointment) []*Appointment {
	return convertList(list, s.convertAppointment)
}

func bindJSON(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return invalidArgument("invalid request body")
	}
	return nil
}

// CreateAppointment handles POST /api/v1/appointments.
func (s *APIV1Service) CreateAppointment(c echo.Context) error {
	var req AppointmentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	created, err := s.AppointmentService.CreateAppointment(c.Request().Context(), req.raw())
	if err != nil {
		return err
	}
	if reqCtx, ok := observability.FromContext(c.Request().Context()); ok {
		reqCtx.Info("appointment created",
			slog.Int(observability.LogFieldAppointmentID, int(created.ID)),
			slog.Int(observability.LogFieldCustomerID, int(created.CustomerID)),
		)
	}
	return c.JSON(http.StatusCreated, s.convertAppointment(created))
}

// GetAppointment handles GET /api/v1/appointments/:id.
func (s *APIV1Service) GetAppointment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	found, err := s.AppointmentService.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.convertAppointment(found))
}

// UpdateAppointment handles PUT /api/v1/appointments/:id.
func (s *APIV1Service) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req AppointmentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	updated, err := s.AppointmentService.UpdateAppointment(c.Request().Context(), id, req.raw())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.convertAppointment(updated))
}

// PatchAppointment handles PATCH /api/v1/appointments/:id.
func (s *APIV1Service) PatchAppointment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req PatchAppointmentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	updated, err := s.AppointmentService.PatchAppointment(c.Request().Context(), id, req.patch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.convertAppointment(updated))
}

// DeleteAppointment handles DELETE /api/v1/appointments/:id.
func (s *APIV1Service) DeleteAppointment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.AppointmentService.DeleteAppointment(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListAppointments handles GET /api/v1/appointments. Supported query
// parameters are customer_id, user_id, contact_id, limit, offset and a CEL
// filter applied after the store query.
func (s *APIV1Service) ListAppointments(c echo.Context) error {
	find := &store.FindAppointment{}
	var err error
	if find.CustomerID, err = parseOptionalID(c, "customer_id"); err != nil {
		return err
	}
	if find.UserID, err = parseOptionalID(c, "user_id"); err != nil {
		return err
	}
	if find.ContactID, err = parseOptionalID(c, "contact_id"); err != nil {
		return err
	}
	if find.Limit, err = parseOptionalInt(c, "limit"); err != nil {
		return err
	}
	if find.Offset, err = parseOptionalInt(c, "offset"); err != nil {
		return err
	}
	clock := s.AppointmentService.Clock()
	if find.StartTsFrom, err = localDayStart(clock, c.QueryParam("from"), 0); err != nil {
		return err
	}
	if find.StartTsTo, err = localDayStart(clock, c.QueryParam("to"), 1); err != nil {
		return err
	}
	if find.StartTsTo != nil {
		// to is an inclusive local date.
		*find.StartTsTo--
	}
	if find.StartTsFrom != nil && find.StartTsTo != nil && *find.StartTsFrom > *find.StartTsTo {
		return invalidArgument("from must not be after to")
	}

	var filter *appointmentFilter
	if expr := c.QueryParam("filter"); expr != "" {
		if filter, err = compileFilter(expr); err != nil {
			return err
		}
	}

	list, err := s.AppointmentService.ListAppointments(c.Request().Context(), find)
	if err != nil {
		return err
	}
	if filter != nil {
		if list, err = filter.Apply(clock, list); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, s.convertAppointments(list))
}

// localDayStart returns the canonical Unix second of local midnight, days
// after the date raw. An empty raw yields nil.
func localDayStart(clock *timezone.Clock, raw string, days int) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	w, err := appointment.ParseWallClock(raw, "00:00")
	if err != nil {
		return nil, err
	}
	if days != 0 {
		w = timezone.WallClockOf(time.Date(w.Year, w.Month, w.Day+days, 0, 0, 0, 0, time.UTC))
	}
	start, err := clock.ToCanonical(w)
	if err != nil {
		return nil, err
	}
	ts := start.Unix()
	return &ts, nil
}

// ValidateAppointment handles POST /api/v1/appointments:validate.
func (s *APIV1Service) ValidateAppointment(c echo.Context) error {
	var req ValidateAppointmentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	normalized, err := s.AppointmentService.Validate(c.Request().Context(), req.ID, req.raw())
	if err != nil {
		if !apperrors.IsValidation(err) {
			return err
		}
		_, body := toErrorResponse(err)
		return c.JSON(http.StatusOK, &ValidationResult{Valid: false, Error: body})
	}
	return c.JSON(http.StatusOK, &ValidationResult{
		Valid: true,
		Start: &normalized.Start,
		End:   &normalized.End,
	})
}

// CheckBusinessHours handles GET /api/v1/business-hours?date=&time=.
func (s *APIV1Service) CheckBusinessHours(c echo.Context) error {
	w, err := appointment.ParseWallClock(c.QueryParam("date"), c.QueryParam("time"))
	if err != nil {
		return err
	}
	within, err := s.AppointmentService.IsWithinBusinessHours(w)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &BusinessHoursResult{
		Within:        within,
		Open:          s.Profile.BusinessOpen,
		Close:         s.Profile.BusinessClose,
		ReferenceZone: s.AppointmentService.Clock().Reference.String(),
	})
}

// ListUpcomingAppointments handles GET /api/v1/users/:id/upcoming.
func (s *APIV1Service) ListUpcomingAppointments(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	list, err := s.AppointmentService.ListUpcoming(c.Request().Context(), userID, s.now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.convertAppointments(list))
}
