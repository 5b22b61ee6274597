package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/apptscheduler/internal/profile"
	"github.com/hrygo/apptscheduler/server/internal/observability"
	"github.com/hrygo/apptscheduler/server/middleware"
	"github.com/hrygo/apptscheduler/server/scheduler/suggestion"
	"github.com/hrygo/apptscheduler/server/service/appointment"
	"github.com/hrygo/apptscheduler/server/service/customer"
	"github.com/hrygo/apptscheduler/server/stats"
	"github.com/hrygo/apptscheduler/store"
)

// Store is the read-only part of the store served directly by the API.
type Store interface {
	ListCountries(ctx context.Context) ([]*store.Country, error)
	ListDivisions(ctx context.Context, find *store.FindDivision) ([]*store.Division, error)
	ListContacts(ctx context.Context) ([]*store.Contact, error)
	ListUsers(ctx context.Context) ([]*store.User, error)
	CacheStats() map[string]interface{}
}

type APIV1Service struct {
	Profile            *profile.Profile
	Store              Store
	AppointmentService appointment.Service
	CustomerService    customer.Service
	Metrics            *observability.Metrics
	Slots              *suggestion.Finder
	// Stats is optional; the metrics overview omits appointment statistics without it.
	Stats *stats.Collector

	rateLimiter *middleware.RateLimiter
	startedAt   time.Time
	// now is replaced in tests.
	now func() time.Time
}

func NewAPIV1Service(profile *profile.Profile, st Store, appointments appointment.Service, customers customer.Service) *APIV1Service {
	return &APIV1Service{
		Profile:            profile,
		Store:              st,
		AppointmentService: appointments,
		CustomerService:    customers,
		Slots:              suggestion.NewFinder(appointments, appointments.Clock(), appointments.Hours()),
		Metrics:            observability.NewMetrics(),
		rateLimiter:        middleware.NewRateLimiter(profile.RateLimit, profile.RateBurst),
		startedAt:          time.Now(),
		now:                time.Now,
	}
}

// RegisterRoutes registers the REST API with the given Echo instance and
// installs the JSON error handler.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.HTTPErrorHandler = s.handleError

	api := echoServer.Group("/api/v1")
	api.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
	}))
	api.Use(echomiddleware.BodyLimit("1M"))
	api.Use(s.observe)
	api.Use(s.rateLimiter.Middleware())

	// Appointments. The escaped colon keeps ":validate" a literal segment.
	api.POST("/appointments", s.CreateAppointment)
	api.POST("/appointments\\:validate", s.ValidateAppointment)
	api.GET("/appointments", s.ListAppointments)
	api.GET("/appointments/:id", s.GetAppointment)
	api.PUT("/appointments/:id", s.UpdateAppointment)
	api.PATCH("/appointments/:id", s.PatchAppointment)
	api.DELETE("/appointments/:id", s.DeleteAppointment)
	api.GET("/business-hours", s.CheckBusinessHours)
	api.GET("/users/:id/upcoming", s.ListUpcomingAppointments)
	api.GET("/users/:id/feed.rss", s.GetUserFeed)

	// Customers.
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomer)
	api.PUT("/customers/:id", s.UpdateCustomer)
	api.DELETE("/customers/:id", s.DeleteCustomer)
	api.GET("/customers/:id/appointments.ics", s.ExportCustomerCalendar)
	api.GET("/customers/:id/free-slots", s.ListFreeSlots)

	// Reference data.
	api.GET("/countries", s.ListCountries)
	api.GET("/divisions", s.ListDivisions)
	api.GET("/contacts", s.ListContacts)
	api.GET("/users", s.ListUsers)

	api.GET("/system/metrics", s.GetMetricsOverview)
}
