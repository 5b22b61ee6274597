package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hrygo/apptscheduler/internal/profile"
	"github.com/hrygo/apptscheduler/plugin/events"
	"github.com/hrygo/apptscheduler/plugin/tracing"
	apiv1 "github.com/hrygo/apptscheduler/server/router/api/v1"
	"github.com/hrygo/apptscheduler/server/service/appointment"
	"github.com/hrygo/apptscheduler/server/service/customer"
	"github.com/hrygo/apptscheduler/server/stats"
	"github.com/hrygo/apptscheduler/server/timezone"
	"github.com/hrygo/apptscheduler/store"
)

// statsInterval is how often appointment statistics are recomputed.
const statsInterval = 5 * time.Minute

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	stats      *stats.Collector
	echoServer *echo.Echo
	httpServer *http.Server
}

// NewServer wires services and routes. publisher receives appointment events.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store, publisher events.Publisher) (*Server, error) {
	s := &Server{
		Store:   store,
		Profile: profile,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	s.echoServer = echoServer

	// Health check endpoint.
	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	clock, err := timezone.NewClock(profile.LocalZone, profile.CanonicalZone, profile.ReferenceZone)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build clock")
	}
	open, err := parseHours(profile.BusinessOpen)
	if err != nil {
		return nil, err
	}
	closing, err := parseHours(profile.BusinessClose)
	if err != nil {
		return nil, err
	}

	appointmentService := appointment.NewService(store, appointment.Options{
		Clock:         clock,
		BusinessOpen:  open,
		BusinessClose: closing,
		Publisher:     publisher,
	})
	customerService := customer.NewService(store)
	s.stats = stats.NewCollector(store, clock.Reference)
	apiV1Service := apiv1.NewAPIV1Service(s.Profile, s.Store, appointmentService, customerService)
	apiV1Service.Stats = s.stats
	apiV1Service.RegisterRoutes(echoServer)

	s.httpServer = &http.Server{
		Handler:           otelhttp.NewHandler(echoServer, tracing.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	slog.Info("server configured",
		"local_zone", clock.Local.String(),
		"canonical_zone", clock.Canonical.String(),
		"reference_zone", clock.Reference.String(),
		"business_open", profile.BusinessOpen,
		"business_close", profile.BusinessClose,
	)
	return s, nil
}

func parseHours(s string) (time.Duration, error) {
	d, err := profile.ParseTimeOfDay(s)
	if err != nil {
		return 0, errors.Wrap(err, "invalid business hours")
	}
	return d, nil
}

// Start begins statistics collection, then listens on the profile address
// and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.stats.Start(ctx, statsInterval)

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	slog.Info("http server starting", "addr", listener.Addr().String())
	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Shutdown stops accepting requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	s.stats.Stop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	slog.Info("apptscheduler stopped properly")
}

// Handler exposes the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
