package v1

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/apptscheduler/server/internal/observability"
)

// observe attaches a request context to every request and records its
// outcome in the metrics.
func (s *APIV1Service) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		requestID := req.Header.Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, requestID)

		operation := req.Method + " " + c.Path()
		reqCtx := observability.NewRequestContextWithID(slog.Default(), requestID, operation)
		c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), reqCtx)))

		err := next(c)

		status, code := c.Response().Status, ""
		if err != nil {
			var body *ErrorResponse
			status, body = toErrorResponse(err)
			code = body.Code
		} else if status >= http.StatusBadRequest {
			code = codeForStatus(status)
		}
		s.Metrics.Record(operation, reqCtx.Duration(), code)
		reqCtx.Debug("request completed",
			slog.Int(observability.LogFieldStatus, status),
			slog.String(observability.LogFieldErrorCode, code),
			slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
		)
		return err
	}
}
