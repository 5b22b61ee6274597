package v1

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/server/internal/observability"
)

// errCodeInternal is reported for failures that carry no scheduling code.
const errCodeInternal = "INTERNAL"

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Value   string                 `json:"value,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// httpStatus maps a scheduling code to its HTTP status.
func httpStatus(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeMissingField,
		apperrors.ErrCodeInvalidTimeFormat,
		apperrors.ErrCodeEndBeforeStart,
		apperrors.ErrCodeOutsideBusinessHours,
		apperrors.ErrCodeUnknownDivision,
		apperrors.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.ErrCodeOverlappingAppointment, apperrors.ErrCodeCustomerHasAppointments:
		return http.StatusConflict
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// toErrorResponse converts any handler error into a status and body.
func toErrorResponse(err error) (int, *ErrorResponse) {
	if se, ok := apperrors.As(err); ok {
		return httpStatus(se.Code), &ErrorResponse{
			Code:    string(se.Code),
			Message: se.Message,
			Field:   se.Field,
			Value:   se.Value,
			Context: se.Context,
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			message = m
		}
		return he.Code, &ErrorResponse{Code: codeForStatus(he.Code), Message: message}
	}
	return http.StatusInternalServerError, &ErrorResponse{Code: errCodeInternal, Message: "internal error"}
}

// codeForStatus names plain HTTP failures with the closest scheduling code.
func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return string(apperrors.ErrCodeNotFound)
	case http.StatusTooManyRequests:
		return string(apperrors.ErrCodeRateLimitExceeded)
	case http.StatusServiceUnavailable:
		return string(apperrors.ErrCodeStoreUnavailable)
	}
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return string(apperrors.ErrCodeInvalidArgument)
	}
	return errCodeInternal
}

// handleError is the echo HTTPErrorHandler of the API.
func (s *APIV1Service) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := toErrorResponse(err)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(c.Request().Context()).Error("request failed",
			slog.String(observability.LogFieldErrorCode, body.Code),
			slog.Int(observability.LogFieldStatus, status),
			slog.String("error", err.Error()),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		slog.Warn("failed to write error response", "error", err)
	}
}

func invalidArgument(format string, args ...any) error {
	return apperrors.InvalidArgument(fmt.Sprintf(format, args...))
}

// parseID reads a positive int32 path parameter.
func parseID(c echo.Context, name string) (int32, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, invalidArgument("invalid %s: %q", name, raw)
	}
	return int32(id), nil
}

// parseOptionalID reads an optional positive int32 query parameter.
func parseOptionalID(c echo.Context, name string) (*int32, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return nil, invalidArgument("invalid %s: %q", name, raw)
	}
	v := int32(id)
	return &v, nil
}

// parseOptionalInt reads an optional non-negative int query parameter.
func parseOptionalInt(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, invalidArgument("invalid %s: %q", name, raw)
	}
	return &v, nil
}
