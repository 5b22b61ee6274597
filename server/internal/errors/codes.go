package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific scheduling failure.
type ErrorCode string

const (
	// ErrCodeMissingField indicates a required field is empty after trimming.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidTimeFormat indicates a date or time string could not be parsed.
	ErrCodeInvalidTimeFormat ErrorCode = "INVALID_TIME_FORMAT"
	// ErrCodeEndBeforeStart indicates end is not strictly after start.
	ErrCodeEndBeforeStart ErrorCode = "END_BEFORE_START"
	// ErrCodeOutsideBusinessHours indicates start or end falls outside business hours.
	ErrCodeOutsideBusinessHours ErrorCode = "OUTSIDE_BUSINESS_HOURS"
	// ErrCodeOverlappingAppointment indicates the interval intersects another booking of the customer.
	ErrCodeOverlappingAppointment ErrorCode = "OVERLAPPING_APPOINTMENT"

	// ErrCodeStoreUnavailable indicates the record store could not be reached.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrCodeInvalidTimestamp indicates a calendar value that cannot be converted between zones.
	ErrCodeInvalidTimestamp ErrorCode = "INVALID_TIMESTAMP"

	// ErrCodeNotFound indicates the requested record does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeCustomerHasAppointments indicates a customer cannot be deleted while owning appointments.
	ErrCodeCustomerHasAppointments ErrorCode = "CUSTOMER_HAS_APPOINTMENTS"
	// ErrCodeUnknownDivision indicates the customer division is not in reference data.
	ErrCodeUnknownDivision ErrorCode = "UNKNOWN_DIVISION"
	// ErrCodeInvalidArgument indicates a malformed request parameter.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// Category groups error codes by who has to act on them.
type Category string

const (
	// CategoryValidation means the caller must fix the input.
	CategoryValidation Category = "validation"
	// CategoryInfrastructure means the caller should try again later.
	CategoryInfrastructure Category = "infrastructure"
	// CategoryRequest covers the remaining service-level refusals.
	CategoryRequest Category = "request"
)

// Category returns the category of the code.
func (c ErrorCode) Category() Category {
	switch c {
	case ErrCodeMissingField, ErrCodeInvalidTimeFormat, ErrCodeEndBeforeStart,
		ErrCodeOutsideBusinessHours, ErrCodeOverlappingAppointment:
		return CategoryValidation
	case ErrCodeStoreUnavailable, ErrCodeInvalidTimestamp:
		return CategoryInfrastructure
	default:
		return CategoryRequest
	}
}

// SchedulingError represents a structured scheduling failure.
type SchedulingError struct {
	Code    ErrorCode
	Message string
	// Field names the offending input field, if any.
	Field string
	// Value is the offending raw value, if any.
	Value   string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *SchedulingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SchedulingError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *SchedulingError) WithContext(key string, value interface{}) *SchedulingError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *SchedulingError) GetCode() ErrorCode {
	return e.Code
}

// Category returns the category of the error code.
func (e *SchedulingError) Category() Category {
	return e.Code.Category()
}

// Convenience constructors for common error types.

// MissingField creates a missing field error.
func MissingField(field string) *SchedulingError {
	return &SchedulingError{
		Code:    ErrCodeMissingField,
		Message: fmt.Sprintf("%s is required", field),
		Field:   field,
	}
}

// InvalidTimeFormat creates an invalid time format error.
func InvalidTimeFormat(field, value string) *SchedulingError {
	return &SchedulingError{
		Code:    ErrCodeInvalidTimeFormat,
		Message: fmt.Sprintf("%s has an invalid format: %q", field, value),
		Field:   field,
		Value:   value,
	}
}

// EndBeforeStart creates an end-before-start error.
func EndBeforeStart() *SchedulingError {
	return &SchedulingError{Code: ErrCodeEndBeforeStart, Message: "end must be after start"}
}

// OutsideBusinessHours creates an outside business hours error. which is
// "start" or "end", localTime is the violating wall clock as entered.
func OutsideBusinessHours(which, localTime string) *SchedulingError {
	return &SchedulingError{
		Code:    ErrCodeOutsideBusinessHours,
		Message: fmt.Sprintf("%s time %s is outside business hours", which, localTime),
		Field:   which,
		Value:   localTime,
	}
}

// OverlappingAppointment creates an overlapping appointment error.
func OverlappingAppointment(customerID int32) *SchedulingError {
	return (&SchedulingError{
		Code:    ErrCodeOverlappingAppointment,
		Message: "appointment overlaps an existing appointment for this customer",
	}).WithContext("customer_id", customerID)
}

// StoreUnavailable creates a store unavailable error.
func StoreUnavailable(cause error) *SchedulingError {
	return &SchedulingError{Code: ErrCodeStoreUnavailable, Message: "record store unavailable", Cause: cause}
}

// InvalidTimestamp creates an invalid timestamp error.
func InvalidTimestamp(field string, cause error) *SchedulingError {
	return &SchedulingError{
		Code:    ErrCodeInvalidTimestamp,
		Message: fmt.Sprintf("%s is not a valid calendar time", field),
		Field:   field,
		Cause:   cause,
	}
}

// NotFound creates a not found error.
func NotFound(kind string, id int32) *SchedulingError {
	return &SchedulingError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %d not found", kind, id)}
}

// CustomerHasAppointments creates a customer-has-appointments error.
func CustomerHasAppointments(customerID int32, count int) *SchedulingError {
	return (&SchedulingError{
		Code:    ErrCodeCustomerHasAppointments,
		Message: fmt.Sprintf("customer %d still has %d appointment(s)", customerID, count),
	}).WithContext("appointments", count)
}

// UnknownDivision creates an unknown division error.
func UnknownDivision(division string) *SchedulingError {
	return &SchedulingError{
		Code:    ErrCodeUnknownDivision,
		Message: fmt.Sprintf("unknown division: %s", division),
		Field:   "division",
		Value:   division,
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *SchedulingError {
	return &SchedulingError{Code: ErrCodeInvalidArgument, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *SchedulingError {
	return &SchedulingError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *SchedulingError {
	return &SchedulingError{Code: code, Message: msg, Cause: cause}
}

// As extracts the first SchedulingError in err's chain.
func As(err error) (*SchedulingError, bool) {
	var se *SchedulingError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if se, ok := As(err); ok {
		return se.Code == code
	}
	return false
}

// IsValidation reports whether err is a user-input failure.
func IsValidation(err error) bool {
	se, ok := As(err)
	return ok && se.Category() == CategoryValidation
}

// IsInfrastructure reports whether err is an infrastructure fault.
func IsInfrastructure(err error) bool {
	se, ok := As(err)
	return ok && se.Category() == CategoryInfrastructure
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a SchedulingError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if se, ok := As(err); ok {
		return se.Code
	}
	return defaultCode
}
