package v1

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/hrygo/apptscheduler/server/service/appointment"
	"github.com/hrygo/apptscheduler/server/timezone"
	"github.com/hrygo/apptscheduler/store"
)

// Appointment list filters are CEL expressions over these variables, e.g.
//
//	appointment_type == "Planning" && start_hour >= 12
//
// Hours and dates are in the local zone.
var filterEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("title", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("appointment_type", cel.StringType),
		cel.Variable("customer_id", cel.IntType),
		cel.Variable("user_id", cel.IntType),
		cel.Variable("contact_id", cel.IntType),
		cel.Variable("start_ts", cel.IntType),
		cel.Variable("end_ts", cel.IntType),
		cel.Variable("start_date", cel.StringType),
		cel.Variable("start_hour", cel.IntType),
		cel.Variable("duration_minutes", cel.IntType),
	)
})

// appointmentFilter is a compiled list filter.
type appointmentFilter struct {
	program cel.Program
}

func compileFilter(expr string) (*appointmentFilter, error) {
	env, err := filterEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, invalidArgument("invalid filter: %v", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, invalidArgument("filter must be a boolean expression, got %s", ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, invalidArgument("invalid filter: %v", err)
	}
	return &appointmentFilter{program: program}, nil
}

// Match evaluates the filter against one appointment.
func (f *appointmentFilter) Match(clock *timezone.Clock, a *store.Appointment) (bool, error) {
	start := clock.ToLocal(clock.FromUnix(a.StartTs))
	out, _, err := f.program.Eval(map[string]any{
		"title":            a.Title,
		"description":      a.Description,
		"location":         a.Location,
		"appointment_type": a.Type,
		"customer_id":      int64(a.CustomerID),
		"user_id":          int64(a.UserID),
		"contact_id":       int64(a.ContactID),
		"start_ts":         a.StartTs,
		"end_ts":           a.EndTs,
		"start_date":       start.String()[:len(appointment.DateLayout)],
		"start_hour":       int64(start.Hour),
		"duration_minutes": (a.EndTs - a.StartTs) / 60,
	})
	if err != nil {
		return false, invalidArgument("failed to evaluate filter: %v", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, invalidArgument("filter did not produce a boolean")
	}
	return matched, nil
}

// Apply keeps the appointments matching f.
func (f *appointmentFilter) Apply(clock *timezone.Clock, list []*store.Appointment) ([]*store.Appointment, error) {
	filtered := make([]*store.Appointment, 0, len(list))
	for _, a := range list {
		ok, err := f.Match(clock, a)
		if err != nil {
			return nil, err
		}
		if ok {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}
