package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/apptscheduler/store"
)

const appointmentColumns = `id, title, description, location, type, start_ts, end_ts,
			customer_id, user_id, contact_id, created_ts, updated_ts`

func (d *DB) CreateAppointment(ctx context.Context, create *store.Appointment) (*store.Appointment, error) {
	fields := []string{
		"title", "description", "location", "type", "start_ts", "end_ts",
		"customer_id", "user_id", "contact_id",
	}
	args := []any{
		create.Title, create.Description, create.Location, create.Type, create.StartTs, create.EndTs,
		create.CustomerID, create.UserID, create.ContactID,
	}
	if create.CreatedTs != 0 {
		fields, args = append(fields, "created_ts"), append(args, create.CreatedTs)
	}
	if create.UpdatedTs != 0 {
		fields, args = append(fields, "updated_ts"), append(args, create.UpdatedTs)
	}

	stmt := `INSERT INTO appointment (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return create, nil
}

func appointmentWhere(find *store.FindAppointment) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "appointment.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CustomerID; v != nil {
		where, args = append(where, "appointment.customer_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "appointment.user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ContactID; v != nil {
		where, args = append(where, "appointment.contact_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.StartTsFrom; v != nil {
		where, args = append(where, "appointment.start_ts >= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.StartTsTo; v != nil {
		where, args = append(where, "appointment.start_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}
	return where, args
}

func (d *DB) ListAppointments(ctx context.Context, find *store.FindAppointment) ([]*store.Appointment, error) {
	where, args := appointmentWhere(find)

	query := `
		SELECT ` + appointmentColumns + `
		FROM appointment
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY appointment.start_ts ASC, appointment.id ASC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Appointment, 0)
	for rows.Next() {
		var appointment store.Appointment
		if err := rows.Scan(
			&appointment.ID,
			&appointment.Title,
			&appointment.Description,
			&appointment.Location,
			&appointment.Type,
			&appointment.StartTs,
			&appointment.EndTs,
			&appointment.CustomerID,
			&appointment.UserID,
			&appointment.ContactID,
			&appointment.CreatedTs,
			&appointment.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		list = append(list, &appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return list, nil
}

func (d *DB) CountAppointments(ctx context.Context, find *store.FindAppointment) (int, error) {
	where, args := appointmentWhere(find)

	var count int
	query := `SELECT COUNT(*) FROM appointment WHERE ` + strings.Join(where, " AND ")
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

// CountOverlappingAppointments counts rows whose [start_ts, end_ts) intersects
// the requested interval. Touching boundaries do not intersect.
func (d *DB) CountOverlappingAppointments(ctx context.Context, find *store.FindOverlappingAppointment) (int, error) {
	where := []string{"customer_id = ?", "start_ts < ?", "end_ts > ?"}
	args := []any{find.CustomerID, find.EndTs, find.StartTs}
	if v := find.ExcludeID; v != nil {
		where, args = append(where, "id != "+placeholder(len(args)+1)), append(args, *v)
	}

	var count int
	query := `SELECT COUNT(*) FROM appointment WHERE ` + strings.Join(where, " AND ")
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count overlapping appointments: %w", err)
	}
	return count, nil
}

func (d *DB) UpdateAppointment(ctx context.Context, update *store.UpdateAppointment) (int64, error) {
	set, args := []string{}, []any{}

	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Description; v != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Location; v != nil {
		set, args = append(set, "location = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Type; v != nil {
		set, args = append(set, "type = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.StartTs; v != nil {
		set, args = append(set, "start_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.EndTs; v != nil {
		set, args = append(set, "end_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.CustomerID; v != nil {
		set, args = append(set, "customer_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UserID; v != nil {
		set, args = append(set, "user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.ContactID; v != nil {
		set, args = append(set, "contact_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	} else {
		set = append(set, "updated_ts = strftime('%s', 'now')")
	}

	args = append(args, update.ID)
	stmt := `UPDATE appointment SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update appointment: %w", err)
	}
	return result.RowsAffected()
}

func (d *DB) DeleteAppointment(ctx context.Context, delete *store.DeleteAppointment) (int64, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM appointment WHERE id = ?", delete.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete appointment: %w", err)
	}
	return result.RowsAffected()
}
