package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/apptscheduler/store"
)

const foreignKeyViolation = pq.ErrorCode("23503")

func (d *DB) CreateCustomer(ctx context.Context, create *store.Customer) (*store.Customer, error) {
	stmt := `INSERT INTO customer (name, address, postal_code, phone, division_id)
		VALUES (` + placeholders(5) + `)
		RETURNING id, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.Name, create.Address, create.PostalCode, create.Phone, create.DivisionID,
	).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return create, nil
}

func (d *DB) ListCustomers(ctx context.Context, find *store.FindCustomer) ([]*store.Customer, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "customer.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DivisionID; v != nil {
		where, args = append(where, "customer.division_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Name; v != nil {
		where, args = append(where, "customer.name = "+placeholder(len(args)+1)), append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, address, postal_code, phone, division_id, created_ts, updated_ts
		FROM customer
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY customer.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Customer, 0)
	for rows.Next() {
		var customer store.Customer
		if err := rows.Scan(
			&customer.ID,
			&customer.Name,
			&customer.Address,
			&customer.PostalCode,
			&customer.Phone,
			&customer.DivisionID,
			&customer.CreatedTs,
			&customer.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		list = append(list, &customer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}
	return list, nil
}

func (d *DB) UpdateCustomer(ctx context.Context, update *store.UpdateCustomer) (int64, error) {
	set, args := []string{}, []any{}

	if v := update.Name; v != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Address; v != nil {
		set, args = append(set, "address = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.PostalCode; v != nil {
		set, args = append(set, "postal_code = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Phone; v != nil {
		set, args = append(set, "phone = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.DivisionID; v != nil {
		set, args = append(set, "division_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	} else {
		set = append(set, "updated_ts = EXTRACT(EPOCH FROM NOW())::BIGINT")
	}

	args = append(args, update.ID)
	stmt := `UPDATE customer SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update customer: %w", err)
	}
	return result.RowsAffected()
}

func (d *DB) DeleteCustomer(ctx context.Context, delete *store.DeleteCustomer) (int64, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM customer WHERE id = $1", delete.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return 0, errors.Wrapf(store.ErrCustomerReferenced, "failed to delete customer: %s", pqErr.Message)
		}
		return 0, fmt.Errorf("failed to delete customer: %w", err)
	}
	return result.RowsAffected()
}
