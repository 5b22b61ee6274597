package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/apptscheduler/store"
)

func (d *DB) ListCountries(ctx context.Context, find *store.FindCountry) ([]*store.Country, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, name FROM country WHERE `+strings.Join(where, " AND ")+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query countries: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Country, 0)
	for rows.Next() {
		var country store.Country
		if err := rows.Scan(&country.ID, &country.Name); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		list = append(list, &country)
	}
	return list, rows.Err()
}

func (d *DB) ListDivisions(ctx context.Context, find *store.FindDivision) ([]*store.Division, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CountryID; v != nil {
		where, args = append(where, "country_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, name, country_id FROM division WHERE `+strings.Join(where, " AND ")+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query divisions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Division, 0)
	for rows.Next() {
		var division store.Division
		if err := rows.Scan(&division.ID, &division.Name, &division.CountryID); err != nil {
			return nil, fmt.Errorf("failed to scan division: %w", err)
		}
		list = append(list, &division)
	}
	return list, rows.Err()
}

func (d *DB) ListContacts(ctx context.Context, find *store.FindContact) ([]*store.Contact, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, name, email FROM contact WHERE `+strings.Join(where, " AND ")+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Contact, 0)
	for rows.Next() {
		var contact store.Contact
		if err := rows.Scan(&contact.ID, &contact.Name, &contact.Email); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		list = append(list, &contact)
	}
	return list, rows.Err()
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT id, username FROM app_user WHERE `+strings.Join(where, " AND ")+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	list := make([]*store.User, 0)
	for rows.Next() {
		var user store.User
		if err := rows.Scan(&user.ID, &user.Username); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		list = append(list, &user)
	}
	return list, rows.Err()
}
