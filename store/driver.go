package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Appointment model related methods.
	CreateAppointment(ctx context.Context, create *Appointment) (*Appointment, error)
	ListAppointments(ctx context.Context, find *FindAppointment) ([]*Appointment, error)
	CountAppointments(ctx context.Context, find *FindAppointment) (int, error)
	CountOverlappingAppointments(ctx context.Context, find *FindOverlappingAppointment) (int, error)
	UpdateAppointment(ctx context.Context, update *UpdateAppointment) (int64, error)
	DeleteAppointment(ctx context.Context, delete *DeleteAppointment) (int64, error)

	// Customer model related methods.
	CreateCustomer(ctx context.Context, create *Customer) (*Customer, error)
	ListCustomers(ctx context.Context, find *FindCustomer) ([]*Customer, error)
	UpdateCustomer(ctx context.Context, update *UpdateCustomer) (int64, error)
	DeleteCustomer(ctx context.Context, delete *DeleteCustomer) (int64, error)

	// Reference data, read-only.
	ListCountries(ctx context.Context, find *FindCountry) ([]*Country, error)
	ListDivisions(ctx context.Context, find *FindDivision) ([]*Division, error)
	ListContacts(ctx context.Context, find *FindContact) ([]*Contact, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// System settings (schema version).
	GetSystemSetting(ctx context.Context, name string) (string, error)
	UpsertSystemSetting(ctx context.Context, name, value string) error
}
