package store

import (
	"context"

	"github.com/pkg/errors"
)

// ErrCustomerReferenced is returned by DeleteCustomer when appointments
// still reference the customer.
var ErrCustomerReferenced = errors.New("customer is referenced by appointments")

// Customer is the object representing a customer.
type Customer struct {
	ID         int32
	Name       string
	Address    string
	PostalCode string
	Phone      string
	DivisionID int32
	CreatedTs  int64
	UpdatedTs  int64
}

// FindCustomer is the find condition for customer.
type FindCustomer struct {
	ID         *int32
	DivisionID *int32
	Name       *string
}

// UpdateCustomer is the update request for customer.
type UpdateCustomer struct {
	ID         int32
	UpdatedTs  *int64
	Name       *string
	Address    *string
	PostalCode *string
	Phone      *string
	DivisionID *int32
}

// DeleteCustomer is the delete request for customer.
type DeleteCustomer struct {
	ID int32
}

func (s *Store) CreateCustomer(ctx context.Context, create *Customer) (*Customer, error) {
	return s.driver.CreateCustomer(ctx, create)
}

func (s *Store) ListCustomers(ctx context.Context, find *FindCustomer) ([]*Customer, error) {
	return s.driver.ListCustomers(ctx, find)
}

// GetCustomer gets a customer. Returns nil if none matches.
func (s *Store) GetCustomer(ctx context.Context, find *FindCustomer) (*Customer, error) {
	list, err := s.driver.ListCustomers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateCustomer(ctx context.Context, update *UpdateCustomer) (int64, error) {
	return s.driver.UpdateCustomer(ctx, update)
}

func (s *Store) DeleteCustomer(ctx context.Context, delete *DeleteCustomer) (int64, error) {
	return s.driver.DeleteCustomer(ctx, delete)
}
