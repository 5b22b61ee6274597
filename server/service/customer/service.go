// Package customer manages customer records. Divisions are validated
// against reference data, and customers that still own appointments
// cannot be deleted.
package customer

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/store"
)

// Store is the interface for store operations needed by the customer service.
type Store interface {
	CreateCustomer(ctx context.Context, create *store.Customer) (*store.Customer, error)
	ListCustomers(ctx context.Context, find *store.FindCustomer) ([]*store.Customer, error)
	GetCustomer(ctx context.Context, find *store.FindCustomer) (*store.Customer, error)
	UpdateCustomer(ctx context.Context, update *store.UpdateCustomer) (int64, error)
	DeleteCustomer(ctx context.Context, delete *store.DeleteCustomer) (int64, error)

	CountAppointments(ctx context.Context, find *store.FindAppointment) (int, error)
	GetDivision(ctx context.Context, id int32) (*store.Division, error)
	LookupDivisionID(ctx context.Context, name string) (int32, error)
}

// Service defines the customer business logic.
type Service interface {
	CreateCustomer(ctx context.Context, req *Request) (*store.Customer, error)
	// UpdateCustomer replaces every field of customer id.
	UpdateCustomer(ctx context.Context, id int32, req *Request) (*store.Customer, error)
	// DeleteCustomer refuses customers that still own appointments.
	DeleteCustomer(ctx context.Context, id int32) error
	GetCustomer(ctx context.Context, id int32) (*store.Customer, error)
	ListCustomers(ctx context.Context, divisionID *int32) ([]*store.Customer, error)
}

// Request carries customer fields. The division is given either by ID or
// by name; the ID wins when both are set.
type Request struct {
	Name       string
	Address    string
	PostalCode string
	Phone      string
	DivisionID int32
	Division   string
}

type service struct {
	store Store
}

// NewService creates a new customer service.
func NewService(st Store) Service {
	return &service{store: st}
}

func (s *service) CreateCustomer(ctx context.Context, req *Request) (*store.Customer, error) {
	customer, err := s.normalize(ctx, req)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateCustomer(ctx, customer)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return created, nil
}

func (s *service) UpdateCustomer(ctx context.Context, id int32, req *Request) (*store.Customer, error) {
	if _, err := s.GetCustomer(ctx, id); err != nil {
		return nil, err
	}
	customer, err := s.normalize(ctx, req)
	if err != nil {
		return nil, err
	}

	affected, err := s.store.UpdateCustomer(ctx, &store.UpdateCustomer{
		ID:         id,
		Name:       &customer.Name,
		Address:    &customer.Address,
		PostalCode: &customer.PostalCode,
		Phone:      &customer.Phone,
		DivisionID: &customer.DivisionID,
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if affected == 0 {
		return nil, apperrors.NotFound("customer", id)
	}
	return s.GetCustomer(ctx, id)
}

func (s *service) DeleteCustomer(ctx context.Context, id int32) error {
	if _, err := s.GetCustomer(ctx, id); err != nil {
		return err
	}

	count, err := s.store.CountAppointments(ctx, &store.FindAppointment{CustomerID: &id})
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if count > 0 {
		return apperrors.CustomerHasAppointments(id, count)
	}

	affected, err := s.store.DeleteCustomer(ctx, &store.DeleteCustomer{ID: id})
	if errors.Is(err, store.ErrCustomerReferenced) {
		// An appointment was booked after the count.
		count, _ = s.store.CountAppointments(ctx, &store.FindAppointment{CustomerID: &id})
		return apperrors.CustomerHasAppointments(id, count)
	}
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if affected == 0 {
		return apperrors.NotFound("customer", id)
	}
	return nil
}

func (s *service) GetCustomer(ctx context.Context, id int32) (*store.Customer, error) {
	customer, err := s.store.GetCustomer(ctx, &store.FindCustomer{ID: &id})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if customer == nil {
		return nil, apperrors.NotFound("customer", id)
	}
	return customer, nil
}

func (s *service) ListCustomers(ctx context.Context, divisionID *int32) ([]*store.Customer, error) {
	list, err := s.store.ListCustomers(ctx, &store.FindCustomer{DivisionID: divisionID})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return list, nil
}

// normalize trims the text fields, checks presence and resolves the division.
func (s *service) normalize(ctx context.Context, req *Request) (*store.Customer, error) {
	if req == nil {
		return nil, apperrors.InvalidArgument("customer is required")
	}
	customer := &store.Customer{
		Name:       strings.TrimSpace(req.Name),
		Address:    strings.TrimSpace(req.Address),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Phone:      strings.TrimSpace(req.Phone),
	}
	for _, f := range []struct{ name, value string }{
		{"name", customer.Name},
		{"address", customer.Address},
		{"postal_code", customer.PostalCode},
		{"phone", customer.Phone},
	} {
		if f.value == "" {
			return nil, apperrors.MissingField(f.name)
		}
	}

	divisionID, err := s.resolveDivision(ctx, req)
	if err != nil {
		return nil, err
	}
	customer.DivisionID = divisionID
	return customer, nil
}

func (s *service) resolveDivision(ctx context.Context, req *Request) (int32, error) {
	if req.DivisionID > 0 {
		division, err := s.store.GetDivision(ctx, req.DivisionID)
		if err != nil {
			return 0, apperrors.StoreUnavailable(err)
		}
		if division == nil {
			return 0, apperrors.UnknownDivision(strconv.Itoa(int(req.DivisionID)))
		}
		return division.ID, nil
	}

	name := strings.TrimSpace(req.Division)
	if name == "" {
		return 0, apperrors.MissingField("division")
	}
	id, err := s.store.LookupDivisionID(ctx, name)
	if err != nil {
		return 0, apperrors.StoreUnavailable(err)
	}
	if id == 0 {
		return 0, apperrors.UnknownDivision(name)
	}
	return id, nil
}
