package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/apptscheduler/server/service/customer"
	"github.com/hrygo/apptscheduler/store"
)

// CustomerRequest identifies the division by division_id or by name.
type CustomerRequest struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	DivisionID int32  `json:"division_id"`
	Division   string `json:"division"`
}

func (r *CustomerRequest) request() *customer.Request {
	return &customer.Request{
		Name:       r.Name,
		Address:    r.Address,
		PostalCode: r.PostalCode,
		Phone:      r.Phone,
		DivisionID: r.DivisionID,
		Division:   r.Division,
	}
}

type Customer struct {
	ID         int32  `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	DivisionID int32  `json:"division_id"`
	CreatedTs  int64  `json:"created_ts"`
	UpdatedTs  int64  `json:"updated_ts"`
}

func convertCustomer(c *store.Customer) *Customer {
	return &Customer{
		ID:         c.ID,
		Name:       c.Name,
		Address:    c.Address,
		PostalCode: c.PostalCode,
		Phone:      c.Phone,
		DivisionID: c.DivisionID,
		CreatedTs:  c.CreatedTs,
		UpdatedTs:  c.UpdatedTs,
	}
}

// CreateCustomer handles POST /api/v1/customers.
func (s *APIV1Service) CreateCustomer(c echo.Context) error {
	var req CustomerRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	created, err := s.CustomerService.CreateCustomer(c.Request().Context(), req.request())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, convertCustomer(created))
}

// ListCustomers handles GET /api/v1/customers?division_id=.
func (s *APIV1Service) ListCustomers(c echo.Context) error {
	divisionID, err := parseOptionalID(c, "division_id")
	if err != nil {
		return err
	}
	list, err := s.CustomerService.ListCustomers(c.Request().Context(), divisionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertList(list, convertCustomer))
}

func (s *APIV1Service) GetCustomer(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	found, err := s.CustomerService.GetCustomer(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertCustomer(found))
}

func (s *APIV1Service) UpdateCustomer(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req CustomerRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	updated, err := s.CustomerService.UpdateCustomer(c.Request().Context(), id, req.request())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertCustomer(updated))
}

// DeleteCustomer handles DELETE /api/v1/customers/:id. Customers with
// appointments are refused with 409.
func (s *APIV1Service) DeleteCustomer(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.CustomerService.DeleteCustomer(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
