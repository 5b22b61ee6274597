package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/apptscheduler/server/internal/errors"
	"github.com/hrygo/apptscheduler/store"
)

type Country struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`
}

type Division struct {
	ID        int32  `json:"id"`
	Name      string `json:"name"`
	CountryID int32  `json:"country_id"`
}

type Contact struct {
	ID    int32  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type User struct {
	ID       int32  `json:"id"`
	Username string `json:"username"`
}

// convertList maps a store listing to its API view.
func convertList[S, T any](list []*S, convert func(*S) *T) []*T {
	out := make([]*T, 0, len(list))
	for _, item := range list {
		out = append(out, convert(item))
	}
	return out
}

func (s *APIV1Service) ListCountries(c echo.Context) error {
	list, err := s.Store.ListCountries(c.Request().Context())
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return c.JSON(http.StatusOK, convertList(list, func(v *store.Country) *Country {
		return &Country{ID: v.ID, Name: v.Name}
	}))
}

// ListDivisions handles GET /api/v1/divisions?country_id=.
func (s *APIV1Service) ListDivisions(c echo.Context) error {
	countryID, err := parseOptionalID(c, "country_id")
	if err != nil {
		return err
	}
	list, err := s.Store.ListDivisions(c.Request().Context(), &store.FindDivision{CountryID: countryID})
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return c.JSON(http.StatusOK, convertList(list, func(v *store.Division) *Division {
		return &Division{ID: v.ID, Name: v.Name, CountryID: v.CountryID}
	}))
}

func (s *APIV1Service) ListContacts(c echo.Context) error {
	list, err := s.Store.ListContacts(c.Request().Context())
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return c.JSON(http.StatusOK, convertList(list, func(v *store.Contact) *Contact {
		return &Contact{ID: v.ID, Name: v.Name, Email: v.Email}
	}))
}

func (s *APIV1Service) ListUsers(c echo.Context) error {
	list, err := s.Store.ListUsers(c.Request().Context())
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return c.JSON(http.StatusOK, convertList(list, func(v *store.User) *User {
		return &User{ID: v.ID, Username: v.Username}
	}))
}
