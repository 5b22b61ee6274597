package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Reference data is small and read-mostly, so the store caches whole tables
// and filters in memory.
const (
	countryCacheKey  = "reference:country"
	divisionCacheKey = "reference:division"
	contactCacheKey  = "reference:contact"
	userCacheKey     = "reference:user"
)

// Country is a row of the country reference table.
type Country struct {
	ID   int32
	Name string
}

// Division is a first-level division (state, province) of a country.
type Division struct {
	ID        int32
	Name      string
	CountryID int32
}

// Contact is the person an appointment is held with.
type Contact struct {
	ID    int32
	Name  string
	Email string
}

// User is the staff member who owns an appointment.
type User struct {
	ID       int32
	Username string
}

type FindCountry struct {
	ID *int32
}

type FindDivision struct {
	ID        *int32
	CountryID *int32
}

type FindContact struct {
	ID *int32
}

type FindUser struct {
	ID *int32
}

// ListCountries lists all countries ordered by ID.
func (s *Store) ListCountries(ctx context.Context) ([]*Country, error) {
	return cachedList(ctx, s, countryCacheKey, func(ctx context.Context) ([]*Country, error) {
		return s.driver.ListCountries(ctx, &FindCountry{})
	})
}

// ListDivisions lists divisions, optionally restricted to one country.
func (s *Store) ListDivisions(ctx context.Context, find *FindDivision) ([]*Division, error) {
	list, err := cachedList(ctx, s, divisionCacheKey, func(ctx context.Context) ([]*Division, error) {
		return s.driver.ListDivisions(ctx, &FindDivision{})
	})
	if err != nil {
		return nil, err
	}
	if find == nil {
		return list, nil
	}
	filtered := make([]*Division, 0, len(list))
	for _, d := range list {
		if find.ID != nil && d.ID != *find.ID {
			continue
		}
		if find.CountryID != nil && d.CountryID != *find.CountryID {
			continue
		}
		filtered = append(filtered, d)
	}
	return filtered, nil
}

// ListContacts lists all contacts ordered by ID.
func (s *Store) ListContacts(ctx context.Context) ([]*Contact, error) {
	return cachedList(ctx, s, contactCacheKey, func(ctx context.Context) ([]*Contact, error) {
		return s.driver.ListContacts(ctx, &FindContact{})
	})
}

// ListUsers lists all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	return cachedList(ctx, s, userCacheKey, func(ctx context.Context) ([]*User, error) {
		return s.driver.ListUsers(ctx, &FindUser{})
	})
}

// GetDivision returns the division with the given ID, or nil.
func (s *Store) GetDivision(ctx context.Context, id int32) (*Division, error) {
	list, err := s.ListDivisions(ctx, &FindDivision{ID: &id})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// LookupDivisionID returns the ID of the division with the given name, or 0
// when there is none. Names are matched case-insensitively.
func (s *Store) LookupDivisionID(ctx context.Context, name string) (int32, error) {
	list, err := s.ListDivisions(ctx, nil)
	if err != nil {
		return 0, err
	}
	for _, d := range list {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			return d.ID, nil
		}
	}
	return 0, nil
}

// LookupCountryID returns the ID of the country with the given name, or 0
// when there is none. Names are matched case-insensitively.
func (s *Store) LookupCountryID(ctx context.Context, name string) (int32, error) {
	list, err := s.ListCountries(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range list {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c.ID, nil
		}
	}
	return 0, nil
}

// InvalidateReferenceCache drops all cached reference tables.
func (s *Store) InvalidateReferenceCache(ctx context.Context) {
	for _, key := range []string{countryCacheKey, divisionCacheKey, contactCacheKey, userCacheKey} {
		s.referenceCache.Delete(ctx, key)
	}
}

// cachedList reads a reference table through the tiered cache. The L2 tier
// hands back raw JSON, which is decoded into T.
func cachedList[T any](ctx context.Context, s *Store, key string, fetch func(context.Context) ([]*T, error)) ([]*T, error) {
	value, err := s.referenceCache.GetOrFetch(ctx, key, func(ctx context.Context, _ string) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case []*T:
		return v, nil
	case json.RawMessage:
		var list []*T
		if err := json.Unmarshal(v, &list); err != nil {
			return nil, errors.Wrapf(err, "failed to decode cached %s", key)
		}
		return list, nil
	default:
		return nil, errors.Errorf("unexpected cached value %T for %s", value, key)
	}
}
