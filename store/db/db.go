package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/apptscheduler/internal/profile"
	"github.com/hrygo/apptscheduler/store"
	"github.com/hrygo/apptscheduler/store/db/postgres"
	"github.com/hrygo/apptscheduler/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// This project supports only PostgreSQL and SQLite databases.
//
// PostgreSQL: production. Overlaps are also rejected by an exclusion constraint.
// SQLite: development and single-instance deployments.
// MySQL: NOT SUPPORTED.
//
// Every Driver method is implemented for both databases.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported (MySQL is not supported)")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
