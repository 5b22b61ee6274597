package test

import (
	"context"
	"os"
	"testing"

	"github.com/hrygo/apptscheduler/internal/profile"
	"github.com/hrygo/apptscheduler/internal/version"
	"github.com/hrygo/apptscheduler/store"
	"github.com/hrygo/apptscheduler/store/db"
)

// NewTestingStore opens a migrated store seeded with demo data.
// DRIVER=postgres runs against PostgreSQL, anything else against a SQLite
// file in a temporary directory.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	return newTestingStoreWithMode(ctx, t, "demo")
}

func newTestingStoreWithMode(ctx context.Context, t *testing.T, mode string) *store.Store {
	t.Helper()
	profile := getTestingProfile(t, mode)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(dbDriver, profile, nil)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func getTestingProfile(t *testing.T, mode string) *profile.Profile {
	p := &profile.Profile{
		Mode:    mode,
		Data:    t.TempDir(),
		Driver:  getDriverFromEnv(),
		Version: version.GetCurrentVersion(mode),
	}
	if p.Driver == "postgres" {
		p.DSN = GetPostgresDSN(t)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid testing profile: %v", err)
	}
	return p
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}
