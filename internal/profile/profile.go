package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where apptscheduler stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Time zones. LocalZone is the wall-clock zone of whoever enters
	// appointment data, CanonicalZone is the zone appointments are persisted
	// in and ReferenceZone is the zone business hours are evaluated in.
	LocalZone     string
	CanonicalZone string
	ReferenceZone string

	// Business hours window in the reference zone, "HH:MM" or "HH:MM:SS".
	BusinessOpen  string
	BusinessClose string

	// Integrations
	RedisAddr     string  // APPTSCHEDULER_REDIS_ADDR (default: "", L2 cache disabled)
	RedisPassword string  // APPTSCHEDULER_REDIS_PASSWORD
	KafkaBrokers  string  // APPTSCHEDULER_KAFKA_BROKERS (comma separated, default: "", events disabled)
	KafkaTopic    string  // APPTSCHEDULER_KAFKA_TOPIC (default: appointment-events)
	RateLimit     float64 // APPTSCHEDULER_RATE_LIMIT requests per second per client (default: 10)
	RateBurst     int     // APPTSCHEDULER_RATE_BURST (default: 20)
}

const (
	DefaultCanonicalZone = "UTC"
	DefaultReferenceZone = "America/New_York"
	DefaultBusinessOpen  = "08:00"
	DefaultBusinessClose = "22:00"
	DefaultKafkaTopic    = "appointment-events"
)

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEventsEnabled returns true if at least one Kafka broker is configured.
func (p *Profile) IsEventsEnabled() bool {
	return strings.TrimSpace(p.KafkaBrokers) != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads integration settings from environment variables.
// Core settings (mode, driver, zones) are bound through flags in cmd.
func (p *Profile) FromEnv() {
	p.RedisAddr = os.Getenv("APPTSCHEDULER_REDIS_ADDR")
	p.RedisPassword = os.Getenv("APPTSCHEDULER_REDIS_PASSWORD")
	p.KafkaBrokers = os.Getenv("APPTSCHEDULER_KAFKA_BROKERS")
	p.KafkaTopic = getEnvOrDefault("APPTSCHEDULER_KAFKA_TOPIC", DefaultKafkaTopic)

	p.RateLimit = 10
	if v, err := strconv.ParseFloat(os.Getenv("APPTSCHEDULER_RATE_LIMIT"), 64); err == nil && v > 0 {
		p.RateLimit = v
	}
	p.RateBurst = 20
	if v, err := strconv.Atoi(os.Getenv("APPTSCHEDULER_RATE_BURST")); err == nil && v > 0 {
		p.RateBurst = v
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

var timeOfDayPattern = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	if !timeOfDayPattern.MatchString(s) {
		return 0, errors.Errorf("invalid time of day %q", s)
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, errors.Errorf("invalid time of day %q", s)
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "apptscheduler")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/apptscheduler"
		}
	}

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("apptscheduler_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}

	if p.CanonicalZone == "" {
		p.CanonicalZone = DefaultCanonicalZone
	}
	if p.ReferenceZone == "" {
		p.ReferenceZone = DefaultReferenceZone
	}
	for name, zone := range map[string]string{
		"local zone":     p.LocalZone,
		"canonical zone": p.CanonicalZone,
		"reference zone": p.ReferenceZone,
	} {
		if zone == "" || zone == "Local" {
			continue
		}
		if _, err := time.LoadLocation(zone); err != nil {
			return errors.Wrapf(err, "invalid %s %q", name, zone)
		}
	}

	if p.BusinessOpen == "" {
		p.BusinessOpen = DefaultBusinessOpen
	}
	if p.BusinessClose == "" {
		p.BusinessClose = DefaultBusinessClose
	}
	open, err := ParseTimeOfDay(p.BusinessOpen)
	if err != nil {
		return errors.Wrap(err, "invalid business open time")
	}
	closing, err := ParseTimeOfDay(p.BusinessClose)
	if err != nil {
		return errors.Wrap(err, "invalid business close time")
	}
	if open >= closing {
		return errors.Errorf("business open time %s must be before close time %s", p.BusinessOpen, p.BusinessClose)
	}

	return nil
}
