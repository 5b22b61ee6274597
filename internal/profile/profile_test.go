package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileFromEnvDefaults(t *testing.T) {
	t.Setenv("APPTSCHEDULER_REDIS_ADDR", "")
	t.Setenv("APPTSCHEDULER_KAFKA_BROKERS", "")
	t.Setenv("APPTSCHEDULER_KAFKA_TOPIC", "")
	t.Setenv("APPTSCHEDULER_RATE_LIMIT", "")
	t.Setenv("APPTSCHEDULER_RATE_BURST", "")

	p := &Profile{}
	p.FromEnv()

	assert.Empty(t, p.RedisAddr)
	assert.Empty(t, p.KafkaBrokers)
	assert.Equal(t, DefaultKafkaTopic, p.KafkaTopic)
	assert.Equal(t, 10.0, p.RateLimit)
	assert.Equal(t, 20, p.RateBurst)
	assert.False(t, p.IsEventsEnabled())
}

func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) any
		expected any
	}{
		{"redis addr", "APPTSCHEDULER_REDIS_ADDR", "localhost:6379", func(p *Profile) any { return p.RedisAddr }, "localhost:6379"},
		{"kafka brokers", "APPTSCHEDULER_KAFKA_BROKERS", "k1:9092,k2:9092", func(p *Profile) any { return p.KafkaBrokers }, "k1:9092,k2:9092"},
		{"kafka topic", "APPTSCHEDULER_KAFKA_TOPIC", "appts", func(p *Profile) any { return p.KafkaTopic }, "appts"},
		{"rate limit", "APPTSCHEDULER_RATE_LIMIT", "2.5", func(p *Profile) any { return p.RateLimit }, 2.5},
		{"invalid rate limit falls back", "APPTSCHEDULER_RATE_LIMIT", "-1", func(p *Profile) any { return p.RateLimit }, 10.0},
		{"rate burst", "APPTSCHEDULER_RATE_BURST", "5", func(p *Profile) any { return p.RateBurst }, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.envValue)
			p := &Profile{}
			p.FromEnv()
			assert.Equal(t, tt.expected, tt.field(p))
		})
	}
}

func TestProfileValidate(t *testing.T) {
	dir := t.TempDir()

	t.Run("defaults", func(t *testing.T) {
		p := &Profile{Mode: "bogus", Data: dir}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
		assert.Equal(t, "sqlite", p.Driver)
		assert.Contains(t, p.DSN, "apptscheduler_demo.db")
		assert.Equal(t, DefaultCanonicalZone, p.CanonicalZone)
		assert.Equal(t, DefaultReferenceZone, p.ReferenceZone)
		assert.Equal(t, DefaultBusinessOpen, p.BusinessOpen)
		assert.Equal(t, DefaultBusinessClose, p.BusinessClose)
	})

	t.Run("postgres skips data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres", DSN: "postgres://localhost/appts", Data: "/does/not/exist"}
		require.NoError(t, p.Validate())
		assert.Equal(t, "postgres://localhost/appts", p.DSN)
	})

	t.Run("missing data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: "/does/not/exist"}
		assert.Error(t, p.Validate())
	})

	t.Run("invalid zone", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: dir, ReferenceZone: "Mars/Olympus"}
		assert.Error(t, p.Validate())
	})

	t.Run("open after close", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: dir, BusinessOpen: "22:00", BusinessClose: "08:00"}
		assert.Error(t, p.Validate())
	})

	t.Run("malformed hours", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: dir, BusinessOpen: "8am"}
		assert.Error(t, p.Validate())
	})
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"08:00", 8 * time.Hour, false},
		{"22:00:00", 22 * time.Hour, false},
		{"09:30:15", 9*time.Hour + 30*time.Minute + 15*time.Second, false},
		{"24:00", 0, true},
		{"8:00", 0, true},
		{"22:00:00.5", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}
