package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/apptscheduler/internal/profile"
	"github.com/hrygo/apptscheduler/internal/version"
	"github.com/hrygo/apptscheduler/plugin/events"
	"github.com/hrygo/apptscheduler/plugin/tracing"
	"github.com/hrygo/apptscheduler/server"
	"github.com/hrygo/apptscheduler/store"
	"github.com/hrygo/apptscheduler/store/cache"
	"github.com/hrygo/apptscheduler/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "apptscheduler",
		Short: `An appointment scheduler that validates bookings across time zones.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile, err := loadProfile()
			if err != nil {
				return err
			}
			return run(cmd.Context(), instanceProfile)
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile, err := loadProfile()
			if err != nil {
				return err
			}
			storeInstance, err := openStore(cmd.Context(), instanceProfile)
			if err != nil {
				return err
			}
			defer storeInstance.Close()
			schemaVersion, err := storeInstance.GetCurrentSchemaVersion()
			if err != nil {
				return err
			}
			slog.Info("database migrated", "schema_version", schemaVersion)
			return nil
		},
	}
)

func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:          viper.GetString("mode"),
		Addr:          viper.GetString("addr"),
		Port:          viper.GetInt("port"),
		Data:          viper.GetString("data"),
		Driver:        viper.GetString("driver"),
		DSN:           viper.GetString("dsn"),
		LocalZone:     viper.GetString("local-zone"),
		CanonicalZone: viper.GetString("canonical-zone"),
		ReferenceZone: viper.GetString("reference-zone"),
		BusinessOpen:  viper.GetString("business-open"),
		BusinessClose: viper.GetString("business-close"),
	}
	instanceProfile.Version = version.GetCurrentVersion(instanceProfile.Mode)
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	setupLogger(instanceProfile)
	return instanceProfile, nil
}

// setupLogger installs a JSON handler in prod and a text handler otherwise.
func setupLogger(p *profile.Profile) {
	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler).With("service", tracing.ServiceName))
}

// openStore connects the driver, attaches the reference cache and migrates.
func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}

	var l2 cache.RedisCacheInterface
	if p.RedisAddr != "" {
		redisConfig := cache.DefaultRedisConfig()
		redisConfig.Addr = p.RedisAddr
		redisConfig.Password = p.RedisPassword
		redisCache, err := cache.NewRedisCache(ctx, redisConfig)
		if err != nil {
			slog.Warn("redis unavailable, reference cache stays in memory", "addr", p.RedisAddr, "error", err)
		} else {
			l2 = redisCache
		}
	}

	storeInstance := store.New(dbDriver, p, cache.NewTieredCache(cache.DefaultTieredConfig(), l2))
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return storeInstance, nil
}

func newPublisher(p *profile.Profile) (events.Publisher, error) {
	if !p.IsEventsEnabled() {
		slog.Info("kafka brokers not configured, appointment events disabled")
		return events.NopPublisher{}, nil
	}
	return events.NewKafkaPublisher(events.KafkaConfig{
		Brokers:      p.KafkaBrokers,
		Topic:        p.KafkaTopic,
		WriteTimeout: 5 * time.Second,
	})
}

func run(parent context.Context, p *profile.Profile) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := tracing.Setup(ctx, tracing.ConfigFromEnv(tracing.ServiceName))
	if err != nil {
		slog.Error("otel setup failed", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	storeInstance, err := openStore(ctx, p)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(p)
	if err != nil {
		_ = storeInstance.Close()
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("failed to close event publisher", "error", err)
		}
	}()

	s, err := server.NewServer(ctx, p, storeInstance, publisher)
	if err != nil {
		_ = storeInstance.Close()
		return err
	}

	printGreetings(p)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Shutdown(context.Background())
		return nil
	})
	return g.Wait()
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver, sqlite or postgres")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("local-zone", "", "IANA zone appointments are entered in (default: process zone)")
	rootCmd.PersistentFlags().String("canonical-zone", profile.DefaultCanonicalZone, "IANA zone appointments are stored in")
	rootCmd.PersistentFlags().String("reference-zone", profile.DefaultReferenceZone, "IANA zone business hours are evaluated in")
	rootCmd.PersistentFlags().String("business-open", profile.DefaultBusinessOpen, "start of business hours, HH:MM")
	rootCmd.PersistentFlags().String("business-close", profile.DefaultBusinessClose, "end of business hours, HH:MM")

	for _, name := range []string{
		"mode", "addr", "port", "data", "driver", "dsn",
		"local-zone", "canonical-zone", "reference-zone", "business-open", "business-close",
	} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("apptscheduler")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(migrateCmd)
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("apptscheduler %s started successfully!\n", p.Version)
	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if p.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", p.DSN)
		}
	}
	if p.Addr == "" {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("apptscheduler failed", "error", err)
		os.Exit(1)
	}
}
