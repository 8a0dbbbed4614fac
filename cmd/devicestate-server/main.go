package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/api"
	"github.com/screentime-server/screentime-server/internal/config"
	"github.com/screentime-server/screentime-server/internal/control"
	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/internal/notifier"
	"github.com/screentime-server/screentime-server/internal/storage"
	"github.com/screentime-server/screentime-server/pkg/crypto"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/devicestate-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	cfg.PrintConfigSummary()

	// Connect to database
	store, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN, storage.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	log.Info().Str("driver", cfg.Database.Driver).Msg("Connected to database")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	if err := ensureAdmin(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin user")
	}

	// cfg was validated, so neither can fail
	catalogue, _ := cfg.Catalogue()
	loc, _ := cfg.Location()
	service := control.NewService(store, schedule.NewPacker(cfg.Schedule.DefaultState), catalogue, loc)

	hub := notifier.NewHub()
	sinks := []notifier.Sink{hub}

	// Optional: NATS publisher
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")
		nc, err := notifier.ConnectNATS(&cfg.NATS)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without NATS support")
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")
			sinks = append(sinks, notifier.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix))
		}
	} else {
		log.Info().Msg("NATS not configured")
	}

	// Optional: MQTT publisher
	if cfg.MQTT.Broker != "" {
		sink, err := notifier.NewMQTTSink(&cfg.MQTT)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to MQTT, continuing without MQTT support")
		} else {
			defer sink.Close()
			sinks = append(sinks, sink)
		}
	}

	// Optional: webhook
	if cfg.Webhook.URL != "" {
		sinks = append(sinks, notifier.NewWebhookSink(&cfg.Webhook))
	}

	// State monitor; forced states are dispatched as soon as they are set
	monitor, err := notifier.NewMonitor(service, store, cfg.Monitor.Spec, sinks...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create state monitor")
	}
	service.OnStateChange(func(ctx context.Context, change *control.StateChange) {
		go monitor.Dispatch(context.WithoutCancel(ctx), change)
	})
	if cfg.Monitor.Enabled {
		monitor.Start(ctx)
	}

	apiServer := api.NewRESTServer(cfg, store, service, hub)

	// WaitGroup for services
	var wg sync.WaitGroup

	// Start API server
	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Cancel context
	cancel()

	if cfg.Monitor.Enabled {
		monitor.Stop()
	}

	// Shutdown API server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Device state server stopped")
}

// ensureAdmin creates the account named by ADMIN_EMAIL and ADMIN_PASSWORD when it
// does not exist yet
func ensureAdmin(ctx context.Context, store storage.Store) error {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	if _, err := store.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{
		Email:        email,
		Name:         "Administrator",
		PasswordHash: hash,
		IsAdmin:      true,
		IsActive:     true,
	}
	if err := store.CreateUser(ctx, admin); err != nil {
		return err
	}

	log.Info().Str("email", email).Msg("Admin user created")
	return nil
}
