// homectl core - integration registry and dispatch service
//
// This is the main entry point for homectl core. It loads the configured
// integrations, runs their register and start passes, and exposes device
// state pushes and actions over HTTP while relaying integration events to
// MQTT, WebSocket clients and InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/homectl-core/migrations"

	"github.com/nerrad567/homectl-core/internal/api"
	"github.com/nerrad567/homectl-core/internal/audit"
	"github.com/nerrad567/homectl-core/internal/event"
	"github.com/nerrad567/homectl-core/internal/infrastructure/config"
	"github.com/nerrad567/homectl-core/internal/infrastructure/database"
	"github.com/nerrad567/homectl-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/homectl-core/internal/infrastructure/logging"
	"github.com/nerrad567/homectl-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homectl-core/internal/integration"
	"github.com/nerrad567/homectl-core/internal/registry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds registry shutdown once the run context is gone.
const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing a boot failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear boot sequence
	log := logging.Default()
	log.Info("starting homectl core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	var opts []registry.Option
	opts = append(opts,
		registry.WithLogger(log.Component("registry")),
		registry.WithCallTimeout(cfg.GetCallTimeout()),
	)

	// Audit trail (optional)
	var auditRepo audit.Repository
	if cfg.Audit.Enabled {
		db, dbErr := database.Open(cfg.Database)
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		repo := audit.NewSQLiteRepository(db.DB)
		auditRepo = repo
		opts = append(opts, registry.WithObserver(audit.NewRecorder(repo, log.Component("audit"))))
		log.Info("audit trail enabled", "path", cfg.Database.Path)
	}

	// InfluxDB (optional)
	var sinks []event.Sink
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		opts = append(opts, registry.WithObserver(influxClient))
		sinks = append(sinks, influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// MQTT event forwarding (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		// #nosec G115 -- QoS validated to 0-2 by config
		sinks = append(sinks, event.NewMQTTSink(mqttClient, byte(cfg.MQTT.QoS)))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)
	}

	hub := api.NewHub(cfg.WebSocket, log)
	sinks = append(sinks, hub)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// Event channel and forwarder. The forwarder outlives ctx so buffered
	// events are drained after the registry is closed.
	ch := event.NewChannel(cfg.Core.EventBuffer)
	fwd := event.NewForwarder(ch, log.Component("events"), sinks...)
	fwdDone := make(chan struct{})
	go func() {
		defer close(fwdDone)
		fwd.Run(context.Background())
	}()
	defer func() {
		ch.Close()
		<-fwdDone
		log.Info("event forwarder stopped")
	}()

	reg := registry.New(ch.Sender(), opts...)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := reg.Close(shutdownCtx); closeErr != nil {
			log.Error("error stopping integrations", "error", closeErr)
		}
	}()

	if err := loadIntegrations(ctx, cfg, reg); err != nil {
		return err
	}
	if err := reg.RunRegisterPass(ctx); err != nil {
		return fmt.Errorf("registering integrations: %w", err)
	}
	if err := reg.RunStartPass(ctx); err != nil {
		return fmt.Errorf("starting integrations: %w", err)
	}

	if cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.Component("api"),
			Registry: reg,
			Audit:    auditRepo,
			Hub:      hub,
			Version:  version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// loadIntegrations loads every configured integration in ID order.
// The first failure aborts boot.
func loadIntegrations(ctx context.Context, cfg *config.Config, reg *registry.Registry) error {
	entries, err := cfg.IntegrationEntries()
	if err != nil {
		return fmt.Errorf("reading integrations: %w", err)
	}
	for _, e := range entries {
		err := reg.LoadIntegration(ctx, e.Plugin, integration.ID(e.ID), integration.NewConfig(e.Node))
		if err != nil {
			if errors.Is(err, integration.ErrUnknownKind) {
				return fmt.Errorf("loading integration %s (known kinds: %v): %w", e.ID, registry.Kinds(), err)
			}
			return fmt.Errorf("loading integration %s: %w", e.ID, err)
		}
	}
	return nil
}

func getConfigPath() string {
	if path := os.Getenv("HOMECTL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
