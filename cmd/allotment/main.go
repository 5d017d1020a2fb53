// Allotment Core - IoT telemetry and control for garden plots.
//
// This is the main entry point. The core consumes telemetry from ESP32
// devices over MQTT, persists it to SQLite (optionally mirrored to
// InfluxDB), dispatches pump/control commands, and runs the automated
// irrigation loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/openallotment/allotment-core/migrations"

	"github.com/openallotment/allotment-core/internal/audit"
	"github.com/openallotment/allotment-core/internal/auth"
	"github.com/openallotment/allotment-core/internal/command"
	"github.com/openallotment/allotment-core/internal/device"
	"github.com/openallotment/allotment-core/internal/infrastructure/config"
	"github.com/openallotment/allotment-core/internal/infrastructure/database"
	"github.com/openallotment/allotment-core/internal/infrastructure/influxdb"
	"github.com/openallotment/allotment-core/internal/infrastructure/logging"
	"github.com/openallotment/allotment-core/internal/infrastructure/mqtt"
	"github.com/openallotment/allotment-core/internal/ingest"
	"github.com/openallotment/allotment-core/internal/irrigation"
	"github.com/openallotment/allotment-core/internal/site"
	"github.com/openallotment/allotment-core/internal/telemetry"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Allotment Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")

	// Repositories
	deviceRepo := device.NewSQLiteRepository(db.DB)
	sensorRepo := device.NewSQLiteSensorRepository(db.DB)
	telemetryRepo := telemetry.NewSQLiteRepository(db.DB)
	userRepo := auth.NewUserRepository(db.DB)
	sessionRepo := auth.NewSessionRepository(db.DB)
	tokenRepo := auth.NewTokenRepository(db.DB)
	assignmentRepo := auth.NewSiteAccessRepository(db.DB)
	siteRepo := site.NewSQLiteRepository(db.DB)

	auditor := audit.NewRecorder(db.DB, log)

	// Authentication service and seed admin
	authService := auth.NewService(userRepo, sessionRepo, tokenRepo, auth.Options{
		SessionTTL: cfg.SessionTTL(),
		BcryptCost: cfg.Auth.BcryptCost,
	}, log)
	authService.SetAuditor(auditor)
	authService.SetDeviceDirectory(&deviceDirectory{devices: deviceRepo})

	if _, err := auth.SeedAdmin(ctx, userRepo, log); err != nil {
		return fmt.Errorf("seeding admin account: %w", err)
	}

	// Access resolver over the device registry
	resolver := auth.NewResolver(userRepo, assignmentRepo, &deviceDirectory{devices: deviceRepo})
	_ = authService // consumed by the API layer alongside the resolver
	_ = siteRepo    // site administration surface for the API layer

	// MQTT
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// InfluxDB mirror (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Ingest pipeline
	processor := ingest.NewProcessor(db.DB, deviceRepo, sensorRepo, telemetryRepo, log)
	if influxClient != nil {
		processor.SetMirror(influxClient)
	}
	listener := ingest.NewListener(mqttClient, processor, byte(cfg.MQTT.QoS), log)
	if err := listener.Start(ctx); err != nil {
		return fmt.Errorf("starting telemetry listener: %w", err)
	}
	defer func() {
		log.Info("stopping telemetry listener")
		if stopErr := listener.Stop(); stopErr != nil {
			log.Error("error stopping listener", "error", stopErr)
		}
	}()

	// Command dispatcher
	dispatcher := command.NewDispatcher(mqttClient, resolver, log)
	dispatcher.SetAuditor(auditor)
	if influxClient != nil {
		dispatcher.SetMirror(influxClient)
	}

	// Irrigation loop (optional)
	if cfg.Irrigation.Enabled {
		engine := irrigation.NewEngine(deviceRepo, telemetryRepo, dispatcher, irrigation.Options{
			MoistureThreshold: cfg.Irrigation.MoistureThreshold,
			PumpSeconds:       cfg.Irrigation.PumpSeconds,
			PollInterval:      cfg.IrrigationPollInterval(),
			SkipInterval:      cfg.IrrigationSkipInterval(),
		}, log)
		engine.Start(ctx)
		defer engine.Stop()
	} else {
		log.Info("irrigation engine disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ALLOTMENT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ALLOTMENT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// deviceDirectory adapts the device repository to the resolver's
// DeviceDirectory interface so the auth package stays free of a
// dependency on the registry.
type deviceDirectory struct {
	devices device.Repository
}

func (d *deviceDirectory) DeviceByID(ctx context.Context, id string) (*auth.DeviceRef, error) {
	return toRef(d.devices.GetByID(ctx, id))
}

func (d *deviceDirectory) DeviceByUID(ctx context.Context, uid string) (*auth.DeviceRef, error) {
	return toRef(d.devices.GetByUID(ctx, uid))
}

func toRef(dev *device.Device, err error) (*auth.DeviceRef, error) {
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, auth.ErrDeviceUnknown
		}
		return nil, err
	}
	return &auth.DeviceRef{ID: dev.ID, UID: dev.UID, SiteID: dev.SiteID}, nil
}
