// Lumen - networked display server
//
// Lumen drives shared displays from a single authoritative state: clients
// connect over WebSocket, authenticated operators replace what is shown,
// and every viewer converges on the latest slide. The server also carries
// the accounts, sessions and audit trail behind that control.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/openlumen/lumen-core/migrations"

	"github.com/openlumen/lumen-core/internal/api"
	"github.com/openlumen/lumen-core/internal/audit"
	"github.com/openlumen/lumen-core/internal/auth"
	"github.com/openlumen/lumen-core/internal/display"
	"github.com/openlumen/lumen-core/internal/infrastructure/config"
	"github.com/openlumen/lumen-core/internal/infrastructure/database"
	"github.com/openlumen/lumen-core/internal/infrastructure/influxdb"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
	"github.com/openlumen/lumen-core/internal/infrastructure/mqtt"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit // linear startup sequence with a defer chain
	log := logging.Default()
	log.Info("starting Lumen",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	db, err := database.Open(database.Config{
		Path:           cfg.Database.Path,
		WALMode:        cfg.Database.WALMode,
		BusyTimeout:    cfg.Database.BusyTimeout,
		MaxConnections: cfg.Database.MaxConnections,
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

	// The recorder closes last in the defer chain so the shutdown event
	// below is drained to disk before the database goes away.
	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, log)
	defer recorder.Close()

	userRepo := auth.NewUserRepository(db.DB)
	sessionRepo := auth.NewSessionRepository(db.DB)

	seeded, err := auth.SeedAdmin(ctx, userRepo, recorder, log, cfg.Admin.Username, cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("seeding admin account: %w", err)
	}
	if seeded {
		log.Info("default admin account created", "username", cfg.Admin.Username)
	}

	authSvc := auth.NewService(userRepo, sessionRepo, recorder, log, auth.ServiceConfig{
		MaxAge:         cfg.SessionMaxAge(),
		RenewThreshold: cfg.SessionRenewThreshold(),
	})

	// The display starts blank; state lives in memory only and resets on
	// restart.
	cell := display.NewCell(display.NewState())

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT mirror connected",
			"broker", cfg.MQTT.BrokerURL(),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		// Publish the boot state so the retained topic never holds a
		// previous run's slide.
		if pubErr := mqttClient.PublishDisplayState(cell.Current()); pubErr != nil {
			log.Warn("publishing boot state to MQTT failed", "error", pubErr)
		}
	} else {
		log.Info("MQTT mirror disabled")
	}

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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	go runMaintenance(ctx, db, cfg.Maintenance, log)

	server, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Static:  cfg.Static,
		Logger:  log,
		Auth:    authSvc,
		Audit:   auditRepo,
		Cell:    cell,
		MQTT:    mqttClient,
		Influx:  influxClient,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	recorder.RecordData("", audit.ActionStartup, map[string]any{"version": version})
	log.Info("initialisation complete, waiting for shutdown signal",
		"addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	recorder.Record("", audit.ActionShutdown)

	return nil
}

// getConfigPath returns the configuration file path.
// Uses the LUMEN_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// runMaintenance runs the periodic database housekeeping loops until the
// context is cancelled: query-planner statistics and incremental vacuum,
// plus passive and truncating WAL checkpoints on their own cadences.
func runMaintenance(ctx context.Context, db *database.DB, cfg config.MaintenanceConfig, log *logging.Logger) {
	optimize := time.NewTicker(time.Duration(cfg.OptimizeInterval) * time.Second)
	quick := time.NewTicker(time.Duration(cfg.QuickCheckpointInterval) * time.Second)
	full := time.NewTicker(time.Duration(cfg.FullCheckpointInterval) * time.Second)
	defer optimize.Stop()
	defer quick.Stop()
	defer full.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-optimize.C:
			if err := db.Optimize(ctx); err != nil {
				log.Warn("database optimize failed", "error", err)
			}
		case <-quick.C:
			if err := db.Checkpoint(ctx, false); err != nil {
				log.Warn("passive checkpoint failed", "error", err)
			}
		case <-full.C:
			if err := db.Checkpoint(ctx, true); err != nil {
				log.Warn("truncating checkpoint failed", "error", err)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional clients may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
