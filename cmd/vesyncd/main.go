// vesyncd - VeSync local control daemon
//
// vesyncd polls a VeSync cloud account on a fixed interval and exposes the
// device fleet over a local REST API, WebSocket events, and MQTT topics.
// State and energy history are mirrored into SQLite; numeric telemetry can
// optionally be forwarded to InfluxDB.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/vesynchub/vesync-core/migrations"

	"github.com/vesynchub/vesync-core/internal/api"
	"github.com/vesynchub/vesync-core/internal/auth"
	"github.com/vesynchub/vesync-core/internal/history"
	"github.com/vesynchub/vesync-core/internal/infrastructure/config"
	"github.com/vesynchub/vesync-core/internal/infrastructure/database"
	"github.com/vesynchub/vesync-core/internal/infrastructure/influxdb"
	"github.com/vesynchub/vesync-core/internal/infrastructure/logging"
	"github.com/vesynchub/vesync-core/internal/infrastructure/mqtt"
	"github.com/vesynchub/vesync-core/internal/poller"
	"github.com/vesynchub/vesync-core/internal/vesync"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// pruneInterval is how often expired history rows are removed.
const pruneInterval = 24 * time.Hour

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPasswordCmd(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting vesyncd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// History repository over the mirrored device tables
	repo := history.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, log)
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

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// VeSync cloud client and device manager. The manager is not
	// thread-safe; the poller serialises every access to it.
	client := vesync.NewClient(vesync.ClientConfig{
		BaseURL:  cfg.VeSync.BaseURL,
		Timeout:  time.Duration(cfg.VeSync.RequestTimeout) * time.Second,
		TimeZone: cfg.VeSync.TimeZone,
		Logger:   log,
	})
	manager := vesync.NewManager(vesync.ManagerConfig{
		Username:             cfg.VeSync.Username,
		Password:             cfg.VeSync.Password,
		Client:               client,
		Logger:               log,
		UpdateInterval:       time.Duration(cfg.VeSync.UpdateInterval) * time.Second,
		EnergyUpdateInterval: time.Duration(cfg.VeSync.EnergyUpdateInterval) * time.Second,
	})

	// The WebSocket hub is created up front so the poller can broadcast
	// into it; the API server adopts it via ExternalHub.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	pollerDeps := poller.Deps{
		Config:    cfg.Poller,
		Manager:   manager,
		History:   repo,
		Broadcast: hub,
		Logger:    log,
	}
	// Assign optional clients only when connected so the poller sees a
	// nil interface, not a typed nil pointer.
	if mqttClient != nil {
		pollerDeps.MQTT = mqttClient
	}
	if influxClient != nil {
		pollerDeps.Metrics = influxClient
	}

	p, err := poller.New(pollerDeps)
	if err != nil {
		return fmt.Errorf("creating poller: %w", err)
	}

	// REST API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Poller:      p,
		History:     repo,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Periodic history pruning
	if cfg.Database.RetentionDays > 0 {
		go pruneLoop(ctx, repo, time.Duration(cfg.Database.RetentionDays)*24*time.Hour, log)
	}

	log.Info("initialisation complete, starting poll loop")

	// The poll loop blocks until the context is cancelled. A permanent
	// login failure (bad credentials) surfaces here.
	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("poller: %w", err)
	}

	log.Info("vesyncd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VESYNCD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VESYNCD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
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

// pruneLoop deletes history rows older than the retention window, once at
// startup and then daily.
func pruneLoop(ctx context.Context, repo history.Repository, retention time.Duration, log *logging.Logger) {
	prune := func() {
		removed, err := repo.Prune(ctx, retention)
		if err != nil {
			log.Error("history prune failed", "error", err)
			return
		}
		if removed > 0 {
			log.Info("history pruned", "rows", removed, "retention", retention.String())
		}
	}

	prune()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// hashPasswordCmd implements the hash-password subcommand. It prints an
// Argon2id hash suitable for the security.admin.password config field.
// The password is taken from the first argument, or read from stdin when
// no argument is given.
func hashPasswordCmd(args []string) error {
	var password string
	if len(args) > 0 {
		password = args[0]
	} else {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	fmt.Println(hash)
	return nil
}
