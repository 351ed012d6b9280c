// lightify2mqtt bridges an OSRAM Lightify gateway, reached through the
// Lightify cloud API, to an MQTT broker.
//
// Light states are published under <prefix>status/lights/<name>; commands
// arrive on <prefix>set/lights/<name>. <prefix>connected reports "0"
// (offline), "1" (broker connected) or "2" (logged in to the cloud).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/lightify2mqtt/migrations"

	"github.com/nerrad567/lightify2mqtt/internal/api"
	"github.com/nerrad567/lightify2mqtt/internal/audit"
	bridge "github.com/nerrad567/lightify2mqtt/internal/bridges/lightify"
	"github.com/nerrad567/lightify2mqtt/internal/device"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/database"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/influxdb"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/logging"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/lightify2mqtt/internal/lightify"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// run wires the components together and blocks until ctx is cancelled.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting lightify2mqtt",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
	)

	mqttAdapter := &mqttBridgeAdapter{client: mqttClient}
	availability := bridge.NewAvailability(mqttAdapter, mqttClient.Topics(), log)

	// Hooked before login: the first connect handler may still be running
	// and its "1" must not be the last word once "2" has been published.
	watchConnection(mqttClient, availability, log)

	// Cloud session
	apiClient := lightify.NewClient(cfg.Lightify.ServiceBaseURL(), cfg.Lightify.GetRequestTimeout())
	session := lightify.NewSession(apiClient, lightify.Credentials{
		Username: cfg.Lightify.Username,
		Password: cfg.Lightify.Password,
		Serial:   cfg.Lightify.Serial,
	}, lightify.SessionOptions{
		ReloginOnAuthFailure: cfg.Lightify.ReloginOnAuthFailure,
		Logger:               log,
		OnLogin:              availability.LoggedIn,
		OnInvalidate:         availability.LoggedOut,
	})

	if err := login(ctx, session, cfg.Lightify.GetLoginRetryDelay(), log); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("shutdown requested before login completed")
			return nil
		}
		return fmt.Errorf("logging in to Lightify: %w", err)
	}
	log.Info("logged in to Lightify",
		"base_url", apiClient.BaseURL(),
		"api_version", session.APIVersion(),
	)

	registry := device.NewRegistry()
	registry.SetLogger(log)

	opts := bridge.BridgeOptions{
		TopicPrefix:  cfg.MQTT.TopicPrefix,
		PollInterval: cfg.Lightify.GetPollInterval(),
		MQTTClient:   mqttAdapter,
		Gateway:      lightify.NewGateway(session),
		Registry:     registry,
		Availability: availability,
		Session:      session,
		Logger:       log,
	}

	// Command audit log (optional)
	var auditRepo audit.Repository
	if cfg.Database.Enabled {
		db, dbErr := openDatabase(ctx, cfg.Database)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("audit log enabled", "path", db.Path())

		repo := audit.NewSQLiteRepository(db.DB)
		auditRepo = repo
		opts.Audit = audit.NewCommandRecorder(repo, log)
	}

	// Metrics (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(writeErr error) {
			log.Error("InfluxDB write error", "error", writeErr)
		})
		opts.Metrics = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// The HTTP API needs the bridge and the bridge's hook needs the API,
	// so the hook reads srv after both exist.
	var srv *api.Server
	opts.OnStateChange = func(dev device.Device) {
		if influxClient != nil {
			influxClient.WriteLightState(dev.ID, dev.Name, dev.On, dev.Brightness)
		}
		if srv != nil {
			srv.BroadcastState(dev)
		}
	}

	lightBridge, err := bridge.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	defer lightBridge.Stop()

	if err := lightBridge.Start(); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Logger:    log,
			Bridge:    lightBridge,
			Registry:  registry,
			AuditRepo: auditRepo,
			Version:   version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		srv = server
		defer func() {
			log.Info("stopping API server")
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		log.Warn("health check failed", "error", err)
	}

	log.Info("lightify2mqtt ready")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return lightBridge.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}

	log.Info("shutdown signal received, stopping...")
	return nil
}

// connectionHooks is the part of the MQTT client watchConnection needs.
type connectionHooks interface {
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
}

// watchConnection re-asserts the session availability after every broker
// connect, which the MQTT client announces with "1".
func watchConnection(client connectionHooks, availability *bridge.Availability, log *logging.Logger) {
	client.SetOnConnect(func() {
		log.Info("MQTT connected")
		availability.Reconnected()
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
}

// login retries until the session is established. Rejected credentials
// end the loop; every other failure is retried after delay.
func login(ctx context.Context, session *lightify.Session, delay time.Duration, log *logging.Logger) error {
	for {
		err := session.Login(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, lightify.ErrAuthRejected) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("Lightify login failed, retrying", "error", err, "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// healthCheck verifies the optional connections are healthy.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
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

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The bridge's handlers do not return errors.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
