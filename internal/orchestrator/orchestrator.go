package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/networkbuster/aidefense/internal/archive"
	"github.com/networkbuster/aidefense/internal/config"
	"github.com/networkbuster/aidefense/internal/coordinator"
	"github.com/networkbuster/aidefense/internal/detector"
	"github.com/networkbuster/aidefense/internal/docker"
	"github.com/networkbuster/aidefense/internal/eventbus"
	"github.com/networkbuster/aidefense/internal/httpapi"
	"github.com/networkbuster/aidefense/internal/response"
)

// Orchestrator manages the AI Defense service lifecycle: detector and
// response action registration, external collaborators, the coordinator,
// and the HTTP API.
//
// Lifecycle:
//  1. Start() - Initializes detectors, response actions, NATS, Redis, Docker, and the coordinator
//  2. Run() - Serves the HTTP API and blocks until the context is cancelled
//  3. Stop() - Gracefully closes all connections and resources
//
// The orchestrator implements graceful degradation:
//   - NATS failure: alerts are not announced on the bus and external findings are not received
//   - Redis failure: alerts are not archived; blocklist and incident records are log-only
//   - Docker failure: container-level response actions run in simulate mode
type Orchestrator struct {
	config *config.Config

	coordinator *coordinator.Coordinator
	executor    *response.Executor
	external    *detector.ExternalDetector

	// External collaborators (all optional)
	publisher  *eventbus.Publisher
	subscriber *eventbus.Subscriber
	archiver   *archive.Client
	docker     *docker.Client

	httpServer *httpapi.Server
}

// NewOrchestrator creates a new Orchestrator instance with the provided
// configuration. The orchestrator is not started until Start() is called.
func NewOrchestrator(cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		config: cfg,
	}
}

// Start initializes all components and prepares the service for monitoring.
// This method must be called before Run(). Only the coordinator itself is
// required; every external collaborator degrades gracefully.
func (o *Orchestrator) Start(ctx context.Context) error {
	log.Printf("Starting AI Defense Orchestrator...")

	// Optional collaborators first so actions and the coordinator can use them
	o.connectNATS()
	o.connectRedis(ctx)
	o.connectDocker(ctx)

	o.initializeCoordinator()
	o.registerDetectors()

	// NATS subscriber feeds the external findings detector
	o.startSubscriber()

	o.httpServer = httpapi.NewServer(o.coordinator)

	if o.config.AutoStart {
		if err := o.coordinator.Activate(); err != nil {
			return fmt.Errorf("failed to activate defense monitoring: %w", err)
		}
	} else {
		log.Printf("Defense autostart disabled - waiting for /activate-defense")
	}

	log.Printf("AI Defense Orchestrator started successfully")
	return nil
}

// initializeCoordinator builds the response executor, registers all response
// actions, and creates the coordinator.
func (o *Orchestrator) initializeCoordinator() {
	log.Printf("Initializing coordinator...")

	o.executor = response.NewExecutor(o.config.ActionTimeout)

	settings := coordinator.Settings{
		MonitoringInterval: o.config.MonitoringInterval,
		AlertThreshold:     o.config.AlertThreshold,
		AutoResponse:       o.config.AutoResponse,
		MaxAlertsPerHour:   o.config.MaxAlertsPerHour,
	}

	o.coordinator = coordinator.New(settings, o.executor)
	o.coordinator.SetRetention(o.config.RetentionWindow)
	o.coordinator.SetHistoryLimit(o.config.HistoryLimit)
	o.coordinator.SetDetectorTimeout(o.config.DetectorTimeout)

	if o.publisher != nil {
		o.coordinator.SetPublisher(o.publisher)
	}
	if o.archiver != nil {
		o.coordinator.SetArchiver(o.archiver)
	}

	// Response actions. Actions receiving a nil collaborator run in
	// simulate mode.
	o.executor.Register(response.NewIsolateResourceAction(o.docker, o.config.TargetContainer))
	o.executor.Register(response.NewScaleResourcesAction(o.docker, o.config.TargetContainer))
	o.executor.Register(response.NewBlockAccessAction(o.archiver))
	o.executor.Register(response.NewLogIncidentAction(o.archiver))
	o.executor.Register(response.NewIncreaseMonitoringAction(o.coordinator.TightenInterval))
	o.executor.Register(response.NewTriggerUpgradeAction(o.publisher))

	log.Printf("Coordinator initialized with actions: %v", o.executor.RegisteredActions())
}

// registerDetectors creates all detectors with configured thresholds and
// registers them with the coordinator.
func (o *Orchestrator) registerDetectors() {
	log.Printf("Registering detectors with configured thresholds...")

	anomaly := detector.NewAnomalyDetector()
	anomaly.SetThreshold(o.config.Thresholds.AnomalyThreshold)
	o.coordinator.RegisterDetector(anomaly)
	log.Printf("  - Anomaly: threshold=%.2f", o.config.Thresholds.AnomalyThreshold)

	threat := detector.NewThreatDetector(o.config.ThreatLogPaths)
	o.coordinator.RegisterDetector(threat)
	log.Printf("  - Threat: %d log sources", len(o.config.ThreatLogPaths))

	performance := detector.NewPerformanceDetector(o.config.BaselinePath)
	performance.SetThresholds(
		o.config.Thresholds.AccuracyThreshold,
		o.config.Thresholds.LatencyThresholdMs,
		o.config.Thresholds.MemoryThresholdMB,
		o.config.Thresholds.CPUThresholdPercent,
	)
	o.coordinator.RegisterDetector(performance)
	log.Printf("  - Performance: accuracy>=%.2f latency<=%.0fms memory<=%.0fMB cpu<=%.0f%%",
		o.config.Thresholds.AccuracyThreshold,
		o.config.Thresholds.LatencyThresholdMs,
		o.config.Thresholds.MemoryThresholdMB,
		o.config.Thresholds.CPUThresholdPercent)

	o.external = detector.NewExternalDetector()
	o.coordinator.RegisterDetector(o.external)
	log.Printf("  - External: fed from NATS findings.external")
}

// connectNATS establishes the event bus connection for publishing alerts and
// receiving externally reported findings. Optional - failure logs a warning
// but does not prevent startup.
func (o *Orchestrator) connectNATS() {
	if o.config.NatsURL == "" {
		log.Printf("NATS URL not configured, skipping connection")
		return
	}

	log.Printf("Connecting to NATS at: %s", o.config.NatsURL)

	publisher, err := eventbus.NewPublisher(o.config.NatsURL)
	if err != nil {
		log.Printf("Warning: failed to connect NATS publisher: %v", err)
		log.Printf("Alerts and response records will not be announced on the bus")
		return
	}

	o.publisher = publisher
	log.Printf("Connected to NATS publisher")
}

// startSubscriber wires external findings from NATS into the external
// detector. Requires a working NATS connection.
func (o *Orchestrator) startSubscriber() {
	if o.config.NatsURL == "" || o.external == nil {
		return
	}

	subscriber, err := eventbus.NewSubscriber(o.config.NatsURL, o.external)
	if err != nil {
		log.Printf("Warning: failed to create NATS subscriber: %v", err)
		log.Printf("External finding intake unavailable")
		return
	}

	if err := subscriber.Start(); err != nil {
		log.Printf("Warning: failed to start NATS subscriber: %v", err)
		subscriber.Close()
		return
	}

	o.subscriber = subscriber
	log.Printf("Connected to NATS subscriber")
}

// connectRedis establishes the alert archive connection. Optional - failure
// logs a warning but does not prevent startup.
func (o *Orchestrator) connectRedis(ctx context.Context) {
	if o.config.RedisAddr == "" {
		log.Printf("Redis address not configured, skipping connection")
		return
	}

	log.Printf("Connecting to Redis at: %s", o.config.RedisAddr)

	client, err := archive.NewClient(o.config.RedisAddr, o.config.RedisPass, o.config.RedisDB)
	if err != nil {
		log.Printf("Warning: failed to connect to Redis: %v", err)
		log.Printf("Alert archive, blocklist, and incident records unavailable")
		return
	}

	if err := client.Ping(ctx); err != nil {
		log.Printf("Warning: Redis ping failed: %v", err)
		log.Printf("Alert archive, blocklist, and incident records unavailable")
		client.Close()
		return
	}

	o.archiver = client
	log.Printf("Connected to Redis")
}

// connectDocker establishes the Docker API connection used by container
// response actions. Optional and disabled by default.
func (o *Orchestrator) connectDocker(ctx context.Context) {
	if !o.config.DockerEnabled {
		log.Printf("Docker integration disabled - container actions run in simulate mode")
		return
	}

	client, err := docker.NewClient()
	if err != nil {
		log.Printf("Warning: failed to create Docker client: %v", err)
		log.Printf("Container actions run in simulate mode")
		return
	}

	if err := client.IsAvailable(ctx); err != nil {
		log.Printf("Warning: Docker daemon unavailable: %v", err)
		log.Printf("Container actions run in simulate mode")
		client.Close()
		return
	}

	o.docker = client
	log.Printf("Connected to Docker daemon")
}

// Run serves the HTTP API and blocks until the context is cancelled or the
// server fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	addr := ":" + o.config.HTTPPort

	errChan := make(chan error, 1)
	go func() {
		if err := o.httpServer.Start(addr); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	log.Printf("AI Defense ready - serving API on %s", addr)

	select {
	case <-ctx.Done():
		log.Printf("Shutdown signal received")
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops monitoring and closes all connections. This method
// should be called during application shutdown.
func (o *Orchestrator) Stop() error {
	log.Printf("Stopping Orchestrator...")

	if o.coordinator != nil {
		if err := o.coordinator.Deactivate(); err != nil {
			log.Printf("Error deactivating coordinator: %v", err)
		}
	}

	if o.httpServer != nil {
		if err := o.httpServer.Stop(); err != nil {
			log.Printf("Error stopping HTTP server: %v", err)
		}
	}

	if o.subscriber != nil {
		o.subscriber.Close()
	}

	if o.publisher != nil {
		o.publisher.Close()
	}

	if o.archiver != nil {
		if err := o.archiver.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}

	if o.docker != nil {
		if err := o.docker.Close(); err != nil {
			log.Printf("Error closing Docker client: %v", err)
		}
	}

	log.Printf("Orchestrator stopped successfully")
	return nil
}
