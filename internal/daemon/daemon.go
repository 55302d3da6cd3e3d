package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/harun/ironclaw/internal/config"
	"github.com/harun/ironclaw/internal/logger"
	"github.com/harun/ironclaw/internal/observability"
	"github.com/harun/ironclaw/internal/tracing"
	"github.com/harun/ironclaw/pkg/catalog"
	"github.com/harun/ironclaw/pkg/engine"
	"github.com/harun/ironclaw/pkg/gateway"
	"github.com/harun/ironclaw/pkg/oracle"
	"github.com/harun/ironclaw/pkg/orchestrator"
)

// Daemon represents the IronClaw daemon service
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	// Core modules
	catalogLoader *catalog.Loader
	catalogHandle *catalog.Handle
	engine        *engine.Engine
	oracle        *oracle.Adapter
	orchestrator  *orchestrator.Orchestrator

	// Services
	catalogWatcher *catalog.Watcher
	sweeper        *catalog.Sweeper
	gatewayServer  *gateway.Server

	ctx    context.Context
	cancel context.CancelFunc

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()
	if err := tracing.InitOpenTelemetry("ironclaw-daemon"); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
	} else {
		log.Info().Msg("Tracing initialized successfully")
	}

	d := &Daemon{
		config:         cfg,
		logger:         log,
		ctx:            ctx,
		cancel:         cancel,
		tracingEnabled: true,
	}

	// Initialize core modules in dependency order
	if err := d.initializeCoreModules(); err != nil {
		cancel()
		if d.tracingEnabled {
			_ = tracing.ShutdownOpenTelemetry(context.Background())
			d.tracingEnabled = false
		}
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	// Initialize services
	if err := d.initializeServices(); err != nil {
		cancel()
		if d.tracingEnabled {
			_ = tracing.ShutdownOpenTelemetry(context.Background())
			d.tracingEnabled = false
		}
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return d, nil
}

// initializeCoreModules initializes all core modules
func (d *Daemon) initializeCoreModules() error {
	// Initialize audit logger
	auditPath := filepath.Join(d.config.DataDir, "audit.log")
	if err := observability.InitAuditLogger(auditPath); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to initialize audit logger, using default stderr")
	} else {
		d.logger.Info().Str("path", auditPath).Msg("Audit logger initialized")
	}

	d.catalogLoader = catalog.NewLoader(d.logger.GetZerolog())
	cat, err := d.catalogLoader.Load(d.config.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to load capability catalog: %w", err)
	}
	d.catalogHandle = catalog.NewHandle(cat)
	d.logger.Info().
		Str("path", d.config.Catalog.Path).
		Int("capabilities", cat.Len()).
		Msg("Capability catalog loaded")

	eng, err := engine.New(d.ctx, engine.Config{
		Logger:        d.logger.GetZerolog(),
		DefaultBudget: d.config.Engine.DefaultBudget,
		MemoryPages:   d.config.Engine.MemoryPages,
	})
	if err != nil {
		return fmt.Errorf("failed to create execution engine: %w", err)
	}
	d.engine = eng
	d.logger.Info().
		Int64("default_budget", d.config.Engine.DefaultBudget).
		Msg("Execution engine initialized")

	factory := &oracle.ProviderFactory{}
	provider, err := factory.NewProvider(oracle.Credentials{
		Provider: d.config.Oracle.Provider,
		APIKey:   d.config.Oracle.APIKey,
		BaseURL:  d.config.Oracle.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create oracle provider: %w", err)
	}
	adapter, err := oracle.New(oracle.Config{
		Provider:  provider,
		Logger:    d.logger.GetZerolog(),
		Model:     d.config.Oracle.Model,
		MaxTokens: d.config.Oracle.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create oracle adapter: %w", err)
	}
	d.oracle = adapter
	d.logger.Info().
		Str("provider", d.config.Oracle.Provider).
		Str("model", d.config.Oracle.Model).
		Msg("Planning oracle initialized")

	orch, err := orchestrator.New(orchestrator.Config{
		Catalog: d.catalogHandle,
		Oracle:  d.oracle,
		Engine:  d.engine,
		Logger:  d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	d.orchestrator = orch
	d.logger.Info().Msg("Orchestrator initialized")

	return nil
}

// initializeServices initializes the daemon services
func (d *Daemon) initializeServices() error {
	if d.config.Catalog.Watch {
		watcher, err := catalog.NewWatcher(d.logger.GetZerolog(), d.catalogHandle, d.catalogLoader, d.config.Catalog.Path)
		if err != nil {
			return fmt.Errorf("failed to create catalog watcher: %w", err)
		}
		d.catalogWatcher = watcher
		d.logger.Info().Msg("Catalog watcher initialized")
	}

	if d.config.Catalog.SweepSchedule != "" {
		sweeper, err := catalog.NewSweeper(d.logger.GetZerolog(), d.catalogHandle, d.config.Catalog.SweepSchedule)
		if err != nil {
			return fmt.Errorf("failed to create catalog sweeper: %w", err)
		}
		d.sweeper = sweeper
		d.logger.Info().
			Str("schedule", d.config.Catalog.SweepSchedule).
			Msg("Catalog sweeper initialized")
	}

	gatewayServer, err := gateway.NewServer(gateway.Config{
		Host:         d.config.Server.Host,
		Port:         d.config.Server.Port,
		MaxBodyBytes: d.config.Server.MaxBodyBytes,
		Runner:       d.orchestrator,
		Logger:       d.logger.GetZerolog(),
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}
	d.gatewayServer = gatewayServer
	d.logger.Info().Msg("Gateway server initialized")

	return nil
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting IronClaw daemon")

	// Verify oracle connectivity before accepting requests
	pingCtx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	reply, err := d.oracle.Ping(pingCtx)
	cancel()
	if err != nil {
		logger.Warn().Err(err).Msg("Oracle is configured but unresponsive")
	} else {
		logger.Info().Str("reply", reply).Msg("Oracle connectivity verified")
	}

	// Start catalog watcher if configured
	if d.catalogWatcher != nil {
		if err := d.catalogWatcher.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start catalog watcher")
		} else {
			logger.Info().Msg("Catalog watcher started")
		}
	}

	// Start catalog sweeper
	if d.sweeper != nil {
		d.sweeper.Start()
		logger.Info().Msg("Catalog sweeper started")
	}

	// Start gateway server
	if err := d.gatewayServer.Start(); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	logger.Info().Msg("Gateway server started")

	logger.Info().Msg("Daemon started successfully - all core modules active")

	return nil
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping IronClaw daemon")

	// Stop gateway server first so no new work arrives
	if d.gatewayServer != nil {
		if err := d.gatewayServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop gateway server")
		}
	}

	// Stop catalog sweeper
	if d.sweeper != nil {
		d.sweeper.Stop()
		logger.Info().Msg("Catalog sweeper stopped")
	}

	// Stop catalog watcher
	if d.catalogWatcher != nil {
		if err := d.catalogWatcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop catalog watcher")
		}
	}

	// Close execution engine
	if d.engine != nil {
		if err := d.engine.Close(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Failed to close execution engine")
		}
	}

	// Cancel context
	d.cancel()

	if d.tracingEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.tracingEnabled = false
	}

	// Close audit logger
	if err := observability.GetAuditLogger().Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close audit logger")
	}

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

// Wait waits for the daemon to stop
func (d *Daemon) Wait() {
	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for signal
	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	// Stop daemon
	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetCatalog returns the capability catalog handle
func (d *Daemon) GetCatalog() *catalog.Handle {
	return d.catalogHandle
}

// GetOrchestrator returns the orchestrator
func (d *Daemon) GetOrchestrator() *orchestrator.Orchestrator {
	return d.orchestrator
}

// GetGatewayServer returns the gateway server
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}

// Status represents daemon status
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
}
