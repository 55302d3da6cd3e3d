package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/ironclaw/internal/observability"
	"github.com/harun/ironclaw/internal/tracing"
	"github.com/harun/ironclaw/pkg/orchestrator"
)

// Requests are task text plus a tool menu; anything bigger is abuse.
const defaultMaxBodyBytes = 1 << 20

// Runner takes a request through the orchestration pipeline.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) orchestrator.Result
}

// Server is the HTTP ingress for run requests and the observer event feed.
type Server struct {
	host         string
	port         int
	maxBodyBytes int64
	server       *http.Server
	upgrader     websocket.Upgrader
	observers    *ObserverRegistry
	broadcaster  *EventBroadcaster
	runner       Runner
	logger       zerolog.Logger

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	MaxBodyBytes int64
	Runner       Runner
	Logger       zerolog.Logger
}

// NewServer creates a new gateway server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	observers := NewObserverRegistry()

	s := &Server{
		host:         cfg.Host,
		port:         cfg.Port,
		maxBodyBytes: cfg.MaxBodyBytes,
		observers:    observers,
		broadcaster:  NewEventBroadcaster(observers, cfg.Logger),
		runner:       cfg.Runner,
		logger:       cfg.Logger.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}

	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start starts the gateway server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.routes(),
	}

	s.logger.Info().Str("host", s.host).Int("port", s.port).Msg("Starting Gateway Server")

	// Start server in goroutine so it doesn't block
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	// Give the server a moment to start
	time.Sleep(50 * time.Millisecond)

	return nil
}

// Stop gracefully stops the gateway server, draining in-flight requests.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down Gateway Server")

	s.broadcaster.Broadcast("server.shutdown", map[string]interface{}{
		"message": "Server is shutting down",
	})

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, observer := range s.observers.GetAll() {
		observer.Conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway Server stopped")
	return nil
}

// handleRun handles a single run request end to end.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Task == "" {
		http.Error(w, "task is required", http.StatusBadRequest)
		return
	}

	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}

	// Derive from the request context so a caller disconnect aborts any
	// in-flight oracle call or sandbox execution.
	ctx := tracing.WithTraceID(r.Context(), traceID)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	logger.Info().
		Str("tenant_id", req.TenantID).
		Int("tools", len(req.Tools)).
		Msg("Gateway received run request")

	allowed := make([]string, 0, len(req.Tools))
	for _, tool := range req.Tools {
		allowed = append(allowed, tool.Name)
	}

	start := time.Now()
	result := s.runner.Run(ctx, orchestrator.Request{
		TenantID: req.TenantID,
		Task:     req.Task,
		Allowed:  allowed,
	})

	s.broadcaster.BroadcastTyped(EventMessage{
		Event:   "run.completed",
		TraceID: traceID,
		Data: map[string]interface{}{
			"job_id":      result.JobID,
			"outcome":     result.Outcome,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(RunResponse{JobID: result.JobID, Status: result.Status}); err != nil {
		logger.Error().Err(err).Msg("Failed to encode run response")
	}
}

// handleWebSocket upgrades an observer connection onto the event feed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	observerID, _ := gonanoid.New()
	observer := &Observer{
		ID:          observerID,
		Conn:        conn,
		ConnectedAt: time.Now(),
		IPAddress:   r.RemoteAddr,
	}

	s.observers.Add(observer)

	s.logger.Info().
		Str("observerId", observerID).
		Str("ip", r.RemoteAddr).
		Msg("Observer connected")

	go s.readObserver(observer)
}

// readObserver drains inbound frames until the observer disconnects. The
// event feed is one-directional; inbound payloads are discarded.
func (s *Server) readObserver(observer *Observer) {
	defer func() {
		observer.Conn.Close()
		s.observers.Remove(observer.ID)
		s.logger.Info().Str("observerId", observer.ID).Msg("Observer disconnected")
	}()

	for {
		if _, _, err := observer.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("observerId", observer.ID).Msg("WebSocket error")
			}
			break
		}
	}
}

// Broadcast broadcasts an event to all connected observers.
func (s *Server) Broadcast(event string, data interface{}) {
	s.broadcaster.Broadcast(event, data)
}

// GetConnectedObservers returns information about all connected observers.
func (s *Server) GetConnectedObservers() []ObserverInfo {
	return s.observers.GetConnectedObservers()
}
