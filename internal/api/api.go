// Package api provides HTTP handlers and the main API server logic for
// CareFlow.
//
// It exposes RESTful endpoints for inbound message turns, session inspection,
// and record retrieval. The API integrates with the engine, store, and
// messaging modules and executes the side-effect actions the engine derives.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/novamind-health/careflow/internal/crisis"
	"github.com/novamind-health/careflow/internal/engine"
	"github.com/novamind-health/careflow/internal/flow"
	"github.com/novamind-health/careflow/internal/i18n"
	"github.com/novamind-health/careflow/internal/messaging"
	"github.com/novamind-health/careflow/internal/models"
	"github.com/novamind-health/careflow/internal/store"
)

// DefaultAddr is the default API listen address.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful server shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	EngineOptions []engine.Option
	// Deliver sends each turn's reply through the messaging service in
	// addition to returning it in the HTTP response.
	Deliver bool
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithEngineOptions passes options through to the conversation engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *Opts) { o.EngineOptions = append(o.EngineOptions, opts...) }
}

// WithDelivery enables outbound delivery of replies via the messaging service.
func WithDelivery() Option {
	return func(o *Opts) { o.Deliver = true }
}

// Server wires the engine, store and messaging service behind HTTP handlers.
type Server struct {
	st         store.Store
	msgService messaging.Service
	eng        *engine.Engine
	addr       string
	deliver    bool
	httpServer *http.Server

	// Per-identity locks serialize concurrent turns for the same user.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewServer creates an API server around an already-wired engine.
func NewServer(st store.Store, msgService messaging.Service, eng *engine.Engine, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		st:         st,
		msgService: msgService,
		eng:        eng,
		addr:       cfg.Addr,
		deliver:    cfg.Deliver,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Run builds the full module stack from options and serves the API until the
// process is stopped. It owns the lifecycle of the store and messaging
// service it creates.
func Run(storeOpts []store.Option, msgOpts []messaging.Option, apiOpts []Option) error {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	msgService, err := buildMessagingService(msgOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging service: %w", err)
	}

	translator, err := i18n.NewTranslator()
	if err != nil {
		return fmt.Errorf("failed to initialize translator: %w", err)
	}

	detector := crisis.NewDetector()

	registry := flow.NewRegistry()
	registry.Register(flow.NewOnboardingHandler(translator))
	registry.Register(flow.NewAssessmentHandler(translator))
	registry.Register(flow.NewMoodLogHandler(translator, detector))
	registry.Register(flow.NewCrisisHandler(translator, st))

	router := flow.NewRouter(detector, registry, translator, st)
	eng := engine.New(st, router, translator, cfg.EngineOptions...)

	server := NewServer(st, msgService, eng, apiOpts...)

	ctx := context.Background()
	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer msgService.Stop()

	slog.Info("CareFlow API running", "addr", server.addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// buildStore selects a store backend from the configured DSN. No DSN yields
// the in-memory store.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("No database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	switch store.DetectDSNType(cfg.DSN) {
	case "postgres":
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(storeOpts...)
	default:
		slog.Info("Using SQLite store")
		return store.NewSQLiteStore(storeOpts...)
	}
}

// buildMessagingService selects Twilio delivery when credentials are
// configured, falling back to the no-op service.
func buildMessagingService(msgOpts []messaging.Option) (messaging.Service, error) {
	var cfg messaging.Opts
	for _, opt := range msgOpts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" && cfg.AuthToken == "" {
		slog.Info("No Twilio credentials configured, using no-op messaging service")
		return messaging.NewNoopService(), nil
	}
	return messaging.NewTwilioService(msgOpts...)
}

// Handler returns the server's HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", s.messagesHandler)
	mux.HandleFunc("/v1/twilio/inbound", s.twilioInboundHandler)
	mux.HandleFunc("/v1/sessions/", s.sessionsHandler)
	mux.HandleFunc("/v1/assessments", s.assessmentsHandler)
	mux.HandleFunc("/v1/moods", s.moodsHandler)
	mux.HandleFunc("/healthz", s.healthHandler)
	return mux
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// lockFor returns the mutex serializing turns for one identity.
func (s *Server) lockFor(identity string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[identity]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[identity] = mu
	}
	return mu
}

// handleTurn executes one engine turn for an identity, serialized per user,
// and runs the derived actions against the store.
func (s *Server) handleTurn(ctx context.Context, identity, text string) (*models.FlowResponse, error) {
	mu := s.lockFor(identity)
	mu.Lock()
	defer mu.Unlock()

	resp, actions, err := s.eng.HandleInboundMessage(ctx, identity, text, time.Now().UTC())
	if err != nil {
		slog.Error("Server.handleTurn: engine turn failed", "error", err, "identity", identity)
	}
	if resp == nil {
		return nil, fmt.Errorf("engine returned no response for %s: %w", identity, err)
	}
	s.executeActions(identity, actions)
	return resp, nil
}
