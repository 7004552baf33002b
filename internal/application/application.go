package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/psds-microservice/live-workout-service/internal/common/clock"
	"github.com/psds-microservice/live-workout-service/internal/config"
	"github.com/psds-microservice/live-workout-service/internal/database"
	"github.com/psds-microservice/live-workout-service/internal/eventbus"
	"github.com/psds-microservice/live-workout-service/internal/handler"
	"github.com/psds-microservice/live-workout-service/internal/hub"
	"github.com/psds-microservice/live-workout-service/internal/plan"
	"github.com/psds-microservice/live-workout-service/internal/profile"
	"github.com/psds-microservice/live-workout-service/internal/router"
	"github.com/psds-microservice/live-workout-service/internal/session"
	"github.com/psds-microservice/live-workout-service/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API is the HTTP + WebSocket API application.
type API struct {
	cfg      *config.Config
	srv      *http.Server
	db       *gorm.DB
	registry *session.Registry
	bus      eventbus.Publisher
}

// NewAPI creates the API application: validates config, runs migrations,
// opens the database, wires the actor registry and builds the router.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	logger, _ := zap.NewProduction()
	if cfg.AppEnv == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	wsHub := hub.New(cfg.WSReadBufferSize, cfg.WSWriteBufferSize, logger)

	var bus eventbus.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		bus = eventbus.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	var profiles profile.Lookup
	if cfg.ProfileServiceURL != "" {
		profiles = profile.NewClient(cfg.ProfileServiceURL)
	}
	var plans plan.Lookup
	if cfg.PlanServiceURL != "" {
		plans = plan.NewClient(cfg.PlanServiceURL)
	}

	registry := session.NewRegistry(session.Config{
		MaxParticipants:     cfg.SessionMaxParticipants,
		PresenceTick:        cfg.PresenceTickInterval,
		IdleThreshold:       cfg.IdleThreshold,
		DisconnectThreshold: cfg.DisconnectThreshold,
		AbandonGrace:        cfg.AbandonGracePeriod,
		Retention:           cfg.ActorRetention,
	}, store.NewGorm(db), wsHub, bus, &clock.DefaultClock{}, logger)

	sessionHandler := handler.NewSessionHandler(registry, plans, cfg.WSBaseURL, logger)
	liveWS := handler.NewLiveWSHandler(wsHub, registry, profiles, cfg.WSMaxMessageSize, logger)
	health := handler.NewHealthHandler()

	r := router.New(sessionHandler, liveWS, health)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, srv: srv, db: db, registry: registry, bus: bus}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled; then
// shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	addr := a.srv.Addr
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s", addr)
	log.Printf("  Health:        %s/health", base)
	log.Printf("  Sessions:      %s/sessions", base)
	log.Printf("  Live channel:  ws://%s:%s/ws/session/:session_id/:participant_id", host, a.cfg.HTTPPort)

	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	a.registry.Shutdown()
	if a.bus != nil {
		_ = a.bus.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
