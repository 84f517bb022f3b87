package devbackend

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hackmate/internal/hackathon"
	jwttoken "hackmate/internal/jwt_token"
	"hackmate/internal/platform/config"
	"hackmate/internal/platform/health"
	"hackmate/internal/platform/metrics"
	"hackmate/pkg/platform/middleware/admin"
	"hackmate/pkg/platform/middleware/auth"
	"hackmate/pkg/platform/middleware/request"
	"hackmate/pkg/platform/middleware/requesttime"
)

// Demo hackathon seeded by NewApp so a fresh backend is usable at once.
const (
	DemoHackathonID  = "codeyudh-2026"
	DemoHackathonFee = 499
)

// RouterConfig wires the router's collaborators.
type RouterConfig struct {
	Handler    *Handler
	Tokens     auth.TokenValidator
	AdminToken string
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Health     *health.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware(nil))
	r.Use(request.Logger(cfg.Logger, cfg.Metrics))

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	cfg.Handler.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireParticipant(cfg.Tokens, cfg.Logger))
		cfg.Handler.RegisterParticipantRoutes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		cfg.Handler.RegisterAdminRoutes(r)
	})
	return r
}

// App is a fully wired dev backend.
type App struct {
	Router  http.Handler
	Service *Service
	Store   *InMemoryStore
	Tokens  *jwttoken.JWTService
}

// NewApp builds the backend from cfg, seeds the demo hackathon and registers
// metrics on reg.
func NewApp(cfg config.DevBackend, logger *slog.Logger, reg *prometheus.Registry, opts ...ServiceOption) (*App, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	store := NewInMemoryStore()
	if err := store.PutHackathon(context.Background(), hackathon.Details{
		ID:              DemoHackathonID,
		Name:            "CodeYudh 2026",
		RegistrationFee: DemoHackathonFee,
		Venue:           "Main Auditorium",
		Status:          hackathon.StatusRegistrationOpen,
	}); err != nil {
		return nil, err
	}

	m := metrics.New(reg)
	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey)
	service := NewService(store, append([]ServiceOption{WithServiceLogger(logger)}, opts...)...)
	checks := health.New()
	checks.RegisterCheck("demo_hackathon", func() error {
		_, err := store.FindHackathon(context.Background(), DemoHackathonID)
		return err
	})

	router := NewRouter(RouterConfig{
		Handler:    NewHandler(service, logger, cfg.MaxProofBytes),
		Tokens:     jwttoken.NewJWTServiceAdapter(tokens),
		AdminToken: cfg.AdminToken,
		Logger:     logger,
		Metrics:    m,
		Gatherer:   reg,
		Health:     checks,
	})
	return &App{Router: router, Service: service, Store: store, Tokens: tokens}, nil
}
