package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/osvaldoandrade/agentq/internal/engine"
	"github.com/osvaldoandrade/agentq/internal/middleware"
	"github.com/osvaldoandrade/agentq/internal/planner"
	"github.com/osvaldoandrade/agentq/internal/ratelimit"
	"github.com/osvaldoandrade/agentq/internal/services"
	"github.com/osvaldoandrade/agentq/internal/tracing"
	"github.com/osvaldoandrade/agentq/pkg/config"
	"github.com/osvaldoandrade/agentq/pkg/store"

	"github.com/gin-gonic/gin"
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Store           store.JobStore
	Jobs            services.JobsService
	Streams         services.StreamsService
	Logger          *slog.Logger
	RateLimiter     ratelimit.Limiter
	TracingShutdown func(context.Context) error
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithStore sets a pre-built job store, bypassing the provider registry.
func WithStore(st store.JobStore) ApplicationOption {
	return func(app *Application) error {
		app.Store = st
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler).With("service", "agentq", "env", cfg.Env)
	slog.SetDefault(logger)

	app := &Application{
		Config:      cfg,
		Logger:      logger,
		RateLimiter: ratelimit.NewInProcessLimiter(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.Store == nil {
		st, err := store.NewStore(providerConfig(cfg), store.PluginConfig{})
		if err != nil {
			return nil, err
		}
		app.Store = st
	}

	eng := engine.NewEngine(
		app.Store,
		planner.Plan,
		logger,
		time.Now,
		nil,
		nil,
		time.Duration(cfg.StepDelayMinMs)*time.Millisecond,
		time.Duration(cfg.StepDelayMaxMs)*time.Millisecond,
		cfg.DefaultFailureRate,
	)
	app.Jobs = services.NewJobsService(app.Store, logger, time.Now)
	app.Streams = services.NewStreamsService(app.Store, eng)

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  "agentq",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}
	app.TracingShutdown = shutdown

	ginEngine := gin.New()
	ginEngine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.TracingMiddleware("agentq"),
	)
	app.Engine = ginEngine

	return app, nil
}

// providerConfig translates the YAML store section into the provider
// registry's JSON shape.
func providerConfig(cfg *config.Config) store.ProviderConfig {
	raw := cfg.StoreConfig
	if raw == nil && cfg.StoreProvider == "redis" {
		raw = map[string]any{"addr": cfg.RedisAddr, "password": cfg.RedisPassword}
	}
	b, _ := json.Marshal(raw)
	return store.ProviderConfig{Type: cfg.StoreProvider, Config: b}
}
