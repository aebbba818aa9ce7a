package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/osvaldoandrade/zumo/internal/metrics"
	"github.com/osvaldoandrade/zumo/internal/middleware"
	"github.com/osvaldoandrade/zumo/internal/providers"
	"github.com/osvaldoandrade/zumo/internal/ratelimit"
	"github.com/osvaldoandrade/zumo/internal/tracing"
	"github.com/osvaldoandrade/zumo/pkg/auth"
	_ "github.com/osvaldoandrade/zumo/pkg/auth/signed"  // Register signature-checking validator
	_ "github.com/osvaldoandrade/zumo/pkg/auth/trusted" // Register gateway-trusting validator
	"github.com/osvaldoandrade/zumo/pkg/config"
	"github.com/osvaldoandrade/zumo/pkg/identity"
	"github.com/osvaldoandrade/zumo/pkg/tokenexchange"
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Logger          *slog.Logger
	Validator       auth.Validator
	TokenFetcher    identity.Fetcher
	RateLimiter     ratelimit.Limiter
	Redis           *redis.Client
	TracingShutdown func(context.Context) error

	logOutput io.Writer
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithValidator replaces the validator built from config.
func WithValidator(validator auth.Validator) ApplicationOption {
	return func(app *Application) error {
		app.Validator = validator
		return nil
	}
}

// WithTokenFetcher replaces the token exchange client built from config.
func WithTokenFetcher(f identity.Fetcher) ApplicationOption {
	return func(app *Application) error {
		app.TokenFetcher = f
		return nil
	}
}

func WithRedisClient(rdb *redis.Client) ApplicationOption {
	return func(app *Application) error {
		app.Redis = rdb
		return nil
	}
}

// WithLogOutput redirects the application log, which defaults to stdout.
func WithLogOutput(w io.Writer) ApplicationOption {
	return func(app *Application) error {
		if w != nil {
			app.logOutput = w
		}
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	app := &Application{Config: cfg, logOutput: os.Stdout}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	app.Logger = newLogger(cfg, app.logOutput)
	slog.SetDefault(app.Logger)

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,

		Environment:    cfg.Env,
		ValidationMode: cfg.ValidationMode(),
		Authentication: cfg.AuthenticationEnabled(),
	}, app.Logger)
	if err != nil {
		return nil, err
	}
	app.TracingShutdown = shutdown

	if app.Redis == nil && strings.TrimSpace(cfg.RedisAddr) != "" {
		rdb, err := providers.ConnectRedis(context.Background(), cfg.RedisAddr, cfg.RedisPassword, 2*time.Second)
		if err != nil {
			// The limiter fails open, so an unreachable redis only disables throttling.
			app.Logger.Warn("redis ping failed; rate limiting degraded", "err", err)
		}
		app.Redis = rdb
	}
	if app.Redis != nil {
		app.RateLimiter = ratelimit.NewTokenBucketLimiter(app.Redis)
		metrics.RegisterRedisCollector(app.Redis, app.Logger)
	} else {
		app.Logger.Info("redis not configured; identity lookups are not rate limited")
	}

	if app.Validator == nil && cfg.AuthenticationEnabled() {
		pc, err := cfg.ValidatorConfig()
		if err != nil {
			return nil, err
		}
		validator, err := auth.NewValidator(pc)
		if err != nil {
			return nil, fmt.Errorf("token validator: %w", err)
		}
		app.Validator = validator
	}

	if app.TokenFetcher == nil {
		if base := tokenBaseURL(cfg); base != "" {
			client, err := tokenexchange.NewClient(tokenexchange.Config{
				BaseURL: base,
				API:     tokenexchange.API(cfg.TokenAPI),
				Timeout: cfg.TokenExchangeTimeout(),
			}, tokenexchange.WithLogger(app.Logger))
			if err != nil {
				return nil, err
			}
			app.TokenFetcher = client
		} else {
			app.Logger.Info("token base URL not configured; identity lookups are disabled")
		}
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(cfg.Tracing.ServiceName),
		middleware.LoggerMiddleware(app.Logger),
	)
	if cfg.AuthenticationEnabled() {
		engine.Use(middleware.Authentication(app.Validator, app.Logger, middleware.WithValidationMode(cfg.ValidationMode())))
	} else {
		app.Logger.Info("authentication middleware disabled", "authMode", cfg.AuthMode, "websiteHostname", cfg.WebsiteHostname)
	}
	app.Engine = engine

	return app, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
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
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", "zumo", "env", cfg.Env)
}

// tokenBaseURL falls back to the site's own origin when hosted, where the
// token service is served under the same host.
func tokenBaseURL(cfg *config.Config) string {
	if base := strings.TrimSpace(cfg.TokenBaseURL); base != "" {
		return base
	}
	if host := strings.TrimSpace(cfg.WebsiteHostname); host != "" {
		return "https://" + host
	}
	return ""
}
