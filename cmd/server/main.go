package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	echoapi "github.com/mythologiq/hearthlink-core/api/echo"
	"github.com/mythologiq/hearthlink-core/cache"
	redisstore "github.com/mythologiq/hearthlink-core/cache/redis"
	"github.com/mythologiq/hearthlink-core/config"
	"github.com/mythologiq/hearthlink-core/core"
	"github.com/mythologiq/hearthlink-core/domain"
	"github.com/mythologiq/hearthlink-core/internal/metrics"
	"github.com/mythologiq/hearthlink-core/realtime"
	"github.com/mythologiq/hearthlink-core/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)
	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	sessions := newSessionStore(cfg)
	defer func() { _ = sessions.Close() }()

	tokens := services.NewTokenService([]byte(cfg.JWTSecretKey), cfg.JWTIssuer, cfg.JWTAudience)
	validator := newValidator()
	auth := services.NewAuthService(tokens, sessions, validator, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())

	registry := realtime.NewRegistry(cfg.LivenessInterval(), cfg.LivenessTimeout())
	registry.Start()

	orchestrator := core.New(realtime.NewBroadcaster(registry), nil, core.Options{
		ParticipantCap: cfg.ParticipantCap,
		AllowSelfJoin:  true,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	gateway := realtime.NewGateway(auth, registry)
	echoapi.NewAPI(auth, orchestrator, gateway, nil).RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil {
			log.Info().Err(err).Msg("http server stopped")
		}
	}()
	log.Info().Str("port", cfg.HTTPPort).Msg("hearthlink core listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry.Shutdown(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

func initLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func newSessionStore(cfg *config.ServerConfig) cache.SessionStore {
	if cfg.RedisAddr == "" {
		return cache.NewMemorySessionStore()
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return redisstore.NewSessionStore(client, "hearthlink")
}

// newValidator seeds a development account directory. Deployments replace it
// with a real CredentialValidator implementation.
func newValidator() services.CredentialValidator {
	v := services.NewMemoryCredentialValidator()
	if email := os.Getenv("HEARTHLINK_DEV_USER"); email != "" {
		_ = v.AddUser(domain.User{
			ID:     "dev",
			Email:  email,
			Roles:  []string{"admin"},
			Status: domain.UserStatusActive,
		}, os.Getenv("HEARTHLINK_DEV_PASSWORD"))
	}
	return v
}
