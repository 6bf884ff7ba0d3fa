package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	authhandler "github.com/jwalitptl/medvault-api/internal/handler/auth"
	drughandler "github.com/jwalitptl/medvault-api/internal/handler/drug"
	"github.com/jwalitptl/medvault-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/medvault-api/internal/handler/patient"
	promhandler "github.com/jwalitptl/medvault-api/internal/handler/prometheus"
	sharehandler "github.com/jwalitptl/medvault-api/internal/handler/share"
	"github.com/jwalitptl/medvault-api/internal/middleware"
	"github.com/jwalitptl/medvault-api/internal/router"
	authsvc "github.com/jwalitptl/medvault-api/internal/service/auth"
	sharesvc "github.com/jwalitptl/medvault-api/internal/service/share"
	"github.com/jwalitptl/medvault-api/internal/session"
	"github.com/jwalitptl/medvault-api/pkg/auth"
	"github.com/jwalitptl/medvault-api/pkg/mailer"
)

const tokenIssuer = "medvault"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}
}

func runServer(a *app) error {
	cfg := a.cfg

	if err := middleware.RegisterValidators(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	secret, generated, err := resolveJWTSecret(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	if generated {
		log.Warn().Msg("auth.jwt_secret not set; using a random secret (sessions will not survive restart)")
	}
	tokens, err := auth.NewJWTService(secret, cfg.Auth.SessionTTL, tokenIssuer)
	if err != nil {
		return err
	}

	checks := map[string]health.Checker{}
	if pinger, ok := a.patients.(health.Checker); ok {
		checks["store"] = pinger
	}

	var revoker session.Revoker
	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisRevoker, err := session.NewRedisRevoker(ctx, cfg.Redis.URL)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		if closer, ok := redisRevoker.(interface{ Close() error }); ok {
			defer closer.Close()
		}
		if pinger, ok := redisRevoker.(health.Checker); ok {
			checks["redis"] = pinger
		}
		revoker = redisRevoker
	} else {
		revoker = session.NewMemoryRevoker(10 * time.Minute)
	}

	controller := session.NewController(authsvc.NewService(a.patients), tokens, revoker, a.log, a.metrics)
	shareSvc := sharesvc.NewService(a.patientSvc, mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}), sharesvc.Config{
		BaseURL: cfg.Share.BaseURL,
		QRSize:  cfg.Share.QRSize,
	}, a.log)

	var guards []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		})
		guards = append(guards, limiter.RateLimit())
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.Security.AllowedOrigins

	sizeLimit := middleware.DefaultSizeLimitConfig()
	sizeLimit.MaxUploadSize = cfg.Uploads.MaxSizeBytes
	sizeLimit.MaxHeaderSize = cfg.Server.MaxHeaderBytes

	r := router.NewRouter(
		middleware.NewAuthMiddleware(controller),
		middleware.NewAuditMiddleware(a.log),
		promhandler.New(metricsNamespace, a.registry),
		health.NewHandler(checks),
		[]router.Handler{
			authhandler.NewHandler(controller, guards...),
			patienthandler.NewHandler(a.patientSvc),
			sharehandler.NewHandler(shareSvc),
			drughandler.NewHandler(a.drugSvc),
		},
		router.RouterConfig{
			Mode:           cfg.Server.Mode,
			CORSConfig:     corsConfig,
			SecurityConfig: middleware.DefaultSecurityConfig(),
			SizeLimit:      sizeLimit,
			RequestTimeout: cfg.Server.RequestTimeout,
			MetricsEnabled: cfg.Metrics.Enabled,
			MetricsPath:    cfg.Metrics.Path,
		},
	)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store.Driver).
			Bool("redis", cfg.Redis.URL != "").
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited properly")
	return nil
}

// resolveJWTSecret returns the configured secret, or a random one when none
// is set. The second return value is true when the secret was generated.
func resolveJWTSecret(configured string) (string, bool, error) {
	if configured != "" {
		return configured, false, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", false, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(key), true, nil
}
