// taskhive is the API server: authentication, multi-tenant authorization,
// organizations, tasks, and the audit trail.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/taskhive/taskhive/pkg/api"
	"github.com/taskhive/taskhive/pkg/audit"
	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/config"
	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/orgs"
	"github.com/taskhive/taskhive/pkg/rbac"
	"github.com/taskhive/taskhive/pkg/sso"
	"github.com/taskhive/taskhive/pkg/storage"
	"github.com/taskhive/taskhive/pkg/tasks"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskhive: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting taskhive")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := observability.ShutdownOTel(shutdownCtx, providers, logger); err != nil {
			logger.WithError(err).Error("OpenTelemetry shutdown failed")
		}
	}()

	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Storage.MigrateOnBoot {
		if err := storage.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("database migrated")
	}

	redisClient, err := storage.OpenRedis(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn("redis not configured, rate limiting disabled")
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	// Storage and services.
	rbacStore := rbac.NewStore(db)
	resolver := rbac.NewResolver(rbacStore)
	contexts := rbac.NewContextResolver(rbacStore, resolver)
	var observer rbac.DecisionObserver
	if metrics != nil {
		observer = metrics
	}
	gate := rbac.NewGate(contexts, observer)

	users := auth.NewUserStore(db)
	tokens := auth.NewTokenManager(db, cfg.Auth.TokenTTL)
	auditor := audit.NewDBLogger(db, logger.Slog())

	orgService := orgs.NewService(orgs.NewStore(db), rbacStore, users, auditor)
	taskService := tasks.NewService(tasks.NewStore(db), rbacStore, auditor)

	authMW, err := middleware.NewAuthMiddleware(tokens, cfg.Auth.PrincipalCacheSize, cfg.Auth.PrincipalCacheTTL)
	if err != nil {
		return fmt.Errorf("failed to build auth middleware: %w", err)
	}

	var ssoProvider *sso.OIDCProvider
	if cfg.SSO.Enabled {
		ssoProvider, err = sso.NewOIDCProvider(ctx, sso.Config{
			IssuerURL:    cfg.SSO.IssuerURL,
			ClientID:     cfg.SSO.ClientID,
			ClientSecret: cfg.SSO.ClientSecret,
			RedirectURL:  cfg.SSO.RedirectURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize SSO: %w", err)
		}
		logger.Info("SSO enabled")
	}

	app := api.New(api.Options{
		Logger:         logger,
		Metrics:        metrics,
		Users:          users,
		Tokens:         tokens,
		Gate:           gate,
		Orgs:           orgService,
		Tasks:          taskService,
		Auditor:        auditor,
		AuthMiddleware: authMW,
		Redis:          redisClient,
		SSOProvider:    ssoProvider,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      app.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:        cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:     healthRouter(db, redisClient, metrics),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("health server shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// healthRouter serves the probes and metrics on the internal port, away
// from public traffic.
func healthRouter(db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics) http.Handler {
	checker := observability.NewHealthChecker(db, redisClient)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", checker.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", checker.Readiness).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}
