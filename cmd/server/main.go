package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medhedtech/medh-web-sub027/internal/platform/config"
	"github.com/medhedtech/medh-web-sub027/internal/platform/logger"
	"github.com/medhedtech/medh-web-sub027/internal/platform/metrics"
	"github.com/medhedtech/medh-web-sub027/internal/upstream"
	"github.com/medhedtech/medh-web-sub027/internal/watch"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	tolerance := config.GetEnvDuration("SESSION_TOLERANCE", watch.DefaultTolerance)
	provenance := config.GetEnvList("PROVENANCE_TOKENS", nil)
	landingURL := config.GetEnv("LANDING_URL", "/")
	cdnHosts := config.GetEnvList("CDN_HOSTS", nil)
	storageSuffixes := config.GetEnvList("STORAGE_HOST_SUFFIXES", []string{".s3.amazonaws.com"})
	cdnAliasHost := config.GetEnv("CDN_ALIAS_HOST", "")
	maxAttempts := config.GetEnvInt("RECOVERY_MAX_ATTEMPTS", watch.DefaultMaxRecoveryAttempts)

	log := logger.New(logLevel, logFormat)

	var store watch.SessionStore
	if addr := config.GetEnv("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		store = watch.NewRedisSessionStore(rdb, tolerance)
		log.Info("using redis session store", "addr", addr)
	} else {
		store = watch.NewInMemorySessionStore()
	}

	sessions := upstream.NewSessionClient(config.GetEnv("SESSION_SERVICE_URL", "http://localhost:9001"))
	locate := upstream.NewLocateClient(config.GetEnv("LOCATE_SERVICE_URL", "http://localhost:9002"))
	signer := upstream.NewSignClient(config.GetEnv("SIGN_SERVICE_URL", "http://localhost:9003"))

	backup := watch.BackupRule{
		StorageHostSuffixes: storageSuffixes,
		CDNAliasHost:        cdnAliasHost,
	}

	guard := watch.NewGuard(store, tolerance, provenance)
	classifier := watch.NewClassifier(cdnHosts)
	resolver := watch.NewResolver(sessions, locate, backup, log)
	recoverer := watch.NewRecoverer(resolver, signer, backup, maxAttempts, log)
	svc := watch.NewService(guard, classifier, resolver, recoverer, log)

	met := metrics.New()
	h := watch.NewHandler(svc, log, met, landingURL)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() { met.SetFreshSessions(svc.FreshSessionCount(req.Context())) }).ServeHTTP(w, req)
	})
	r.Route("/watch/{content_id}", func(r chi.Router) {
		r.Post("/session", h.BeginSession)
		r.Delete("/session", h.EndSession)
		r.Get("/lockdown", h.GetLockdown)
		r.Post("/locator", h.ResolveLocator)
		r.Post("/recover", h.Recover)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"session_tolerance", tolerance.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
