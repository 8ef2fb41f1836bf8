package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stream-resolver/internal/gateway"
	"stream-resolver/internal/media"
	"stream-resolver/internal/platform/config"
	"stream-resolver/internal/platform/logger"
	"stream-resolver/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	fetchTimeout := config.GetEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	fetchRate := config.GetEnvFloat("FETCH_RATE_LIMIT", 0)
	userAgent := config.GetEnv("FETCH_USER_AGENT", "stream-resolver")
	workers := config.GetEnvInt("DOWNLOAD_WORKERS", gateway.DefaultDownloadWorkers)
	apiRateLimit := config.GetEnvInt("API_RATE_LIMIT", 0)

	log := logger.New(logLevel, logFormat)

	fetcher := media.NewHTTPFetcher(fetchTimeout,
		media.WithUserAgent(userAgent),
		media.WithRateLimit(fetchRate))
	resolver := media.NewResolver(fetcher, log.With("component", "resolver"))

	repo := gateway.NewInMemoryRepository()
	svc := gateway.NewService(repo, resolver, workers)
	met := metrics.New()
	h := gateway.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	if apiRateLimit > 0 {
		r.Use(httprate.LimitByIP(apiRateLimit, time.Minute))
	}
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetRegisteredStreams(repo.StreamCount()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

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
		"fetch_timeout", fetchTimeout.String(),
		"fetch_rate_limit", fetchRate,
		"download_workers", workers,
		"api_rate_limit", apiRateLimit,
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
