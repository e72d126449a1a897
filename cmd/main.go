package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kkkkikiki/fcfs-coupon/internal/config"
	"github.com/kkkkikiki/fcfs-coupon/internal/database"
	"github.com/kkkkikiki/fcfs-coupon/internal/handler"
	"github.com/kkkkikiki/fcfs-coupon/internal/lock"
	"github.com/kkkkikiki/fcfs-coupon/internal/middleware"
	"github.com/kkkkikiki/fcfs-coupon/internal/repository"
	"github.com/kkkkikiki/fcfs-coupon/internal/service"
)

func main() {
	ctx := context.Background()

	// Load .env if present, then configuration from environment variables
	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg)

	log.Info().
		Str("environment", cfg.App.Environment).
		Str("storage", cfg.App.Storage).
		Msg("starting fcfs coupon service")

	// Initialize storage and the lock store. The memory backend keeps
	// everything in-process for local runs and tests.
	var (
		store     repository.Store
		lockStore lock.Store
		db        *database.DB
	)
	if cfg.App.UseMemoryStorage() {
		store = repository.NewMemory()
		lockStore = lock.NewMemoryStore()
	} else {
		db, err = database.NewDB(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("error closing database connections")
			}
		}()

		redisClient, err := database.NewRedis(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()

		store = repository.NewPostgres(db.Postgres)
		lockStore = lock.NewRedisStore(redisClient)
	}

	// Wire the engine: lock coordinator -> store -> services -> handlers
	locker := lock.NewLocker(lockStore)
	issuance := service.NewIssuanceService(store, locker, cfg.Lock.TTL(), log.Logger)
	catalog := service.NewCatalogService(store)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	handler.NewCouponHandler(issuance, catalog).RegisterRoutes(r)

	// Health check endpoints
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		hostname, _ := os.Hostname()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","service":"fcfs-coupon","hostname":"%s"}`, hostname)
	})
	r.Get("/health/db", func(w http.ResponseWriter, req *http.Request) {
		if db == nil {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok","storage":"memory"}`))
			return
		}
		if err := db.Postgres.PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","message":"postgres unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","postgres":"connected"}`))
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Create server with configuration optimized for high concurrency
	server := &http.Server{
		Addr:           cfg.Server.GetServerAddr(),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second, // Keep connections alive longer
		MaxHeaderBytes: 1 << 20,           // 1MB
		// Use h2c so we can serve HTTP/2 without TLS
		Handler: h2c.NewHandler(r, &http2.Server{
			MaxConcurrentStreams: 1000, // Allow more concurrent streams
		}),
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting fcfs coupon service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.App.IsDevelopment() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	log.Logger = logger
}
