package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/ai-broker/config"
	"github.com/vnmchuo/ai-broker/internal/auth"
	"github.com/vnmchuo/ai-broker/internal/dispatch"
	"github.com/vnmchuo/ai-broker/internal/ledger"
	"github.com/vnmchuo/ai-broker/internal/metrics"
	"github.com/vnmchuo/ai-broker/internal/pricing"
	"github.com/vnmchuo/ai-broker/internal/provider/anthropic"
	"github.com/vnmchuo/ai-broker/internal/provider/elevenlabs"
	"github.com/vnmchuo/ai-broker/internal/provider/gemini"
	"github.com/vnmchuo/ai-broker/internal/provider/music"
	"github.com/vnmchuo/ai-broker/internal/provider/openai"
	"github.com/vnmchuo/ai-broker/internal/proxy"
	"github.com/vnmchuo/ai-broker/internal/seeder"
	"github.com/vnmchuo/ai-broker/internal/telemetry"
	"github.com/vnmchuo/ai-broker/internal/usage"
	"github.com/vnmchuo/ai-broker/internal/worker"
)

const serviceName = "ai-broker"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("unknown LOG_LEVEL, using info")
		logger = logger.Level(zerolog.InfoLevel)
	}

	// 2. Init telemetry
	ctx := context.Background()
	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracer")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()
	m := metrics.New()

	// 3. Connect PostgreSQL
	var pool *pgxpool.Pool
	if cfg.NeedsPostgres() {
		pool, err = pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ping postgres")
		}
		logger.Info().Msg("PostgreSQL connected")
	}

	// 4. Connect Redis
	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to ping redis")
		}
		logger.Info().Msg("Redis connected")
	}

	// 5. Ledger
	var credits ledger.Ledger
	switch cfg.LedgerBackend {
	case "postgres":
		credits = ledger.NewPostgresLedger(pool)
	case "memory":
		logger.Warn().Msg("using in-memory ledger, balances are lost on restart")
		credits = ledger.NewMemoryLedger()
	default:
		credits = ledger.NewRedisLedger(rdb)
	}

	// 6. Usage log
	var (
		usageStore  usage.Store
		usageReader usage.Reader
	)
	if cfg.UsageBackend == "redis" {
		usageStore = usage.NewRedisStore(rdb, 0)
	} else {
		pg := usage.NewPostgresStore(pool)
		usageStore, usageReader = pg, pg
	}
	recorder := worker.NewRecorder(usageStore, worker.Options{
		QueueSize: cfg.UsageQueueSize,
		Workers:   cfg.UsageWorkers,
		Metrics:   m,
		Logger:    logger,
	})
	recorder.Start()
	go func() {
		for err := range recorder.Errors() {
			logger.Error().Err(err).Msg("usage write failed")
		}
	}()

	// 7. Pricing
	entries := pricing.DefaultEntries()
	if cfg.PricingFile != "" {
		entries, err = pricing.LoadFile(cfg.PricingFile, entries)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load pricing file")
		}
	}
	table, err := pricing.New(entries, cfg.MarginMultiplier, cfg.USDPerCredit)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid pricing")
	}

	// 8. Adapters
	client := &http.Client{Timeout: cfg.UpstreamTimeout}
	router := dispatch.NewRouter(
		openai.NewChat(cfg.OpenAIAPIKey, client),
		openai.NewImage(cfg.OpenAIAPIKey, client),
		anthropic.New(cfg.AnthropicAPIKey, client),
		gemini.NewChat(cfg.GoogleAPIKey, client),
		gemini.NewImage(cfg.GoogleAPIKey, client),
		elevenlabs.New(cfg.ElevenLabsAPIKey, client),
		music.NewStability(cfg.StabilityAPIKey, client),
		music.NewSuno(cfg.SunoAPIKey, client),
	)

	// 9. Engine + handler
	engine := dispatch.NewEngine(dispatch.Config{
		Auth:            auth.NewAuthenticator(cfg.GatewaySecret, cfg.RequireGatewaySecret),
		Router:          router,
		Pricing:         table,
		Ledger:          credits,
		Usage:           recorder,
		Metrics:         m,
		Tracer:          otel.GetTracerProvider().Tracer(serviceName),
		Logger:          logger,
		UpstreamTimeout: cfg.UpstreamTimeout,
	})
	handler := proxy.NewHandler(engine, credits, usageReader, cfg.AdminSecret, logger)

	// 10. Seed test account if RUN_SEED=true
	if cfg.RunSeed {
		if _, err := seeder.SeedTestAccount(ctx, credits, logger); err != nil {
			logger.Error().Err(err).Msg("seeding failed")
		}
	}

	// 11. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"ai-broker"}`))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	handler.Mount(r)

	// 12. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("port", cfg.Port).Str("ledger", cfg.LedgerBackend).Msg("AI broker starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	logger.Info().Msg("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	// In-flight dispatches have settled; flush what they queued.
	recorder.Stop()
	logger.Info().Msg("Server stopped")
}

// accessLog writes one zerolog line per request.
func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("size", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", ww.Header().Get("X-Request-ID")).
				Msg("request")
		})
	}
}
