package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/trowelworks/strata/internal/cache"
	"github.com/trowelworks/strata/internal/config"
	dbRedis "github.com/trowelworks/strata/internal/db/redis"
	"github.com/trowelworks/strata/internal/domain/link"
	"github.com/trowelworks/strata/internal/domain/params"
	"github.com/trowelworks/strata/internal/domain/tile"
	logpkg "github.com/trowelworks/strata/internal/logger"
	"github.com/trowelworks/strata/internal/metrics"
	indexrepo "github.com/trowelworks/strata/internal/repository/index"
	itemsrepo "github.com/trowelworks/strata/internal/repository/items"
	chiTransport "github.com/trowelworks/strata/internal/transport/chi"
	searchuc "github.com/trowelworks/strata/internal/usecase/search"
	"github.com/trowelworks/strata/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting strata API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("engine_addrs", cfg.Engine.Addrs),
		zap.String("engine_index", cfg.Engine.Index),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Engine.Addrs,
		Username: cfg.Engine.Username,
		Password: cfg.Engine.Password,
		DB:       cfg.Engine.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create engine store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Engine.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Engine not ready", zap.Error(err))
	}
	logger.Info("Connected to search engine")

	pool, err := pgxpool.New(ctx, cfg.Items.DSN)
	if err != nil {
		logger.Fatal("Failed to create item pool", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Item repository not ready", zap.Error(err))
	}
	logger.Info("Connected to item repository")

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	engine := indexrepo.New(store, cfg.Engine.Index)
	items := itemsrepo.New(pool)

	var respCache cache.Cache = cache.Nop{}
	if cfg.Cache.Enabled {
		respCache = cache.NewRedis(store, cfg.Cache.KeyPrefix, time.Duration(cfg.Cache.TTLSec)*time.Second)
	}

	links := link.NewCodec(cfg.Search.BaseURL, params.KeyCursor)
	chrono, err := tile.NewChronoCodec(cfg.Tiles.ChronoRootEarliest, cfg.Tiles.ChronoRootLatest)
	if err != nil {
		logger.Fatal("Invalid chronology root span", zap.Error(err))
	}

	searchSvc := searchuc.New(engine, items, respCache, links, chrono, searchuc.Config{
		Composer: searchuc.ComposerConfig{
			DefaultRows: cfg.Search.DefaultRows,
			MaxRows:     cfg.Search.MaxRows,
			FacetLimit:  cfg.Search.FacetLimit,
			DefaultSort: cfg.Search.DefaultSort,
			ExtraFacets: cfg.Search.ExtraFacets,
		},
		GeoDepth: tile.DepthConfig{
			MinDepth:     cfg.Tiles.GeoMinDepth,
			MaxDepth:     cfg.Tiles.GeoMaxDepth,
			TargetGroups: cfg.Tiles.TargetGroups,
		},
		ChronoDepth: tile.DepthConfig{
			MinDepth:             cfg.Tiles.ChronoMinDepth,
			MaxDepth:             cfg.Tiles.ChronoMaxDepth,
			TargetGroups:         cfg.Tiles.TargetGroups,
			DampenThresholdYears: cfg.Tiles.DampenThresholdYears,
		},
		StatsBuckets: cfg.Search.StatsBuckets,
	})

	server := chiTransport.NewServer(searchSvc, store, items, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
