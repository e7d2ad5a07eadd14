package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	// OpenTelemetry
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"

	// Infrastructure
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	// Interne
	"github.com/jupiterclapton/cenackle/services/social-service/config"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/primary/events"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/primary/rest"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/cache"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/services"
	"github.com/jupiterclapton/cenackle/services/social-service/pkg/logger"
	"github.com/jupiterclapton/cenackle/services/social-service/pkg/telemetry"
)

func main() {
	// 1. Charger la Config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger (slog JSON pour la prod, Text pour le dev)
	logger.Init(cfg.Env)
	slog.Info("🚀 Starting Social Service", "env", cfg.Env, "http_port", cfg.HTTP.Port, "graph_backend", cfg.GraphBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (OpenTelemetry)
	tp, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.Telemetry.OtelEndpoint)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("Error shutting down tracer", "error", err)
			}
		}()
	}

	// 4. Postgres (users, posts, likes)
	dbPool, err := connectPostgres(ctx, cfg)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	slog.Info("✅ Database connected")

	if err := repository.EnsureSchema(ctx, dbPool); err != nil {
		slog.Error("Schema init failed", "error", err)
		os.Exit(1)
	}

	// 5. Redis (cache derrière un circuit breaker)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		slog.Warn("Redis tracing disabled", "error", err)
	}
	// Pas de fail fast : sans Redis, le service sert depuis les stores
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("⚠️ Redis unreachable, serving without cache until it recovers", "error", err)
	} else {
		slog.Info("✅ Connected to Redis")
	}
	redisCache := cache.NewRedisCache(rdb, cache.BreakerSettings{
		Name:             "redis-cache",
		FailureThreshold: cfg.Redis.BreakerThreshold,
		OpenTimeout:      cfg.Redis.BreakerTimeout,
	})

	// 6. Graphe social (Neo4j par défaut, Postgres en alternative)
	followRepo, closeGraph, err := connectFollowStore(ctx, cfg, dbPool)
	if err != nil {
		slog.Error("Unable to init follow store", "backend", cfg.GraphBackend, "error", err)
		os.Exit(1)
	}
	defer closeGraph()

	// 7. Event Broker (NATS JetStream)
	nc, js, err := eventbroker.Connect(cfg.Nats.URL, cfg.ServiceName)
	if err != nil {
		slog.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()
	if _, err := eventbroker.EnsureStream(ctx, js); err != nil {
		slog.Error("Failed to ensure stream", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ NATS JetStream connected")
	publisher := eventbroker.NewNatsPublisher(js)

	// 8. Sécurité
	jwtProvider, err := security.NewJWTProvider(jwtSecret(cfg), cfg.Security.AccessTokenTTL, cfg.Security.Issuer)
	if err != nil {
		slog.Error("Failed to init JWT provider", "error", err)
		os.Exit(1)
	}
	hasher := security.NewArgon2Hasher(nil) // Params par défaut

	// 9. Wiring (Injection de dépendances) - Adapters -> Services
	userRepo := repository.NewPostgresUserRepo(dbPool)
	postRepo := repository.NewPostgresPostRepo(dbPool)
	policy := services.CachePolicy{
		PostTTL:   cfg.Cache.PostTTL,
		FeedTTL:   cfg.Cache.FeedTTL,
		UserTTL:   cfg.Cache.UserTTL,
		OpTimeout: cfg.Cache.OpTimeout,
	}

	userService := services.NewUserService(userRepo, postRepo, followRepo, hasher, jwtProvider, publisher, redisCache, policy)
	graphService := services.NewGraphService(followRepo, userRepo, redisCache, publisher, policy)
	contentService := services.NewContentService(postRepo, userRepo, redisCache, publisher, policy)
	feedService := services.NewFeedService(graphService, postRepo, userRepo, redisCache, policy)

	// 10. Adapter Primaire : consumer d'invalidation
	invalidator := events.NewCacheInvalidator(js, contentService)
	if err := invalidator.Start(ctx); err != nil {
		slog.Error("Failed to start event consumer", "error", err)
		os.Exit(1)
	}

	// 11. Adapter Primaire : API REST
	httpServer := &http.Server{
		Addr: ":" + cfg.HTTP.Port,
		Handler: rest.NewHandler(rest.Services{
			Users:   userService,
			Graph:   graphService,
			Content: contentService,
			Feed:    feedService,
		}, rest.Options{
			RequestTimeout:  cfg.HTTP.RequestTimeout,
			RateLimit:       cfg.HTTP.RateLimit,
			RateBurst:       cfg.HTTP.RateBurst,
			CORSOrigins:     cfg.HTTP.CORSOrigins,
			TrustUserHeader: cfg.Security.TrustUserHeader,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("📡 HTTP API listening", "port", cfg.HTTP.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// 12. Serveur gRPC d'exploitation (Health Check + Reflection)
	grpcServer, healthServer, err := startOpsServer(cfg)
	if err != nil {
		slog.Error("Failed to listen", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}

	// 13. Graceful Shutdown (Attente des signaux OS)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	sig := <-quit // Bloquant
	slog.Info("⚠️  Signal received, shutting down...", "signal", sig)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced to shutdown", "error", err)
	}
	invalidator.Stop()

	// GracefulStop ne prend pas de contexte : on force Stop() après le timeout
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("✅ gRPC Server stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("⏳ Timeout reached, forcing server stop")
		grpcServer.Stop()
	}

	slog.Info("👋 Service stopped")
}

// --- HELPERS ---

func connectPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()
	if cfg.Database.MaxConns > 0 {
		dbConfig.MaxConns = cfg.Database.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, err
	}
	// Fail Fast
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func connectFollowStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (ports.FollowRepository, func(), error) {
	if cfg.GraphBackend == config.GraphBackendPostgres {
		slog.Info("✅ Follow edges stored in Postgres")
		return repository.NewPostgresFollowRepo(pool), func() {}, nil
	}

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URI, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Password, ""))
	if err != nil {
		return nil, nil, fmt.Errorf("neo4j driver: %w", err)
	}
	closeDriver := func() { _ = driver.Close(context.Background()) }

	verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		closeDriver()
		return nil, nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	slog.Info("✅ Connected to Neo4j")

	repo := repository.NewNeo4jFollowRepo(driver)
	if err := repo.EnsureSchema(ctx); err != nil {
		slog.Warn("Neo4j schema init failed (might be fine if already exists)", "error", err)
	}
	return repo, closeDriver, nil
}

func startOpsServer(cfg *config.Config) (*grpc.Server, *health.Server, error) {
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return nil, nil, err
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))

	// Health Check (Standard K8s)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(cfg.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Reflection (grpcurl en dev)
	if cfg.Env != "prod" {
		reflection.Register(grpcServer)
		slog.Info("🔍 gRPC Reflection enabled")
	}

	go func() {
		slog.Info("🚀 gRPC ops server listening", "address", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("Failed to serve", "error", err)
		}
	}()
	return grpcServer, healthServer, nil
}

// jwtSecret : Validate() impose le secret hors local ; en local un secret de dev suffit.
func jwtSecret(cfg *config.Config) string {
	if cfg.Security.JWTSecret == "" && cfg.IsLocal() {
		slog.Warn("⚠️ JWT_SECRET not set, using an insecure development secret")
		return "local-development-secret"
	}
	return cfg.Security.JWTSecret
}
