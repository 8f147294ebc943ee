package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
)

// app agrupa as dependências montadas a partir da Config
type app struct {
	cfg        Config
	repository Repository
	scheduler  *DeliveryScheduler
	useCase    *OrderUseCase
	reconciler *DeliveryReconciler
	registry   *prometheus.Registry

	closers []func()
}

func newApp(ctx context.Context, cfg Config) (*app, error) {
	a := &app{cfg: cfg}

	repository, err := a.initStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.repository = repository

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gateway := NewRestyPaymentGateway(cfg.Payments.APIURL, cfg.Payments.Timeout, cfg.Payments.Retries)
	a.scheduler = NewDeliveryScheduler()
	a.closers = append(a.closers, a.scheduler.Stop)
	a.useCase = NewOrderUseCase(repository, gateway, a.scheduler, cfg.Delivery.Delay)

	a.reconciler = NewDeliveryReconciler(
		repository,
		a.useCase,
		a.initLocker(),
		cfg.Delivery.Delay,
		cfg.Delivery.SweepInterval,
		a.registry,
	)
	return a, nil
}

func (a *app) initStore(ctx context.Context) (Repository, error) {
	if a.cfg.StoreDriver == storeDriverMemory {
		zlog.Warn().Msg("⚠️  Using in-memory order store, data is lost on restart")
		return NewMemoryOrderRepository(), nil
	}

	pool, err := initDB(ctx, a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)

	repository := NewPostgresOrderRepository(pool)
	if err := repository.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repository, nil
}

func (a *app) initLocker() SweepLocker {
	if a.cfg.Redis.Addr == "" {
		return NoopSweepLocker{}
	}

	client := redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Addr})
	a.closers = append(a.closers, func() { _ = client.Close() })
	zlog.Info().Str("addr", a.cfg.Redis.Addr).Msg("🔒 Sweep lock backed by redis")
	return NewRedisSweepLocker(client, a.cfg.ServiceName)
}

func (a *app) router() *gin.Engine {
	r := gin.New()
	r.Use(
		otelgin.Middleware(a.cfg.ServiceName, otelgin.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health" && req.URL.Path != "/metrics"
		})),
		requestLogger(),
		gin.Recovery(),
	)

	handler := NewOrderHandler(a.useCase, otel.Tracer(a.cfg.ServiceName))
	handler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})))

	return r
}

// Close libera os recursos na ordem inversa da criação
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func initDB(ctx context.Context, cfg DatabaseConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			zlog.Info().Msg("✅ Connected to orders database with connection pool")
			return pool, nil
		}
		zlog.Info().Msgf("⏳ Waiting for database... (%d/30)", i+1)

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	pool.Close()
	return nil, fmt.Errorf("failed to connect to database after 30 attempts")
}
