package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true
	initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	tp, err := initTracer(ctx)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			zlog.Error().Err(err).Msg("Error shutting down tracer")
		}
	}()

	mp, err := initMetrics(ctx)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize metrics")
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			zlog.Error().Err(err).Msg("Error shutting down meter")
		}
	}()

	// Initialize dependencies
	repository, closeStore, err := initStore(ctx)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize payment store")
	}
	defer closeStore()

	useCase := NewPaymentUseCase(repository, NewMockProcessor(nil))
	handler := NewPaymentHandler(useCase, tp.Tracer("payments-service"))

	r := gin.New()
	r.Use(otelgin.Middleware(getEnv("SERVICE_NAME", "payments-service")), requestLogger(), gin.Recovery())
	handler.RegisterRoutes(r)

	port := getEnv("PORT", "8081")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Err(err).Msg("Error shutting down server")
		}
	}()

	zlog.Info().Msgf("🚀 Payments Service listening on port %s", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zlog.Fatal().Err(err).Msg("Failed to start server")
	}
}

func initLogger() {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zlog.Logger = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", getEnv("SERVICE_NAME", "payments-service")).
		Logger()
	zerolog.DefaultContextLogger = &zlog.Logger
}

// requestLogger injeta no contexto um logger com o trace_id da requisição
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logger := zlog.With().Str("path", c.FullPath()).Logger()
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			logger = logger.With().Str("trace_id", sc.TraceID().String()).Logger()
		}
		c.Request = c.Request.WithContext(logger.WithContext(ctx))
		c.Next()
	}
}

func initStore(ctx context.Context) (PaymentRepository, func(), error) {
	if getEnv("STORE_DRIVER", "postgres") == "memory" {
		zlog.Warn().Msg("⚠️  Using in-memory payment store, data is lost on restart")
		return NewMemoryPaymentRepository(), func() {}, nil
	}

	db, err := initDB(ctx)
	if err != nil {
		return nil, nil, err
	}

	repository := NewPostgresPaymentRepository(db)
	if err := repository.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repository, func() { db.Close() }, nil
}

// databaseDSN monta a URL aceita pelo lib/pq, com usuário e senha escapados
func databaseDSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("DATABASE_USER", "root"), getEnv("DATABASE_PASSWORD", "pass")),
		Host:     net.JoinHostPort(getEnv("DATABASE_HOST", "localhost"), getEnv("DATABASE_PORT", "5432")),
		Path:     "/" + getEnv("DATABASE_NAME", "payments_db"),
		RawQuery: "sslmode=disable",
	}
	return dsn.String()
}

func initDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	// Testar conectividade
	for i := 0; i < 30; i++ {
		if err := db.PingContext(ctx); err == nil {
			zlog.Info().Msg("✅ Connected to payments database")
			return db, nil
		}
		zlog.Info().Msgf("⏳ Waiting for database... (%d/30)", i+1)

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	db.Close()
	return nil, fmt.Errorf("failed to connect to database after 30 attempts")
}

func newResource(ctx context.Context) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(getEnv("SERVICE_NAME", "payments-service")),
			semconv.ServiceVersion("1.0.0"),
		),
	)
}

func telemetryEnabled() bool {
	enabled, err := strconv.ParseBool(getEnv("OTEL_ENABLED", "true"))
	return err != nil || enabled
}

func initTracer(ctx context.Context) (*sdktrace.TracerProvider, error) {
	res, err := newResource(ctx)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if telemetryEnabled() {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetTracerProvider(tp)

	return tp, nil
}

func initMetrics(ctx context.Context) (*sdkmetric.MeterProvider, error) {
	res, err := newResource(ctx)
	if err != nil {
		return nil, err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if telemetryEnabled() {
		exporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	return mp, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
