package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	_ "github.com/bizmatters/agent-builder/refinement-engine/docs" // swagger docs
	"github.com/bizmatters/agent-builder/refinement-engine/internal/auth"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/config"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/gateway"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/logging"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/metrics"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/orchestration"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/refinement"
	"github.com/bizmatters/agent-builder/refinement-engine/internal/store"
)

// @title Refinement Engine API
// @version 1.0
// @description Runs bounded AI refinement loops over text responses for configured workflow phases.

// @contact.name API Support
// @contact.email support@bizmatters.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	shutdownTracer, err := initTracer()
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}
	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT manager: %w", err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL, cfg.SQLitePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	invoker, err := orchestration.NewInvoker(ctx, orchestration.InvokerConfig{
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		ModelRuntimeURL: cfg.ModelRuntimeURL,
		Timeout:         cfg.ModelTimeout,
		RateLimit:       cfg.ModelRateLimit,
		RateBurst:       cfg.ModelRateBurst,
	}, logger)
	if err != nil {
		return err
	}

	refinementMetrics, err := metrics.NewRefinementMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	hub := gateway.NewEventHub()
	loop := refinement.New(st, invoker,
		refinement.WithLogger(logger),
		refinement.WithMetrics(refinementMetrics),
		refinement.WithObserver(hub),
		refinement.WithMaxIterations(cfg.MaxIterations),
		refinement.WithModelTimeout(cfg.ModelTimeout),
		refinement.WithStoreTimeout(cfg.StoreTimeout),
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gateway.RequestLogger(logger))

	handler := gateway.NewHandler(loop, st, jwtManager, cfg.TokenTTL, logger)
	if hc, ok := invoker.(orchestration.HealthChecker); ok {
		handler.WithModelHealth(hc)
	}
	stream := gateway.NewEventStream(hub, logger, cfg.WSAllowedOrigins)
	gateway.RegisterRoutes(router, handler, stream, jwtManager, logger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ModelTimeout*time.Duration(max(cfg.MaxIterations, 1)) + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting refinement engine API server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

// initTracer initializes OpenTelemetry tracing
func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
