// Package main is the entry point for the console gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ventia/console-gateway/internal/advisor"
	"github.com/ventia/console-gateway/internal/config"
	"github.com/ventia/console-gateway/internal/handler"
	"github.com/ventia/console-gateway/internal/labels"
	"github.com/ventia/console-gateway/internal/llm"
	"github.com/ventia/console-gateway/internal/messaging"
	natsclient "github.com/ventia/console-gateway/internal/nats"
	"github.com/ventia/console-gateway/internal/service"
	"github.com/ventia/console-gateway/internal/temperature"
	"github.com/ventia/console-gateway/internal/workspace"
	"github.com/ventia/console-gateway/pkg/logger"
	"github.com/ventia/console-gateway/pkg/metrics"
	"github.com/ventia/console-gateway/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting console gateway", zap.String("backend", cfg.BackendURL))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "console-gateway", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// NATS is optional: without it mutations are not published and the SSE
	// endpoint answers 503.
	var (
		pinger     handler.Pinger
		publisher  service.EventPublisher
		subscriber handler.Subscriber
	)
	if cfg.NATSEnabled {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}
		pinger, publisher, subscriber = natsClient, streamManager, streamManager
	}

	var llmClient llm.Client
	if provider, key := llmProvider(cfg); key != "" {
		if llmClient, err = llm.NewClient(provider, key); err != nil {
			log.Warn("failed to create LLM client, suggestions disabled",
				zap.String("provider", string(provider)),
				zap.Error(err),
			)
			llmClient = nil
		}
	}

	backend := messaging.NewClient(cfg.BackendURL, cfg.BackendTimeout, log)
	policy := labels.NewPolicy(cfg.ReservedLabels)

	registry := workspace.NewRegistry(cfg.LayoutBreakpoint, func(active int) {
		metrics.WorkspacesActive.Set(float64(active))
	})
	inbox := service.NewInboxService(
		backend,
		registry,
		labels.NewManager(backend, policy, log),
		temperature.NewSelector(backend, log),
		advisor.New(llmClient, cfg.AdvisorModel, log),
		publisher,
		log,
	)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:            log,
		JWTSecret:         cfg.JWTSecret,
		JWTIssuer:         cfg.JWTIssuer,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Health:            handler.NewHealthHandler(pinger),
		Proxy:             handler.NewProxyHandler(backend, policy, log),
		Workspace:         handler.NewWorkspaceHandler(inbox, cfg.LayoutBreakpoint, log),
		Stream:            handler.NewStreamHandler(inbox, subscriber, log),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	if cfg.Env == "development" {
		return logger.NewDevelopment()
	}
	return logger.New(cfg.LogLevel)
}

// llmProvider picks Anthropic when both keys are set.
func llmProvider(cfg *config.Config) (llm.Provider, string) {
	if cfg.AnthropicAPIKey != "" {
		return llm.ProviderAnthropic, cfg.AnthropicAPIKey
	}
	return llm.ProviderOpenAI, cfg.OpenAIAPIKey
}
