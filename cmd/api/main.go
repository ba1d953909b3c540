package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/frontline-crm-sync/internal/api/router"
	appconfig "github.com/wolfman30/frontline-crm-sync/internal/config"
	"github.com/wolfman30/frontline-crm-sync/internal/conversations"
	"github.com/wolfman30/frontline-crm-sync/internal/directory"
	"github.com/wolfman30/frontline-crm-sync/internal/frontline"
	"github.com/wolfman30/frontline-crm-sync/internal/observability/metrics"
	"github.com/wolfman30/frontline-crm-sync/internal/routing"
	"github.com/wolfman30/frontline-crm-sync/internal/salesforce"
	"github.com/wolfman30/frontline-crm-sync/pkg/logging"
)

func main() {
	// Load .env in local development; ignore when absent.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting frontline-crm-sync API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	sessions, err := salesforce.NewOAuthProvider(salesforce.OAuthConfig{
		LoginURL:        cfg.SalesforceLoginURL,
		ClientID:        cfg.SalesforceClientID,
		DefaultUsername: cfg.SalesforceUsername,
		PrivateKeyPEM:   cfg.SalesforcePrivateKey,
		Logger:          logger.Logger,
	})
	if err != nil {
		logger.Error("failed to configure Salesforce auth", "error", err)
		os.Exit(1)
	}

	crmClient := salesforce.New(salesforce.Config{
		APIVersion: cfg.SalesforceAPIVersion,
		Timeout:    cfg.SalesforceTimeout,
		Logger:     logger.Logger,
	})

	convClient, err := conversations.New(conversations.Config{
		BaseURL:    cfg.ConversationsBaseURL,
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		Logger:     logger.Logger,
	})
	if err != nil {
		logger.Error("failed to configure Conversations client", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	webhookSecret := cfg.WebhookSecret()

	dirService := directory.NewService(crmClient, logger)
	dirHandler := directory.NewHandler(sessions, dirService, syncMetrics, logger)

	processor := frontline.NewProcessor(sessions, dirService, convClient, crmClient, syncMetrics, logger)
	eventsHandler := frontline.NewHandler(processor, webhookSecret, syncMetrics, logger)

	conversationRouter := routing.NewRouter(dirService, convClient, cfg.DefaultWorker, syncMetrics, logger)
	routingHandler := routing.NewHandler(sessions, conversationRouter, webhookSecret, syncMetrics, logger)

	r := router.New(&router.Config{
		Logger:           logger,
		DirectoryHandler: dirHandler,
		EventsHandler:    eventsHandler,
		RoutingHandler:   routingHandler,
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
