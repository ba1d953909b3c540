package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"

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
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting frontline-crm-sync lambda", "env", cfg.Env)

	handler, err := buildHandler(cfg)
	if err != nil {
		logger.Error("failed to build handler", "error", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return serve(ctx, handler, evt)
	})
}

func buildHandler(cfg *appconfig.Config) (http.Handler, error) {
	logger := logging.New(cfg.LogLevel)

	sessions, err := salesforce.NewOAuthProvider(salesforce.OAuthConfig{
		LoginURL:        cfg.SalesforceLoginURL,
		ClientID:        cfg.SalesforceClientID,
		DefaultUsername: cfg.SalesforceUsername,
		PrivateKeyPEM:   cfg.SalesforcePrivateKey,
		Logger:          logger.Logger,
	})
	if err != nil {
		return nil, err
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
		return nil, err
	}

	syncMetrics := metrics.NewSyncMetrics(prometheus.NewRegistry())

	webhookSecret := cfg.WebhookSecret()

	dirService := directory.NewService(crmClient, logger)
	processor := frontline.NewProcessor(sessions, dirService, convClient, crmClient, syncMetrics, logger)
	conversationRouter := routing.NewRouter(dirService, convClient, cfg.DefaultWorker, syncMetrics, logger)

	return router.New(&router.Config{
		Logger:           logger,
		DirectoryHandler: directory.NewHandler(sessions, dirService, syncMetrics, logger),
		EventsHandler:    frontline.NewHandler(processor, webhookSecret, syncMetrics, logger),
		RoutingHandler:   routing.NewHandler(sessions, conversationRouter, webhookSecret, syncMetrics, logger),
	}), nil
}

// serve translates an API Gateway event into an in-process HTTP request and
// replays the recorded response back to the gateway.
func serve(ctx context.Context, handler http.Handler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	if method == "" {
		method = http.MethodPost
	}
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	target := path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	for k, v := range evt.Headers {
		req.Header.Set(k, v)
	}

	// Twilio signs against the original public URL, not the lambda-local one.
	if host := strings.TrimSpace(evt.RequestContext.DomainName); host != "" {
		req.Host = host
	}
	if req.Header.Get("X-Forwarded-Proto") == "" {
		req.Header.Set("X-Forwarded-Proto", "https")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := events.APIGatewayV2HTTPResponse{
		StatusCode: rec.Code,
		Body:       rec.Body.String(),
		Headers:    map[string]string{},
	}
	if ct := rec.Header().Get("Content-Type"); ct != "" {
		out.Headers["content-type"] = ct
	}
	return out, nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}
