package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/frontline-crm-sync/internal/frontline"
	"github.com/wolfman30/frontline-crm-sync/internal/observability/metrics"
	"github.com/wolfman30/frontline-crm-sync/internal/salesforce"
	"github.com/wolfman30/frontline-crm-sync/pkg/logging"
)

var routingTracer = otel.Tracer("frontline.internal.routing")

type conversationRouter interface {
	RouteConversation(ctx context.Context, sess *salesforce.Session, conversationSid, proxyNumber string) (string, error)
}

// Handler is the HTTP layer for the inbound routing webhook.
type Handler struct {
	sessions      salesforce.SessionProvider
	router        conversationRouter
	webhookSecret string
	metrics       *metrics.SyncMetrics
	logger        *logging.Logger
}

// NewHandler creates a new routing webhook handler. An empty webhookSecret
// disables signature validation.
func NewHandler(sessions salesforce.SessionProvider, router conversationRouter, webhookSecret string, m *metrics.SyncMetrics, logger *logging.Logger) *Handler {
	if sessions == nil {
		panic("routing: session provider cannot be nil")
	}
	if router == nil {
		panic("routing: router cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		sessions:      sessions,
		router:        router,
		webhookSecret: webhookSecret,
		metrics:       m,
		logger:        logger.Component("routing"),
	}
}

// RoutingWebhook handles POST /webhooks/frontline/routing.
func (h *Handler) RoutingWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := routingTracer.Start(r.Context(), "frontline.routing.webhook")
	defer span.End()
	defer func() {
		h.metrics.ObserveWebhookLatency("routing", time.Since(start).Seconds())
	}()

	if h.webhookSecret != "" {
		if !frontline.ValidateSignature(r, h.webhookSecret, frontline.BuildWebhookURL(r)) {
			h.logger.Warn("invalid webhook signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	if err := r.ParseForm(); err != nil {
		h.logger.Error("failed to parse routing payload", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}

	conversationSid := r.FormValue("ConversationSid")
	proxyNumber := r.FormValue("MessagingBinding.ProxyAddress")
	span.SetAttributes(
		attribute.String("frontline.conversation_sid", conversationSid),
		attribute.String("frontline.proxy_address", proxyNumber),
	)

	sess, err := h.sessions.Authenticate(ctx, "")
	if err != nil {
		h.logger.Error("crm authentication failed", "error", err)
		span.RecordError(err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	worker, err := h.router.RouteConversation(ctx, sess, conversationSid, proxyNumber)
	if err != nil {
		h.logger.Error("routing failed", "error", err, "conversation_sid", conversationSid)
		span.RecordError(err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"worker": worker})
}
