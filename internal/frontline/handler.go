package frontline

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/frontline-crm-sync/internal/observability/metrics"
	"github.com/wolfman30/frontline-crm-sync/pkg/logging"
)

var eventTracer = otel.Tracer("frontline.internal.frontline")

type eventProcessor interface {
	Process(ctx context.Context, event Event) (*Result, error)
}

// Handler is the HTTP layer for the conversation lifecycle webhook.
type Handler struct {
	processor     eventProcessor
	webhookSecret string
	metrics       *metrics.SyncMetrics
	logger        *logging.Logger
}

// NewHandler creates a new conversations webhook handler. An empty
// webhookSecret disables signature validation.
func NewHandler(processor eventProcessor, webhookSecret string, m *metrics.SyncMetrics, logger *logging.Logger) *Handler {
	if processor == nil {
		panic("frontline: processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		processor:     processor,
		webhookSecret: webhookSecret,
		metrics:       m,
		logger:        logger.Component("frontline"),
	}
}

// ConversationsWebhook handles POST /webhooks/frontline/conversations.
func (h *Handler) ConversationsWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := eventTracer.Start(r.Context(), "frontline.conversations.webhook")
	defer span.End()
	defer func() {
		h.metrics.ObserveWebhookLatency("conversations", time.Since(start).Seconds())
	}()

	if h.webhookSecret != "" {
		if !ValidateSignature(r, h.webhookSecret, BuildWebhookURL(r)) {
			h.logger.Warn("invalid webhook signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	if err := r.ParseForm(); err != nil {
		h.logger.Error("failed to parse webhook payload", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}

	event := ParseEvent(r.PostForm)
	span.SetAttributes(attribute.String("frontline.event_type", event.Kind()))

	result, err := h.processor.Process(ctx, event)
	if err != nil {
		h.logger.Error("event processing failed", "error", err, "event_type", event.Kind())
		span.RecordError(err)
		h.metrics.ObserveWebhook(event.Kind(), "error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	outcome := result.Outcome()
	if outcome != OutcomeSuccess {
		h.logger.Warn("event processed with writeback failures",
			"event_type", event.Kind(),
			"outcome", string(outcome),
			"writebacks", len(result.Writebacks),
		)
	}
	h.metrics.ObserveWebhook(event.Kind(), string(outcome))

	// The platform always gets an acknowledgment so it does not retry the
	// same event into a duplicate-creation loop.
	body := result.Body
	if body == nil {
		body = map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}
