package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/frontline-crm-sync/internal/observability/metrics"
	"github.com/wolfman30/frontline-crm-sync/internal/salesforce"
	"github.com/wolfman30/frontline-crm-sync/pkg/logging"
)

var lookupTracer = otel.Tracer("frontline.internal.directory")

const (
	locationCustomerByID  = "GetCustomerDetailsByCustomerId"
	locationCustomersList = "GetCustomersList"

	defaultPageSize = 10
)

type lookupService interface {
	GetByID(ctx context.Context, sess *salesforce.Session, customerID string) (*CustomerSummary, error)
	List(ctx context.Context, sess *salesforce.Session, pageSize, offset int) (*CustomerPage, error)
	Search(ctx context.Context, sess *salesforce.Session, workerIdentity, query string, pageSize, offset int) (*CustomerPage, error)
}

// Handler serves the Frontline CRM callback: by-id details and paginated
// list/search, authenticated as the requesting worker.
type Handler struct {
	sessions salesforce.SessionProvider
	service  lookupService
	metrics  *metrics.SyncMetrics
	logger   *logging.Logger
}

// NewHandler creates a new directory lookup handler.
func NewHandler(sessions salesforce.SessionProvider, service lookupService, m *metrics.SyncMetrics, logger *logging.Logger) *Handler {
	if sessions == nil {
		panic("directory: session provider cannot be nil")
	}
	if service == nil {
		panic("directory: lookup service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{sessions: sessions, service: service, metrics: m, logger: logger.Component("directory")}
}

// Lookup handles POST /webhooks/frontline/crm requests.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := lookupTracer.Start(r.Context(), "directory.lookup")
	defer span.End()
	defer func() {
		h.metrics.ObserveWebhookLatency("crm", time.Since(start).Seconds())
	}()

	if err := r.ParseForm(); err != nil {
		h.logger.Error("failed to parse lookup payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	worker := r.FormValue("Worker")
	location := r.FormValue("Location")
	span.SetAttributes(
		attribute.String("frontline.location", location),
		attribute.String("frontline.worker", worker),
	)

	sess, err := h.sessions.Authenticate(ctx, worker)
	if err != nil {
		h.logger.Error("crm authentication failed", "error", err, "worker", worker)
		span.RecordError(err)
		h.metrics.ObserveLookup("authenticate", "error")
		writeJSONError(w, http.StatusInternalServerError, "crm authentication failed")
		return
	}

	switch location {
	case locationCustomerByID:
		h.customerByID(ctx, w, r, sess)
	case locationCustomersList:
		h.customersList(ctx, w, r, sess)
	default:
		h.logger.Warn("unknown lookup location", "location", location)
		h.metrics.ObserveLookup("unknown", "rejected")
		writeJSONError(w, http.StatusUnprocessableEntity, "unrecognized location")
	}
}

func (h *Handler) customerByID(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *salesforce.Session) {
	customerID := r.FormValue("CustomerId")
	summary, err := h.service.GetByID(ctx, sess, customerID)
	switch {
	case errors.Is(err, ErrNotFound):
		h.logger.Info("customer not found", "customer_id", customerID)
		h.metrics.ObserveLookup("get_by_id", "not_found")
		writeJSONError(w, http.StatusNotFound, "customer not found")
	case err != nil:
		h.logger.Error("customer lookup failed", "error", err, "customer_id", customerID)
		h.metrics.ObserveLookup("get_by_id", "error")
		writeJSONError(w, http.StatusInternalServerError, "customer lookup failed")
	default:
		h.metrics.ObserveLookup("get_by_id", "success")
		writeJSON(w, http.StatusOK, map[string]any{
			"objects": map[string]any{"customer": summary},
		})
	}
}

func (h *Handler) customersList(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *salesforce.Session) {
	pageSize := parseIntOrDefault(r.FormValue("PageSize"), defaultPageSize)
	offset := parseIntOrDefault(r.FormValue("NextPageToken"), 0)
	query := r.FormValue("Query")

	var (
		page      *CustomerPage
		err       error
		operation = "list"
	)
	// Single-character and empty queries fall back to the plain list with
	// the same pagination arguments.
	if len(query) > 1 {
		operation = "search"
		page, err = h.service.Search(ctx, sess, sess.Username, query, pageSize, offset)
	} else {
		page, err = h.service.List(ctx, sess, pageSize, offset)
	}
	if err != nil {
		// Degraded result: the caller still gets a well-formed empty page,
		// the failure stays observable in logs and metrics.
		h.logger.Error("customer listing degraded to empty page", "error", err, "operation", operation)
		h.metrics.ObserveLookup(operation, "degraded")
	} else {
		h.metrics.ObserveLookup(operation, "success")
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": page})
}

func parseIntOrDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
