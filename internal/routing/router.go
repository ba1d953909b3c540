package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/frontline-crm-sync/internal/conversations"
	"github.com/wolfman30/frontline-crm-sync/internal/observability/metrics"
	"github.com/wolfman30/frontline-crm-sync/internal/salesforce"
	"github.com/wolfman30/frontline-crm-sync/pkg/logging"
)

type ownerResolver interface {
	FindOwnerByNumber(ctx context.Context, sess *salesforce.Session, number string) (string, error)
}

type participantAdder interface {
	AddParticipant(ctx context.Context, conversationSid, identity string) (*conversations.Participant, error)
}

// Router assigns an inbound conversation to a worker: exact proxy-number
// match against CRM users, then the configured default. There is no
// secondary routing policy.
type Router struct {
	directory     ownerResolver
	participants  participantAdder
	defaultWorker string
	metrics       *metrics.SyncMetrics
	logger        *logging.Logger
}

func NewRouter(dir ownerResolver, participants participantAdder, defaultWorker string, m *metrics.SyncMetrics, logger *logging.Logger) *Router {
	if dir == nil {
		panic("routing: owner resolver cannot be nil")
	}
	if participants == nil {
		panic("routing: participant adder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{
		directory:     dir,
		participants:  participants,
		defaultWorker: defaultWorker,
		metrics:       m,
		logger:        logger.Component("routing"),
	}
}

// RouteConversation picks the target worker for the dialed proxy number and
// adds them to the conversation with webhook notifications enabled. The add
// is attempted once; a platform error is surfaced, not retried.
func (r *Router) RouteConversation(ctx context.Context, sess *salesforce.Session, conversationSid, proxyNumber string) (string, error) {
	identity, err := r.directory.FindOwnerByNumber(ctx, sess, proxyNumber)
	if err != nil {
		// Lookup failure degrades to the fallback worker; the failure stays
		// observable in logs and metrics.
		r.logger.Error("owner lookup failed, using default worker", "error", err, "proxy_number", proxyNumber)
		identity = ""
	}
	outcome := "matched"
	if identity == "" {
		identity = r.defaultWorker
		outcome = "fallback"
	}
	r.metrics.ObserveRouting(outcome)
	if identity == "" {
		return "", errors.New("routing: no owner matched and no default worker configured")
	}

	r.logger.Info("routing conversation", "conversation_sid", conversationSid, "worker", identity, "outcome", outcome)
	if _, err := r.participants.AddParticipant(ctx, conversationSid, identity); err != nil {
		return identity, fmt.Errorf("routing: add participant %s to %s: %w", identity, conversationSid, err)
	}
	return identity, nil
}
