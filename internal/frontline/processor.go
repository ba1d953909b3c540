package frontline

import (
	"context"
	"fmt"

	"github.com/wolfman30/frontline-crm-sync/internal/conversations"
	"github.com/wolfman30/frontline-crm-sync/internal/directory"
	"github.com/wolfman30/frontline-crm-sync/internal/observability/metrics"
	"github.com/wolfman30/frontline-crm-sync/internal/salesforce"
	"github.com/wolfman30/frontline-crm-sync/pkg/logging"
)

// CRM audit object kinds created by the processor. Created once per event,
// never read back; duplicate suppression is the CRM's uniqueness constraint
// on (ConversationSid__c, secondary key).
const (
	ObjectConversation        = "Frontline_Conversation__c"
	ObjectParticipantCustomer = "Frontline_Conversation_Participant_Custo__c"
	ObjectParticipantUser     = "Frontline_Conversation_Participant_User__c"
	ObjectMessageLog          = "Frontline_Conversation_Message_Log__c"
)

// Outcome summarizes how an event's writebacks went.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// Writeback records one attempted audit record create.
type Writeback struct {
	Object   string
	RecordID string
	Err      error
}

// Result is the structured outcome of processing one event: the response
// body for pre-event hooks plus every attempted writeback. The webhook is
// always acknowledged; partial failures surface here instead of in the
// response status.
type Result struct {
	Body       map[string]any
	Writebacks []Writeback
}

// Outcome classifies the result across all writebacks.
func (r *Result) Outcome() Outcome {
	if len(r.Writebacks) == 0 {
		return OutcomeSuccess
	}
	failed := 0
	for _, wb := range r.Writebacks {
		if wb.Err != nil {
			failed++
		}
	}
	switch failed {
	case 0:
		return OutcomeSuccess
	case len(r.Writebacks):
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

type customerResolver interface {
	FindCustomerByNumber(ctx context.Context, sess *salesforce.Session, number string) (*directory.CustomerRef, error)
}

type participantAPI interface {
	FetchParticipant(ctx context.Context, conversationSid, participantSid string) (*conversations.Participant, error)
	UpdateParticipantAttributes(ctx context.Context, conversationSid, participantSid, attributes string) (*conversations.Participant, error)
}

type recordCreator interface {
	CreateRecord(ctx context.Context, sess *salesforce.Session, objectType string, fields map[string]any) (*salesforce.SaveResult, error)
}

// Processor dispatches conversation lifecycle events to CRM writebacks. It
// carries no state between invocations; correlation across events happens
// only via the CRM's stored keys.
type Processor struct {
	sessions     salesforce.SessionProvider
	directory    customerResolver
	participants participantAPI
	crm          recordCreator
	metrics      *metrics.SyncMetrics
	logger       *logging.Logger
}

func NewProcessor(sessions salesforce.SessionProvider, dir customerResolver, participants participantAPI, crm recordCreator, m *metrics.SyncMetrics, logger *logging.Logger) *Processor {
	if sessions == nil {
		panic("frontline: session provider cannot be nil")
	}
	if dir == nil {
		panic("frontline: customer resolver cannot be nil")
	}
	if participants == nil {
		panic("frontline: participant API cannot be nil")
	}
	if crm == nil {
		panic("frontline: record creator cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{
		sessions:     sessions,
		directory:    dir,
		participants: participants,
		crm:          crm,
		metrics:      m,
		logger:       logger.Component("frontline"),
	}
}

// Process handles one event. The returned error is reserved for failures
// that prevent processing entirely (session acquisition); writeback failures
// are captured in the Result so the webhook can still be acknowledged.
func (p *Processor) Process(ctx context.Context, event Event) (*Result, error) {
	switch e := event.(type) {
	case *ConversationAddEvent:
		return p.onConversationAdd(ctx, e)
	case *ParticipantAddedEvent:
		return p.onParticipantAdded(ctx, e)
	case *ConversationAddedEvent:
		return p.onConversationAdded(ctx, e)
	case *MessageAddedEvent:
		return p.onMessageAdded(ctx, e)
	default:
		p.logger.Warn("unknown event type acknowledged", "event_type", event.Kind())
		return &Result{}, nil
	}
}

// onConversationAdd proposes a display name for inbound conversations. No
// writeback happens on this branch.
func (p *Processor) onConversationAdd(ctx context.Context, e *ConversationAddEvent) (*Result, error) {
	number := e.CustomerNumber()
	if number == "" {
		// Worker-initiated conversation; nothing to resolve.
		return &Result{}, nil
	}
	sess, err := p.sessions.Authenticate(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("frontline: authenticate for conversation add: %w", err)
	}
	name := number
	ref, err := p.directory.FindCustomerByNumber(ctx, sess, number)
	if err != nil {
		p.logger.Error("customer resolution failed, using raw number", "error", err, "conversation_sid", e.ConversationSid)
	} else if ref != nil && ref.DisplayName != "" {
		name = ref.DisplayName
	}
	return &Result{Body: map[string]any{"friendly_name": name}}, nil
}

func (p *Processor) onParticipantAdded(ctx context.Context, e *ParticipantAddedEvent) (*Result, error) {
	sess, err := p.sessions.Authenticate(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("frontline: authenticate for participant added: %w", err)
	}
	result := &Result{}
	if !e.IsCustomer() {
		p.createAuditRecord(ctx, sess, result, ObjectParticipantUser, map[string]any{
			"AccountSid__c":      e.AccountSid,
			"ConversationSid__c": e.ConversationSid,
			"UserName__c":        e.Identity,
			"DateCreated__c":     e.DateCreated,
			"DateUpdated__c":     e.DateCreated,
			"ClientIdentity__c":  e.ClientIdentity,
			"RoleSid__c":         e.RoleSid,
			"ParticipantSid__c":  e.ParticipantSid,
			"Source__c":          e.Source,
		})
		return result, nil
	}

	customerID, displayName := p.resolveCustomer(ctx, sess, e)
	p.syncParticipantAttributes(ctx, e, customerID, displayName)
	p.createAuditRecord(ctx, sess, result, ObjectParticipantCustomer, map[string]any{
		"AccountSid__c":      e.AccountSid,
		"ConversationSid__c": e.ConversationSid,
		"CustomerId__c":      customerID,
		"CustomerPhone__c":   e.BindingAddress,
		"ProxyPhone__c":      e.ProxyAddress,
		"DateCreated__c":     e.DateCreated,
		"DateUpdated__c":     e.DateCreated,
		"ClientIdentity__c":  e.ClientIdentity,
		"RoleSid__c":         e.RoleSid,
		"ParticipantSid__c":  e.ParticipantSid,
		"Source__c":          e.Source,
	})
	return result, nil
}

func (p *Processor) onConversationAdded(ctx context.Context, e *ConversationAddedEvent) (*Result, error) {
	sess, err := p.sessions.Authenticate(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("frontline: authenticate for conversation added: %w", err)
	}
	result := &Result{}
	p.createAuditRecord(ctx, sess, result, ObjectConversation, map[string]any{
		"AccountSid__c":          e.AccountSid,
		"Attributes__c":          e.Attributes,
		"ChatServiceSid__c":      e.ChatServiceSid,
		"ConversationSid__c":     e.ConversationSid,
		"DateCreated__c":         e.DateCreated,
		"FriendlyName__c":        e.FriendlyName,
		"MessagingServiceSid__c": e.MessagingServiceSid,
		"Source__c":              e.Source,
		"State__c":               e.State,
	})
	return result, nil
}

func (p *Processor) onMessageAdded(ctx context.Context, e *MessageAddedEvent) (*Result, error) {
	sess, err := p.sessions.Authenticate(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("frontline: authenticate for message added: %w", err)
	}
	result := &Result{}
	p.createAuditRecord(ctx, sess, result, ObjectMessageLog, map[string]any{
		"AccountSid__c":      e.AccountSid,
		"Attributes__c":      e.Attributes,
		"Author__c":          e.Author,
		"ConversationSid__c": e.ConversationSid,
		"DateCreated__c":     e.DateCreated,
		"Body__c":            e.Body,
		"Index__c":           e.Index,
		"MessageSid__c":      e.MessageSid,
		"Source__c":          e.Source,
	})
	return result, nil
}

func (p *Processor) resolveCustomer(ctx context.Context, sess *salesforce.Session, e *ParticipantAddedEvent) (customerID, displayName string) {
	ref, err := p.directory.FindCustomerByNumber(ctx, sess, e.CustomerNumber())
	if err != nil {
		p.logger.Error("customer resolution failed", "error", err, "conversation_sid", e.ConversationSid)
		return "", ""
	}
	if ref == nil {
		return "", ""
	}
	return ref.CustomerID, ref.DisplayName
}

// syncParticipantAttributes merges resolved customer fields into the live
// participant's attribute bag, writing back only when something changed.
func (p *Processor) syncParticipantAttributes(ctx context.Context, e *ParticipantAddedEvent, customerID, displayName string) {
	participant, err := p.participants.FetchParticipant(ctx, e.ConversationSid, e.ParticipantSid)
	if err != nil {
		p.logger.Error("fetch participant failed", "error", err, "participant_sid", e.ParticipantSid)
		return
	}
	merged, changed, err := MergeAttributes(participant.Attributes, customerID, displayName)
	if err != nil {
		p.logger.Error("merge participant attributes failed", "error", err, "participant_sid", e.ParticipantSid)
		return
	}
	if !changed {
		return
	}
	if _, err := p.participants.UpdateParticipantAttributes(ctx, e.ConversationSid, e.ParticipantSid, merged); err != nil {
		p.logger.Error("update customer participant failed", "error", err, "participant_sid", e.ParticipantSid)
	}
}

// createAuditRecord performs one best-effort writeback and records the
// attempt on the result.
func (p *Processor) createAuditRecord(ctx context.Context, sess *salesforce.Session, result *Result, object string, fields map[string]any) {
	saved, err := p.crm.CreateRecord(ctx, sess, object, fields)
	if err != nil {
		p.logger.Error("crm writeback failed", "error", err, "object", object)
		p.metrics.ObserveWriteback(object, "error")
		result.Writebacks = append(result.Writebacks, Writeback{Object: object, Err: err})
		return
	}
	p.logger.Info("crm writeback created", "object", object, "record_id", saved.ID)
	p.metrics.ObserveWriteback(object, "success")
	result.Writebacks = append(result.Writebacks, Writeback{Object: object, RecordID: saved.ID})
}
