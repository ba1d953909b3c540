package frontline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/frontline-crm-sync/internal/conversations"
	"github.com/wolfman30/frontline-crm-sync/internal/directory"
	"github.com/wolfman30/frontline-crm-sync/internal/salesforce"
)

type fakeSessions struct {
	err   error
	calls int
}

func (f *fakeSessions) Authenticate(ctx context.Context, identity string) (*salesforce.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	username := identity
	if username == "" {
		username = "svc@example.com"
	}
	return &salesforce.Session{InstanceURL: "https://example.my.salesforce.com", AccessToken: "t", Username: username}, nil
}

type fakeResolver struct {
	ref *directory.CustomerRef
	err error
}

func (f *fakeResolver) FindCustomerByNumber(ctx context.Context, sess *salesforce.Session, number string) (*directory.CustomerRef, error) {
	return f.ref, f.err
}

type fakeParticipants struct {
	participant *conversations.Participant
	fetchErr    error
	updateErr   error
	updates     []string
}

func (f *fakeParticipants) FetchParticipant(ctx context.Context, conversationSid, participantSid string) (*conversations.Participant, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.participant, nil
}

func (f *fakeParticipants) UpdateParticipantAttributes(ctx context.Context, conversationSid, participantSid, attributes string) (*conversations.Participant, error) {
	f.updates = append(f.updates, attributes)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.participant, nil
}

type createCall struct {
	object string
	fields map[string]any
}

type fakeCreator struct {
	err     error
	creates []createCall
}

func (f *fakeCreator) CreateRecord(ctx context.Context, sess *salesforce.Session, objectType string, fields map[string]any) (*salesforce.SaveResult, error) {
	f.creates = append(f.creates, createCall{objectType, fields})
	if f.err != nil {
		return nil, f.err
	}
	return &salesforce.SaveResult{ID: "a01", Success: true}, nil
}

type processorDeps struct {
	sessions     *fakeSessions
	resolver     *fakeResolver
	participants *fakeParticipants
	creator      *fakeCreator
}

func newTestProcessor(deps *processorDeps) *Processor {
	if deps.sessions == nil {
		deps.sessions = &fakeSessions{}
	}
	if deps.resolver == nil {
		deps.resolver = &fakeResolver{}
	}
	if deps.participants == nil {
		deps.participants = &fakeParticipants{participant: &conversations.Participant{Sid: "MB1", Attributes: "{}"}}
	}
	if deps.creator == nil {
		deps.creator = &fakeCreator{}
	}
	return NewProcessor(deps.sessions, deps.resolver, deps.participants, deps.creator, nil, nil)
}

func TestConversationAddResolvesDisplayName(t *testing.T) {
	deps := &processorDeps{resolver: &fakeResolver{ref: &directory.CustomerRef{CustomerID: "0031", DisplayName: "Ada Acme"}}}
	p := newTestProcessor(deps)

	result, err := p.Process(context.Background(), &ConversationAddEvent{
		ConversationSid: "CH1",
		BindingAddress:  "whatsapp:+15550001111",
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"friendly_name": "Ada Acme"}, result.Body)
	require.Empty(t, deps.creator.creates)
	require.Equal(t, OutcomeSuccess, result.Outcome())
}

func TestConversationAddFallsBackToRawNumber(t *testing.T) {
	p := newTestProcessor(&processorDeps{resolver: &fakeResolver{}})

	result, err := p.Process(context.Background(), &ConversationAddEvent{BindingAddress: "+15550001111"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"friendly_name": "+15550001111"}, result.Body)
}

func TestConversationAddIgnoresWorkerInitiated(t *testing.T) {
	deps := &processorDeps{sessions: &fakeSessions{}}
	p := newTestProcessor(deps)

	result, err := p.Process(context.Background(), &ConversationAddEvent{ConversationSid: "CH1"})
	require.NoError(t, err)
	require.Nil(t, result.Body)
	require.Zero(t, deps.sessions.calls)
}

func TestConversationAddDegradesOnResolverError(t *testing.T) {
	p := newTestProcessor(&processorDeps{resolver: &fakeResolver{err: errors.New("backend down")}})

	result, err := p.Process(context.Background(), &ConversationAddEvent{BindingAddress: "+15550001111"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"friendly_name": "+15550001111"}, result.Body)
}

func TestParticipantAddedCustomerMergesAndWritesBack(t *testing.T) {
	deps := &processorDeps{
		resolver:     &fakeResolver{ref: &directory.CustomerRef{CustomerID: "0031", DisplayName: "Ada Acme"}},
		participants: &fakeParticipants{participant: &conversations.Participant{Sid: "MB1", Attributes: "{}"}},
	}
	p := newTestProcessor(deps)

	result, err := p.Process(context.Background(), &ParticipantAddedEvent{
		AccountSid:      "AC1",
		ConversationSid: "CH1",
		ParticipantSid:  "MB1",
		BindingAddress:  "whatsapp:+15550001111",
		ProxyAddress:    "whatsapp:+15559990000",
		DateCreated:     "2024-01-01T00:00:00Z",
		Source:          "SDK",
	})
	require.NoError(t, err)
	require.Len(t, deps.participants.updates, 1)
	require.Contains(t, deps.participants.updates[0], `"customer_id":"0031"`)

	require.Len(t, deps.creator.creates, 1)
	create := deps.creator.creates[0]
	require.Equal(t, ObjectParticipantCustomer, create.object)
	require.Equal(t, "0031", create.fields["CustomerId__c"])
	require.Equal(t, "whatsapp:+15550001111", create.fields["CustomerPhone__c"])
	require.Equal(t, "whatsapp:+15559990000", create.fields["ProxyPhone__c"])
	require.Equal(t, OutcomeSuccess, result.Outcome())
}

func TestParticipantAddedSkipsRedundantAttributeWrite(t *testing.T) {
	deps := &processorDeps{
		resolver: &fakeResolver{ref: &directory.CustomerRef{CustomerID: "0031", DisplayName: "Ada Acme"}},
		participants: &fakeParticipants{participant: &conversations.Participant{
			Sid:        "MB1",
			Attributes: `{"customer_id":"0031","display_name":"Ada Acme"}`,
		}},
	}
	p := newTestProcessor(deps)

	_, err := p.Process(context.Background(), &ParticipantAddedEvent{
		ConversationSid: "CH1",
		ParticipantSid:  "MB1",
		BindingAddress:  "+15550001111",
	})
	require.NoError(t, err)
	require.Empty(t, deps.participants.updates)
	require.Len(t, deps.creator.creates, 1)
}

func TestParticipantAddedWorkerVariant(t *testing.T) {
	deps := &processorDeps{}
	p := newTestProcessor(deps)

	result, err := p.Process(context.Background(), &ParticipantAddedEvent{
		AccountSid:      "AC1",
		ConversationSid: "CH1",
		ParticipantSid:  "MB2",
		Identity:        "u1@example.com",
		DateCreated:     "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.Len(t, deps.creator.creates, 1)
	create := deps.creator.creates[0]
	require.Equal(t, ObjectParticipantUser, create.object)
	require.Equal(t, "u1@example.com", create.fields["UserName__c"])
	require.Empty(t, deps.participants.updates)
	require.Equal(t, OutcomeSuccess, result.Outcome())
}

func TestConversationAddedCreatesAuditRecord(t *testing.T) {
	deps := &processorDeps{}
	p := newTestProcessor(deps)

	result, err := p.Process(context.Background(), &ConversationAddedEvent{
		AccountSid:      "AC1",
		ConversationSid: "CH1",
		FriendlyName:    "Ada Acme",
		State:           "active",
		Source:          "API",
	})
	require.NoError(t, err)
	require.Len(t, deps.creator.creates, 1)
	create := deps.creator.creates[0]
	require.Equal(t, ObjectConversation, create.object)
	require.Equal(t, "CH1", create.fields["ConversationSid__c"])
	require.Equal(t, "active", create.fields["State__c"])
	require.Equal(t, OutcomeSuccess, result.Outcome())
}

func TestMessageAddedCreatesMessageLog(t *testing.T) {
	deps := &processorDeps{}
	p := newTestProcessor(deps)

	result, err := p.Process(context.Background(), &MessageAddedEvent{
		AccountSid:      "AC1",
		ConversationSid: "CH1",
		Body:            "hi",
		Index:           3,
		Author:          "cust1",
		DateCreated:     "2024-01-01T00:00:00Z",
		Source:          "API",
	})
	require.NoError(t, err)
	require.Len(t, deps.creator.creates, 1)
	create := deps.creator.creates[0]
	require.Equal(t, ObjectMessageLog, create.object)
	require.Equal(t, 3, create.fields["Index__c"])
	require.Equal(t, "hi", create.fields["Body__c"])
	require.Equal(t, "cust1", create.fields["Author__c"])
	require.Equal(t, OutcomeSuccess, result.Outcome())
}

func TestUnknownEventAcknowledgedWithoutWriteback(t *testing.T) {
	deps := &processorDeps{sessions: &fakeSessions{}}
	p := newTestProcessor(deps)

	result, err := p.Process(context.Background(), &UnknownEvent{EventType: "onConversationRemoved"})
	require.NoError(t, err)
	require.Empty(t, deps.creator.creates)
	require.Zero(t, deps.sessions.calls)
	require.Equal(t, OutcomeSuccess, result.Outcome())
}

func TestWritebackFailureIsCapturedNotFatal(t *testing.T) {
	deps := &processorDeps{creator: &fakeCreator{err: errors.New("DUPLICATE_VALUE")}}
	p := newTestProcessor(deps)

	result, err := p.Process(context.Background(), &MessageAddedEvent{ConversationSid: "CH1", Body: "hi"})
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, result.Outcome())
	require.Len(t, result.Writebacks, 1)
	require.Error(t, result.Writebacks[0].Err)
}

func TestSessionFailureAbortsProcessing(t *testing.T) {
	deps := &processorDeps{sessions: &fakeSessions{err: errors.New("invalid_grant")}}
	p := newTestProcessor(deps)

	_, err := p.Process(context.Background(), &MessageAddedEvent{ConversationSid: "CH1"})
	require.Error(t, err)
	require.Empty(t, deps.creator.creates)
}

func TestParticipantFetchFailureStillWritesAuditRecord(t *testing.T) {
	deps := &processorDeps{
		resolver:     &fakeResolver{ref: &directory.CustomerRef{CustomerID: "0031", DisplayName: "Ada"}},
		participants: &fakeParticipants{fetchErr: errors.New("not found")},
	}
	p := newTestProcessor(deps)

	result, err := p.Process(context.Background(), &ParticipantAddedEvent{
		ConversationSid: "CH1",
		ParticipantSid:  "MB1",
		BindingAddress:  "+15550001111",
	})
	require.NoError(t, err)
	require.Empty(t, deps.participants.updates)
	require.Len(t, deps.creator.creates, 1)
	require.Equal(t, OutcomeSuccess, result.Outcome())
}
