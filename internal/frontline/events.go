package frontline

import (
	"net/url"
	"strconv"
	"strings"
)

// Channel-specific prefix Frontline puts on WhatsApp binding addresses.
const whatsappPrefix = "whatsapp:"

const (
	eventConversationAdd   = "onConversationAdd"
	eventParticipantAdded  = "onParticipantAdded"
	eventConversationAdded = "onConversationAdded"
	eventMessageAdded      = "onMessageAdded"
)

// Event is one parsed Frontline lifecycle webhook. Each event kind carries
// only the fields that kind uses.
type Event interface {
	Kind() string
}

// ConversationAddEvent is the pre-creation hook for a new conversation.
type ConversationAddEvent struct {
	ConversationSid string
	BindingAddress  string
}

func (e *ConversationAddEvent) Kind() string { return eventConversationAdd }

// CustomerNumber is the binding address with the channel prefix stripped.
// Empty for worker-initiated conversations.
func (e *ConversationAddEvent) CustomerNumber() string {
	return stripChannelPrefix(e.BindingAddress)
}

// ParticipantAddedEvent fires after a participant joins a conversation.
type ParticipantAddedEvent struct {
	AccountSid      string
	ConversationSid string
	ParticipantSid  string
	Identity        string
	BindingAddress  string
	ProxyAddress    string
	ClientIdentity  string
	RoleSid         string
	Source          string
	DateCreated     string
}

func (e *ParticipantAddedEvent) Kind() string { return eventParticipantAdded }

func (e *ParticipantAddedEvent) CustomerNumber() string {
	return stripChannelPrefix(e.BindingAddress)
}

// IsCustomer classifies the participant: a customer-facing address with no
// assigned identity means customer, anything else means worker.
func (e *ParticipantAddedEvent) IsCustomer() bool {
	return e.CustomerNumber() != "" && e.Identity == ""
}

// ConversationAddedEvent fires after a conversation is created.
type ConversationAddedEvent struct {
	AccountSid          string
	ConversationSid     string
	ChatServiceSid      string
	MessagingServiceSid string
	FriendlyName        string
	Attributes          string
	State               string
	Source              string
	DateCreated         string
}

func (e *ConversationAddedEvent) Kind() string { return eventConversationAdded }

// MessageAddedEvent fires after a message lands in a conversation.
type MessageAddedEvent struct {
	AccountSid      string
	ConversationSid string
	MessageSid      string
	Index           int
	Body            string
	Author          string
	Attributes      string
	Source          string
	DateCreated     string
}

func (e *MessageAddedEvent) Kind() string { return eventMessageAdded }

// UnknownEvent is any event kind this service does not handle. It is
// acknowledged so the platform does not retry.
type UnknownEvent struct {
	EventType string
}

func (e *UnknownEvent) Kind() string {
	if e.EventType == "" {
		return "unknown"
	}
	return e.EventType
}

// ParseEvent builds the typed variant for a webhook form payload.
func ParseEvent(form url.Values) Event {
	switch form.Get("EventType") {
	case eventConversationAdd:
		return &ConversationAddEvent{
			ConversationSid: form.Get("ConversationSid"),
			BindingAddress:  form.Get("MessagingBinding.Address"),
		}
	case eventParticipantAdded:
		return &ParticipantAddedEvent{
			AccountSid:      form.Get("AccountSid"),
			ConversationSid: form.Get("ConversationSid"),
			ParticipantSid:  form.Get("ParticipantSid"),
			Identity:        form.Get("Identity"),
			BindingAddress:  form.Get("MessagingBinding.Address"),
			ProxyAddress:    form.Get("MessagingBinding.ProxyAddress"),
			ClientIdentity:  form.Get("ClientIdentity"),
			RoleSid:         form.Get("RoleSid"),
			Source:          form.Get("Source"),
			DateCreated:     form.Get("DateCreated"),
		}
	case eventConversationAdded:
		return &ConversationAddedEvent{
			AccountSid:          form.Get("AccountSid"),
			ConversationSid:     form.Get("ConversationSid"),
			ChatServiceSid:      form.Get("ChatServiceSid"),
			MessagingServiceSid: form.Get("MessagingServiceSid"),
			FriendlyName:        form.Get("FriendlyName"),
			Attributes:          form.Get("Attributes"),
			State:               form.Get("State"),
			Source:              form.Get("Source"),
			DateCreated:         form.Get("DateCreated"),
		}
	case eventMessageAdded:
		index, _ := strconv.Atoi(form.Get("Index"))
		return &MessageAddedEvent{
			AccountSid:      form.Get("AccountSid"),
			ConversationSid: form.Get("ConversationSid"),
			MessageSid:      form.Get("MessageSid"),
			Index:           index,
			Body:            form.Get("Body"),
			Author:          form.Get("Author"),
			Attributes:      form.Get("Attributes"),
			Source:          form.Get("Source"),
			DateCreated:     form.Get("DateCreated"),
		}
	default:
		return &UnknownEvent{EventType: form.Get("EventType")}
	}
}

func stripChannelPrefix(address string) string {
	if strings.HasPrefix(address, whatsappPrefix) {
		return address[len(whatsappPrefix):]
	}
	return address
}
