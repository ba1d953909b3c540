package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://conversations.twilio.com/v1"
	defaultUserAgent = "frontline-crm-sync/0.1"
)

// Config controls how the Conversations client behaves.
type Config struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Client wraps the Conversations participant endpoints this service consumes.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("conversations: account SID and auth token are required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// Participant mirrors the Conversations participant resource.
type Participant struct {
	Sid             string `json:"sid"`
	ConversationSid string `json:"conversation_sid"`
	AccountSid      string `json:"account_sid"`
	Identity        string `json:"identity"`
	Attributes      string `json:"attributes"`
	RoleSid         string `json:"role_sid"`
	DateCreated     string `json:"date_created"`
	DateUpdated     string `json:"date_updated"`
}

// FetchParticipant retrieves the live participant object.
func (c *Client) FetchParticipant(ctx context.Context, conversationSid, participantSid string) (*Participant, error) {
	if strings.TrimSpace(conversationSid) == "" || strings.TrimSpace(participantSid) == "" {
		return nil, errors.New("conversations: conversation and participant SIDs required")
	}
	path := fmt.Sprintf("/Conversations/%s/Participants/%s", conversationSid, participantSid)
	data, err := c.invoke(ctx, http.MethodGet, path, nil, false)
	if err != nil {
		return nil, err
	}
	return decodeParticipant(data)
}

// UpdateParticipantAttributes replaces the participant attribute bag.
func (c *Client) UpdateParticipantAttributes(ctx context.Context, conversationSid, participantSid, attributes string) (*Participant, error) {
	if strings.TrimSpace(conversationSid) == "" || strings.TrimSpace(participantSid) == "" {
		return nil, errors.New("conversations: conversation and participant SIDs required")
	}
	form := url.Values{}
	form.Set("Attributes", attributes)
	path := fmt.Sprintf("/Conversations/%s/Participants/%s", conversationSid, participantSid)
	data, err := c.invoke(ctx, http.MethodPost, path, form, false)
	if err != nil {
		return nil, err
	}
	return decodeParticipant(data)
}

// AddParticipant adds a chat participant by identity, with webhook
// notifications enabled so downstream listeners observe the addition.
func (c *Client) AddParticipant(ctx context.Context, conversationSid, identity string) (*Participant, error) {
	if strings.TrimSpace(conversationSid) == "" {
		return nil, errors.New("conversations: conversation SID required")
	}
	if strings.TrimSpace(identity) == "" {
		return nil, errors.New("conversations: participant identity required")
	}
	form := url.Values{}
	form.Set("Identity", identity)
	path := fmt.Sprintf("/Conversations/%s/Participants", conversationSid)
	data, err := c.invoke(ctx, http.MethodPost, path, form, true)
	if err != nil {
		return nil, err
	}
	return decodeParticipant(data)
}

func (c *Client) invoke(ctx context.Context, method, path string, form url.Values, webhookEnabled bool) ([]byte, error) {
	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("conversations: build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("User-Agent", c.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if webhookEnabled {
		req.Header.Set("X-Twilio-Webhook-Enabled", "true")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("conversations: http error: %w", err)
	}
	data, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("conversations: read response: %w", readErr)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, decodeAPIError(resp.StatusCode, data)
}

func decodeParticipant(data []byte) (*Participant, error) {
	var p Participant
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("conversations: decode participant: %w", err)
	}
	return &p, nil
}

// APIError carries the Twilio error envelope for non-2xx responses.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("conversations: %s (code=%d status=%d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("conversations: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var parsed APIError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	parsed.StatusCode = status
	return &parsed
}
