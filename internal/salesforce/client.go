package salesforce

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"context"
	"log/slog"
)

const (
	defaultAPIVersion = "v58.0"
	defaultUserAgent  = "frontline-crm-sync/0.1"
)

// Config controls how the Salesforce REST client behaves.
type Config struct {
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Client wraps the Salesforce REST endpoints this service consumes: SOQL
// query, SOSL search, and record create. Every call is scoped to the Session
// passed in; the client itself holds no credentials.
type Client struct {
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) *Client {
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
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
		apiVersion: apiVersion,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
	}
}

// Query executes a SOQL statement.
func (c *Client) Query(ctx context.Context, sess *Session, soql string) (*QueryResult, error) {
	if strings.TrimSpace(soql) == "" {
		return nil, errors.New("salesforce: query statement required")
	}
	q := url.Values{}
	q.Set("q", soql)
	data, err := c.invoke(ctx, sess, http.MethodGet, "/query", q, nil)
	if err != nil {
		return nil, err
	}
	var result QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("salesforce: decode query result: %w", err)
	}
	return &result, nil
}

// Search executes a SOSL statement.
func (c *Client) Search(ctx context.Context, sess *Session, sosl string) (*SearchResult, error) {
	if strings.TrimSpace(sosl) == "" {
		return nil, errors.New("salesforce: search statement required")
	}
	q := url.Values{}
	q.Set("q", sosl)
	data, err := c.invoke(ctx, sess, http.MethodGet, "/search", q, nil)
	if err != nil {
		return nil, err
	}
	var result SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("salesforce: decode search result: %w", err)
	}
	return &result, nil
}

// CreateRecord inserts one record of the given object type.
func (c *Client) CreateRecord(ctx context.Context, sess *Session, objectType string, fields map[string]any) (*SaveResult, error) {
	if strings.TrimSpace(objectType) == "" {
		return nil, errors.New("salesforce: object type required")
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("salesforce: marshal %s fields: %w", objectType, err)
	}
	data, err := c.invoke(ctx, sess, http.MethodPost, "/sobjects/"+objectType, nil, body)
	if err != nil {
		return nil, err
	}
	var result SaveResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("salesforce: decode save result: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("salesforce: create %s reported failure: %+v", objectType, result.Errors)
	}
	return &result, nil
}

func (c *Client) invoke(ctx context.Context, sess *Session, method, path string, query url.Values, body []byte) ([]byte, error) {
	if sess == nil || sess.InstanceURL == "" || sess.AccessToken == "" {
		return nil, errors.New("salesforce: session required")
	}
	fullURL := sess.InstanceURL + "/services/data/" + c.apiVersion + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("salesforce: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("salesforce: http error: %w", err)
	}
	data, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("salesforce: read response: %w", readErr)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, decodeAPIError(resp.StatusCode, data)
}

// APIError carries the backend HTTP status and first reported error detail.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("salesforce: %s (code=%s status=%d)", e.Message, e.ErrorCode, e.StatusCode)
	}
	return fmt.Sprintf("salesforce: http status %d", e.StatusCode)
}

// decodeAPIError parses the error envelope Salesforce returns: a JSON array
// of {message, errorCode} objects.
func decodeAPIError(status int, body []byte) error {
	var parsed []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed) > 0 {
		return &APIError{StatusCode: status, ErrorCode: parsed[0].ErrorCode, Message: parsed[0].Message}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
