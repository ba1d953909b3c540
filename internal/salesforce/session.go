package salesforce

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// SessionProvider yields an authenticated CRM session for a requesting
// identity. An empty identity means the default service user.
type SessionProvider interface {
	Authenticate(ctx context.Context, identity string) (*Session, error)
}

// OAuthConfig controls the JWT bearer token exchange.
type OAuthConfig struct {
	LoginURL        string
	ClientID        string
	DefaultUsername string
	PrivateKeyPEM   string
	AssertionTTL    time.Duration
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// OAuthProvider implements SessionProvider via the OAuth 2.0 JWT bearer flow
// against the Salesforce token endpoint.
type OAuthProvider struct {
	loginURL        string
	clientID        string
	defaultUsername string
	key             *rsa.PrivateKey
	assertionTTL    time.Duration
	httpClient      *http.Client
	logger          *slog.Logger
}

// NewOAuthProvider validates the connected-app credentials and parses the
// signing key.
func NewOAuthProvider(cfg OAuthConfig) (*OAuthProvider, error) {
	loginURL := strings.TrimRight(strings.TrimSpace(cfg.LoginURL), "/")
	if loginURL == "" {
		return nil, errors.New("salesforce: login URL is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("salesforce: consumer key is required")
	}
	if strings.TrimSpace(cfg.DefaultUsername) == "" {
		return nil, errors.New("salesforce: default username is required")
	}
	key, err := parsePrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.AssertionTTL
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthProvider{
		loginURL:        loginURL,
		clientID:        cfg.ClientID,
		defaultUsername: cfg.DefaultUsername,
		key:             key,
		assertionTTL:    ttl,
		httpClient:      httpClient,
		logger:          logger,
	}, nil
}

// Authenticate exchanges a signed assertion for an access token bound to the
// given identity, falling back to the default service user when identity is
// empty.
func (p *OAuthProvider) Authenticate(ctx context.Context, identity string) (*Session, error) {
	username := strings.TrimSpace(identity)
	if username == "" {
		username = p.defaultUsername
	}
	assertion, err := p.signAssertion(username)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.loginURL+"/services/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("salesforce: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("salesforce: token request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("salesforce: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var oauthErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if jsonErr := json.Unmarshal(data, &oauthErr); jsonErr == nil && oauthErr.Error != "" {
			return nil, fmt.Errorf("salesforce: token exchange for %s failed: %s: %s", username, oauthErr.Error, oauthErr.Description)
		}
		return nil, fmt.Errorf("salesforce: token exchange for %s failed with status %d", username, resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		InstanceURL string `json:"instance_url"`
	}
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("salesforce: decode token response: %w", err)
	}
	if token.AccessToken == "" || token.InstanceURL == "" {
		return nil, errors.New("salesforce: token response missing access token or instance URL")
	}

	p.logger.Debug("salesforce session acquired", "username", username)
	return &Session{
		InstanceURL: strings.TrimRight(token.InstanceURL, "/"),
		AccessToken: token.AccessToken,
		Username:    username,
	}, nil
}

func (p *OAuthProvider) signAssertion(username string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.clientID,
		Subject:   username,
		Audience:  jwt.ClaimStrings{p.loginURL},
		ExpiresAt: jwt.NewNumericDate(now.Add(p.assertionTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("salesforce: sign assertion: %w", err)
	}
	return signed, nil
}

func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("salesforce: private key is not valid PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("salesforce: parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("salesforce: private key is not RSA")
	}
	return key, nil
}
