package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Salesforce connected-app credentials for the JWT bearer flow.
	SalesforceLoginURL   string
	SalesforceClientID   string
	SalesforceUsername   string
	SalesforcePrivateKey string
	SalesforceAPIVersion string
	SalesforceTimeout    time.Duration

	// Twilio Conversations REST credentials.
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWebhookSecret  string
	ConversationsBaseURL string

	// Routing fallback when no CRM user owns the dialed proxy number.
	DefaultWorker string

	ValidateSignatures bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SalesforceLoginURL:   strings.TrimRight(getEnv("SF_LOGIN_URL", "https://login.salesforce.com"), "/"),
		SalesforceClientID:   getEnv("SF_CONSUMER_KEY", ""),
		SalesforceUsername:   getEnv("SF_USERNAME", ""),
		SalesforcePrivateKey: getPrivateKey(),
		SalesforceAPIVersion: getEnv("SF_API_VERSION", "v58.0"),
		SalesforceTimeout:    getEnvAsDuration("SF_TIMEOUT", 10*time.Second),

		TwilioAccountSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:      getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWebhookSecret:  getEnv("TWILIO_WEBHOOK_SECRET", ""),
		ConversationsBaseURL: getEnv("CONVERSATIONS_BASE_URL", ""),

		DefaultWorker: getEnv("DEFAULT_WORKER", ""),

		ValidateSignatures: getEnvAsBool("VALIDATE_WEBHOOK_SIGNATURES", false),
	}
}

// getPrivateKey reads the Salesforce signing key from SF_PRIVATE_KEY, or from
// the file named by SF_PRIVATE_KEY_PATH when the inline form is not set.
func getPrivateKey() string {
	if key := os.Getenv("SF_PRIVATE_KEY"); key != "" {
		return key
	}
	path := os.Getenv("SF_PRIVATE_KEY_PATH")
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// WebhookSecret returns the key used to validate Twilio webhook signatures.
// Twilio signs webhooks with the account auth token unless a dedicated
// secret is configured. An empty result disables validation.
func (c *Config) WebhookSecret() string {
	if !c.ValidateSignatures {
		return ""
	}
	if c.TwilioWebhookSecret != "" {
		return c.TwilioWebhookSecret
	}
	return c.TwilioAuthToken
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
