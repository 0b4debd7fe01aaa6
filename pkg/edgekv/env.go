package edgekv

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables honoured by NewFromEnv.
const (
	EnvAccountID   = "STRATO_ACCOUNT_ID"
	EnvNamespaceID = "STRATO_KV_NAMESPACE_ID"
	EnvAPIToken    = "STRATO_API_TOKEN"
	EnvAPIURL      = "STRATO_API_URL"
)

// NewFromEnv constructs a Client from STRATO_* environment variables.
// STRATO_ACCOUNT_ID, STRATO_KV_NAMESPACE_ID and STRATO_API_TOKEN are
// required. STRATO_API_URL optionally redirects the client, typically at
// a local sandbox; options passed explicitly take precedence over the
// environment.
func NewFromEnv(opts ...Option) (*Client, error) {
	cfg := Config{
		AccountID:   strings.TrimSpace(os.Getenv(EnvAccountID)),
		NamespaceID: strings.TrimSpace(os.Getenv(EnvNamespaceID)),
		APIToken:    strings.TrimSpace(os.Getenv(EnvAPIToken)),
	}
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("edgekv: %s is required", EnvAccountID)
	}
	if cfg.NamespaceID == "" {
		return nil, fmt.Errorf("edgekv: %s is required", EnvNamespaceID)
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("edgekv: %s is required", EnvAPIToken)
	}

	if base := strings.TrimSpace(os.Getenv(EnvAPIURL)); base != "" {
		opts = append([]Option{WithBaseURL(base)}, opts...)
	}
	return New(cfg, opts...)
}
