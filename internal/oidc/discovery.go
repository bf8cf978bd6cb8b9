// Package oidc talks to the OpenID Connect provider: discovery document
// resolution and the authorization-code token exchange.
package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds outbound calls to the provider when no timeout is
// configured.
const DefaultTimeout = 5 * time.Second

// ErrDiscoveryUnavailable indicates the provider's discovery document could
// not be fetched or parsed.
var ErrDiscoveryUnavailable = errors.New("discovery document unavailable")

// Discovery is the provider's openid-configuration document. Only
// authorization_endpoint and token_endpoint are required by the broker;
// other fields are passed through for diagnostics.
type Discovery struct {
	Issuer                 string   `json:"issuer"`
	AuthorizationEndpoint  string   `json:"authorization_endpoint"`
	TokenEndpoint          string   `json:"token_endpoint"`
	RegistrationEndpoint   string   `json:"registration_endpoint,omitempty"`
	JWKSURI                string   `json:"jwks_uri,omitempty"`
	ResponseTypesSupported []string `json:"response_types_supported,omitempty"`
	ResponseModesSupported []string `json:"response_modes_supported,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}

// DiscoveryError carries the upstream detail of a failed discovery fetch.
type DiscoveryError struct {
	Issuer     string
	StatusCode int
	Detail     string
}

func (e *DiscoveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("discovery for %s failed with status %d: %s", e.Issuer, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("discovery for %s failed: %s", e.Issuer, e.Detail)
}

func (e *DiscoveryError) Unwrap() error { return ErrDiscoveryUnavailable }

// Resolver fetches discovery documents. Documents are not cached: every
// login and every callback re-resolves, so endpoint rotation on the provider
// side is picked up immediately.
type Resolver struct {
	client *http.Client
}

// NewResolver creates a Resolver whose outbound requests are bounded by
// timeout (DefaultTimeout if zero).
func NewResolver(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{client: &http.Client{Timeout: timeout}}
}

// Resolve fetches {issuer}/.well-known/openid-configuration.
func (r *Resolver) Resolve(ctx context.Context, issuer string) (*Discovery, error) {
	if issuer == "" {
		return nil, &DiscoveryError{Issuer: issuer, Detail: "issuer cannot be empty"}
	}

	wellKnown := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, &DiscoveryError{Issuer: issuer, Detail: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &DiscoveryError{Issuer: issuer, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &DiscoveryError{Issuer: issuer, StatusCode: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DiscoveryError{Issuer: issuer, StatusCode: resp.StatusCode, Detail: snippet(body)}
	}

	var doc Discovery
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &DiscoveryError{Issuer: issuer, StatusCode: resp.StatusCode, Detail: fmt.Sprintf("malformed document: %v", err)}
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" {
		return nil, &DiscoveryError{Issuer: issuer, StatusCode: resp.StatusCode, Detail: "document missing authorization_endpoint or token_endpoint"}
	}
	return &doc, nil
}

// snippet trims a response body down to something loggable.
func snippet(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max]
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
