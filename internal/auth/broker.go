// Package auth implements the authorization-code-with-PKCE brokering flow:
// login initiation, provider callback handling and one-time session code
// redemption.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"authbroker-go/internal/oidc"
	"authbroker-go/internal/storage"
)

const (
	// DefaultSessionCodeTTL is how long a session code stays redeemable.
	DefaultSessionCodeTTL = 5 * time.Minute
	// DefaultReturnURL receives the browser when no return URL was stored.
	DefaultReturnURL = "http://localhost:3000"
	// CallbackPath is appended to the request base URL to form the redirect
	// URI registered with the provider.
	CallbackPath = "/auth/callback"
)

var (
	// ErrVerificationNotFound is returned when a callback arrives with a
	// state no login ever issued, or one the sweeper already purged.
	ErrVerificationNotFound = errors.New("verification not found")
	// ErrProviderDenied is returned when the provider redirected back with
	// an error instead of an authorization code.
	ErrProviderDenied = errors.New("provider denied authorization")
)

// ProviderDeniedError carries the provider's error and error_description
// callback parameters.
type ProviderDeniedError struct {
	Code        string
	Description string
}

func (e *ProviderDeniedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider denied authorization: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("provider denied authorization: %s", e.Code)
}

func (e *ProviderDeniedError) Unwrap() error { return ErrProviderDenied }

// VerificationStore persists the state -> code verifier binding created at
// login time.
type VerificationStore interface {
	CreateVerification(ctx context.Context, state, codeVerifier, returnURL string) error
	GetVerification(ctx context.Context, state string) (*storage.VerificationRequest, error)
}

// SessionCodeStore persists session codes and serves single redemption.
type SessionCodeStore interface {
	CreateCode(ctx context.Context, code, accessToken string, expiresAt int64) error
	RedeemCode(ctx context.Context, code string, now time.Time) (accessToken string, expiresAt int64, err error)
}

// DiscoveryResolver resolves a provider's openid-configuration document.
type DiscoveryResolver interface {
	Resolve(ctx context.Context, issuer string) (*oidc.Discovery, error)
}

// TokenExchanger redeems an authorization code at the provider.
type TokenExchanger interface {
	Exchange(ctx context.Context, req oidc.ExchangeRequest) (*oidc.TokenResponse, error)
}

// Broker drives the three-phase flow. It holds no per-request state between
// operations: every request re-reads the store, so any number of broker
// processes can run behind a load balancer against a shared database.
type Broker struct {
	issuer       string
	clientID     string
	clientSecret string
	scopes       []string
	codeTTL      time.Duration

	pkce          *PKCEGenerator
	verifications VerificationStore
	codes         SessionCodeStore
	discovery     DiscoveryResolver
	exchanger     TokenExchanger
	logger        *log.Logger

	now func() time.Time
}

// BrokerConfig collects the Broker's collaborators and settings.
type BrokerConfig struct {
	Issuer         string
	ClientID       string
	ClientSecret   string
	Scopes         []string
	SessionCodeTTL time.Duration

	Verifications VerificationStore
	Codes         SessionCodeStore
	Discovery     DiscoveryResolver
	Exchanger     TokenExchanger
	Logger        *log.Logger
}

// NewBroker creates a Broker.
func NewBroker(cfg BrokerConfig) (*Broker, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("issuer cannot be empty")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID cannot be empty")
	}
	if cfg.Verifications == nil || cfg.Codes == nil || cfg.Discovery == nil || cfg.Exchanger == nil {
		return nil, fmt.Errorf("all broker collaborators must be set")
	}

	ttl := cfg.SessionCodeTTL
	if ttl <= 0 {
		ttl = DefaultSessionCodeTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Broker{
		issuer:        cfg.Issuer,
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		scopes:        cfg.Scopes,
		codeTTL:       ttl,
		pkce:          NewPKCEGenerator(),
		verifications: cfg.Verifications,
		codes:         cfg.Codes,
		discovery:     cfg.Discovery,
		exchanger:     cfg.Exchanger,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// LoginResult is returned to the client application so it can send the
// browser to the provider.
type LoginResult struct {
	URL          string `json:"url"`
	ReturnURL    string `json:"returnUrl,omitempty"`
	CodeVerifier string `json:"codeVerifier"`
	State        string `json:"state"`
}

// Login resolves discovery, generates a PKCE pair, persists the
// verification request and builds the provider authorization URL.
func (b *Broker) Login(ctx context.Context, baseURL, returnURL string) (*LoginResult, error) {
	disc, err := b.discovery.Resolve(ctx, b.issuer)
	if err != nil {
		return nil, err
	}

	codeVerifier, state, err := b.pkce.GeneratePair()
	if err != nil {
		return nil, err
	}

	if err := b.verifications.CreateVerification(ctx, state, codeVerifier, returnURL); err != nil {
		return nil, err
	}

	challenge, err := b.pkce.GenerateCodeChallenge(codeVerifier)
	if err != nil {
		return nil, err
	}

	authURL, err := oidc.BuildAuthorizationURL(oidc.AuthorizationRequest{
		AuthorizationEndpoint: disc.AuthorizationEndpoint,
		ClientID:              b.clientID,
		RedirectURI:           redirectURI(baseURL),
		State:                 state,
		CodeChallenge:         challenge,
		Scopes:                b.scopes,
	})
	if err != nil {
		return nil, err
	}

	b.logger.Printf("login: issued state for return_url=%q", returnURL)

	return &LoginResult{
		URL:          authURL,
		ReturnURL:    returnURL,
		CodeVerifier: codeVerifier,
		State:        state,
	}, nil
}

// Callback validates the provider redirect, exchanges the authorization
// code for tokens and stashes the access token under a session code keyed
// by the provider's own code value. It returns the URL the browser should
// be redirected to, with the code appended as a query parameter.
func (b *Broker) Callback(ctx context.Context, baseURL, code, state, providerErr, providerErrDesc string) (string, error) {
	if providerErr != "" {
		return "", &ProviderDeniedError{Code: providerErr, Description: providerErrDesc}
	}
	if code == "" || state == "" {
		return "", fmt.Errorf("%w: missing code or state", ErrVerificationNotFound)
	}

	disc, err := b.discovery.Resolve(ctx, b.issuer)
	if err != nil {
		return "", err
	}

	verification, err := b.verifications.GetVerification(ctx, state)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: unknown state", ErrVerificationNotFound)
		}
		return "", err
	}

	tokenResp, err := b.exchanger.Exchange(ctx, oidc.ExchangeRequest{
		TokenEndpoint: disc.TokenEndpoint,
		ClientID:      b.clientID,
		ClientSecret:  b.clientSecret,
		RedirectURI:   redirectURI(baseURL),
		Code:          code,
		CodeVerifier:  verification.Value,
	})
	if err != nil {
		return "", err
	}

	expiresAt := b.now().Add(b.codeTTL).Unix()
	if err := b.codes.CreateCode(ctx, code, tokenResp.AccessToken, expiresAt); err != nil {
		return "", err
	}

	b.logger.Printf("callback: exchanged code, session expires at %d", expiresAt)

	return appendCode(verification.ReturnURL, code)
}

// RedemptionResult is the payload handed back to the client application.
type RedemptionResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Redeem exchanges a session code for its access token. The code is marked
// redeemed atomically with the read; a second redemption fails with
// storage.ErrAlreadyRedeemed and a late one with storage.ErrExpired.
func (b *Broker) Redeem(ctx context.Context, code string) (*RedemptionResult, error) {
	accessToken, expiresAt, err := b.codes.RedeemCode(ctx, code, b.now())
	if err != nil {
		return nil, err
	}
	return &RedemptionResult{AccessToken: accessToken, ExpiresIn: expiresAt}, nil
}

// redirectURI derives the provider-facing redirect URI from the incoming
// request's base URL.
func redirectURI(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + CallbackPath
}

// appendCode attaches the session code to the client application's return
// URL, falling back to DefaultReturnURL when none was stored.
func appendCode(returnURL, code string) (string, error) {
	target := returnURL
	if target == "" {
		target = DefaultReturnURL
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid return URL: %w", err)
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
