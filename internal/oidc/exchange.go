package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrTokenExchangeFailed indicates the provider rejected or failed the
// authorization-code exchange.
var ErrTokenExchangeFailed = errors.New("token exchange failed")

// ExchangeError preserves the provider's structured OAuth error so callers
// can distinguish invalid_grant from other failures.
type ExchangeError struct {
	StatusCode  int
	Code        string // provider "error" field, e.g. "invalid_grant"
	Description string // provider "error_description" field
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token exchange failed with status %d: %s (%s)", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("token exchange failed with status %d", e.StatusCode)
}

func (e *ExchangeError) Unwrap() error { return ErrTokenExchangeFailed }

// ExchangeRequest carries the parameters of a single code-for-token
// exchange at the provider's token endpoint.
type ExchangeRequest struct {
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	Code          string
	CodeVerifier  string
}

// TokenResponse is the parsed provider token response.
type TokenResponse struct {
	TokenType             string
	AccessToken           string
	RefreshToken          string
	IDToken               string
	ExpiresIn             int64
	RefreshTokenExpiresIn int64
	Scopes                []string
}

// Exchanger redeems authorization codes at the provider token endpoint.
type Exchanger struct {
	client *http.Client
}

// NewExchanger creates an Exchanger whose outbound requests are bounded by
// timeout (DefaultTimeout if zero).
func NewExchanger(timeout time.Duration) *Exchanger {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Exchanger{client: &http.Client{Timeout: timeout}}
}

// Exchange POSTs grant_type=authorization_code with the code, verifier,
// redirect URI and client credentials as a form-encoded body, and parses the
// JSON token response. A non-2xx response yields an *ExchangeError carrying
// the provider's error and error_description.
func (e *Exchanger) Exchange(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, fmt.Errorf("authorization code cannot be empty")
	}
	if req.TokenEndpoint == "" {
		return nil, fmt.Errorf("token endpoint cannot be empty")
	}

	conf := &oauth2.Config{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		RedirectURL:  req.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL: req.TokenEndpoint,
			// Credentials go in the request body, not a Basic auth header.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)

	tok, err := conf.Exchange(ctx, req.Code,
		oauth2.SetAuthURLParam("code_verifier", req.CodeVerifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			exchErr := &ExchangeError{
				Code:        retrieveErr.ErrorCode,
				Description: retrieveErr.ErrorDescription,
			}
			if retrieveErr.Response != nil {
				exchErr.StatusCode = retrieveErr.Response.StatusCode
			}
			return nil, exchErr
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	resp := &TokenResponse{
		TokenType:             tok.TokenType,
		AccessToken:           tok.AccessToken,
		RefreshToken:          tok.RefreshToken,
		IDToken:               extraString(tok, "id_token"),
		ExpiresIn:             extraInt(tok, "expires_in"),
		RefreshTokenExpiresIn: extraInt(tok, "refresh_token_expires_in"),
		Scopes:                extraScopes(tok),
	}
	return resp, nil
}

func extraString(tok *oauth2.Token, key string) string {
	if v, ok := tok.Extra(key).(string); ok {
		return v
	}
	return ""
}

func extraInt(tok *oauth2.Token, key string) int64 {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// extraScopes normalizes the provider's scope field, which may be a single
// space-separated string or already a list.
func extraScopes(tok *oauth2.Token) []string {
	switch v := tok.Extra("scope").(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		scopes := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	}
	return nil
}
