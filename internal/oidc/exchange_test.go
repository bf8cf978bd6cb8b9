package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchanger_Exchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "provider-code", r.PostForm.Get("code"))
		assert.Equal(t, "the-verifier", r.PostForm.Get("code_verifier"))
		assert.Equal(t, "http://localhost:8080/auth/callback", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "client-123", r.PostForm.Get("client_id"))
		assert.Equal(t, "hunter2", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"token_type": "Bearer",
			"access_token": "at-abc",
			"refresh_token": "rt-def",
			"id_token": "idt-ghi",
			"expires_in": 3600,
			"refresh_token_expires_in": 86400,
			"scope": "openid profile email"
		}`))
	}))
	defer srv.Close()

	exchanger := NewExchanger(2 * time.Second)
	resp, err := exchanger.Exchange(context.Background(), ExchangeRequest{
		TokenEndpoint: srv.URL + "/token",
		ClientID:      "client-123",
		ClientSecret:  "hunter2",
		RedirectURI:   "http://localhost:8080/auth/callback",
		Code:          "provider-code",
		CodeVerifier:  "the-verifier",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "at-abc", resp.AccessToken)
	assert.Equal(t, "rt-def", resp.RefreshToken)
	assert.Equal(t, "idt-ghi", resp.IDToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, int64(86400), resp.RefreshTokenExpiresIn)
	assert.Equal(t, []string{"openid", "profile", "email"}, resp.Scopes)
}

func TestExchanger_Exchange_ScopeList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"token_type": "Bearer",
			"access_token": "at-abc",
			"scope": ["openid", "profile"]
		}`))
	}))
	defer srv.Close()

	exchanger := NewExchanger(2 * time.Second)
	resp, err := exchanger.Exchange(context.Background(), ExchangeRequest{
		TokenEndpoint: srv.URL,
		ClientID:      "c",
		Code:          "provider-code",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"openid", "profile"}, resp.Scopes)
}

func TestExchanger_Exchange_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid_grant", "error_description": "Invalid authorization code"}`))
	}))
	defer srv.Close()

	exchanger := NewExchanger(2 * time.Second)
	resp, err := exchanger.Exchange(context.Background(), ExchangeRequest{
		TokenEndpoint: srv.URL,
		ClientID:      "c",
		Code:          "bad-code",
	})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrTokenExchangeFailed)

	var exchErr *ExchangeError
	require.ErrorAs(t, err, &exchErr)
	assert.Equal(t, http.StatusBadRequest, exchErr.StatusCode)
	assert.Equal(t, "invalid_grant", exchErr.Code)
	assert.Equal(t, "Invalid authorization code", exchErr.Description)
}

func TestExchanger_Exchange_Validation(t *testing.T) {
	exchanger := NewExchanger(0)

	_, err := exchanger.Exchange(context.Background(), ExchangeRequest{TokenEndpoint: "https://p/t"})
	assert.Error(t, err)

	_, err = exchanger.Exchange(context.Background(), ExchangeRequest{Code: "c"})
	assert.Error(t, err)
}
