package oidc

import (
	"fmt"

	"golang.org/x/oauth2"
)

// DefaultScopes are requested when the caller does not override them.
var DefaultScopes = []string{"openid", "profile", "email"}

// AuthorizationRequest holds everything needed to build the provider
// authorization URL. CodeChallenge is the S256 challenge derived from the
// flow's code verifier; when empty, the PKCE parameters are omitted.
type AuthorizationRequest struct {
	AuthorizationEndpoint string
	ClientID              string
	RedirectURI           string
	State                 string
	CodeChallenge         string
	Scopes                []string
}

// BuildAuthorizationURL assembles the authorization endpoint URL with
// client_id, response_type=code, state, scope, redirect_uri and, when a
// code challenge is present, code_challenge_method=S256 and code_challenge.
// Pure construction: no network or storage side effects.
func BuildAuthorizationURL(req AuthorizationRequest) (string, error) {
	if req.AuthorizationEndpoint == "" {
		return "", fmt.Errorf("authorization endpoint cannot be empty")
	}
	if req.ClientID == "" {
		return "", fmt.Errorf("client ID cannot be empty")
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	conf := &oauth2.Config{
		ClientID:    req.ClientID,
		RedirectURL: req.RedirectURI,
		Scopes:      scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL: req.AuthorizationEndpoint,
		},
	}

	var opts []oauth2.AuthCodeOption
	if req.CodeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
			oauth2.SetAuthURLParam("code_challenge", req.CodeChallenge),
		)
	}

	return conf.AuthCodeURL(req.State, opts...), nil
}
