package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"authbroker-go/internal/auth"
	"authbroker-go/internal/metrics"
	"authbroker-go/internal/oidc"
	"authbroker-go/internal/storage"
)

//
// Flow Handlers
//

// handleLogin initiates the authorization flow: it persists a verification
// request and returns the provider authorization URL as JSON.
func (a *Application) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	returnURL := r.URL.Query().Get("return_url")

	result, err := a.Broker.Login(r.Context(), requestBaseURL(r), returnURL)
	if err != nil {
		a.Logger.Printf("login error: %v", err)
		metrics.Logins.WithLabelValues("error").Inc()
		switch {
		case errors.Is(err, oidc.ErrDiscoveryUnavailable):
			writeError(w, http.StatusBadGateway, "Provider discovery failed")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to store verification")
		}
		return
	}

	metrics.Logins.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, result)
}

// handleCallback handles the redirect from the provider. On success it
// writes a session code row and sends the browser back to the client
// application's return URL with the code attached.
func (a *Application) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()
	redirect, err := a.Broker.Callback(r.Context(), requestBaseURL(r),
		q.Get("code"), q.Get("state"), q.Get("error"), q.Get("error_description"))
	if err != nil {
		a.Logger.Printf("callback error: %v", err)
		switch {
		case errors.Is(err, auth.ErrProviderDenied):
			metrics.Callbacks.WithLabelValues("provider_denied").Inc()
			writeError(w, http.StatusBadRequest, "Provider denied authorization")
		case errors.Is(err, auth.ErrVerificationNotFound):
			metrics.Callbacks.WithLabelValues("verification_not_found").Inc()
			writeError(w, http.StatusNotFound, "Verification not found")
		case errors.Is(err, oidc.ErrDiscoveryUnavailable), errors.Is(err, oidc.ErrTokenExchangeFailed):
			metrics.Callbacks.WithLabelValues("exchange_failed").Inc()
			writeError(w, http.StatusBadGateway, "Token exchange failed")
		default:
			metrics.Callbacks.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, "Failed to store session code")
		}
		return
	}

	metrics.Callbacks.WithLabelValues("success").Inc()
	http.Redirect(w, r, redirect, http.StatusFound)
}

// handleToken redeems a session code for its access token. The code comes
// from the JSON body (either {"code": "..."} or a bare string); the query
// parameter is a fallback. Redemption is single-use.
func (a *Application) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	code := extractCode(r)
	if code == "" {
		metrics.Redemptions.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "Code is required")
		return
	}

	result, err := a.Broker.Redeem(r.Context(), code)
	if err != nil {
		a.Logger.Printf("token redemption error: %v", err)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			metrics.Redemptions.WithLabelValues("not_found").Inc()
			writeError(w, http.StatusNotFound, "Session code not found")
		case errors.Is(err, storage.ErrAlreadyRedeemed):
			metrics.Redemptions.WithLabelValues("already_redeemed").Inc()
			writeError(w, http.StatusBadRequest, "Code already redeemed")
		case errors.Is(err, storage.ErrExpired):
			metrics.Redemptions.WithLabelValues("expired").Inc()
			writeError(w, http.StatusBadRequest, "Code has expired")
		default:
			metrics.Redemptions.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, "Failed to redeem code")
		}
		return
	}

	metrics.Redemptions.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, result)
}

// handleHealth reports liveness, including a database ping.
func (a *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Ping(r.Context()); err != nil {
		a.Logger.Printf("health check failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extractCode pulls the session code out of the request: a JSON object
// body's "code" field, a bare JSON string body, or the "code" query
// parameter, in that order of precedence.
func extractCode(r *http.Request) string {
	var body interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		switch v := body.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			if code, ok := v["code"].(string); ok && code != "" {
				return code
			}
		}
	}
	return r.URL.Query().Get("code")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
