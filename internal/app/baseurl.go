package app

import "net/http"

// requestBaseURL reconstructs the scheme://host[:port] prefix of the
// incoming request, e.g. "https://example.com:3000". The provider-facing
// redirect URI is derived from it, so the broker works unchanged behind any
// hostname it is deployed under.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
