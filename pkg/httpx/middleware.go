// Package httpx provides the HTTP plumbing shared by the identity service:
// middleware chaining, JSON responses, and per-key rate limiting.
package httpx

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to h as an explicit ordered pipeline. The first
// middleware listed is the outermost, so it runs first on the way in:
//
//	Chain(h, logging, authn, ratelimit)
//
// serves logging -> authn -> ratelimit -> h. Each middleware either calls
// its next handler or terminates the request itself.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
