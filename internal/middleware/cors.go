package middleware

import (
	"net/http"
	"strings"
)

// CORSMiddleware applies the configured cross-origin policy.
type CORSMiddleware struct {
	origins  map[string]struct{}
	allowAny bool
}

// NewCORSMiddleware builds the policy from a list of allowed origins.
// Entries are matched exactly after trimming whitespace; a "*" entry allows
// every origin.
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	m := &CORSMiddleware{origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "*":
			m.allowAny = true
		case origin != "":
			m.origins[origin] = struct{}{}
		}
	}
	return m
}

// Handler returns the middleware handler.
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && m.allows(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Max-Age", "600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *CORSMiddleware) allows(origin string) bool {
	if m.allowAny {
		return true
	}
	_, ok := m.origins[origin]
	return ok
}
