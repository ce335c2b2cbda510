package api

import (
	"net/http"
	"slices"
)

const (
	corsMethods = "GET,POST,PUT,DELETE,OPTIONS"
	corsHeaders = "Content-Type,Authorization"
	corsMaxAge  = "86400"
)

// CORSMiddleware adds CORS headers to every response. The request Origin is
// echoed when it is allowed; otherwise the first allowed origin is sent, or
// "*" when the list is empty. OPTIONS preflights are answered with 204.
func CORSMiddleware(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin(allowed, r.Header.Get("Origin")))
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Max-Age", corsMaxAge)
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowOrigin(allowed []string, origin string) string {
	if origin != "" && slices.Contains(allowed, origin) {
		return origin
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return "*"
}
