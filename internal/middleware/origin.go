package middleware

import (
	"net/http"
	"strings"

	"github.com/slonweiss/node-proxy/internal/ctxkeys"
)

// ResolveOrigin resolves the caller origin for provenance tracking: an
// explicit X-Origin override wins, then the standard Origin header, then a
// prefix match of the Referer. The result goes into the request context only
// when it is on the allow-list; everything else resolves to "".
func ResolveOrigin(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := resolve(r, allowedOrigins)
			next.ServeHTTP(w, r.WithContext(ctxkeys.WithOrigin(r.Context(), origin)))
		})
	}
}

func resolve(r *http.Request, allowed []string) string {
	candidates := []string{
		strings.TrimSpace(r.Header.Get("X-Origin")),
		strings.TrimSpace(r.Header.Get("Origin")),
	}

	for _, candidate := range candidates {
		candidate = strings.TrimSuffix(candidate, "/")
		for _, a := range allowed {
			if candidate == a {
				return a
			}
		}
	}

	if referer := strings.TrimSpace(r.Header.Get("Referer")); referer != "" {
		for _, a := range allowed {
			if strings.HasPrefix(referer, a) {
				return a
			}
		}
	}

	return ""
}
