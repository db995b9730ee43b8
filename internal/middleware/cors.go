package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// Cors answers preflight requests before any business logic runs and echoes
// the resolved origin only when it is on the allow-list.
func Cors(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			return allowed[origin]
		},
		AllowedMethods:   []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Origin", "X-File-Name", "X-Image-Origin-Url"},
		AllowCredentials: true,
	}).Handler
}
