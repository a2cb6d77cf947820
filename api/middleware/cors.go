package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// Local web and Expo dev servers, used when no origins are configured.
var devOrigins = []string{"http://localhost:3000", "http://localhost:19006"}

func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = devOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, IdempotentReplayHeader},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
