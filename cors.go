package main

import (
	"net/http"

	"github.com/go-chi/cors"
)

// The backend needs Cross-Origin Resource Sharing to function with the frontend in modern browsers.
// Only the configured origins get the CORS headers; preflights are answered here.
func withCORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
