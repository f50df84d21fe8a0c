package main

import (
	"net/http"
)

// dataLoaderMiddleware gives every request fresh loaders, so results are
// cached for one request only.
func (s *server) dataLoaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithDataLoaders(r.Context(), s.NewDataLoaders(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
