package main

import (
	"net/http"
)

// POST /me/ping keeps the caller online. authenticate already touched
// last_online, so there is nothing left to do.
func (s *server) mePingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}
