package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// newRouter mounts the webhook handler at path for every method so the relay
// answers non-POST requests itself.
func newRouter(path string, webhook http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(forwardRequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle(path, webhook)

	return r
}

// forwardRequestID copies the id assigned by middleware.RequestID onto the
// request header read by the relay.
func forwardRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(middleware.RequestIDHeader) == "" {
			if id := middleware.GetReqID(r.Context()); id != "" {
				r.Header.Set(middleware.RequestIDHeader, id)
			}
		}
		next.ServeHTTP(w, r)
	})
}
