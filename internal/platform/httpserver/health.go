package httpserver

import (
	"context"
	"net/http"
)

// Health returns a liveness handler that pings each configured dependency.
// With no checks it degrades to a static ok, which is all an in-memory
// deploy has to report.
func Health(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
