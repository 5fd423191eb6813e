// Package httpserver keeps the gateway's HTTP server timeout policy in
// one place.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

// ShutdownTimeout bounds how long a draining server waits for in-flight
// admissions before giving up.
const ShutdownTimeout = 10 * time.Second

// New builds the gateway's HTTP server. ReadHeaderTimeout guards against
// slow-header clients. No overall write timeout: upstream completions can
// take tens of seconds.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Shutdown drains srv, waiting at most ShutdownTimeout.
func Shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
