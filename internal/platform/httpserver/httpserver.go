package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with timeouts suited to partner webhooks and
// operator calls. WriteTimeout covers a full routing run with retries.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
