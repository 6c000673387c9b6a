package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server hosting the flow API. Write and idle timeouts
// stay generous because a submit can block on a backend data write.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
