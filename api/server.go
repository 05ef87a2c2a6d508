package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudgate/s3gw/internal/helper"
)

// Server wraps the http.Server the S3 API listens on, grounded in the
// teacher's api.Server/Stop pair but holding a real *http.Server instead
// of a package-global so cmd/s3gw can own its lifecycle explicitly.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a Server bound to addr, serving h wrapped in the
// access-log middleware.
func NewServer(addr string, h *Handlers) *Server {
	router := NewRouter(h)
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      SetLogHandler(router),
			ReadTimeout:  time.Minute,
			WriteTimeout: time.Minute,
		},
	}
}

// ListenAndServe blocks serving the API until Stop is called or the
// listener fails.
func (s *Server) ListenAndServe() error {
	helper.Logln("API server listening on", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully drains in-flight requests before returning.
func (s *Server) Stop(ctx context.Context) {
	helper.Logln("stopping API server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		helper.Logln("API server shutdown error:", err)
	}
	helper.Logln("done")
}
