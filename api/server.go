// File: api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"voting-ledger/service"
)

type APIConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// Server exposes the ledger over HTTP. Transactions go through the queue;
// reads go straight to the ledger.
type Server struct {
	ledger *service.LedgerService
	queue  service.Submitter
	log    zerolog.Logger
}

func NewServer(ledger *service.LedgerService, queue service.Submitter, log zerolog.Logger) *Server {
	return &Server{ledger: ledger, queue: queue, log: log}
}

// Handler builds the gin engine with all routes registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes(r)
	return r
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, cfg APIConfig) error {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverChan := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", cfg.Port).Msg("starting server")
		serverChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
		s.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
