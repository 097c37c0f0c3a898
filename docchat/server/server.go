// Package server exposes sessions over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/docchat/docchat/session"
)

// maxUploadFiles caps the number of parts accepted in one upload request.
const maxUploadFiles = 10

// Options configures the HTTP surface.
type Options struct {
	Mode           string        // gin mode; empty keeps the current one
	Model          string        // reported by /health
	MaxUploadBytes int64         // per file
	OCR            bool          // image text recognition compiled in; reported by /health
	SessionIdle    time.Duration // sessions unused this long are dropped while Run serves; 0 disables
}

// Server routes HTTP requests to sessions.
type Server struct {
	sessions *session.Manager
	opts     Options
	logger   zerolog.Logger
	engine   *gin.Engine
}

// New builds the router.
func New(sessions *session.Manager, opts Options, logger zerolog.Logger) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	s := &Server{
		sessions: sessions,
		opts:     opts,
		logger:   logger,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger(logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)

	api := s.engine.Group("/api")
	{
		api.POST("/sessions", s.createSession)

		sess := api.Group("/sessions/:id", s.loadSession)
		{
			sess.GET("", s.getSession)
			sess.DELETE("", s.deleteSession)
			sess.PUT("/username", s.setUsername)
			sess.DELETE("/username", s.clearUsername)
			sess.GET("/messages", s.listMessages)
			sess.POST("/messages", s.sendMessage)
			sess.POST("/uploads", s.upload)
			sess.POST("/reset", s.reset)
		}
	}
}

// Handler returns the router for use with httptest or a custom http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.opts.SessionIdle > 0 {
		go s.pruneSessions(ctx, s.opts.SessionIdle)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// requestLogger logs one line per request through zerolog.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// pruneSessions drops idle sessions until ctx is done.
func (s *Server) pruneSessions(ctx context.Context, idle time.Duration) {
	every := idle / 4
	if every < time.Minute {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sessions.PruneIdle(now.Add(-idle))
		}
	}
}
