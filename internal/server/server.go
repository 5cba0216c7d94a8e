// Package server is the web gateway: it serves the built UI in history mode
// and forwards API prefixes to the backends.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pt-nexus/webgate/internal/config"
	"github.com/pt-nexus/webgate/internal/proxy"
	"github.com/pt-nexus/webgate/internal/router"
)

const indexFile = "index.html"

// Server represents the HTTP gateway
type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  zerolog.Logger
	proxy   *proxy.Proxy
	routes  *router.Table
	version string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	rules := proxy.DefaultRules(cfg.Proxy)
	p, err := proxy.New(rules, zlog.With().Str("component", "proxy").Logger())
	if err != nil {
		return nil, err
	}

	for _, rule := range p.Rules() {
		zlog.Info().
			Str("prefix", rule.Prefix).
			Str("target", rule.Target).
			Bool("strip_prefix", rule.StripPrefix).
			Msg("Proxy rule")
	}

	server := &Server{
		config:  cfg,
		logger:  zlog,
		proxy:   p,
		routes:  router.NewTable(router.DefaultRoutes()),
		version: version,
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	// CORS middleware
	if len(s.config.Server.CORSOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length", headerRequestID},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// Proxy prefixes may nest (/api, /api/auth) and gin catch-alls cannot
	// overlap; everything else is dispatched from NoRoute.
	s.router.NoRoute(s.dispatch)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "online",
		"timestamp":    time.Now().UTC(),
		"service":      "webgate",
		"version":      s.version,
		"proxy_target": s.config.Proxy.Target,
	})
}

// dispatch forwards proxied prefixes, serves static files and falls back to
// index.html for paths in the route table.
func (s *Server) dispatch(c *gin.Context) {
	reqPath := c.Request.URL.Path

	if _, ok := s.proxy.Match(reqPath); ok {
		s.proxy.ServeHTTP(c.Writer, c.Request)
		return
	}

	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		respondWithError(c, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if file, ok := s.staticFile(reqPath); ok {
		c.File(file)
		return
	}

	if _, ok := s.routes.Match(reqPath); ok {
		index := filepath.Join(s.config.Server.StaticDir, indexFile)
		if _, err := os.Stat(index); err != nil {
			s.logger.Error().Err(err).Str("path", index).Msg("UI index missing")
			respondWithError(c, http.StatusServiceUnavailable, "UI not built")
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.File(index)
		return
	}

	respondWithError(c, http.StatusNotFound, "not found")
}

// staticFile maps a request path onto a regular file inside the UI directory
func (s *Server) staticFile(reqPath string) (string, bool) {
	clean := path.Clean("/" + reqPath)
	if clean == "/" {
		return "", false
	}

	file := filepath.Join(s.config.Server.StaticDir, filepath.FromSlash(clean))
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return "", false
	}
	return file, true
}

// Handler returns the gateway's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       300 * time.Second,
		// No Read/WriteTimeout: proxied batch operations can run for minutes
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Server.Listen).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Error().Err(err).Msg("HTTP server error")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
