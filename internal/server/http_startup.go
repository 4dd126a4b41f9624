package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"atsmatch/internal/embedding"
	"atsmatch/internal/observability"
)

// observable is implemented by embedding services that report provider calls
type observable interface {
	SetObserver(o embedding.Observer)
}

// Start runs the HTTP server until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	om, err := s.initializeObservability()
	if err != nil {
		return err
	}
	defer s.shutdownObservability(om)

	s.wireObservability(om)

	watcher, err := s.startCatalogWatcher(om)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	httpServer := s.setupHTTPServer(om)
	s.displayServerInfo()

	return s.startWithGracefulShutdown(ctx, httpServer)
}

// initializeObservability sets up observability components
func (s *Server) initializeObservability() (*observability.Manager, error) {
	om, err := observability.NewManager(observability.SettingsFromConfig(s.AppConfig, s.Version), s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return om, nil
}

// wireObservability connects match and embedding events to the metrics
func (s *Server) wireObservability(om *observability.Manager) {
	if s.Matcher != nil {
		s.Matcher.SetRecorder(om)
	}
	if o, ok := s.Embeddings.(observable); ok {
		o.SetObserver(om)
	}
}

// shutdownObservability handles observability cleanup
func (s *Server) shutdownObservability(om *observability.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// startCatalogWatcher reloads the suggestion catalog when its file changes.
// It returns nil when watching is not configured.
func (s *Server) startCatalogWatcher(om *observability.Manager) (*CatalogWatcher, error) {
	if s.Catalog == nil || s.Catalog.Path() == "" || s.AppConfig == nil || !s.AppConfig.Matching.WatchSuggestions {
		return nil, nil
	}

	watcher := NewCatalogWatcher(s.Catalog.Path(), time.Second, func() {
		err := s.Catalog.Reload()
		om.RecordCatalogReload(context.Background(), err)
		if err != nil {
			s.Logger.LogError(err, "Failed to reload suggestion catalog, keeping previous entries")
			return
		}
		s.Logger.Info("Suggestion catalog reloaded", "entries", len(s.Catalog.Catalog()))
	}, s.Logger)

	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to start catalog watcher: %w", err)
	}
	return watcher, nil
}

// Handler returns the routed, instrumented handler
func (s *Server) Handler(om *observability.Manager) http.Handler {
	return om.HTTPMiddleware()(s.setupRoutes(om))
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer(om *observability.Manager) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(s.Host, s.Port),
		Handler:      s.Handler(om),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// startWithGracefulShutdown serves until ctx is done or the listener fails
func (s *Server) startWithGracefulShutdown(ctx context.Context, server *http.Server) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.cleanupRateLimiter()
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown drains in-flight requests within ShutdownTimeout
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	s.cleanupRateLimiter()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
