package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Server wraps the net/http server with the service's middleware chain.
type Server struct {
	server *http.Server
	config ServerConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string
}

// DefaultServerConfig returns the settings used when config.yaml
// leaves them out.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		Timeout:        30 * time.Second,
		MaxUploadBytes: 16 << 20,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer builds the server with all routes registered.
func NewServer(config ServerConfig) *Server {
	if config.Port == 0 {
		config.Port = DefaultServerConfig().Port
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultServerConfig().Timeout
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = DefaultServerConfig().AllowedOrigins
	}

	mux := http.NewServeMux()
	RegisterHandlers(mux)

	chain := Chain(
		RecoveryMiddleware,
		LoggerMiddleware,
		CORSMiddleware(config.AllowedOrigins),
		TimeoutMiddleware(config.Timeout),
		RequestSizeMiddleware(config.MaxUploadBytes),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
	}
}

// Start blocks serving requests until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	log.Printf("Starting HTTP server on %s", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Println("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
