package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"integctl/pkg/logging"
)

// Config configures the HTTP listener.
type Config struct {
	Host    string
	Port    int
	Version string
}

// Server serves the tools over SSE and, when set, metrics on /metrics.
type Server struct {
	config  Config
	tools   *Tools
	metrics http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	done       chan struct{}
}

// NewServer creates a server. metrics may be nil.
func NewServer(config Config, tools *Tools, metrics http.Handler) *Server {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	return &Server{config: config, tools: tools, metrics: metrics}
}

// Handler builds the HTTP handler: SSE and message endpoints plus metrics.
func (s *Server) Handler(baseURL string) http.Handler {
	mcpServer := server.NewMCPServer(
		"integctl",
		s.config.Version,
		server.WithToolCapabilities(true),
	)
	mcpServer.AddTools(s.tools.ServerTools()...)

	sseServer := server.NewSSEServer(
		mcpServer,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)

	mux := http.NewServeMux()
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	mux.Handle("/", sseServer)
	return mux
}

// Start listens and serves in the background. Port 0 picks a free port;
// Addr reports the bound address.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	baseURL := "http://" + ln.Addr().String()
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.Handler(baseURL), ReadHeaderTimeout: 10 * time.Second}
	s.done = make(chan struct{})

	httpServer, done := s.httpServer, s.done
	go func() {
		defer close(done)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("MCP", err, "Server error")
		}
	}()
	logging.Info("MCP", "Serving MCP tools on %s/sse", baseURL)
	return nil
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer, done := s.httpServer, s.done
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()
	if httpServer == nil {
		return errors.New("server not started")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	<-done
	return err
}
