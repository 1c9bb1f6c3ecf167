package web

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/cjeanneret/TeleGo/internal/metrics"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
	metrics  *metrics.Collector
}

// NewServer creates a server configured for the given address and dependencies.
// col may be nil, in which case /metrics serves the default registry.
func NewServer(addr string, broadcaster *StatusBroadcaster, runGoto RunGotoFunc, position PositionFunc, formDefaults FormConfig, col *metrics.Collector) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	handlers := NewHandlers(broadcaster, runGoto, position, formDefaults, subFS)

	return &Server{
		addr:     addr,
		handlers: handlers,
		metrics:  col,
	}
}

// SetJog enables POST /jog with fn. Without it the route answers 503.
func (s *Server) SetJog(fn JogFunc) {
	s.handlers.Jog = fn
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /goto", s.handlers.HandleGoto)
	mux.HandleFunc("POST /stop", s.handlers.HandleStop)
	mux.HandleFunc("POST /jog", s.handlers.HandleJog)
	mux.HandleFunc("GET /position", s.handlers.HandlePosition)
	mux.HandleFunc("GET /config", s.handlers.HandleConfig)
	mux.HandleFunc("GET /status/stream", s.handlers.HandleStatusStream)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.handlers.staticFS))))
	mux.HandleFunc("GET /{$}", s.handlers.ServeIndex) // exact match for root only

	return s.metrics.Middleware(mux)
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then stops any
// active slew and shuts down. Open status streams are closed first, so
// shutdown does not wait on them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	baseCtx, closeStreams := context.WithCancel(context.Background())
	defer closeStreams()

	srv := &http.Server{
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(closeStreams)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.handlers.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
