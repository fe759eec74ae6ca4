package routing

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/km-arc/go-bootstrap/framework/logging"
)

// DefaultShutdownTimeout bounds how long Dispose waits for in-flight requests.
const DefaultShutdownTimeout = 10 * time.Second

// Server serves a handler as a long-running service. Start binds the
// listener and returns; requests are served in the background until the
// server is disposed.
type Server struct {
	srv     *http.Server
	addr    string
	timeout time.Duration
	log     *logging.NamedLogger

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
	closed   bool
}

// NewServer creates a server for h listening on addr (e.g. ":8000").
func NewServer(addr string, h http.Handler, log *logging.NamedLogger) *Server {
	if log == nil {
		log = logging.GetOrCreate(logging.NameOf[Server]())
	}
	return &Server{
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		addr:    addr,
		timeout: DefaultShutdownTimeout,
		log:     log,
	}
}

// Start binds the listener. Bind failures are returned; serve failures are
// logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return http.ErrServerClosed
	}
	if s.listener != nil {
		return errors.New("server already started on " + s.listener.Addr().String())
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.ErrorWith(context.Background(), err, "HTTP server failed")
		}
	}()

	s.log.Info(ctx, "Listening on "+ln.Addr().String())
	return nil
}

// Addr is the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Dispose shuts the server down gracefully. It is safe to call more than once.
func (s *Server) Dispose() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	<-done
	s.log.Info(ctx, "HTTP server stopped")
	return err
}
