package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// ShutdownTimeout bounds how long Run waits for in-flight scrapes.
const ShutdownTimeout = time.Second

// Server serves a Collector on /metrics.
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Listen binds addr for serving c. Serving starts with Run.
func Listen(addr string, c *Collector) (*Server, error) {
	h, err := Handler(c)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	return &Server{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run implements framework.Runnable. It serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.listener) }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := s.srv.Shutdown(shutCtx)
	<-errCh
	return err
}

// Close stops serving, also when Run was never called.
func (s *Server) Close() error {
	err := s.srv.Close()
	if e := s.listener.Close(); e != nil && !errors.Is(e, net.ErrClosed) && err == nil {
		err = e
	}
	return err
}
