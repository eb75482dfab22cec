package runtime

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/R3E-Network/opxpress/internal/app/system"
	"github.com/R3E-Network/opxpress/internal/logging"
)

// httpServer runs the API listener as a lifecycle service.
type httpServer struct {
	srv  *http.Server
	log  *logging.Logger
	errs chan error

	mu   sync.Mutex
	addr string
}

var _ system.Service = (*httpServer)(nil)

func newHTTPServer(addr string, handler http.Handler, log *logging.Logger) *httpServer {
	return &httpServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		log:  log,
		errs: make(chan error, 1),
	}
}

func (s *httpServer) Name() string { return "http" }

// Start binds the listener synchronously so a bad address fails Start, then
// serves in the background.
func (s *httpServer) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.log.WithField("addr", s.addr).Info("HTTP server listening")
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
	}()
	return nil
}

func (s *httpServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Addr is the bound address once started.
func (s *httpServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
