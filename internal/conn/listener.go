package conn

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/coreswitch/pbx/internal/pbx"
)

// Server accepts client connections and spins up a Session for each one.
// It is the "TCP listen/accept loop" the spec treats as an external
// collaborator of the core — its entire contract with the coordinator is
// register/unregister plus one command call per parsed line.
type Server struct {
	addr        string
	coordinator *pbx.Coordinator
	logger      *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer builds a connection server that will listen on addr.
func NewServer(addr string, coordinator *pbx.Coordinator, logger *slog.Logger) *Server {
	return &Server{
		addr:        addr,
		coordinator: coordinator,
		logger:      logger.With("subsystem", "conn-server"),
	}
}

// Run listens on s.addr and accepts connections until ctx is canceled or
// the listener fails. Each accepted connection is served in its own
// goroutine; Run waits for all of them to finish (they unblock once
// their sink is closed, either by their own client or by a registry
// shutdown) before returning.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		l := s.listener
		s.mu.Unlock()
		if l != nil {
			l.Close()
		}
	}()

	s.logger.Info("listening for client connections", "addr", s.addr)

	for {
		c, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			NewSession(c, s.coordinator, s.logger).Serve()
		}()
	}
}
