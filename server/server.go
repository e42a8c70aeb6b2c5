package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"tombola/service"

	log "github.com/sirupsen/logrus"
)

// acceptPollInterval bounds how long the accept loop can go without checking
// for shutdown.
const acceptPollInterval = time.Second

// Config configures a Server
type Config struct {
	// Port is the TCP port the server listens on
	Port int

	// ListenBacklog bounds how many connections are served concurrently.
	// The kernel accept backlog itself is managed by the net package.
	ListenBacklog int

	// ShutdownTimeout bounds how long shutdown waits for in-flight workers
	ShutdownTimeout time.Duration
}

// Server accepts agency connections and serves one lottery message per
// connection.
type Server struct {
	cfg      Config
	lottery  service.LotteryService
	listener *net.TCPListener
	slots    chan struct{}

	wg sync.WaitGroup

	// connMu guards the active-connection registry, separate from the
	// lottery state lock so registry bookkeeping never blocks dispatch.
	connMu sync.Mutex
	active map[*clientConn]struct{}
}

// New creates a new Server bound to the given lottery coordinator
func New(cfg Config, lottery service.LotteryService) *Server {
	if cfg.ListenBacklog <= 0 {
		cfg.ListenBacklog = 5
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		cfg:     cfg,
		lottery: lottery,
		slots:   make(chan struct{}, cfg.ListenBacklog),
		active:  make(map[*clientConn]struct{}),
	}
}

// Listen binds the listening socket. Failure to bind is the only fatal error
// the server produces.
func (s *Server) Listen() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = ln.(*net.TCPListener)
	log.WithField("addr", s.listener.Addr().String()).Info("server listening")
	return nil
}

// Addr returns the bound listener address. Only valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled, then performs the
// graceful shutdown sweep.
func (s *Server) Serve(ctx context.Context) error {
	defer s.shutdown()

	for {
		// A worker slot is taken before accepting so a full server stops
		// pulling connections off the backlog.
		select {
		case <-ctx.Done():
			return nil
		case s.slots <- struct{}{}:
		}

		conn, err := s.acceptWithDeadline(ctx)
		if err != nil {
			<-s.slots
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Error("failed to accept connection")
			return err
		}
		if conn == nil { // poll timeout
			<-s.slots
			continue
		}

		cc := newClientConn(conn)
		s.addActive(cc)
		log.WithField("ip", cc.RemoteAddr().String()).Info("connection accepted")

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.slots }()
			s.handleConnection(ctx, cc)
		}()
	}
}

// Run binds and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// acceptWithDeadline accepts one connection, waking every poll interval so
// the caller can observe cancellation. A nil connection with nil error means
// the poll timed out.
func (s *Server) acceptWithDeadline(ctx context.Context) (net.Conn, error) {
	if err := s.listener.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
		return nil, fmt.Errorf("failed to set accept deadline: %w", err)
	}
	conn, err := s.listener.Accept()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("accept failed: %w", err)
	}
	return conn, nil
}

// shutdown force-closes every live connection and joins workers with a
// bounded wait.
func (s *Server) shutdown() {
	log.Info("server shutdown in progress")

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			log.WithError(err).Warn("failed to close listener")
		}
	}

	s.connMu.Lock()
	conns := make([]*clientConn, 0, len(s.active))
	for cc := range s.active {
		conns = append(conns, cc)
	}
	s.active = make(map[*clientConn]struct{})
	s.connMu.Unlock()

	for _, cc := range conns {
		if err := cc.Close(); err != nil {
			log.WithError(err).Warn("failed to close client connection")
		}
	}
	if len(conns) > 0 {
		log.WithField("count", len(conns)).Info("closed active connections")
	}

	// Parked winner queries are owned by the coordinator; sweep them too.
	s.lottery.Shutdown()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("server shutdown complete")
	case <-time.After(s.cfg.ShutdownTimeout):
		log.WithField("timeout", s.cfg.ShutdownTimeout).Warn("shutdown timed out waiting for workers")
	}
}

func (s *Server) addActive(cc *clientConn) {
	s.connMu.Lock()
	s.active[cc] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) removeActive(cc *clientConn) {
	s.connMu.Lock()
	delete(s.active, cc)
	s.connMu.Unlock()
}
