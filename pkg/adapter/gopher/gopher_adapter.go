package gopher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/burrow/internal/logger"
	"github.com/marmos91/burrow/internal/ratelimiter"
	"github.com/marmos91/burrow/internal/workerpool"
	"github.com/marmos91/burrow/pkg/fsroot"
	"github.com/marmos91/burrow/pkg/menu"
	"github.com/marmos91/burrow/pkg/metrics"
	"github.com/spf13/afero"
)

// GopherAdapter implements the adapter.Adapter interface for the Gopher
// protocol.
//
// Architecture:
// A single accept loop owns the TCP listener. Every accepted connection is
// wrapped in a GopherConnection and submitted to a fixed-size worker pool, so
// at most Workers connections are being served at any instant while the
// accept loop itself never blocks on a busy pool. Connections beyond that
// wait in the pool queue in arrival order.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. Pool closed: queued connections are still served, then workers exit
//  4. If draining exceeds ShutdownTimeout, remaining sockets are force-closed
//
// Thread safety:
// All methods are safe for concurrent use. Shutdown is idempotent.
type GopherAdapter struct {
	config GopherConfig

	fs       afero.Fs
	resolver *fsroot.Resolver
	builder  *menu.Builder

	metrics metrics.GopherMetrics
	limiter *ratelimiter.RateLimiter

	// mu guards listener and pool, which are created by Serve.
	mu       sync.Mutex
	listener net.Listener
	pool     *workerpool.Pool

	// boundPort is the actual listening port once Serve has bound.
	boundPort atomic.Int32

	// ready is closed once the listener is bound (or binding failed).
	ready     chan struct{}
	readyOnce sync.Once

	shutdownOnce sync.Once
	shutdown     chan struct{}

	// shutdownCtx is cancelled during shutdown to release the admission
	// limiter and the metrics logger.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// drained is closed once the pool has served every queued connection.
	drainOnce sync.Once
	drained   chan struct{}

	// connCount counts accepted connections not yet closed, queued or active.
	connCount atomic.Int32

	// activeConnections maps connection ID to net.Conn for forced closure.
	activeConnections sync.Map
}

// New creates a GopherAdapter in a stopped state.
//
// Call SetFilesystem() before Serve(). Zero values in config are replaced
// with defaults. Returns an error if the configuration is invalid; an
// invalid worker count is reported as a *workerpool.ConfigError.
func New(config GopherConfig, gopherMetrics metrics.GopherMetrics) (*GopherAdapter, error) {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid Gopher config: %w", err)
	}

	if gopherMetrics == nil {
		gopherMetrics = metrics.NewNoopGopherMetrics()
	}

	limiter := ratelimiter.New(config.ConnectionsPerSecond, config.ConnectionBurst)
	if limiter.Unlimited() {
		logger.Debug("Gopher connection admission: unlimited")
	} else {
		logger.Debug("Gopher connection admission: %.2f/s burst %d", limiter.Limit(), limiter.Burst())
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &GopherAdapter{
		config:         config,
		metrics:        gopherMetrics,
		limiter:        limiter,
		ready:          make(chan struct{}),
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
		drained:        make(chan struct{}),
	}, nil
}

// SetFilesystem injects the filesystem served under config.Root.
//
// Called exactly once before Serve(), no synchronization needed.
func (s *GopherAdapter) SetFilesystem(fsys afero.Fs) {
	s.fs = fsys
	s.resolver = fsroot.NewResolver(fsys, s.config.Root)
	logger.Debug("Gopher filesystem configured: root=%s", s.resolver.Root())
}

// Serve binds the listener and accepts connections until ctx is cancelled
// or Stop is called.
//
// Returns:
//   - a *BindError if the listener cannot be created
//   - nil once every connection has been served after shutdown
//   - an error if shutdown had to force-close connections
//
// Serve should only be called once per GopherAdapter.
func (s *GopherAdapter) Serve(ctx context.Context) error {
	defer s.markReady()

	if s.resolver == nil {
		return errors.New("gopher adapter: filesystem not set")
	}

	pool, err := workerpool.New(s.config.Workers)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress())
	if err != nil {
		pool.Close()
		return &BindError{Address: s.config.ListenAddress(), Err: err}
	}

	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.boundPort.Store(int32(tcpAddr.Port))
	}

	s.builder = menu.NewBuilder(s.resolver, menu.Origin{
		Host: s.config.AdvertisedHost(),
		Port: s.Port(),
	})

	s.mu.Lock()
	s.listener = listener
	s.pool = pool
	s.mu.Unlock()
	s.markReady()

	// Stop may have raced with binding.
	select {
	case <-s.shutdown:
		_ = listener.Close()
	default:
	}

	logger.Info("Gopher server listening on %s (root=%s, workers=%d)",
		listener.Addr(), s.resolver.Root(), pool.Size())
	logger.Debug("Gopher config: advertised_host=%s max_selector_length=%d read_timeout=%v write_timeout=%v",
		s.config.AdvertisedHost(), s.config.MaxSelectorLength, s.config.ReadTimeout, s.config.WriteTimeout)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Gopher shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(s.shutdownCtx)
	}

	for {
		if err := s.limiter.Wait(s.shutdownCtx); err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Gopher admission wait failed: %v", err)
				continue
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting Gopher connection: %v", err)
				continue
			}
		}

		s.dispatch(tcpConn)
	}
}

// dispatch registers an accepted connection and queues it on the pool.
func (s *GopherAdapter) dispatch(tcpConn net.Conn) {
	id := uuid.NewString()

	s.connCount.Add(1)
	s.activeConnections.Store(id, tcpConn)

	s.metrics.RecordConnectionAccepted()
	currentConns := s.connCount.Load()
	s.metrics.SetActiveConnections(currentConns)

	logger.Debug("Gopher connection %s accepted from %s (open: %d)",
		id, tcpConn.RemoteAddr(), currentConns)

	conn := NewGopherConnection(s, tcpConn, id)
	err := s.pool.Execute(func() {
		defer s.release(id, tcpConn)
		s.metrics.SetQueueDepth(s.pool.Pending())
		conn.Serve()
	})
	if err != nil {
		logger.Warn("Gopher connection %s rejected: %v", id, err)
		_ = tcpConn.Close()
		s.release(id, tcpConn)
		return
	}

	s.metrics.SetQueueDepth(s.pool.Pending())
}

// release unregisters a finished connection. It also runs when the
// connection handler panics.
func (s *GopherAdapter) release(id string, tcpConn net.Conn) {
	s.activeConnections.Delete(id)
	s.connCount.Add(-1)

	s.metrics.RecordConnectionClosed()
	currentConns := s.connCount.Load()
	s.metrics.SetActiveConnections(currentConns)

	logger.Debug("Gopher connection %s closed from %s (open: %d)",
		id, tcpConn.RemoteAddr(), currentConns)
}

// initiateShutdown stops the accept loop. Safe to call multiple times.
func (s *GopherAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Gopher shutdown initiated")

		close(s.shutdown)

		s.mu.Lock()
		listener := s.listener
		s.mu.Unlock()

		if listener != nil {
			if err := listener.Close(); err != nil {
				logger.Debug("Error closing Gopher listener: %v", err)
			}
		}

		s.cancelRequests()
	})
}

// drain closes the pool in the background, once, and returns a channel
// closed when every queued connection has been served.
func (s *GopherAdapter) drain() <-chan struct{} {
	s.drainOnce.Do(func() {
		s.mu.Lock()
		pool := s.pool
		s.mu.Unlock()

		go func() {
			defer close(s.drained)
			if pool != nil {
				pool.Close()
			}
		}()
	})
	return s.drained
}

// gracefulShutdown waits for queued and active connections up to
// ShutdownTimeout, then force-closes whatever is left.
//
// Returns nil if every connection completed, or an error naming how many
// were force-closed.
func (s *GopherAdapter) gracefulShutdown() error {
	openCount := s.connCount.Load()
	logger.Info("Gopher graceful shutdown: waiting for %d open connection(s) (timeout: %v)",
		openCount, s.config.ShutdownTimeout)

	done := s.drain()

	timer := time.NewTimer(s.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		logger.Info("Gopher graceful shutdown complete: all connections closed")
		return nil

	case <-timer.C:
		remaining := s.connCount.Load()
		logger.Warn("Gopher shutdown timeout exceeded: %d connection(s) still open after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		// Closed sockets fail fast, so the pool finishes promptly.
		<-done
		return fmt.Errorf("gopher shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConnections closes every tracked socket. Handlers blocked on
// I/O fail immediately and queued handlers fail on their first read.
func (s *GopherAdapter) forceCloseConnections() {
	logger.Info("Force-closing open Gopher connections")

	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		id := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection %s: %v", id, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
			logger.Debug("Force-closed connection %s", id)
		}
		return true
	})

	if closedCount == 0 {
		logger.Debug("No connections to force-close")
	} else {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown and waits until every connection has
// been served or ctx is done. Safe to call concurrently with Serve.
func (s *GopherAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	// Serve may still be binding.
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-s.drain():
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("Gopher shutdown context cancelled: %d connection(s) still open: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

func (s *GopherAdapter) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// logMetrics periodically logs connection and pool counters.
func (s *GopherAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			pool := s.pool
			s.mu.Unlock()

			if s.limiter.Unlimited() {
				logger.Info("Gopher metrics: open_connections=%d queued=%d served=%d panicked=%d",
					s.connCount.Load(), pool.Pending(), pool.Completed(), pool.Panicked())
				continue
			}
			logger.Info("Gopher metrics: open_connections=%d queued=%d served=%d panicked=%d admission_tokens=%.1f/%d",
				s.connCount.Load(), pool.Pending(), pool.Completed(), pool.Panicked(),
				s.limiter.Tokens(), s.limiter.Burst())
		}
	}
}

// GetActiveConnections returns the number of accepted connections not yet
// closed, including those still waiting for a worker.
func (s *GopherAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Addr returns the bound listener address, or nil before Serve has bound.
func (s *GopherAdapter) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the TCP port the Gopher server listens on.
func (s *GopherAdapter) Port() int {
	if port := s.boundPort.Load(); port != 0 {
		return int(port)
	}
	return s.config.Port
}

// Protocol returns "Gopher".
func (s *GopherAdapter) Protocol() string {
	return "Gopher"
}
