package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/burrow/internal/logger"
	"github.com/marmos91/burrow/pkg/adapter"
	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
)

// DefaultStopTimeout bounds the Stop() calls issued to adapters during
// shutdown when no timeout is configured.
const DefaultStopTimeout = 30 * time.Second

// ErrAlreadyServed is returned by Serve when called more than once.
var ErrAlreadyServed = errors.New("server: Serve() has already been called")

// BurrowServer manages the lifecycle of the protocol adapters serving one
// read-only filesystem.
//
// Lifecycle:
//  1. Creation: New() with the filesystem
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: context cancellation or an adapter failure stops all adapters
//
// Thread safety:
// AddAdapter() may be called concurrently before Serve(). Serve() may only
// be called once.
//
// Example usage:
//
//	srv := server.New(fsys, 30*time.Second)
//	if err := srv.AddAdapter(gopherAdapter); err != nil {
//	    return err
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    return err
//	}
type BurrowServer struct {
	fs          afero.Fs
	stopTimeout time.Duration

	// mu protects adapters
	mu       sync.RWMutex
	adapters []adapter.Adapter

	served atomic.Bool
}

// New creates a BurrowServer sharing fsys with every adapter.
//
// stopTimeout bounds adapter shutdown; 0 uses DefaultStopTimeout.
//
// Panics if fsys is nil.
func New(fsys afero.Fs, stopTimeout time.Duration) *BurrowServer {
	if fsys == nil {
		panic("filesystem cannot be nil")
	}
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	return &BurrowServer{
		fs:          fsys,
		stopTimeout: stopTimeout,
		adapters:    make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter injects the shared filesystem into a and registers it.
//
// Returns an error if an adapter for the same protocol or port is already
// registered, or if Serve() has already been called.
//
// Panics if a is nil.
func (s *BurrowServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served.Load() {
		return fmt.Errorf("cannot add %s adapter after Serve() has been called", a.Protocol())
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		// Port 0 asks the OS for a free port and never conflicts.
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter",
				port, existing.Protocol())
		}
	}

	a.SetFilesystem(s.fs)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve starts all registered adapters and blocks until ctx is cancelled or
// an adapter fails.
//
// On either event every adapter is stopped in reverse registration order and
// Serve waits for all of them to return.
//
// Returns:
//   - ctx.Err() if shutdown was triggered by ctx
//   - the first adapter error, wrapped with its protocol, otherwise
//   - ErrAlreadyServed on a second call
func (s *BurrowServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if !s.served.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting Burrow with %d adapter(s)", len(adapters))

	// Buffered so failing adapters never block.
	errChan := make(chan adapterError, len(adapters))
	// Closed once every adapter goroutine has returned.
	allDone := make(chan struct{})

	var wg conc.WaitGroup
	for _, adp := range adapters {
		wg.Go(func() {
			protocol := adp.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, adp.Port())

			err := adp.Serve(ctx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
			case errors.Is(err, context.Canceled) || ctx.Err() != nil:
				logger.Debug("%s adapter stopped: %v", protocol, err)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		})
	}
	go func() {
		wg.Wait()
		close(allDone)
	}()

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)

	case <-allDone:
		logger.Info("All adapters stopped")
		select {
		case adapterErr := <-errChan:
			shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
		default:
			shutdownErr = ctx.Err()
		}
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	<-allDone

	logger.Info("Burrow stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters stops adapters in reverse registration order, each bounded
// by the stop timeout.
func (s *BurrowServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stopped", protocol)
		}
	}
}

// Adapters returns a copy of the registered adapters.
func (s *BurrowServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
