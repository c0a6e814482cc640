package adapter

import (
	"context"

	"github.com/spf13/afero"
)

// Adapter is a protocol server managed by server.Server.
//
// Every adapter serves the same read-only filesystem, injected once with
// SetFilesystem before Serve is called.
//
// Lifecycle:
//  1. Creation: the adapter is built from its protocol-specific config
//  2. Injection: SetFilesystem() provides the shared filesystem
//  3. Startup: Serve() binds and blocks until shutdown
//  4. Shutdown: Stop() or context cancellation drains in-flight work
//
// Thread safety:
// Stop may be called concurrently with Serve and more than once.
type Adapter interface {
	// Serve binds the listener and blocks until ctx is cancelled or an
	// unrecoverable error occurs.
	//
	// Returns nil or context.Canceled on graceful shutdown, and an error if
	// binding fails or shutdown had to force-close connections.
	Serve(ctx context.Context) error

	// SetFilesystem injects the filesystem to serve. Called exactly once,
	// before Serve.
	SetFilesystem(fsys afero.Fs)

	// Stop initiates graceful shutdown and waits for in-flight work until
	// ctx is done. Idempotent.
	Stop(ctx context.Context) error

	// Protocol returns a constant human-readable protocol name, e.g. "Gopher".
	Protocol() string

	// Port returns the TCP port the adapter listens on. Once Serve has bound
	// the listener this is the actual port, even when 0 was configured.
	Port() int
}
