package gopher

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/marmos91/burrow/internal/logger"
	"github.com/marmos91/burrow/internal/protocol/gopher"
	"github.com/marmos91/burrow/pkg/fsroot"
	"github.com/marmos91/burrow/pkg/metrics"
)

// writeBufferSize is the size of the response buffer. File bodies larger
// than this are streamed through it.
const writeBufferSize = 32 * 1024

// GopherConnection serves exactly one request: it reads a selector, writes
// a menu or the file bytes followed by the terminator, and closes.
type GopherConnection struct {
	server *GopherAdapter
	conn   net.Conn
	id     string

	bytesSent int64
}

func NewGopherConnection(server *GopherAdapter, conn net.Conn, id string) *GopherConnection {
	return &GopherConnection{
		server: server,
		conn:   conn,
		id:     id,
	}
}

// Serve handles the connection and always closes it.
//
// Requests are never aborted mid-way by shutdown; a connection that must be
// cut short is force-closed from the adapter, which makes its next read or
// write fail. Panics propagate to the worker pool, which logs them; the
// deferred close still runs.
func (c *GopherConnection) Serve() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			logger.Debug("Gopher connection %s: close: %v", c.id, err)
		}
	}()

	clientAddr := c.conn.RemoteAddr().String()
	logger.Debug("Gopher connection %s: serving %s", c.id, clientAddr)

	if c.server.config.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout)); err != nil {
			logger.Warn("Gopher connection %s: set read deadline: %v", c.id, err)
			return
		}
	}

	selector, err := gopher.ReadSelector(c.conn, c.server.config.MaxSelectorLength)
	if err != nil {
		c.logReadError(clientAddr, err)
		return
	}

	c.server.metrics.RecordRequestStart()
	defer c.server.metrics.RecordRequestEnd()

	startTime := time.Now()
	outcome, err := c.handleRequest(selector)
	duration := time.Since(startTime)

	if err != nil {
		outcome = metrics.OutcomeError
	}
	c.server.metrics.RecordRequest(outcome, duration)
	c.server.metrics.RecordBytesSent(c.bytesSent)

	if err != nil {
		logger.Warn("Gopher connection %s: selector %q from %s failed: %v",
			c.id, selector, clientAddr, err)
		return
	}

	logger.Debug("Gopher connection %s: selector %q served as %s (%d bytes, %v)",
		c.id, selector, outcome, c.bytesSent, duration)
}

// handleRequest resolves selector and writes the response.
//
// Returns the outcome label. On error nothing useful reached the client and
// the connection is simply closed.
func (c *GopherConnection) handleRequest(selector string) (string, error) {
	target, err := c.server.resolver.Resolve(selector)

	switch {
	case errors.Is(err, fsroot.ErrForbidden):
		logger.Warn("Gopher connection %s: selector %q escapes root, sending empty response",
			c.id, selector)
		return metrics.OutcomeForbidden, c.send(bytes.NewReader(nil))

	case errors.Is(err, fsroot.ErrNotFound):
		logger.Debug("Gopher connection %s: selector %q not found, sending root menu",
			c.id, selector)
		return metrics.OutcomeFallback, c.sendMenu("")

	case err != nil:
		return metrics.OutcomeError, err

	case target.Type.IsContainer():
		return metrics.OutcomeMenu, c.sendMenu(selector)

	default:
		return metrics.OutcomeFile, c.sendFile(target.Path)
	}
}

func (c *GopherConnection) sendMenu(selector string) error {
	body, err := c.server.builder.Build(selector)
	if err != nil {
		return err
	}
	return c.send(bytes.NewReader(body))
}

func (c *GopherConnection) sendFile(path string) error {
	f, err := c.server.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return c.send(f)
}

// send writes body followed by the terminator and flushes.
func (c *GopherConnection) send(body io.Reader) error {
	if c.server.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	w := bufio.NewWriterSize(c.conn, writeBufferSize)

	n, err := io.Copy(w, body)
	c.bytesSent += n
	if err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	m, err := w.WriteString(gopher.Terminator)
	c.bytesSent += int64(m)
	if err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}

func (c *GopherConnection) logReadError(clientAddr string, err error) {
	var netErr net.Error

	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("Gopher connection %s: %s closed before sending a selector", c.id, clientAddr)
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.Debug("Gopher connection %s: %s timed out before sending a selector", c.id, clientAddr)
	case errors.Is(err, gopher.ErrSelectorTooLong):
		logger.Warn("Gopher connection %s: %s sent a selector over %d bytes",
			c.id, clientAddr, c.server.config.MaxSelectorLength)
		c.server.metrics.RecordRequest(metrics.OutcomeError, 0)
	default:
		logger.Debug("Gopher connection %s: error reading selector from %s: %v", c.id, clientAddr, err)
	}
}
