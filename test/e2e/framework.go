package e2e

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/burrow/internal/logger"
	"github.com/marmos91/burrow/pkg/adapter/gopher"
	"github.com/marmos91/burrow/pkg/config"
	"github.com/marmos91/burrow/pkg/server"
)

// TestContext provides a complete testing environment with:
// - Running Burrow server on a free port
// - Seeded tree behind the configured filesystem
// - Cleanup mechanisms
type TestContext struct {
	T        *testing.T
	Config   *TestConfig
	Server   *server.BurrowServer
	Settings *config.Config
	Port     int
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	tempDirs []string
}

// NewTestContext creates a new test environment with the specified
// configuration and starts the server.
func NewTestContext(t *testing.T, testConfig *TestConfig) *TestContext {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:      t,
		Config: testConfig,
		ctx:    ctx,
		cancel: cancel,
		Port:   findFreePort(t),
	}

	settings, err := testConfig.BuildConfig(tc)
	if err != nil {
		t.Fatalf("Failed to build config: %v", err)
	}
	tc.Settings = settings

	tc.startServer()

	return tc
}

// startServer wires the filesystem and Gopher adapter into a server
func (tc *TestContext) startServer() {
	tc.T.Helper()

	// Keep functional test output clean
	logger.SetLevel(tc.Settings.Logging.Level)

	fsys, err := config.CreateFilesystem(tc.Settings)
	if err != nil {
		tc.T.Fatalf("Failed to create filesystem: %v", err)
	}

	gopherAdapter, err := gopher.New(tc.Settings.Adapters.Gopher, nil) // nil = no metrics
	if err != nil {
		tc.T.Fatalf("Failed to create Gopher adapter: %v", err)
	}

	tc.Server = server.New(fsys, 10*time.Second)
	if err := tc.Server.AddAdapter(gopherAdapter); err != nil {
		tc.T.Fatalf("Failed to add Gopher adapter: %v", err)
	}

	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		if err := tc.Server.Serve(tc.ctx); err != nil && err != context.Canceled {
			tc.T.Logf("Server error: %v", err)
		}
	}()

	tc.waitForServer()
}

// waitForServer waits for the Gopher server to accept connections
func (tc *TestContext) waitForServer() {
	tc.T.Helper()

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			tc.T.Fatal("Timeout waiting for server to start")
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", tc.Addr(), time.Second)
			if err == nil {
				// An empty request lets the worker finish instead of
				// waiting out the read timeout.
				_, _ = conn.Write([]byte("\r\n"))
				_, _ = io.Copy(io.Discard, conn)
				_ = conn.Close()
				return
			}
		}
	}
}

// Cleanup stops the server and removes temporary files
func (tc *TestContext) Cleanup() {
	tc.T.Helper()

	if tc.cancel != nil {
		tc.cancel()
	}
	tc.wg.Wait()

	for _, dir := range tc.tempDirs {
		_ = os.RemoveAll(dir)
	}
}

// Addr returns the host:port the server listens on
func (tc *TestContext) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", tc.Port)
}

// Fetch sends selector and returns the full response, terminator included
func (tc *TestContext) Fetch(selector string) string {
	tc.T.Helper()

	body, err := tc.fetchRaw(selector + "\r\n")
	if err != nil {
		tc.T.Fatalf("Fetch %q failed: %v", selector, err)
	}
	return body
}

func (tc *TestContext) fetchRaw(request string) (string, error) {
	conn, err := net.DialTimeout("tcp", tc.Addr(), 5*time.Second)
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return "", err
	}
	if _, err := io.WriteString(conn, request); err != nil {
		return "", err
	}

	data, err := io.ReadAll(conn)
	return string(data), err
}

// MenuLine is one parsed entry of a menu response
type MenuLine struct {
	Type     byte
	Display  string
	Selector string
	Host     string
	Port     string
}

// FetchMenu requests selector and parses the response as a menu
func (tc *TestContext) FetchMenu(selector string) []MenuLine {
	tc.T.Helper()

	body := tc.Fetch(selector)
	if !strings.HasSuffix(body, "\r\n.\r\n") {
		tc.T.Fatalf("Menu for %q is not terminated: %q", selector, body)
	}

	var lines []MenuLine
	scanner := bufio.NewScanner(strings.NewReader(strings.TrimSuffix(body, ".\r\n")))
	for scanner.Scan() {
		raw := strings.TrimSuffix(scanner.Text(), "\r")
		if raw == "" {
			continue
		}
		fields := strings.Split(raw[1:], "\t")
		if len(fields) != 4 {
			tc.T.Fatalf("Malformed menu line %q", raw)
		}
		lines = append(lines, MenuLine{
			Type:     raw[0],
			Display:  fields[0],
			Selector: fields[1],
			Host:     fields[2],
			Port:     fields[3],
		})
	}
	return lines
}

// CreateTempDir creates a temporary directory and registers it for cleanup
func (tc *TestContext) CreateTempDir(prefix string) string {
	tc.T.Helper()

	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		tc.T.Fatalf("Failed to create temp directory: %v", err)
	}
	tc.tempDirs = append(tc.tempDirs, dir)
	return dir
}

// GetConfig returns the test configuration
func (tc *TestContext) GetConfig() *TestConfig {
	return tc.Config
}

// GetPort returns the server port
func (tc *TestContext) GetPort() int {
	return tc.Port
}

// findFreePort finds an available TCP port
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port
}
