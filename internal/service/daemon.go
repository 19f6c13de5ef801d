// Package service runs the HTTP API as a long-lived process: it binds the
// listener, records a PID file for the status and stop commands, and
// drains requests and background work on shutdown.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/config"
	"github.com/ternarybob/prdforge/internal/fileutil"
)

// shutdownTimeout bounds draining in-flight HTTP requests.
const shutdownTimeout = 30 * time.Second

// Daemon manages the service lifecycle.
type Daemon struct {
	cfg       *config.Config
	logger    arbor.ILogger
	server    *http.Server
	listener  net.Listener
	hooks     []func()
	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
	mu        sync.Mutex
	running   bool
}

// NewDaemon creates a new daemon instance.
func NewDaemon(cfg *config.Config, logger arbor.ILogger) *Daemon {
	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// OnShutdown registers fn to run after the HTTP server drains, in
// registration order.
func (d *Daemon) OnShutdown(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, fn)
}

// Start binds the configured address and serves handler in the
// background. Bind failures are returned here rather than logged later.
func (d *Daemon) Start(handler http.Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ln, err := net.Listen("tcp", d.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.cfg.Address(), err)
	}

	if err := fileutil.WriteFileAtomic(d.cfg.PIDPath(), []byte(strconv.Itoa(os.Getpid()))); err != nil {
		ln.Close()
		return fmt.Errorf("write PID: %w", err)
	}

	// A generation can take most of the request timeout; the write
	// deadline sits above it.
	d.server = &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(d.cfg.API.RequestTimeoutSeconds+30) * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	d.listener = ln
	d.running = true

	go func() {
		d.logger.Info().Str("address", ln.Addr().String()).Msg("Serving HTTP")
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error().Err(err).Msg("Server error")
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Wait blocks until a termination signal or Stop, then shuts down.
func (d *Daemon) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
	case <-d.stopCh:
		d.logger.Info().Msg("Stop requested, shutting down")
	}

	d.shutdown()
}

// Stop signals the daemon to stop and waits for shutdown to finish.
func (d *Daemon) Stop() {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		return
	}

	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.stoppedCh
}

// shutdown drains HTTP, runs the hooks, then drops the PID file.
func (d *Daemon) shutdown() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	hooks := append([]func(){}, d.hooks...)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Server shutdown error")
	}

	for _, fn := range hooks {
		fn()
	}

	_ = os.Remove(d.cfg.PIDPath())

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	close(d.stoppedCh)
}

// readPID returns the PID recorded for cfg, or 0 when there is none.
func readPID(cfg *config.Config) int {
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// alive reports whether pid names a live process.
func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// IsRunning reports whether a daemon is running for cfg. A PID file that
// is unreadable or names a dead process is removed.
func IsRunning(cfg *config.Config) (bool, int) {
	pid := readPID(cfg)
	if pid == 0 || !alive(pid) {
		if _, err := os.Stat(cfg.PIDPath()); err == nil {
			_ = os.Remove(cfg.PIDPath())
		}
		return false, 0
	}
	return true, pid
}

// StopRunning sends SIGTERM to the running daemon and waits for it to
// exit, killing it if it outlives the drain window.
func StopRunning(cfg *config.Config) error {
	running, pid := IsRunning(cfg)
	if !running {
		return fmt.Errorf("daemon not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	// Shutdown hooks wait for background generations, so allow more
	// than the HTTP drain.
	deadline := time.Now().Add(shutdownTimeout + 10*time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		if !alive(pid) {
			_ = os.Remove(cfg.PIDPath())
			return nil
		}
	}

	if err := process.Kill(); err != nil {
		return fmt.Errorf("kill process: %w", err)
	}
	_ = os.Remove(cfg.PIDPath())
	return nil
}
