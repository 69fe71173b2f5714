package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/halcyonlabs/claimd/config"
	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/sym"
)

// getState returns the current server state
func (s *ClaimdServer) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *ClaimdServer) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// startBackgroundServices starts all background service goroutines
func (s *ClaimdServer) startBackgroundServices() {
	// Periodic scheduled batches
	if s.ticker != nil {
		s.ticker.Start()
		s.logger.Infow(fmt.Sprintf("%s Batch ticker started", sym.Sched))
	}

	// Sweep finished batch progress out of memory after the retention window
	retention := time.Hour
	if cfg := s.config(); cfg.Claim.ProgressRetentionSeconds > 0 {
		retention = time.Duration(cfg.Claim.ProgressRetentionSeconds) * time.Second
	}
	s.tracker.StartSweeper(s.ctx, 5*time.Minute, retention)

	s.startDaemonStatusBroadcaster()
}

// WatchConfig starts watching the given config file and reloads on change.
// Only a subset of settings applies live; pool capacity and timeouts need
// a restart.
func (s *ClaimdServer) WatchConfig(configPath string) error {
	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to create config watcher")
	}
	watcher.OnReload(func(cfg *config.Config) error {
		s.applyConfig(cfg)
		return nil
	})
	watcher.Start()
	s.configWatcher = watcher
	s.logger.Infow("Config watcher started", "path", configPath)
	return nil
}

// applyConfig swaps in a reloaded config. Structural settings (pool
// capacity, job timeout, driver URL) are wired at construction and keep
// their old values until restart; the swap covers settings read per
// request: allowed origins and the progress retention window.
func (s *ClaimdServer) applyConfig(cfg *config.Config) {
	old := s.cfg.Swap(cfg)

	if old.Claim.PoolCapacity != cfg.Claim.PoolCapacity {
		s.logger.Warnw("Pool capacity change requires restart",
			"current", old.Claim.PoolCapacity,
			"configured", cfg.Claim.PoolCapacity,
		)
	}
	if old.Claim.JobTimeoutSeconds != cfg.Claim.JobTimeoutSeconds {
		s.logger.Warnw("Job timeout change requires restart",
			"current", old.Claim.JobTimeoutSeconds,
			"configured", cfg.Claim.JobTimeoutSeconds,
		)
	}
	s.logger.Infow("Config reloaded")
}

// Start starts the server on the specified port and blocks serving HTTP
func (s *ClaimdServer) Start(port int) error {
	// Start the hub in a goroutine
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	s.startBackgroundServices()

	actualPort, err := findAvailablePort(port)
	if err != nil {
		return errors.Wrap(err, "failed to find available port")
	}

	if actualPort != port {
		s.logger.Infow("Port in use, using alternative",
			"requested_port", port,
			"actual_port", actualPort,
		)
	}

	s.setState(ServerStateRunning)

	addr := fmt.Sprintf(":%d", actualPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Infow(fmt.Sprintf("%s HTTP server listening on port %d", sym.ClaimOpen, actualPort),
		"url", fmt.Sprintf("http://localhost:%d", actualPort),
	)

	err = s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server and cleans up resources
func (s *ClaimdServer) Stop() error {
	s.logger.Infow(fmt.Sprintf("%s Initiating server shutdown", sym.ClaimClose))

	s.setState(ServerStateDraining)

	// Stop accepting scheduled batches first
	if s.ticker != nil {
		s.ticker.Stop()
		s.logger.Infow("Batch ticker stopped")
	}

	// Drain detached batches so every in-flight job reaches a terminal
	// state and its record is written
	s.scheduler.Wait()

	// Refuse new slot acquisitions and wake queued waiters
	s.pool.Close()

	// Close all client connections BEFORE cancelling context so
	// readPump/writePump exit cleanly
	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	s.mu.Unlock()

	if len(clientsToClose) > 0 {
		s.logger.Infow("Closing client connections", "count", len(clientsToClose))
		for _, client := range clientsToClose {
			client.close()
			client.conn.Close() // Unblocks readPump
		}
	}

	// Cancel context to signal all server goroutines to stop
	if s.cancel != nil {
		s.cancel()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Close(); err != nil {
			s.logger.Warnw("HTTP server close error", "error", err)
		}
	}

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout,
		)
	}

	if s.configWatcher != nil {
		if err := s.configWatcher.Close(); err != nil {
			s.logger.Warnw("Failed to stop config watcher", "error", err)
		} else {
			s.logger.Infow("Config watcher stopped")
		}
	}

	s.setState(ServerStateStopped)

	s.logger.Infow(fmt.Sprintf("%s Server shutdown complete", sym.ClaimClose),
		"uptime", time.Since(s.startTime).Round(time.Second).String(),
	)

	return nil
}
