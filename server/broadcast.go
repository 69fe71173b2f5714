package server

// This file contains status broadcasting for ClaimdServer. Connected
// clients receive periodic daemon_status messages describing pool usage
// and in-flight batches; polling adapts to engine activity.

import (
	"time"
)

// startDaemonStatusBroadcaster periodically broadcasts engine status to
// WebSocket clients. Uses adaptive polling: fast updates when batches are
// running, slow updates when idle.
func (s *ClaimdServer) startDaemonStatusBroadcaster() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		currentState := DaemonIdle
		interval := s.getIntervalForActivityState(currentState)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				s.logger.Debugw("Daemon status broadcaster stopping due to context cancellation")
				return
			case <-ticker.C:
				// Only send updates if there are connected clients
				s.mu.RLock()
				hasClients := len(s.clients) > 0
				s.mu.RUnlock()

				if !hasClients {
					continue
				}

				newState := s.detectDaemonActivityState()

				if newState != currentState {
					currentState = newState
					interval = s.getIntervalForActivityState(currentState)
					ticker.Reset(interval)

					s.logger.Debugw("Engine activity state changed, adjusted poll interval",
						"state", currentState,
						"interval", interval,
					)
				}

				s.broadcastDaemonStatus()
			}
		}
	}()

	s.logger.Infow("Adaptive daemon status broadcaster started")
}

// detectDaemonActivityState determines the current engine activity level
// for adaptive polling
func (s *ClaimdServer) detectDaemonActivityState() DaemonState {
	stats := s.pool.Stats()

	if stats.Waiting > 0 || stats.InUse >= stats.Capacity {
		return DaemonBusy
	}

	if stats.InUse > 0 {
		return DaemonActive
	}

	for _, agg := range s.tracker.ActiveBatches() {
		if !agg.Done() {
			return DaemonActive
		}
	}

	return DaemonIdle
}

// getIntervalForActivityState returns the poll interval for an activity state
func (s *ClaimdServer) getIntervalForActivityState(state DaemonState) time.Duration {
	switch state {
	case DaemonBusy:
		return 1 * time.Second
	case DaemonActive:
		return 2 * time.Second
	default:
		return 10 * time.Second
	}
}

// broadcastDaemonStatus sends engine status to all connected clients
func (s *ClaimdServer) broadcastDaemonStatus() {
	stats := s.pool.Stats()
	batches := s.tracker.ActiveBatches()

	inFlight := 0
	for _, agg := range batches {
		if !agg.Done() {
			inFlight++
		}
	}

	// Check if status has changed meaningfully (with lock for lastStatus access)
	s.mu.Lock()
	if !s.statusHasChangedLocked(stats.InUse, stats.Waiting, inFlight) {
		s.mu.Unlock()
		return // Skip broadcast if nothing changed
	}

	// Update cached status (still under lock)
	s.lastStatus = &cachedDaemonStatus{
		inUse:         stats.InUse,
		waiting:       stats.Waiting,
		activeBatches: inFlight,
	}
	s.mu.Unlock()

	msg := DaemonStatusMessage{
		Type:          "daemon_status",
		Running:       s.getState() == ServerStateRunning,
		PoolCapacity:  stats.Capacity,
		PoolInUse:     stats.InUse,
		PoolWaiting:   stats.Waiting,
		ActiveBatches: batches,
		ServerState:   stateString(s.getState()),
		Timestamp:     time.Now().Unix(),
	}

	sent := s.broadcastMessage(msg)

	s.logger.Debugw("Broadcasted engine status",
		"pool_in_use", stats.InUse,
		"pool_waiting", stats.Waiting,
		"active_batches", inFlight,
		"clients", sent,
	)
}

// statusHasChangedLocked reports whether status differs from the last
// broadcast. Caller must hold s.mu.
func (s *ClaimdServer) statusHasChangedLocked(inUse, waiting, activeBatches int) bool {
	if s.lastStatus == nil {
		return true
	}
	return s.lastStatus.inUse != inUse ||
		s.lastStatus.waiting != waiting ||
		s.lastStatus.activeBatches != activeBatches
}
