package server

import (
	"time"

	"github.com/halcyonlabs/claimd/progress"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100
	// MaxClientMessageQueueSize is the size of per-client message queues
	MaxClientMessageQueueSize = 256
	// ShutdownTimeout is how long to wait for graceful shutdown.
	// Long enough for in-flight detached batches to drain their fan-out
	// goroutines; jobs themselves are bounded by the runner timeout.
	ShutdownTimeout = 30 * time.Second
)

// DaemonState represents the activity level of the claim engine for
// adaptive status polling
type DaemonState int

const (
	DaemonIdle   DaemonState = iota // No batches, no slots in use
	DaemonActive                    // A batch is in flight
	DaemonBusy                      // Slots saturated, jobs queued on the pool
)

// ServerState represents the server lifecycle state
type ServerState int

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// cachedDaemonStatus tracks the last broadcast status to detect changes
type cachedDaemonStatus struct {
	inUse         int
	waiting       int
	activeBatches int
}

// ClientMessage represents a message from a WebSocket client
type ClientMessage struct {
	Type    string `json:"type"`     // "ping", "subscribe"
	BatchID string `json:"batch_id"` // For subscribe messages
}

// SnapshotMessage is sent once when a client subscribes to a batch:
// the aggregate as of subscription, after which only live events follow.
type SnapshotMessage struct {
	Type      string             `json:"type"` // "snapshot"
	Aggregate progress.Aggregate `json:"aggregate"`
	Timestamp int64              `json:"timestamp"`
}

// EventMessage wraps a live progress event for a subscribed client
type EventMessage struct {
	Type  string         `json:"type"` // "event"
	Event progress.Event `json:"event"`
}

// DaemonStatusMessage represents claim engine status for all clients
type DaemonStatusMessage struct {
	Type          string               `json:"type"`    // "daemon_status"
	Running       bool                 `json:"running"` // Engine accepting batches
	PoolCapacity  int                  `json:"pool_capacity"`
	PoolInUse     int                  `json:"pool_in_use"`
	PoolWaiting   int                  `json:"pool_waiting"`
	ActiveBatches []progress.Aggregate `json:"active_batches"`
	ServerState   string               `json:"server_state"` // "running", "draining", "stopped"
	Timestamp     int64                `json:"timestamp"`
}
