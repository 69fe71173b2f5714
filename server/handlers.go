package server

// This file contains HTTP handler methods for ClaimdServer:
// - WebSocket connections with live batch progress (HandleWebSocket)
// - Health checks (HandleHealth)
// - Batch triggers and history (HandleBatches, HandleBatch)
// - Claim record queries (HandleRecords)
// - Target registry management (HandleTargets, HandleTarget)
// - Progress sweep (HandleProgressSweep)

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/halcyonlabs/claimd/claim"
	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/internal/version"
	"github.com/halcyonlabs/claimd/progress"
)

func (s *ClaimdServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("WebSocket upgrade failed", "error", err.Error())
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan interface{}, MaxClientMessageQueueSize),
		done:   make(chan struct{}),
		id:     fmt.Sprintf("%s_%d", r.RemoteAddr, time.Now().UnixNano()),
	}

	// Send version info BEFORE starting writePump (avoid concurrent writes)
	versionInfo := version.Get()
	versionMsg := map[string]interface{}{
		"type":       "version",
		"version":    versionInfo.Version,
		"commit":     versionInfo.CommitHash,
		"build_time": versionInfo.BuildTime,
	}
	if err := conn.WriteJSON(versionMsg); err != nil {
		s.logger.Debugw("Failed to send version info",
			"client_id", client.id,
			"error", err,
		)
	}

	s.register <- client

	// ?batch= subscribes immediately; later subscribe messages can
	// switch batches
	if batchID := r.URL.Query().Get("batch"); batchID != "" {
		if err := client.subscribeBatch(batchID); err != nil {
			s.logger.Debugw("Initial batch subscription failed",
				"client_id", client.id,
				"batch_id", shortID(batchID),
				"error", err.Error(),
			)
			select {
			case client.send <- map[string]string{"type": "error", "error": "unknown batch: " + batchID}:
			default:
			}
		}
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
}

func (s *ClaimdServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()
	s.mu.RLock()
	clientCount := len(s.clients)
	s.mu.RUnlock()

	health := map[string]interface{}{
		"status":     "ok",
		"version":    versionInfo.Version,
		"commit":     versionInfo.CommitHash,
		"build_time": versionInfo.BuildTime,
		"clients":    clientCount,
		"pool":       s.pool.Stats(),
		"state":      stateString(s.getState()),
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.ticker != nil {
		health["scheduler"] = s.ticker.GetStats()
	}

	writeJSON(w, http.StatusOK, health)
}

// triggerBatchRequest is the POST /api/batches body. An empty or missing
// account_ids claims for every non-blocked registered account.
type triggerBatchRequest struct {
	AccountIDs []string `json:"account_ids"`
}

// HandleBatches lists batch runs (GET) or triggers a new one (POST)
func (s *ClaimdServer) HandleBatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parseLimit(r, 20)
		stored, err := s.batchStore.ListBatchRuns(limit)
		if err != nil {
			s.logger.Errorw("Failed to list batch runs", "error", err.Error())
			writeError(w, http.StatusInternalServerError, "failed to list batch runs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"active": s.tracker.ActiveBatches(),
			"stored": stored,
		})

	case http.MethodPost:
		var req triggerBatchRequest
		if r.ContentLength > 0 {
			if err := readJSON(w, r, &req); err != nil {
				return
			}
		}

		batch, err := s.scheduler.TriggerBatchDetached(r.Context(), req.AccountIDs)
		if err != nil {
			if errors.Is(err, errors.ErrRegistryUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "target registry unavailable")
				return
			}
			s.logger.Errorw("Failed to trigger batch", "error", err.Error())
			writeError(w, http.StatusInternalServerError, "failed to trigger batch")
			return
		}

		s.logger.Infow("Batch triggered via API",
			"batch_id", shortID(batch.ID),
			"targets", batch.TotalTargets,
		)
		writeJSON(w, http.StatusAccepted, batch)

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// batchDetail is the GET /api/batches/{id} response. Live holds in-memory
// progress while the batch is retained; Batch and Records come from the
// database and outlive the sweep.
type batchDetail struct {
	Batch   *claim.BatchRun     `json:"batch,omitempty"`
	Live    *progress.Aggregate `json:"live,omitempty"`
	Records []*claim.Record     `json:"records,omitempty"`
}

// HandleBatch serves a single batch run by ID
func (s *ClaimdServer) HandleBatch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/batches/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "batch ID required")
		return
	}
	batchID := parts[0]

	detail := batchDetail{}

	if agg, err := s.tracker.Snapshot(batchID); err == nil {
		detail.Live = &agg
	}

	if batch, err := s.batchStore.GetBatchRun(batchID); err == nil {
		detail.Batch = batch
	} else if !errors.IsNotFoundError(err) {
		s.logger.Errorw("Failed to load batch run", "batch_id", shortID(batchID), "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load batch run")
		return
	}

	if detail.Live == nil && detail.Batch == nil {
		writeError(w, http.StatusNotFound, "batch not found: "+batchID)
		return
	}

	records, err := s.recordStore.ListRecordsByBatch(batchID)
	if err != nil {
		s.logger.Errorw("Failed to load batch records", "batch_id", shortID(batchID), "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load batch records")
		return
	}
	detail.Records = records

	writeJSON(w, http.StatusOK, detail)
}

// HandleRecords serves stored claim records.
// Query parameters:
//   - ?account={id} - filter to one account
//   - ?from / ?to   - RFC3339 bounds (account queries only)
//   - ?limit={n}    - max rows (default 50)
func (s *ClaimdServer) HandleRecords(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	limit := parseLimit(r, 50)
	accountID := r.URL.Query().Get("account")

	if accountID == "" {
		records, err := s.recordStore.ListRecentRecords(limit)
		if err != nil {
			s.logger.Errorw("Failed to list records", "error", err.Error())
			writeError(w, http.StatusInternalServerError, "failed to list records")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
		return
	}

	from := time.Time{}
	to := time.Now().Add(time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from time, want RFC3339")
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to time, want RFC3339")
			return
		}
		to = parsed
	}

	records, err := s.recordStore.ListRecordsByAccount(accountID, from, to, limit)
	if err != nil {
		s.logger.Errorw("Failed to list account records", "account_id", accountID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// targetRequest is the POST /api/targets body
type targetRequest struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}

// HandleTargets lists registered targets (GET) or registers one (POST)
func (s *ClaimdServer) HandleTargets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		targets, err := s.registry.ListTargets(r.Context())
		if err != nil {
			s.logger.Errorw("Failed to list targets", "error", err.Error())
			writeError(w, http.StatusInternalServerError, "failed to list targets")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"targets": targets})

	case http.MethodPost:
		var req targetRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		if err := s.registry.AddTarget(r.Context(), req.AccountID, req.DisplayName); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Infow("Target registered", "account_id", req.AccountID)
		writeJSON(w, http.StatusCreated, map[string]string{"account_id": req.AccountID})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// blockRequest is the PATCH /api/targets/{id} body
type blockRequest struct {
	Blocked bool `json:"blocked"`
}

// HandleTarget updates (PATCH, block/unblock) or removes (DELETE) one target
func (s *ClaimdServer) HandleTarget(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodPatch, http.MethodDelete) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/targets/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "account ID required")
		return
	}
	accountID := parts[0]

	switch r.Method {
	case http.MethodPatch:
		var req blockRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		if err := s.registry.SetBlocked(r.Context(), accountID, req.Blocked); err != nil {
			if errors.IsNotFoundError(err) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			s.logger.Errorw("Failed to update target", "account_id", accountID, "error", err.Error())
			writeError(w, http.StatusInternalServerError, "failed to update target")
			return
		}
		s.logger.Infow("Target block state updated", "account_id", accountID, "blocked", req.Blocked)
		writeJSON(w, http.StatusOK, map[string]interface{}{"account_id": accountID, "blocked": req.Blocked})

	case http.MethodDelete:
		if err := s.registry.RemoveTarget(r.Context(), accountID); err != nil {
			if errors.IsNotFoundError(err) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			s.logger.Errorw("Failed to remove target", "account_id", accountID, "error", err.Error())
			writeError(w, http.StatusInternalServerError, "failed to remove target")
			return
		}
		s.logger.Infow("Target removed", "account_id", accountID)
		writeJSON(w, http.StatusOK, map[string]string{"account_id": accountID})
	}
}

// HandleProgressSweep forces an immediate sweep of finished batch progress.
// ?older_than_seconds overrides the configured retention.
func (s *ClaimdServer) HandleProgressSweep(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	retention := time.Hour
	if cfg := s.config(); cfg.Claim.ProgressRetentionSeconds > 0 {
		retention = time.Duration(cfg.Claim.ProgressRetentionSeconds) * time.Second
	}
	if v := r.URL.Query().Get("older_than_seconds"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 0 {
			writeError(w, http.StatusBadRequest, "invalid older_than_seconds")
			return
		}
		retention = time.Duration(seconds) * time.Second
	}

	removed := s.tracker.Sweep(retention)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// parseLimit reads ?limit= with a default, capped at 500
func parseLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > 500 {
		return 500
	}
	return limit
}
