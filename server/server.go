package server

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/halcyonlabs/claimd/claim"
	"github.com/halcyonlabs/claimd/config"
	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/logger"
	"github.com/halcyonlabs/claimd/notify"
	"github.com/halcyonlabs/claimd/pool"
	"github.com/halcyonlabs/claimd/progress"
	"github.com/halcyonlabs/claimd/registry"
	"github.com/halcyonlabs/claimd/schedule"
	sessionpkg "github.com/halcyonlabs/claimd/session"
)

// ClaimdServer exposes the claim engine over HTTP and WebSocket: batch
// triggers, stored records, target management, and live progress streaming.
type ClaimdServer struct {
	db            *sql.DB
	cfg           atomic.Pointer[config.Config] // swapped whole on config reload
	pool          *pool.Pool
	tracker       *progress.Tracker
	recordStore   *claim.RecordStore
	batchStore    *claim.BatchStore
	registry      *registry.SQLiteRegistry
	scheduler     *claim.Scheduler
	ticker        *schedule.Ticker // nil when the scheduler is disabled
	configWatcher *config.Watcher  // nil unless a config file is being watched

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	lastStatus *cachedDaemonStatus // Cache last daemon status for change detection

	mux        *http.ServeMux
	httpServer *http.Server

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  atomic.Int32 // ServerState (Running/Draining/Stopped)

	logger    *zap.SugaredLogger
	startTime time.Time
}

// NewServer wires the full claim engine behind a server: pool, guard,
// runner, scheduler, ticker, and webhook notifications, all driven by cfg.
// A nil sess builds the remote automation driver from cfg.Automation;
// tests inject their own.
func NewServer(db *sql.DB, cfg *config.Config, sess claim.Session, log *zap.SugaredLogger) (*ClaimdServer, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	capacity := cfg.Claim.PoolCapacity
	if capacity <= 0 {
		capacity = pool.DefaultCapacity
	}
	sessionPool := pool.New(capacity, logger.AddPoolSymbol(log))

	tracker := progress.NewTracker(log)
	recordStore := claim.NewRecordStore(db)
	batchStore := claim.NewBatchStore(db)
	targetRegistry := registry.NewSQLiteRegistry(db)
	guard := claim.NewGuard(recordStore, log)

	// A configured webhook receives per-account outcomes and batch
	// summaries; without one both fan-outs are no-ops.
	var outcomeNotifier claim.Notifier
	var batchNotifier claim.BatchNotifier
	if cfg.Notify.WebhookURL != "" {
		webhookTimeout := notify.DefaultTimeout
		if cfg.Notify.TimeoutSeconds > 0 {
			webhookTimeout = time.Duration(cfg.Notify.TimeoutSeconds) * time.Second
		}
		webhook := notify.NewWebhook(cfg.Notify.WebhookURL, webhookTimeout, logger.AddNotifySymbol(log))
		outcomeNotifier = webhook
		batchNotifier = webhook
	} else {
		noop := notify.NewNoop()
		outcomeNotifier = noop
		batchNotifier = noop
	}

	var limiter *rate.Limiter
	if cfg.Claim.MaxAttemptsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.Claim.MaxAttemptsPerMinute)/60.0), 1)
	}

	jobTimeout := claim.DefaultJobTimeout
	if cfg.Claim.JobTimeoutSeconds > 0 {
		jobTimeout = time.Duration(cfg.Claim.JobTimeoutSeconds) * time.Second
	}

	if sess == nil {
		driverTimeout := sessionpkg.DefaultRequestTimeout
		if cfg.Automation.RequestTimeoutSeconds > 0 {
			driverTimeout = time.Duration(cfg.Automation.RequestTimeoutSeconds) * time.Second
		}
		sess = sessionpkg.NewRemote(cfg.Automation.DriverURL, driverTimeout, log)
	}

	runner := claim.NewRunner(sessionPool, guard, sess, tracker, outcomeNotifier, limiter, jobTimeout, logger.AddClaimSymbol(log))
	reporter := claim.NewReporter(batchNotifier, logger.AddClaimCloseSymbol(log))
	scheduler := claim.NewScheduler(targetRegistry, runner, tracker, batchStore, reporter, logger.AddClaimSymbol(log))

	var ticker *schedule.Ticker
	if cfg.Scheduler.Enabled {
		tickerCfg := schedule.DefaultTickerConfig()
		if cfg.Scheduler.IntervalSeconds > 0 {
			tickerCfg.Interval = time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second
		}
		ticker = schedule.NewTickerWithContext(ctx, scheduler, tickerCfg, log)
	}

	s := &ClaimdServer{
		db:          db,
		pool:        sessionPool,
		tracker:     tracker,
		recordStore: recordStore,
		batchStore:  batchStore,
		registry:    targetRegistry,
		scheduler:   scheduler,
		ticker:      ticker,
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		mux:         http.NewServeMux(),
		ctx:         ctx,
		cancel:      cancel,
		logger:      log,
		startTime:   time.Now(),
	}
	s.cfg.Store(cfg)
	s.setupHTTPRoutes()

	return s, nil
}

// config returns the current configuration. The watcher swaps the pointer
// on reload, so callers must not hold the returned value across requests.
func (s *ClaimdServer) config() *config.Config {
	return s.cfg.Load()
}

// Scheduler returns the batch scheduler for CLI-driven triggers.
func (s *ClaimdServer) Scheduler() *claim.Scheduler {
	return s.scheduler
}

// handleClientRegister handles a new client connection
func (s *ClaimdServer) handleClientRegister(client *Client) {
	s.mu.Lock()

	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients,
		)
		client.close()
		return
	}

	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", totalClients,
	)
}

// handleClientUnregister handles a client disconnection
func (s *ClaimdServer) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		totalClients := len(s.clients)
		s.mu.Unlock()

		client.close()

		s.logger.Infow("Client disconnected",
			"client_id", client.id,
			"total_clients", totalClients,
		)
	} else {
		s.mu.Unlock()
	}
}

// broadcastMessage sends a message to all connected clients.
// Returns the number of clients that accepted the message (channel not full).
func (s *ClaimdServer) broadcastMessage(msg interface{}) int {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		select {
		case client.send <- msg:
			sent++
		default:
			// Channel full - skip
		}
	}
	return sent
}

// Run starts the server hub event loop
func (s *ClaimdServer) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		}
	}
}
