package server

import (
	"net/http"
)

// setupHTTPRoutes configures all HTTP handlers
func (s *ClaimdServer) setupHTTPRoutes() {
	s.mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	s.mux.HandleFunc("/api/batches", s.corsMiddleware(s.HandleBatches))       // List/trigger batches (GET/POST)
	s.mux.HandleFunc("/api/batches/", s.corsMiddleware(s.HandleBatch))        // Individual batch with records (GET)
	s.mux.HandleFunc("/api/records", s.corsMiddleware(s.HandleRecords))       // Stored claim records (GET)
	s.mux.HandleFunc("/api/targets", s.corsMiddleware(s.HandleTargets))       // List/register targets (GET/POST)
	s.mux.HandleFunc("/api/targets/", s.corsMiddleware(s.HandleTarget))       // Block/unblock/remove target (PATCH/DELETE)
	s.mux.HandleFunc("/api/progress/sweep", s.corsMiddleware(s.HandleProgressSweep)) // Force progress sweep (POST)
}

// corsMiddleware adds CORS headers to HTTP responses using configured
// allowed origins. Uses the same origin validation as WebSocket connections
// (server.allowed_origins config).
func (s *ClaimdServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}
