package web

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardbridge/cardbridge/internal/adapters/web/middleware"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	// Passcode management is unauthenticated by design (it bootstraps the
	// pairing; the agent binds to localhost by default) but rate limited.
	passcodeLimiter := middleware.NewRateLimiter(10, 1*time.Minute)
	limited := middleware.RateLimitMiddleware(passcodeLimiter)

	auth := middleware.PasscodeMiddleware(s.Passcodes)
	protect := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Public
	api.HandleFunc("/health", s.StatusHandler.HandleHealth).Methods(http.MethodGet)

	// Passcode lifecycle (rate limited, not passcode protected)
	api.Handle("/passcode/current", limited(http.HandlerFunc(s.PasscodeHandler.HandleCurrent))).Methods(http.MethodGet)
	api.Handle("/passcode/generate", limited(http.HandlerFunc(s.PasscodeHandler.HandleGenerate))).Methods(http.MethodPost)
	api.Handle("/passcode/verify", limited(http.HandlerFunc(s.PasscodeHandler.HandleVerify))).Methods(http.MethodPost)
	api.Handle("/passcode", limited(http.HandlerFunc(s.PasscodeHandler.HandleDelete))).Methods(http.MethodDelete)

	// Protected API
	api.Handle("/status", protect(s.StatusHandler.HandleStatus)).Methods(http.MethodGet)
	api.Handle("/readers", protect(s.StatusHandler.HandleListReaders)).Methods(http.MethodGet)
	api.Handle("/card/current", protect(s.CardHandler.HandleCurrentCard)).Methods(http.MethodGet)
	api.Handle("/card/read", protect(s.CardHandler.HandleRead)).Methods(http.MethodPost)
	api.Handle("/card/cache/clear", protect(s.CardHandler.HandleClearCache)).Methods(http.MethodPost)
	api.Handle("/card/export", protect(s.CardHandler.HandleExport)).Methods(http.MethodGet)
	api.Handle("/audit-logs", protect(s.AuditHandler.HandleGetLogs)).Methods(http.MethodGet)

	// WebSocket event stream (passcode via header or ?passcode=)
	r.Handle("/ws", protect(s.WSManager.HandleWebSocket))

	// Metrics endpoint (protected - requires passcode)
	r.Handle("/metrics", auth(promhttp.Handler()))

	return r
}
