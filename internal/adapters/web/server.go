// Package web is the HTTP/WebSocket adapter: router, middleware, handlers and
// the subscriber transport over the event bus.
package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cardbridge/cardbridge/internal/adapters/reporting"
	"github.com/cardbridge/cardbridge/internal/adapters/web/handlers"
	"github.com/cardbridge/cardbridge/internal/core/services/events"
	"github.com/cardbridge/cardbridge/internal/core/ports"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr      string
	Passcodes ports.PasscodeService

	WSManager       *WSManager
	StatusHandler   *handlers.StatusHandler
	CardHandler     *handlers.CardHandler
	PasscodeHandler *handlers.PasscodeHandler
	AuditHandler    *handlers.AuditHandler

	srv *http.Server
}

// NewServer creates a new web server.
func NewServer(
	addr string,
	version string,
	monitor ports.CardMonitor,
	passcodes ports.PasscodeService,
	auditService ports.AuditService,
	bus *events.Bus,
	exporter *reporting.PDFExporter,
) *Server {
	return &Server{
		Addr:            addr,
		Passcodes:       passcodes,
		WSManager:       NewWSManager(bus),
		StatusHandler:   handlers.NewStatusHandler(monitor, version),
		CardHandler:     handlers.NewCardHandler(monitor, auditService, exporter),
		PasscodeHandler: handlers.NewPasscodeHandler(passcodes, auditService),
		AuditHandler:    handlers.NewAuditHandler(auditService),
	}
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails.
func (s *Server) Run(ctx context.Context) error {
	handler := SetupRoutes(s)

	// Instrument with OpenTelemetry
	instrumentedHandler := otelhttp.NewHandler(handler, "cardbridge-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           instrumentedHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown implementation
	go func() {
		<-ctx.Done()
		log.Println("Web Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Web Server shutdown error: %v", err)
		}
	}()

	log.Printf("Web server listening on %s", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
