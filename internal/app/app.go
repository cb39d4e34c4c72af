// Package app wires the agent together: storage, passcode store, reader
// driver, monitor, event bus and the web server, with explicit lifecycle
// control instead of process-wide singletons.
package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cardbridge/cardbridge/internal/adapters/pcsc"
	"github.com/cardbridge/cardbridge/internal/adapters/readersim"
	"github.com/cardbridge/cardbridge/internal/adapters/reporting"
	"github.com/cardbridge/cardbridge/internal/adapters/secrets"
	"github.com/cardbridge/cardbridge/internal/adapters/storage"
	"github.com/cardbridge/cardbridge/internal/adapters/web"
	"github.com/cardbridge/cardbridge/internal/config"
	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
	"github.com/cardbridge/cardbridge/internal/core/services/audit"
	"github.com/cardbridge/cardbridge/internal/core/services/auth"
	"github.com/cardbridge/cardbridge/internal/core/services/events"
	"github.com/cardbridge/cardbridge/internal/core/services/monitor"
	"github.com/cardbridge/cardbridge/internal/telemetry"
)

// Version is the agent version reported by the status endpoint and traces.
const Version = "2.3.0"

// Application holds the core components of the agent and acts as the
// composition root.
type Application struct {
	Config       *config.Config
	Monitor      *monitor.Service
	Bus          *events.Bus
	WebServer    *web.Server
	AuditService ports.AuditService

	pcscDriver *pcsc.Driver
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

func (app *Application) bootstrap() error {
	telemetry.InitMetrics()

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.AuditService = audit.NewAuditService(store)

	passcodeStore, err := secrets.NewFileStore(app.Config.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to init passcode store: %w", err)
	}
	passcodes := auth.NewPasscodeService(passcodeStore)

	driver := app.initDriver()

	app.Bus = events.NewBus()
	app.Monitor = monitor.New(driver, app.Bus, monitor.Options{
		AutoReadOnInsert: app.Config.AutoRead,
	})

	app.WebServer = web.NewServer(
		app.Config.Addr,
		Version,
		app.Monitor,
		passcodes,
		app.AuditService,
		app.Bus,
		reporting.NewPDFExporter(),
	)

	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init audit storage: %w", err)
	}
	return store, nil
}

func (app *Application) initDriver() ports.ReaderDriver {
	if app.Config.MockMode {
		log.Println("Mock Mode Active: using simulated reader")
		sim := readersim.NewDriver()
		sim.InsertCard(readersim.DemoRecord())
		return sim
	}
	app.pcscDriver = pcsc.NewDriver()
	return app.pcscDriver
}

// Run starts the monitor and the web server and blocks until ctx is
// cancelled. Shutdown is deterministic: the monitor releases its hardware
// session before Run returns.
func (app *Application) Run(ctx context.Context) error {
	if err := app.Monitor.Start(ctx, app.Config.PollInterval); err != nil {
		return fmt.Errorf("failed to start card monitor: %w", err)
	}
	if err := app.AuditService.Record(ctx, domain.ActionMonitorStart, "monitor",
		fmt.Sprintf("poll_interval=%s auto_read=%t", app.Config.PollInterval, app.Config.AutoRead)); err != nil {
		slog.Warn("could not record monitor start", "error", err)
	}

	err := app.WebServer.Run(ctx)

	app.Monitor.Stop()
	if app.pcscDriver != nil {
		app.pcscDriver.Close()
	}
	if auditErr := app.AuditService.Record(context.Background(), domain.ActionMonitorStop, "monitor", ""); auditErr != nil {
		slog.Warn("could not record monitor stop", "error", auditErr)
	}

	return err
}
