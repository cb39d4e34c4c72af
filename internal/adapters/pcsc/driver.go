// Package pcsc is the production reader driver adapter. It speaks PC/SC via
// the scard binding and maps every hardware failure onto the closed domain
// fault set so the monitor can match faults exhaustively.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ebfe/scard"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
)

// Driver implements ports.ReaderDriver over a lazily established PC/SC
// context. The context survives reader unplug/replug; it is re-established
// only when the service manager connection itself dies.
type Driver struct {
	mu  sync.Mutex
	ctx *scard.Context
}

var _ ports.ReaderDriver = (*Driver)(nil)

// NewDriver returns a driver. No PC/SC resources are acquired until the first
// call.
func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) context() (*scard.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx != nil {
		if ok, err := d.ctx.IsValid(); err == nil && ok {
			return d.ctx, nil
		}
		d.ctx.Release()
		d.ctx = nil
	}

	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("%w: establish pcsc context: %v", domain.ErrNoReader, err)
	}
	d.ctx = ctx
	return ctx, nil
}

// ListReaders enumerates attached PC/SC readers.
func (d *Driver) ListReaders(_ context.Context) ([]domain.ReaderDescriptor, error) {
	sctx, err := d.context()
	if err != nil {
		return nil, err
	}

	names, err := sctx.ListReaders()
	if err != nil {
		if errors.Is(err, scard.ErrNoReadersAvailable) {
			return nil, nil
		}
		return nil, mapError(err)
	}

	readers := make([]domain.ReaderDescriptor, 0, len(names))
	for i, name := range names {
		readers = append(readers, domain.ReaderDescriptor{Index: i, Name: name})
	}
	return readers, nil
}

// Connect opens an exclusive session with the reader at the given index and
// selects the Thai ID applet. It succeeds only when a card is seated and
// answers the select, matching the monitor's expectation that connect means
// "card present", not "reader present".
func (d *Driver) Connect(ctx context.Context, index int) (ports.ReaderSession, error) {
	readers, err := d.ListReaders(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(readers) {
		return nil, fmt.Errorf("%w: reader index %d out of range", domain.ErrNoReader, index)
	}

	sctx, err := d.context()
	if err != nil {
		return nil, err
	}

	card, err := sctx.Connect(readers[index].Name, scard.ShareExclusive, scard.ProtocolAny)
	if err != nil {
		return nil, mapError(err)
	}

	session := &Session{card: card}
	if err := session.selectApplet(); err != nil {
		session.Disconnect()
		return nil, err
	}

	slog.Debug("pcsc session opened", "reader", readers[index].Name)
	return session, nil
}

// Close releases the PC/SC context.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		d.ctx.Release()
		d.ctx = nil
	}
}

// mapError folds scard errors into the domain fault taxonomy.
func mapError(err error) error {
	switch {
	case errors.Is(err, scard.ErrNoSmartcard),
		errors.Is(err, scard.ErrUnpoweredCard):
		return fmt.Errorf("%w: %v", domain.ErrNoCard, err)
	case errors.Is(err, scard.ErrRemovedCard),
		errors.Is(err, scard.ErrResetCard),
		errors.Is(err, scard.ErrUnresponsiveCard),
		errors.Is(err, scard.ErrNotTransacted):
		return fmt.Errorf("%w: %v", domain.ErrConnectionLost, err)
	case errors.Is(err, scard.ErrNoReadersAvailable),
		errors.Is(err, scard.ErrUnknownReader),
		errors.Is(err, scard.ErrReaderUnavailable):
		return fmt.Errorf("%w: %v", domain.ErrNoReader, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrCommand, err)
	}
}
