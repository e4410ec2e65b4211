// Package ledger implements the escrow and settlement engine: the
// giveaway claim state machine and the multi-asset treasury. Every
// operation executes inside one storage transaction; invariant checks
// always read the current persisted state.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mr-tron/base58"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/observability"
	"reelpay-ledger/internal/pda"
	"reelpay-ledger/internal/storage"
)

// Derivation seed labels.
const (
	AdminSeed      = "admin"
	NativePoolSeed = "put_pool"
)

// EventSink receives committed ledger events for external reconciliation.
// Publishing happens after commit; delivery is at-least-once and never
// fails the originating operation.
type EventSink interface {
	Publish(ctx context.Context, e *domain.LedgerEvent) error
}

// Options configures the ledger engines.
type Options struct {
	// ProgramID is the base58 namespace for address derivation. Required.
	ProgramID string

	// Store is the transactional ledger state. Required.
	Store storage.Ledger

	// Events receives committed events. Optional.
	Events EventSink

	// Logger defaults to log.Default().
	Logger *log.Logger

	// Metrics records operation outcomes. Optional.
	Metrics *observability.Metrics

	// Now supplies the ledger clock. Defaults to time.Now.
	Now func() time.Time

	// DisableClaimDeadline turns off the freshness check on claim
	// timestamps. By default a claim's signed timestamp must be strictly
	// greater than the current unix time.
	DisableClaimDeadline bool
}

// engine holds the wiring shared by both ledgers.
type engine struct {
	deriver         *pda.Deriver
	store           storage.Ledger
	events          EventSink
	logger          *log.Logger
	metrics         *observability.Metrics
	now             func() time.Time
	enforceDeadline bool
}

func newEngine(opts Options) (*engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("ledger: store is required")
	}
	deriver, err := pda.NewDeriver(opts.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &engine{
		deriver:         deriver,
		store:           opts.Store,
		events:          opts.Events,
		logger:          logger,
		metrics:         opts.Metrics,
		now:             now,
		enforceDeadline: !opts.DisableClaimDeadline,
	}, nil
}

func (e *engine) nowMs() int64 {
	return e.now().UnixMilli()
}

// emit publishes committed events and logs them in the reconciliation
// wire shape. Sink failures are logged, never propagated.
func (e *engine) emit(ctx context.Context, events []*domain.LedgerEvent) {
	for _, ev := range events {
		e.logger.Println(ev.String())
		if e.events == nil {
			continue
		}
		if err := e.events.Publish(ctx, ev); err != nil {
			e.logger.Printf("Error publishing event %s: %v", ev.String(), err)
		}
	}
}

func (e *engine) record(op string, err error) {
	if e.metrics != nil {
		e.metrics.RecordOperation(op, err)
	}
}

// decodePubkey decodes a base58 account address into its 32 raw bytes.
func decodePubkey(address string) ([32]byte, error) {
	var out [32]byte
	raw, err := base58.Decode(address)
	if err != nil {
		return out, fmt.Errorf("%w: decode address: %v", ErrInvalidArgument, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("%w: address must be 32 bytes, got %d", ErrInvalidArgument, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// creditHolding adds amount to the (address, mint) holding, creating it
// at zero if absent.
func creditHolding(ctx context.Context, tx storage.Tx, address, mint string, amount uint64) error {
	holding, err := tx.GetHolding(ctx, address, mint)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		holding = &domain.HoldingAccount{Address: address, Mint: mint}
	}
	balance, err := checkedAdd(holding.Balance, amount)
	if err != nil {
		return err
	}
	holding.Balance = balance
	return tx.PutHolding(ctx, holding)
}

// debitHolding subtracts amount from the (address, mint) holding. A
// missing holding cannot cover anything, so it fails the same way a
// short balance does.
func debitHolding(ctx context.Context, tx storage.Tx, address, mint string, amount uint64) error {
	holding, err := tx.GetHolding(ctx, address, mint)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInsufficientBalance
		}
		return err
	}
	balance, err := checkedSub(holding.Balance, amount)
	if err != nil {
		return err
	}
	holding.Balance = balance
	return tx.PutHolding(ctx, holding)
}
