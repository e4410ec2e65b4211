package storage

import (
	"context"

	"reelpay-ledger/internal/domain"
)

// Ledger provides transactional access to all ledger state. Every engine
// operation runs inside a single InTx call: all invariant checks read the
// current persisted state and every mutation commits or rolls back as one
// unit.
type Ledger interface {
	// InTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back entirely otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the state accessible within one ledger transaction.
type Tx interface {
	// GetAdmin retrieves the singleton admin record. Returns ErrNotFound
	// before initialization.
	GetAdmin(ctx context.Context) (*domain.AdminAccount, error)

	// PutAdmin creates or replaces the singleton admin record.
	PutAdmin(ctx context.Context, a *domain.AdminAccount) error

	// InsertPool adds a new pool. Returns ErrDuplicateKey if the address
	// or seed label is taken.
	InsertPool(ctx context.Context, p *domain.PoolAccount) error

	// GetPool retrieves a pool by derived address. Returns ErrNotFound if absent.
	GetPool(ctx context.Context, address string) (*domain.PoolAccount, error)

	// GetPoolBySeed retrieves a pool by seed label. Returns ErrNotFound if absent.
	GetPoolBySeed(ctx context.Context, seedLabel string) (*domain.PoolAccount, error)

	// UpdatePoolBalance sets the balance of an existing pool.
	UpdatePoolBalance(ctx context.Context, address string, balance uint64) error

	// InsertGiveaway adds a new giveaway pool. Returns ErrDuplicateKey if
	// the address is occupied.
	InsertGiveaway(ctx context.Context, g *domain.GiveawayPool) error

	// GetGiveaway retrieves a giveaway pool by derived address.
	// Returns ErrNotFound if absent.
	GetGiveaway(ctx context.Context, address string) (*domain.GiveawayPool, error)

	// UpdateGiveaway replaces a giveaway pool's mutable state
	// (balance, claimed slots).
	UpdateGiveaway(ctx context.Context, g *domain.GiveawayPool) error

	// AppendClaim records a successful payout.
	AppendClaim(ctx context.Context, c *domain.ClaimRecord) error

	// GetClaims retrieves all payouts from a giveaway, ordered by claim time ASC.
	GetClaims(ctx context.Context, giveawayAddress string) ([]*domain.ClaimRecord, error)

	// GetHolding retrieves a holding account by (address, mint).
	// Returns ErrNotFound if absent.
	GetHolding(ctx context.Context, address, mint string) (*domain.HoldingAccount, error)

	// PutHolding creates or replaces a holding account.
	PutHolding(ctx context.Context, h *domain.HoldingAccount) error

	// InsertPayment records an order payment. Returns ErrDuplicateKey if
	// (pool_address, order_id) was already booked.
	InsertPayment(ctx context.Context, p *domain.PaymentRecord) error

	// GetPayments retrieves all payments into a pool, ordered by payment time ASC.
	GetPayments(ctx context.Context, poolAddress string) ([]*domain.PaymentRecord, error)
}

// EventStore provides access to the append-only ledger-event journal.
// The journal lives outside the transactional boundary; events are
// emitted after commit for external reconciliation.
type EventStore interface {
	// Insert appends an event to the journal.
	Insert(ctx context.Context, e *domain.LedgerEvent) error

	// GetByRefID retrieves all events for a reference ID, ordered by
	// emission time ASC.
	GetByRefID(ctx context.Context, refID string) ([]*domain.LedgerEvent, error)
}
