package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/storage"
)

// Ledger implements storage.Ledger using PostgreSQL. Each InTx call maps
// to one database transaction; fn errors roll the transaction back.
type Ledger struct {
	pool *Pool
}

// NewLedger creates a new Ledger.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Compile-time interface check.
var _ storage.Ledger = (*Ledger)(nil)

// InTx runs fn inside a database transaction.
func (l *Ledger) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

// ledgerTx adapts one pgx transaction to storage.Tx.
type ledgerTx struct {
	tx pgx.Tx
}

var _ storage.Tx = (*ledgerTx)(nil)

func (t *ledgerTx) GetAdmin(ctx context.Context) (*domain.AdminAccount, error) {
	query := `
		SELECT address, admin_identity, created_at
		FROM admin_account
	`

	var a domain.AdminAccount
	err := t.tx.QueryRow(ctx, query).Scan(&a.Address, &a.AdminIdentity, &a.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &a, nil
}

func (t *ledgerTx) PutAdmin(ctx context.Context, a *domain.AdminAccount) error {
	if a == nil || a.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO admin_account (singleton, address, admin_identity, created_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (singleton) DO UPDATE
		SET address = EXCLUDED.address, admin_identity = EXCLUDED.admin_identity
	`

	if _, err := t.tx.Exec(ctx, query, a.Address, a.AdminIdentity, a.CreatedAt); err != nil {
		return fmt.Errorf("put admin: %w", err)
	}
	return nil
}

func (t *ledgerTx) InsertPool(ctx context.Context, p *domain.PoolAccount) error {
	if p == nil || p.Address == "" || p.SeedLabel == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pool_accounts (address, seed_label, kind, mint, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := t.tx.Exec(ctx, query,
		p.Address, p.SeedLabel, string(p.Kind), p.Mint, int64(p.Balance), p.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

const poolColumns = "address, seed_label, kind, mint, balance, created_at"

func (t *ledgerTx) GetPool(ctx context.Context, address string) (*domain.PoolAccount, error) {
	query := `SELECT ` + poolColumns + ` FROM pool_accounts WHERE address = $1`
	return scanPool(t.tx.QueryRow(ctx, query, address))
}

func (t *ledgerTx) GetPoolBySeed(ctx context.Context, seedLabel string) (*domain.PoolAccount, error) {
	query := `SELECT ` + poolColumns + ` FROM pool_accounts WHERE seed_label = $1`
	return scanPool(t.tx.QueryRow(ctx, query, seedLabel))
}

func scanPool(row pgx.Row) (*domain.PoolAccount, error) {
	var p domain.PoolAccount
	var kind string
	var balance int64

	err := row.Scan(&p.Address, &p.SeedLabel, &kind, &p.Mint, &balance, &p.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan pool row: %w", err)
	}

	p.Kind = domain.AssetKind(kind)
	p.Balance = uint64(balance)
	return &p, nil
}

func (t *ledgerTx) UpdatePoolBalance(ctx context.Context, address string, balance uint64) error {
	query := `UPDATE pool_accounts SET balance = $2 WHERE address = $1`

	tag, err := t.tx.Exec(ctx, query, address, int64(balance))
	if err != nil {
		return fmt.Errorf("update pool balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) InsertGiveaway(ctx context.Context, g *domain.GiveawayPool) error {
	if g == nil || g.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO giveaway_pools (
			address, giveaway_id, creator, kind, mint, token_pool_address,
			total_slots, claimed_slots, balance, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := t.tx.Exec(ctx, query,
		g.Address,
		g.GiveawayID.Hex(),
		g.Creator,
		string(g.Kind),
		g.Mint,
		g.TokenPoolAddress,
		int32(g.TotalSlots),
		int32(g.ClaimedSlots),
		int64(g.Balance),
		g.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert giveaway: %w", err)
	}
	return nil
}

func (t *ledgerTx) GetGiveaway(ctx context.Context, address string) (*domain.GiveawayPool, error) {
	query := `
		SELECT address, giveaway_id, creator, kind, mint, token_pool_address,
			total_slots, claimed_slots, balance, created_at
		FROM giveaway_pools
		WHERE address = $1
	`

	var g domain.GiveawayPool
	var giveawayID, kind string
	var totalSlots, claimedSlots int32
	var balance int64

	err := t.tx.QueryRow(ctx, query, address).Scan(
		&g.Address,
		&giveawayID,
		&g.Creator,
		&kind,
		&g.Mint,
		&g.TokenPoolAddress,
		&totalSlots,
		&claimedSlots,
		&balance,
		&g.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get giveaway: %w", err)
	}

	id, err := domain.ParseIdentity(giveawayID)
	if err != nil {
		return nil, fmt.Errorf("parse stored giveaway id: %w", err)
	}
	g.GiveawayID = id
	g.Kind = domain.AssetKind(kind)
	g.TotalSlots = uint32(totalSlots)
	g.ClaimedSlots = uint32(claimedSlots)
	g.Balance = uint64(balance)
	return &g, nil
}

func (t *ledgerTx) UpdateGiveaway(ctx context.Context, g *domain.GiveawayPool) error {
	if g == nil || g.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE giveaway_pools
		SET claimed_slots = $2, balance = $3
		WHERE address = $1
	`

	tag, err := t.tx.Exec(ctx, query, g.Address, int32(g.ClaimedSlots), int64(g.Balance))
	if err != nil {
		return fmt.Errorf("update giveaway: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) AppendClaim(ctx context.Context, c *domain.ClaimRecord) error {
	if c == nil || c.GiveawayAddress == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO giveaway_claims (giveaway_address, receiver, amount, claim_timestamp, claimed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := t.tx.Exec(ctx, query,
		c.GiveawayAddress, c.Receiver, int64(c.Amount), int64(c.Timestamp), c.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("append claim: %w", err)
	}
	return nil
}

func (t *ledgerTx) GetClaims(ctx context.Context, giveawayAddress string) ([]*domain.ClaimRecord, error) {
	query := `
		SELECT giveaway_address, receiver, amount, claim_timestamp, claimed_at
		FROM giveaway_claims
		WHERE giveaway_address = $1
		ORDER BY claimed_at ASC, id ASC
	`

	rows, err := t.tx.Query(ctx, query, giveawayAddress)
	if err != nil {
		return nil, fmt.Errorf("get claims: %w", err)
	}
	defer rows.Close()

	var claims []*domain.ClaimRecord
	for rows.Next() {
		var c domain.ClaimRecord
		var amount, timestamp int64
		if err := rows.Scan(&c.GiveawayAddress, &c.Receiver, &amount, &timestamp, &c.ClaimedAt); err != nil {
			return nil, fmt.Errorf("scan claim row: %w", err)
		}
		c.Amount = uint64(amount)
		c.Timestamp = uint64(timestamp)
		claims = append(claims, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim rows: %w", err)
	}
	return claims, nil
}

func (t *ledgerTx) GetHolding(ctx context.Context, address, mint string) (*domain.HoldingAccount, error) {
	query := `
		SELECT address, mint, balance
		FROM holding_accounts
		WHERE address = $1 AND mint = $2
	`

	var h domain.HoldingAccount
	var balance int64
	err := t.tx.QueryRow(ctx, query, address, mint).Scan(&h.Address, &h.Mint, &balance)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get holding: %w", err)
	}
	h.Balance = uint64(balance)
	return &h, nil
}

func (t *ledgerTx) PutHolding(ctx context.Context, h *domain.HoldingAccount) error {
	if h == nil || h.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO holding_accounts (address, mint, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (address, mint) DO UPDATE SET balance = EXCLUDED.balance
	`

	if _, err := t.tx.Exec(ctx, query, h.Address, h.Mint, int64(h.Balance)); err != nil {
		return fmt.Errorf("put holding: %w", err)
	}
	return nil
}

func (t *ledgerTx) InsertPayment(ctx context.Context, p *domain.PaymentRecord) error {
	if p == nil || p.PoolAddress == "" || p.OrderID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO payments (pool_address, order_id, payer, amount, paid_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := t.tx.Exec(ctx, query,
		p.PoolAddress, p.OrderID, p.Payer, int64(p.Amount), p.PaidAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (t *ledgerTx) GetPayments(ctx context.Context, poolAddress string) ([]*domain.PaymentRecord, error) {
	query := `
		SELECT pool_address, order_id, payer, amount, paid_at
		FROM payments
		WHERE pool_address = $1
		ORDER BY paid_at ASC, id ASC
	`

	rows, err := t.tx.Query(ctx, query, poolAddress)
	if err != nil {
		return nil, fmt.Errorf("get payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.PaymentRecord
	for rows.Next() {
		var p domain.PaymentRecord
		var amount int64
		if err := rows.Scan(&p.PoolAddress, &p.OrderID, &p.Payer, &amount, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		p.Amount = uint64(amount)
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}
