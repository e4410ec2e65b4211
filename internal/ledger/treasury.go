package ledger

import (
	"context"
	"errors"
	"fmt"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/storage"
)

// TreasuryLedger owns the admin singleton and the per-asset treasury
// pools: initialization, order payments, withdrawals, admin transfer and
// pool creation.
type TreasuryLedger struct {
	*engine
}

// NewTreasuryLedger creates a TreasuryLedger.
func NewTreasuryLedger(opts Options) (*TreasuryLedger, error) {
	e, err := newEngine(opts)
	if err != nil {
		return nil, err
	}
	return &TreasuryLedger{engine: e}, nil
}

// PoolAddress returns the deterministic address for a pool seed label.
func (l *TreasuryLedger) PoolAddress(seedLabel string) (string, error) {
	addr, _, err := l.deriver.DeriveString(seedLabel)
	return addr, err
}

// Initialize creates the singleton admin account and the native pool.
// First call only; fails with ErrAlreadyInitialized afterwards.
func (l *TreasuryLedger) Initialize(ctx context.Context, adminIdentity string) (err error) {
	defer func() { l.record("initialize", err) }()

	if adminIdentity == "" {
		return fmt.Errorf("%w: admin identity is required", ErrInvalidArgument)
	}

	adminAddress, _, err := l.deriver.DeriveString(AdminSeed)
	if err != nil {
		return err
	}
	nativeAddress, _, err := l.deriver.DeriveString(NativePoolSeed)
	if err != nil {
		return err
	}

	var events []*domain.LedgerEvent
	err = l.store.InTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetAdmin(ctx); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		if err := tx.PutAdmin(ctx, &domain.AdminAccount{
			Address:       adminAddress,
			AdminIdentity: adminIdentity,
			CreatedAt:     l.nowMs(),
		}); err != nil {
			return err
		}

		if err := tx.InsertPool(ctx, &domain.PoolAccount{
			Address:   nativeAddress,
			SeedLabel: NativePoolSeed,
			Kind:      domain.AssetNative,
			Balance:   0,
			CreatedAt: l.nowMs(),
		}); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return ErrAlreadyInitialized
			}
			return err
		}

		events = append(events, &domain.LedgerEvent{
			Type:      domain.EventInitialized,
			RefID:     NativePoolSeed,
			Actor:     adminIdentity,
			EmittedAt: l.nowMs(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	l.emit(ctx, events)
	return nil
}

// CreatePool creates a token-denominated treasury pool. Admin only.
func (l *TreasuryLedger) CreatePool(ctx context.Context, caller, seedLabel, mint string) (pool *domain.PoolAccount, err error) {
	defer func() { l.record("create_pool", err) }()

	if seedLabel == "" || seedLabel == AdminSeed {
		return nil, fmt.Errorf("%w: bad seed label %q", ErrInvalidArgument, seedLabel)
	}
	if _, err := decodePubkey(mint); err != nil {
		return nil, err
	}

	address, _, err := l.deriver.DeriveString(seedLabel)
	if err != nil {
		return nil, err
	}

	var events []*domain.LedgerEvent
	err = l.store.InTx(ctx, func(tx storage.Tx) error {
		if err := l.requireAdmin(ctx, tx, caller); err != nil {
			return err
		}

		pool = &domain.PoolAccount{
			Address:   address,
			SeedLabel: seedLabel,
			Kind:      domain.AssetToken,
			Mint:      mint,
			Balance:   0,
			CreatedAt: l.nowMs(),
		}
		if err := tx.InsertPool(ctx, pool); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return ErrAlreadyExists
			}
			return err
		}

		events = append(events, &domain.LedgerEvent{
			Type:      domain.EventPoolCreated,
			RefID:     seedLabel,
			Actor:     caller,
			Mint:      mint,
			EmittedAt: l.nowMs(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.emit(ctx, events)
	return pool, nil
}

// PayNative transfers amount from the payer's native holding into the
// native pool and books the order.
func (l *TreasuryLedger) PayNative(ctx context.Context, payer, orderID string, amount uint64) error {
	return l.pay(ctx, payer, NativePoolSeed, orderID, amount)
}

// PayToken transfers amount from the payer's token holding into the
// named pool and books the order.
func (l *TreasuryLedger) PayToken(ctx context.Context, payer, seedLabel, orderID string, amount uint64) error {
	if seedLabel == NativePoolSeed {
		return fmt.Errorf("%w: %q is the native pool", ErrInvalidArgument, seedLabel)
	}
	return l.pay(ctx, payer, seedLabel, orderID, amount)
}

func (l *TreasuryLedger) pay(ctx context.Context, payer, seedLabel, orderID string, amount uint64) (err error) {
	defer func() { l.record("pay", err) }()

	if amount == 0 {
		return ErrInvalidAmount
	}
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrInvalidArgument)
	}
	if payer == "" {
		return fmt.Errorf("%w: payer is required", ErrInvalidArgument)
	}

	var events []*domain.LedgerEvent
	err = l.store.InTx(ctx, func(tx storage.Tx) error {
		pool, err := tx.GetPoolBySeed(ctx, seedLabel)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := debitHolding(ctx, tx, payer, pool.Mint, amount); err != nil {
			return err
		}

		balance, err := checkedAdd(pool.Balance, amount)
		if err != nil {
			return err
		}
		if err := tx.UpdatePoolBalance(ctx, pool.Address, balance); err != nil {
			return err
		}

		if err := tx.InsertPayment(ctx, &domain.PaymentRecord{
			PoolAddress: pool.Address,
			OrderID:     orderID,
			Payer:       payer,
			Amount:      amount,
			PaidAt:      l.nowMs(),
		}); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return ErrDuplicateOrder
			}
			return err
		}

		events = append(events, &domain.LedgerEvent{
			Type:      domain.EventPay,
			RefID:     orderID,
			Amount:    amount,
			Actor:     payer,
			Mint:      pool.Mint,
			EmittedAt: l.nowMs(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	if l.metrics != nil {
		l.metrics.PaymentsBooked.Inc()
		l.metrics.AmountPaid.Add(float64(amount))
	}
	l.emit(ctx, events)
	return nil
}

// Withdraw moves amount from the named pool to the destination holding.
// Admin only.
func (l *TreasuryLedger) Withdraw(ctx context.Context, caller, seedLabel string, amount uint64, destination string) (err error) {
	defer func() { l.record("withdraw", err) }()

	if amount == 0 {
		return ErrInvalidAmount
	}
	if destination == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidArgument)
	}

	var events []*domain.LedgerEvent
	err = l.store.InTx(ctx, func(tx storage.Tx) error {
		if err := l.requireAdmin(ctx, tx, caller); err != nil {
			return err
		}

		pool, err := tx.GetPoolBySeed(ctx, seedLabel)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		balance, err := checkedSub(pool.Balance, amount)
		if err != nil {
			return err
		}
		if err := tx.UpdatePoolBalance(ctx, pool.Address, balance); err != nil {
			return err
		}

		if err := creditHolding(ctx, tx, destination, pool.Mint, amount); err != nil {
			return err
		}

		events = append(events, &domain.LedgerEvent{
			Type:      domain.EventWithdraw,
			RefID:     seedLabel,
			Amount:    amount,
			Actor:     caller,
			Mint:      pool.Mint,
			EmittedAt: l.nowMs(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	if l.metrics != nil {
		l.metrics.AmountWithdrawn.Add(float64(amount))
	}
	l.emit(ctx, events)
	return nil
}

// WithdrawNative withdraws from the native pool. Admin only.
func (l *TreasuryLedger) WithdrawNative(ctx context.Context, caller string, amount uint64, destination string) error {
	return l.Withdraw(ctx, caller, NativePoolSeed, amount, destination)
}

// ChangeAdmin replaces the admin identity. Current admin only.
func (l *TreasuryLedger) ChangeAdmin(ctx context.Context, caller, newIdentity string) (err error) {
	defer func() { l.record("change_admin", err) }()

	if newIdentity == "" {
		return fmt.Errorf("%w: new admin identity is required", ErrInvalidArgument)
	}

	var events []*domain.LedgerEvent
	err = l.store.InTx(ctx, func(tx storage.Tx) error {
		admin, err := tx.GetAdmin(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrUnauthorized
			}
			return err
		}
		if caller != admin.AdminIdentity {
			return ErrUnauthorized
		}

		admin.AdminIdentity = newIdentity
		if err := tx.PutAdmin(ctx, admin); err != nil {
			return err
		}

		events = append(events, &domain.LedgerEvent{
			Type:      domain.EventAdminChanged,
			RefID:     AdminSeed,
			Actor:     newIdentity,
			EmittedAt: l.nowMs(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	l.emit(ctx, events)
	return nil
}

func (l *TreasuryLedger) requireAdmin(ctx context.Context, tx storage.Tx, caller string) error {
	admin, err := tx.GetAdmin(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if caller == "" || caller != admin.AdminIdentity {
		return ErrUnauthorized
	}
	return nil
}
