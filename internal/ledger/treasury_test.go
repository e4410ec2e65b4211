package ledger

import (
	"context"
	"errors"
	"testing"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/storage"
	"reelpay-ledger/internal/storage/memory"
)

func newTreasuryFixture(t *testing.T) (*TreasuryLedger, *memory.Ledger) {
	t.Helper()

	store := memory.NewLedger()
	l, err := NewTreasuryLedger(testOptions(store, nil))
	if err != nil {
		t.Fatalf("NewTreasuryLedger failed: %v", err)
	}
	return l, store
}

func TestInitialize_Once(t *testing.T) {
	l, _ := newTreasuryFixture(t)
	ctx := context.Background()
	admin := testAddress(0xA0)

	if err := l.Initialize(ctx, admin); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	err := l.Initialize(ctx, admin)
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestInitialize_CreatesNativePool(t *testing.T) {
	l, _ := newTreasuryFixture(t)
	ctx := context.Background()

	if err := l.Initialize(ctx, testAddress(0xA0)); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	addr, err := l.PoolAddress(NativePoolSeed)
	if err != nil {
		t.Fatalf("PoolAddress failed: %v", err)
	}
	balances, err := l.Balances(ctx, []BalanceQuery{{Address: addr}})
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if balances[0].Balance != 0 {
		t.Errorf("fresh native pool balance: got %d, want 0", balances[0].Balance)
	}
}

func TestCreatePool_AdminGated(t *testing.T) {
	l, _ := newTreasuryFixture(t)
	ctx := context.Background()
	admin := testAddress(0xA0)
	mint := testAddress(0x03)

	// Before initialization nobody is admin.
	_, err := l.CreatePool(ctx, admin, "usdt_pool", mint)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized before initialize, got %v", err)
	}

	if err := l.Initialize(ctx, admin); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	_, err = l.CreatePool(ctx, testAddress(0xB0), "usdt_pool", mint)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for non-admin, got %v", err)
	}

	pool, err := l.CreatePool(ctx, admin, "usdt_pool", mint)
	if err != nil {
		t.Fatalf("create pool failed: %v", err)
	}
	if pool.Kind != domain.AssetToken || pool.Mint != mint {
		t.Errorf("pool fields: kind=%s mint=%s", pool.Kind, pool.Mint)
	}

	_, err = l.CreatePool(ctx, admin, "usdt_pool", mint)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate label, got %v", err)
	}
}

func TestCreatePool_RejectsAdminSeed(t *testing.T) {
	l, _ := newTreasuryFixture(t)
	ctx := context.Background()
	admin := testAddress(0xA0)
	if err := l.Initialize(ctx, admin); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	_, err := l.CreatePool(ctx, admin, AdminSeed, testAddress(0x03))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for reserved label, got %v", err)
	}
}

func TestPayToken_ExactIncrement(t *testing.T) {
	l, store := newTreasuryFixture(t)
	ctx := context.Background()
	admin := testAddress(0xA0)
	payer := testAddress(0x05)
	mint := testAddress(0x03)

	if err := l.Initialize(ctx, admin); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if _, err := l.CreatePool(ctx, admin, "usdt_pool", mint); err != nil {
		t.Fatalf("create pool failed: %v", err)
	}
	store.SeedHolding(payer, mint, 500_000)

	if err := l.PayToken(ctx, payer, "usdt_pool", "order-1", 100_000); err != nil {
		t.Fatalf("pay failed: %v", err)
	}

	pool, err := poolBySeed(ctx, l, "usdt_pool")
	if err != nil {
		t.Fatalf("pool lookup failed: %v", err)
	}
	if pool.Balance != 100_000 {
		t.Errorf("pool balance: got %d, want 100000", pool.Balance)
	}

	balances, err := l.Balances(ctx, []BalanceQuery{{Address: payer, Mint: mint}})
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if balances[0].Balance != 400_000 {
		t.Errorf("payer balance: got %d, want 400000", balances[0].Balance)
	}
}

func TestPay_ZeroAmount(t *testing.T) {
	l, _ := newTreasuryFixture(t)
	ctx := context.Background()
	if err := l.Initialize(ctx, testAddress(0xA0)); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	err := l.PayNative(ctx, testAddress(0x05), "order-1", 0)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestPay_DuplicateOrder(t *testing.T) {
	l, store := newTreasuryFixture(t)
	ctx := context.Background()
	payer := testAddress(0x05)

	if err := l.Initialize(ctx, testAddress(0xA0)); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	store.SeedHolding(payer, domain.NativeMint, 1_000)

	if err := l.PayNative(ctx, payer, "order-1", 100); err != nil {
		t.Fatalf("first pay failed: %v", err)
	}
	err := l.PayNative(ctx, payer, "order-1", 100)
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Errorf("expected ErrDuplicateOrder, got %v", err)
	}

	// The rejected payment must not have moved funds.
	pool, err := poolBySeed(ctx, l, NativePoolSeed)
	if err != nil {
		t.Fatalf("pool lookup failed: %v", err)
	}
	if pool.Balance != 100 {
		t.Errorf("pool balance after duplicate: got %d, want 100", pool.Balance)
	}
	balances, err := l.Balances(ctx, []BalanceQuery{{Address: payer}})
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if balances[0].Balance != 900 {
		t.Errorf("payer balance after duplicate: got %d, want 900", balances[0].Balance)
	}
}

func TestPay_InsufficientPayer(t *testing.T) {
	l, store := newTreasuryFixture(t)
	ctx := context.Background()
	payer := testAddress(0x05)

	if err := l.Initialize(ctx, testAddress(0xA0)); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	store.SeedHolding(payer, domain.NativeMint, 50)

	err := l.PayNative(ctx, payer, "order-1", 100)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestPay_UnknownPool(t *testing.T) {
	l, store := newTreasuryFixture(t)
	ctx := context.Background()
	payer := testAddress(0x05)
	store.SeedHolding(payer, domain.NativeMint, 1_000)

	if err := l.Initialize(ctx, testAddress(0xA0)); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	err := l.PayToken(ctx, payer, "nope_pool", "order-1", 100)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWithdraw_AdminRotation(t *testing.T) {
	l, store := newTreasuryFixture(t)
	ctx := context.Background()
	adminA := testAddress(0xA0)
	adminB := testAddress(0xA1)
	payer := testAddress(0x05)
	dest := testAddress(0x06)

	if err := l.Initialize(ctx, adminA); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	store.SeedHolding(payer, domain.NativeMint, 1_000)
	if err := l.PayNative(ctx, payer, "order-1", 1_000); err != nil {
		t.Fatalf("pay failed: %v", err)
	}

	if err := l.ChangeAdmin(ctx, adminA, adminB); err != nil {
		t.Fatalf("change admin failed: %v", err)
	}

	// The old admin lost authority; the new one has it.
	err := l.WithdrawNative(ctx, adminA, 500, dest)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for old admin, got %v", err)
	}
	if err := l.WithdrawNative(ctx, adminB, 500, dest); err != nil {
		t.Fatalf("withdraw by new admin failed: %v", err)
	}

	pool, err := poolBySeed(ctx, l, NativePoolSeed)
	if err != nil {
		t.Fatalf("pool lookup failed: %v", err)
	}
	if pool.Balance != 500 {
		t.Errorf("pool balance: got %d, want 500", pool.Balance)
	}
	balances, err := l.Balances(ctx, []BalanceQuery{{Address: dest}})
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if balances[0].Balance != 500 {
		t.Errorf("destination balance: got %d, want 500", balances[0].Balance)
	}
}

func TestWithdraw_ExceedsPool(t *testing.T) {
	l, store := newTreasuryFixture(t)
	ctx := context.Background()
	admin := testAddress(0xA0)
	payer := testAddress(0x05)

	if err := l.Initialize(ctx, admin); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	store.SeedHolding(payer, domain.NativeMint, 100)
	if err := l.PayNative(ctx, payer, "order-1", 100); err != nil {
		t.Fatalf("pay failed: %v", err)
	}

	err := l.WithdrawNative(ctx, admin, 101, testAddress(0x06))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestChangeAdmin_NonAdmin(t *testing.T) {
	l, _ := newTreasuryFixture(t)
	ctx := context.Background()

	if err := l.Initialize(ctx, testAddress(0xA0)); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	err := l.ChangeAdmin(ctx, testAddress(0xB0), testAddress(0xA1))
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestBalances_EmptyQuery(t *testing.T) {
	l, _ := newTreasuryFixture(t)

	_, err := l.Balances(context.Background(), nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestPayToken_RejectsNativeSeed(t *testing.T) {
	l, _ := newTreasuryFixture(t)
	ctx := context.Background()

	if err := l.Initialize(ctx, testAddress(0xA0)); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	err := l.PayToken(ctx, testAddress(0x05), NativePoolSeed, "order-1", 100)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

// poolBySeed reads one pool row directly through the store.
func poolBySeed(ctx context.Context, l *TreasuryLedger, seed string) (*domain.PoolAccount, error) {
	var pool *domain.PoolAccount
	err := l.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		pool, err = tx.GetPoolBySeed(ctx, seed)
		return err
	})
	return pool, err
}
