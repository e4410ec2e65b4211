package memory

import (
	"context"
	"sort"
	"sync"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/storage"
)

// Ledger is an in-memory implementation of storage.Ledger. Transactions
// are serialized by a single mutex; writes are staged in an overlay and
// applied only on commit, so a failed operation leaves no trace.
type Ledger struct {
	mu sync.Mutex

	admin       *domain.AdminAccount
	pools       map[string]*domain.PoolAccount // keyed by address
	poolsBySeed map[string]string              // seed label -> address
	giveaways   map[string]*domain.GiveawayPool
	claims      map[string][]*domain.ClaimRecord
	holdings    map[string]*domain.HoldingAccount // keyed by address|mint
	payments    map[string][]*domain.PaymentRecord
	paymentKeys map[string]struct{} // pool address|order id
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		pools:       make(map[string]*domain.PoolAccount),
		poolsBySeed: make(map[string]string),
		giveaways:   make(map[string]*domain.GiveawayPool),
		claims:      make(map[string][]*domain.ClaimRecord),
		holdings:    make(map[string]*domain.HoldingAccount),
		payments:    make(map[string][]*domain.PaymentRecord),
		paymentKeys: make(map[string]struct{}),
	}
}

// Verify interface compliance at compile time.
var _ storage.Ledger = (*Ledger)(nil)

// InTx runs fn under the ledger mutex with staged writes. The overlay is
// merged into base state only when fn returns nil.
func (l *Ledger) InTx(_ context.Context, fn func(tx storage.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memTx{
		base:        l,
		pools:       make(map[string]*domain.PoolAccount),
		poolsBySeed: make(map[string]string),
		giveaways:   make(map[string]*domain.GiveawayPool),
		claims:      make(map[string][]*domain.ClaimRecord),
		holdings:    make(map[string]*domain.HoldingAccount),
		payments:    make(map[string][]*domain.PaymentRecord),
		paymentKeys: make(map[string]struct{}),
	}

	if err := fn(tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

// SeedHolding funds a holding account directly, bypassing the
// transactional path. Test and bootstrap helper.
func (l *Ledger) SeedHolding(address, mint string, balance uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holdings[holdingKey(address, mint)] = &domain.HoldingAccount{
		Address: address,
		Mint:    mint,
		Balance: balance,
	}
}

func holdingKey(address, mint string) string {
	return address + "|" + mint
}

func paymentKey(poolAddress, orderID string) string {
	return poolAddress + "|" + orderID
}

// memTx stages writes in overlay maps; reads consult the overlay first.
type memTx struct {
	base *Ledger

	admin       *domain.AdminAccount
	pools       map[string]*domain.PoolAccount
	poolsBySeed map[string]string
	giveaways   map[string]*domain.GiveawayPool
	claims      map[string][]*domain.ClaimRecord
	holdings    map[string]*domain.HoldingAccount
	payments    map[string][]*domain.PaymentRecord
	paymentKeys map[string]struct{}
}

var _ storage.Tx = (*memTx)(nil)

func (t *memTx) commit() {
	if t.admin != nil {
		adminCopy := *t.admin
		t.base.admin = &adminCopy
	}
	for addr, p := range t.pools {
		poolCopy := *p
		t.base.pools[addr] = &poolCopy
	}
	for seed, addr := range t.poolsBySeed {
		t.base.poolsBySeed[seed] = addr
	}
	for addr, g := range t.giveaways {
		giveawayCopy := *g
		t.base.giveaways[addr] = &giveawayCopy
	}
	for addr, records := range t.claims {
		for _, c := range records {
			claimCopy := *c
			t.base.claims[addr] = append(t.base.claims[addr], &claimCopy)
		}
	}
	for key, h := range t.holdings {
		holdingCopy := *h
		t.base.holdings[key] = &holdingCopy
	}
	for addr, records := range t.payments {
		for _, p := range records {
			paymentCopy := *p
			t.base.payments[addr] = append(t.base.payments[addr], &paymentCopy)
		}
	}
	for key := range t.paymentKeys {
		t.base.paymentKeys[key] = struct{}{}
	}
}

func (t *memTx) GetAdmin(_ context.Context) (*domain.AdminAccount, error) {
	if t.admin != nil {
		adminCopy := *t.admin
		return &adminCopy, nil
	}
	if t.base.admin == nil {
		return nil, storage.ErrNotFound
	}
	adminCopy := *t.base.admin
	return &adminCopy, nil
}

func (t *memTx) PutAdmin(_ context.Context, a *domain.AdminAccount) error {
	if a == nil || a.Address == "" {
		return storage.ErrInvalidInput
	}
	adminCopy := *a
	t.admin = &adminCopy
	return nil
}

func (t *memTx) InsertPool(_ context.Context, p *domain.PoolAccount) error {
	if p == nil || p.Address == "" || p.SeedLabel == "" {
		return storage.ErrInvalidInput
	}
	if t.poolExists(p.Address) || t.poolSeedTaken(p.SeedLabel) {
		return storage.ErrDuplicateKey
	}
	poolCopy := *p
	t.pools[p.Address] = &poolCopy
	t.poolsBySeed[p.SeedLabel] = p.Address
	return nil
}

func (t *memTx) poolExists(address string) bool {
	if _, ok := t.pools[address]; ok {
		return true
	}
	_, ok := t.base.pools[address]
	return ok
}

func (t *memTx) poolSeedTaken(seed string) bool {
	if _, ok := t.poolsBySeed[seed]; ok {
		return true
	}
	_, ok := t.base.poolsBySeed[seed]
	return ok
}

func (t *memTx) GetPool(_ context.Context, address string) (*domain.PoolAccount, error) {
	if p, ok := t.pools[address]; ok {
		poolCopy := *p
		return &poolCopy, nil
	}
	p, ok := t.base.pools[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	poolCopy := *p
	return &poolCopy, nil
}

func (t *memTx) GetPoolBySeed(ctx context.Context, seedLabel string) (*domain.PoolAccount, error) {
	if addr, ok := t.poolsBySeed[seedLabel]; ok {
		return t.GetPool(ctx, addr)
	}
	addr, ok := t.base.poolsBySeed[seedLabel]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t.GetPool(ctx, addr)
}

func (t *memTx) UpdatePoolBalance(ctx context.Context, address string, balance uint64) error {
	p, err := t.GetPool(ctx, address)
	if err != nil {
		return err
	}
	p.Balance = balance
	t.pools[address] = p
	return nil
}

func (t *memTx) InsertGiveaway(_ context.Context, g *domain.GiveawayPool) error {
	if g == nil || g.Address == "" {
		return storage.ErrInvalidInput
	}
	if _, ok := t.giveaways[g.Address]; ok {
		return storage.ErrDuplicateKey
	}
	if _, ok := t.base.giveaways[g.Address]; ok {
		return storage.ErrDuplicateKey
	}
	giveawayCopy := *g
	t.giveaways[g.Address] = &giveawayCopy
	return nil
}

func (t *memTx) GetGiveaway(_ context.Context, address string) (*domain.GiveawayPool, error) {
	if g, ok := t.giveaways[address]; ok {
		giveawayCopy := *g
		return &giveawayCopy, nil
	}
	g, ok := t.base.giveaways[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	giveawayCopy := *g
	return &giveawayCopy, nil
}

func (t *memTx) UpdateGiveaway(_ context.Context, g *domain.GiveawayPool) error {
	if g == nil || g.Address == "" {
		return storage.ErrInvalidInput
	}
	if _, ok := t.giveaways[g.Address]; !ok {
		if _, ok := t.base.giveaways[g.Address]; !ok {
			return storage.ErrNotFound
		}
	}
	giveawayCopy := *g
	t.giveaways[g.Address] = &giveawayCopy
	return nil
}

func (t *memTx) AppendClaim(_ context.Context, c *domain.ClaimRecord) error {
	if c == nil || c.GiveawayAddress == "" {
		return storage.ErrInvalidInput
	}
	claimCopy := *c
	t.claims[c.GiveawayAddress] = append(t.claims[c.GiveawayAddress], &claimCopy)
	return nil
}

func (t *memTx) GetClaims(_ context.Context, giveawayAddress string) ([]*domain.ClaimRecord, error) {
	var result []*domain.ClaimRecord
	for _, c := range t.base.claims[giveawayAddress] {
		claimCopy := *c
		result = append(result, &claimCopy)
	}
	for _, c := range t.claims[giveawayAddress] {
		claimCopy := *c
		result = append(result, &claimCopy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ClaimedAt < result[j].ClaimedAt
	})
	return result, nil
}

func (t *memTx) GetHolding(_ context.Context, address, mint string) (*domain.HoldingAccount, error) {
	key := holdingKey(address, mint)
	if h, ok := t.holdings[key]; ok {
		holdingCopy := *h
		return &holdingCopy, nil
	}
	h, ok := t.base.holdings[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	holdingCopy := *h
	return &holdingCopy, nil
}

func (t *memTx) PutHolding(_ context.Context, h *domain.HoldingAccount) error {
	if h == nil || h.Address == "" {
		return storage.ErrInvalidInput
	}
	holdingCopy := *h
	t.holdings[holdingKey(h.Address, h.Mint)] = &holdingCopy
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *domain.PaymentRecord) error {
	if p == nil || p.PoolAddress == "" || p.OrderID == "" {
		return storage.ErrInvalidInput
	}
	key := paymentKey(p.PoolAddress, p.OrderID)
	if _, ok := t.paymentKeys[key]; ok {
		return storage.ErrDuplicateKey
	}
	if _, ok := t.base.paymentKeys[key]; ok {
		return storage.ErrDuplicateKey
	}
	paymentCopy := *p
	t.payments[p.PoolAddress] = append(t.payments[p.PoolAddress], &paymentCopy)
	t.paymentKeys[key] = struct{}{}
	return nil
}

func (t *memTx) GetPayments(_ context.Context, poolAddress string) ([]*domain.PaymentRecord, error) {
	var result []*domain.PaymentRecord
	for _, p := range t.base.payments[poolAddress] {
		paymentCopy := *p
		result = append(result, &paymentCopy)
	}
	for _, p := range t.payments[poolAddress] {
		paymentCopy := *p
		result = append(result, &paymentCopy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PaidAt < result[j].PaidAt
	})
	return result, nil
}
