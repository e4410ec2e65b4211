package ledger

import (
	"context"
	"errors"
	"fmt"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/sigverify"
	"reelpay-ledger/internal/storage"
)

// GiveawayLedger owns giveaway escrow pools: issuer-funded one-shot
// distributions claimed against the issuer's off-chain signature.
type GiveawayLedger struct {
	*engine
}

// NewGiveawayLedger creates a GiveawayLedger.
func NewGiveawayLedger(opts Options) (*GiveawayLedger, error) {
	e, err := newEngine(opts)
	if err != nil {
		return nil, err
	}
	return &GiveawayLedger{engine: e}, nil
}

// ClaimRequest carries the parameters of one claim call. Receiver is the
// base58 address whose holding account gets credited; Timestamp is the
// nonce-like discriminator bound into the signed message (unix seconds).
type ClaimRequest struct {
	Issuer    domain.Identity
	Receiver  string
	Amount    uint64
	Timestamp uint64
	Signature []byte
}

// EscrowAddress returns the deterministic escrow address for an issuer.
// External callers can compute it without a directory lookup.
func (l *GiveawayLedger) EscrowAddress(issuer domain.Identity) (string, error) {
	addr, _, err := l.deriver.Derive(issuer[:])
	return addr, err
}

// CreateNative creates a native-coin giveaway escrow funded by funder.
// Fails with ErrAlreadyExists if the issuer's escrow address is occupied.
func (l *GiveawayLedger) CreateNative(ctx context.Context, funder string, issuer domain.Identity, totalSlots uint32, amount uint64) (*domain.GiveawayPool, error) {
	return l.create(ctx, funder, issuer, totalSlots, amount, domain.AssetNative, "")
}

// CreateToken creates a token-denominated giveaway escrow. The escrow's
// token sub-account is derived from (funder, mint).
func (l *GiveawayLedger) CreateToken(ctx context.Context, funder string, issuer domain.Identity, totalSlots uint32, amount uint64, mint string) (*domain.GiveawayPool, error) {
	if mint == "" {
		return nil, fmt.Errorf("%w: mint is required", ErrInvalidArgument)
	}
	return l.create(ctx, funder, issuer, totalSlots, amount, domain.AssetToken, mint)
}

func (l *GiveawayLedger) create(ctx context.Context, funder string, issuer domain.Identity, totalSlots uint32, amount uint64, kind domain.AssetKind, mint string) (pool *domain.GiveawayPool, err error) {
	defer func() { l.record("create_giveaway", err) }()

	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if issuer.IsZero() {
		return nil, fmt.Errorf("%w: zero issuer identity", ErrInvalidArgument)
	}
	if funder == "" {
		return nil, fmt.Errorf("%w: funder is required", ErrInvalidArgument)
	}

	address, _, err := l.deriver.Derive(issuer[:])
	if err != nil {
		return nil, err
	}

	var tokenPoolAddress string
	if kind == domain.AssetToken {
		funderKey, err := decodePubkey(funder)
		if err != nil {
			return nil, err
		}
		mintKey, err := decodePubkey(mint)
		if err != nil {
			return nil, err
		}
		tokenPoolAddress, _, err = l.deriver.Derive(funderKey[:], mintKey[:])
		if err != nil {
			return nil, err
		}
	}

	var events []*domain.LedgerEvent
	err = l.store.InTx(ctx, func(tx storage.Tx) error {
		pool = &domain.GiveawayPool{
			Address:          address,
			GiveawayID:       issuer,
			Creator:          funder,
			Kind:             kind,
			Mint:             mint,
			TokenPoolAddress: tokenPoolAddress,
			TotalSlots:       totalSlots,
			ClaimedSlots:     0,
			Balance:          amount,
			CreatedAt:        l.nowMs(),
		}
		if err := tx.InsertGiveaway(ctx, pool); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return ErrAlreadyExists
			}
			return err
		}

		// Funding transfer: the funder's holding covers the escrow.
		if err := debitHolding(ctx, tx, funder, mint, amount); err != nil {
			return err
		}

		events = append(events, &domain.LedgerEvent{
			Type:      domain.EventCreate,
			RefID:     issuer.Hex(),
			Amount:    amount,
			Actor:     funder,
			Mint:      mint,
			EmittedAt: l.nowMs(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if l.metrics != nil {
		l.metrics.GiveawaysCreated.Inc()
	}
	l.emit(ctx, events)
	return pool, nil
}

// ClaimNative pays out one native-flow claim. The signature must cover
// the native packing (issuer ∥ receiver ∥ amount ∥ timestamp) under the
// personal-message digest and recover to the giveaway's issuer.
func (l *GiveawayLedger) ClaimNative(ctx context.Context, req ClaimRequest) (*domain.GiveawayPool, error) {
	return l.claim(ctx, req, domain.AssetNative)
}

// ClaimToken pays out one token-flow claim. The signature must cover the
// token packing (receiver ∥ issuer ∥ timestamp ∥ amount) under the plain
// keccak digest and recover to the giveaway's issuer.
func (l *GiveawayLedger) ClaimToken(ctx context.Context, req ClaimRequest) (*domain.GiveawayPool, error) {
	return l.claim(ctx, req, domain.AssetToken)
}

func (l *GiveawayLedger) claim(ctx context.Context, req ClaimRequest, kind domain.AssetKind) (pool *domain.GiveawayPool, err error) {
	defer func() { l.record("claim", err) }()

	if req.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	receiver, err := decodePubkey(req.Receiver)
	if err != nil {
		return nil, err
	}

	address, _, err := l.deriver.Derive(req.Issuer[:])
	if err != nil {
		return nil, err
	}

	var events []*domain.LedgerEvent
	err = l.store.InTx(ctx, func(tx storage.Tx) error {
		g, err := tx.GetGiveaway(ctx, address)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if g.Kind != kind {
			return fmt.Errorf("%w: giveaway is %s-denominated", ErrInvalidArgument, g.Kind)
		}
		if g.Exhausted() {
			return ErrExhausted
		}

		// Freshness bound: the signed timestamp doubles as a claim
		// deadline and must still be in the future.
		if l.enforceDeadline && req.Timestamp <= uint64(l.now().Unix()) {
			return ErrClaimExpired
		}

		signer, err := l.recoverClaimSigner(req, receiver, kind)
		if err != nil {
			return err
		}
		if signer != g.GiveawayID {
			return ErrUnauthorized
		}

		balance, err := checkedSub(g.Balance, req.Amount)
		if err != nil {
			return err
		}

		if err := creditHolding(ctx, tx, req.Receiver, g.Mint, req.Amount); err != nil {
			return err
		}

		g.Balance = balance
		g.ClaimedSlots++
		if err := tx.UpdateGiveaway(ctx, g); err != nil {
			return err
		}
		if err := tx.AppendClaim(ctx, &domain.ClaimRecord{
			GiveawayAddress: g.Address,
			Receiver:        req.Receiver,
			Amount:          req.Amount,
			Timestamp:       req.Timestamp,
			ClaimedAt:       l.nowMs(),
		}); err != nil {
			return err
		}

		pool = g
		events = append(events, &domain.LedgerEvent{
			Type:      domain.EventReceive,
			RefID:     g.GiveawayID.Hex(),
			Amount:    req.Amount,
			Actor:     req.Receiver,
			Mint:      g.Mint,
			EmittedAt: l.nowMs(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if l.metrics != nil {
		l.metrics.ClaimsPaid.Inc()
		l.metrics.AmountClaimed.Add(float64(req.Amount))
	}
	l.emit(ctx, events)
	return pool, nil
}

// recoverClaimSigner rebuilds the flow's frozen message packing and
// recovers the signer. The two packings are distinct contracts and are
// never unified.
func (l *GiveawayLedger) recoverClaimSigner(req ClaimRequest, receiver [32]byte, kind domain.AssetKind) (domain.Identity, error) {
	var (
		signer domain.Identity
		err    error
	)
	switch kind {
	case domain.AssetNative:
		msg := sigverify.NativeClaimMessage(req.Issuer, receiver, req.Amount, req.Timestamp)
		signer, err = sigverify.RecoverPersonal(msg, req.Signature)
	case domain.AssetToken:
		msg := sigverify.TokenClaimMessage(receiver, req.Issuer, req.Timestamp, req.Amount)
		signer, err = sigverify.RecoverKeccak(msg, req.Signature)
	default:
		return domain.Identity{}, fmt.Errorf("%w: asset kind %q", ErrInvalidArgument, kind)
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return signer, nil
}

// Refund returns the remaining escrow balance to the giveaway's creator.
// Only the creator recorded at creation may refund.
func (l *GiveawayLedger) Refund(ctx context.Context, caller string, issuer domain.Identity) (refunded uint64, err error) {
	defer func() { l.record("refund", err) }()

	address, _, err := l.deriver.Derive(issuer[:])
	if err != nil {
		return 0, err
	}

	var events []*domain.LedgerEvent
	err = l.store.InTx(ctx, func(tx storage.Tx) error {
		g, err := tx.GetGiveaway(ctx, address)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if caller != g.Creator {
			return ErrUnauthorized
		}

		refunded = g.Balance
		g.Balance = 0
		if err := tx.UpdateGiveaway(ctx, g); err != nil {
			return err
		}
		if refunded > 0 {
			if err := creditHolding(ctx, tx, g.Creator, g.Mint, refunded); err != nil {
				return err
			}
		}

		events = append(events, &domain.LedgerEvent{
			Type:      domain.EventRefund,
			RefID:     g.GiveawayID.Hex(),
			Amount:    refunded,
			Actor:     caller,
			Mint:      g.Mint,
			EmittedAt: l.nowMs(),
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.emit(ctx, events)
	return refunded, nil
}

// Giveaway retrieves the current escrow state for an issuer.
func (l *GiveawayLedger) Giveaway(ctx context.Context, issuer domain.Identity) (*domain.GiveawayPool, error) {
	address, _, err := l.deriver.Derive(issuer[:])
	if err != nil {
		return nil, err
	}
	var g *domain.GiveawayPool
	err = l.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		g, err = tx.GetGiveaway(ctx, address)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
