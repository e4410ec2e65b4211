package ledger

import (
	"context"
	"errors"
	"fmt"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/storage"
)

// BalanceQuery names one holding account to inspect.
type BalanceQuery struct {
	Address string
	Mint    string // empty for the native coin
}

// Balances returns the current balances of the requested holding
// accounts. Unknown accounts report zero. The request must name at least
// one account.
func (l *TreasuryLedger) Balances(ctx context.Context, queries []BalanceQuery) ([]domain.TokenBalance, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("%w: at least one account is required", ErrInvalidArgument)
	}

	result := make([]domain.TokenBalance, 0, len(queries))
	err := l.store.InTx(ctx, func(tx storage.Tx) error {
		for _, q := range queries {
			if q.Address == "" {
				return fmt.Errorf("%w: empty address", ErrInvalidArgument)
			}
			balance := uint64(0)
			holding, err := tx.GetHolding(ctx, q.Address, q.Mint)
			if err == nil {
				balance = holding.Balance
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			result = append(result, domain.TokenBalance{
				Address: q.Address,
				Mint:    q.Mint,
				Balance: balance,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
