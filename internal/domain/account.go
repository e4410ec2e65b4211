package domain

// PoolAccount is a deterministically addressed treasury pool holding a
// balance of one asset kind.
// Corresponds to pool_accounts table in PostgreSQL.
type PoolAccount struct {
	Address   string    // PRIMARY KEY, derived program address (base58)
	SeedLabel string    // derivation seed, e.g. "put_pool", "usdt_pool"
	Kind      AssetKind // native | token
	Mint      string    // token mint address; empty for native
	Balance   uint64    // escrowed amount, never negative
	CreatedAt int64     // record creation timestamp (ms)
}

// HoldingAccount is an externally owned balance-holding account.
// Payers fund transfers from holdings; claims and withdrawals credit them.
// Corresponds to holding_accounts table, keyed by (address, mint).
type HoldingAccount struct {
	Address string // owner address (base58)
	Mint    string // token mint; empty for native
	Balance uint64
}

// AdminAccount is the singleton record naming the treasury authority.
// Corresponds to admin_account table (single row).
type AdminAccount struct {
	Address       string // derived program address for the "admin" seed
	AdminIdentity string // address authorized for privileged operations
	CreatedAt     int64
}

// TokenBalance is a read-only (address, balance) pair returned by
// balance inspection queries.
type TokenBalance struct {
	Address string
	Mint    string
	Balance uint64
}
