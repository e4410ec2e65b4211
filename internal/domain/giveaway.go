package domain

// GiveawayPool is an issuer-funded escrow from which signature-authorized
// claims are paid out. The pool address is derived from the issuer identity,
// so one giveaway exists per issuer.
// Corresponds to giveaway_pools table in PostgreSQL.
type GiveawayPool struct {
	Address          string   // PRIMARY KEY, derived program address (base58)
	GiveawayID       Identity // 20-byte issuer identity, seed and signing authority
	Creator          string   // funder address, authorized to refund
	Kind             AssetKind
	Mint             string // token mint; empty for native giveaways
	TokenPoolAddress string // token escrow sub-account, derived from (creator, mint)
	TotalSlots       uint32 // maximum number of claims
	ClaimedSlots     uint32 // claims paid out so far
	Balance          uint64 // remaining escrowed amount
	CreatedAt        int64
}

// Exhausted reports whether no further claims can be paid.
func (g *GiveawayPool) Exhausted() bool {
	return g.ClaimedSlots >= g.TotalSlots || g.Balance == 0
}

// ClaimRecord is one successful payout from a giveaway pool.
// Corresponds to giveaway_claims table in PostgreSQL.
type ClaimRecord struct {
	GiveawayAddress string // FK to giveaway_pools
	Receiver        string // credited holding account address
	Amount          uint64
	Timestamp       uint64 // signed claim timestamp, unix seconds
	ClaimedAt       int64  // record creation timestamp (ms)
}
