package domain

// PaymentRecord is one incoming order payment into a treasury pool.
// (pool_address, order_id) is unique so an order cannot be booked twice.
// Corresponds to payments table in PostgreSQL.
type PaymentRecord struct {
	PoolAddress string // FK to pool_accounts
	OrderID     string // external order reference
	Payer       string // debited holding account address
	Amount      uint64
	PaidAt      int64 // record creation timestamp (ms)
}
