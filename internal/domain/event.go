package domain

import "fmt"

// EventType identifies a ledger state change in the event journal.
type EventType uint32

// Event type constants
const (
	EventCreate EventType = iota + 1
	EventReceive
	EventRefund
	EventPay
	EventWithdraw
	EventPoolCreated
	EventAdminChanged
	EventInitialized
)

// LedgerEvent is the reconciliation record emitted after every committed
// state change. RefID is the giveaway ID (hex) for giveaway events and the
// order ID or pool seed for treasury events. Mint is "0" for native assets.
type LedgerEvent struct {
	Type      EventType
	RefID     string
	Amount    uint64
	Actor     string
	Mint      string
	EmittedAt int64 // unix ms
}

// String renders the comma-separated wire shape consumed by the
// reconciliation side: type,refId,amount,actor,mint.
func (e LedgerEvent) String() string {
	mint := e.Mint
	if mint == "" {
		mint = "0"
	}
	return fmt.Sprintf("%d,%s,%d,%s,%s", uint32(e.Type), e.RefID, e.Amount, e.Actor, mint)
}
