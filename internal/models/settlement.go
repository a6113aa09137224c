package models

import "github.com/tallybot/tally/internal/money"

// SettlementStatus is the lifecycle state of a settlement.
type SettlementStatus string

const (
	// SettlementPending is the initial state, set at creation.
	SettlementPending SettlementStatus = "pending"
	// SettlementCompleted is terminal: the payment was confirmed externally.
	SettlementCompleted SettlementStatus = "completed"
	// SettlementCancelled is terminal: the proposal was withdrawn.
	SettlementCancelled SettlementStatus = "cancelled"
)

// Settlement is a proposed payment from one person to another, derived by
// the settlement solver. It is not ledger truth: applying or cancelling a
// settlement never changes a member's balance.
//
// Status only ever moves pending -> completed or pending -> cancelled, and
// the transition is always triggered by the external API layer, never by
// the engine itself.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group whose ledger produced this settlement.
	GroupID string

	// PayerID and ReceiverID reference persons, not members.
	PayerID    string
	ReceiverID string

	// Amount is the payment amount, always > 0.
	Amount money.Money

	// Status is the lifecycle state.
	Status SettlementStatus

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}
