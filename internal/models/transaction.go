package models

import "github.com/tallybot/tally/internal/money"

// Transaction is a signed expense recorded against a group member.
// Positive means the member paid this much on the group's behalf.
// Transactions are immutable once recorded.
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string

	// MemberID references the owning membership; GroupID denormalizes the
	// group for direct ledger queries.
	MemberID string
	GroupID  string

	// Description is the human-readable expense description.
	Description string

	// Amount is the signed expense amount.
	Amount money.Money

	// Date is the expense date as a Unix timestamp (day precision from
	// ingestion; the extraction collaborator supplies ISO 8601 dates).
	Date int64

	// CreatedAt is the Unix timestamp when the transaction was recorded.
	CreatedAt int64
}
