package models

import "github.com/tallybot/tally/internal/money"

// Group represents a chat group whose expenses are tracked as one ledger.
//
// Currency is fixed for the group's lifetime once any transaction exists;
// the store rejects later changes.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// ChatID is the external chat platform identifier, unique per group.
	ChatID string

	// Name is the display name of the group.
	Name string

	// Description is optional free text.
	Description string

	// Currency is the ISO 4217 code all group amounts are denominated in.
	Currency string

	// LastProcessedAt is the Unix timestamp of the last ingestion run for
	// this group. Zero means never processed. Persisted so the watermark
	// survives restarts and is visible to concurrent workers.
	LastProcessedAt int64

	// LastSettledAt is the Unix timestamp of the last settlement generation
	// for this group. Zero means never settled.
	LastSettledAt int64

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// Member is one person's participation in one group.
type Member struct {
	// ID is the unique identifier for the membership (UUID format).
	ID string

	// GroupID and PersonID reference the owning group and the person.
	GroupID  string
	PersonID string

	// Balance is the signed sum of this member's transaction amounts within
	// the group. It is maintained incrementally by the store whenever a
	// transaction is recorded, never recomputed from scratch.
	Balance money.Money

	// JoinedAt is the Unix timestamp when the person joined the group.
	JoinedAt int64
}
