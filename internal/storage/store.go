// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"

	"github.com/tallybot/tally/internal/models"
	"github.com/tallybot/tally/internal/money"
)

// ErrNotFound is returned when an operation references a group, member,
// person, or settlement id that does not exist.
var ErrNotFound = errors.New("not found")

// ErrCurrencyLocked is returned when an upsert attempts to change a group's
// currency after transactions have been recorded in it.
var ErrCurrencyLocked = errors.New("group currency is fixed once transactions exist")

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// UpsertPerson creates or updates a person keyed by ChatID.
	// The person.ID field is populated by the store.
	UpsertPerson(ctx context.Context, person *models.Person) error

	// UpsertGroup creates or updates a group keyed by ChatID. Changing the
	// currency of a group that already has transactions fails with
	// ErrCurrencyLocked. The group.ID field is populated by the store.
	UpsertGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group by its ID.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// GetGroupByChatID retrieves a group by its external chat identifier.
	GetGroupByChatID(ctx context.Context, chatID string) (*models.Group, error)

	// EnsureMember returns the membership of person in group, creating it
	// with a zero balance if it does not exist.
	EnsureMember(ctx context.Context, groupID, personID string) (*models.Member, error)

	// RecordTransaction appends a transaction for the member and atomically
	// adds its amount to the member's running balance. The insert and the
	// balance update happen in one database transaction; partial
	// application is impossible.
	RecordTransaction(ctx context.Context, memberID, description string, amount money.Money, date int64) (*models.Transaction, error)

	// GroupBalances returns a snapshot of current balances for all members
	// of the group, keyed by person ID.
	GroupBalances(ctx context.Context, groupID string) (map[string]money.Money, error)

	// TransactionSum returns the exact sum of all transaction amounts in
	// the group. Summation happens in decimal space, never in SQL floats.
	TransactionSum(ctx context.Context, groupID string) (money.Money, error)

	// RecordSettlements persists solver output with status pending.
	// IDs and timestamps are populated by the store.
	RecordSettlements(ctx context.Context, settlements []*models.Settlement) error

	// PendingSettlements returns the group's settlements still in pending.
	PendingSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// ListSettlements returns all of the group's settlements, newest first.
	ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// CompleteSettlements transitions the given pending settlements to
	// completed and returns how many actually transitioned. Unknown ids and
	// settlements not in pending are silently skipped.
	CompleteSettlements(ctx context.Context, ids []string) (int, error)

	// CancelSettlements transitions the given pending settlements to
	// cancelled, with the same skip semantics as CompleteSettlements.
	CancelSettlements(ctx context.Context, ids []string) (int, error)

	// SetLastProcessedAt records the group's ingestion watermark.
	SetLastProcessedAt(ctx context.Context, groupID string, ts int64) error

	// SetLastSettledAt records when settlement generation last ran.
	SetLastSettledAt(ctx context.Context, groupID string, ts int64) error

	// Close releases any resources held by the store.
	Close() error
}
