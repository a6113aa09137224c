// Package ingest defines the validated boundary types consumed from the
// expense-extraction collaborator.
//
// The extraction side (an external classifier over chat messages) produces a
// batch of structured expenses per group. Everything crossing this boundary
// is explicitly typed and validated before the engine touches it; amounts
// are parsed straight into exact decimals.
package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/tallybot/tally/internal/money"
)

// DateLayout is the expense date format supplied by the extraction
// collaborator (ISO 8601 date).
const DateLayout = "2006-01-02"

// ErrInvalid is wrapped by all validation failures in this package.
var ErrInvalid = errors.New("invalid extract")

// ExtractedExpenses is one batch of validated expenses for a single group,
// plus the collaborator's own idea of the totals. The reported totals are a
// cross-check only; settlement math always derives them from the ledger.
type ExtractedExpenses struct {
	Group ExtractedGroup `json:"group"`

	// TotalExpenses and AveragePerPerson are computed by the extraction
	// collaborator. Not authoritative.
	TotalExpenses    money.Money `json:"totalExpenses"`
	AveragePerPerson money.Money `json:"averagePerPerson"`
}

// ExtractedGroup describes the group and its members as seen by the
// extraction collaborator.
type ExtractedGroup struct {
	ChatID      string            `json:"chatId"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Currency    string            `json:"currency"`
	Members     []ExtractedMember `json:"members"`
}

// ExtractedMember is one participant with their extracted transactions.
type ExtractedMember struct {
	ChatID       string                 `json:"chatId"`
	Username     string                 `json:"username,omitempty"`
	FirstName    string                 `json:"firstName,omitempty"`
	LastName     string                 `json:"lastName,omitempty"`
	Transactions []ExtractedTransaction `json:"transactions"`
}

// ExtractedTransaction is one expense the classifier attributed to a member.
type ExtractedTransaction struct {
	Description string      `json:"description"`
	Amount      money.Money `json:"amount"`
	Date        string      `json:"date"`
}

// Validate checks the batch for structural problems. It does not touch the
// store; reference resolution happens later in the service layer.
func (e *ExtractedExpenses) Validate() error {
	if e.Group.ChatID == "" {
		return fmt.Errorf("%w: group chatId required", ErrInvalid)
	}
	if e.Group.Name == "" {
		return fmt.Errorf("%w: group name required", ErrInvalid)
	}
	if e.Group.Currency == "" {
		return fmt.Errorf("%w: group currency required", ErrInvalid)
	}
	if len(e.Group.Members) == 0 {
		return fmt.Errorf("%w: group has no members", ErrInvalid)
	}

	seen := make(map[string]bool, len(e.Group.Members))
	for i, member := range e.Group.Members {
		if member.ChatID == "" {
			return fmt.Errorf("%w: member %d missing chatId", ErrInvalid, i)
		}
		if seen[member.ChatID] {
			return fmt.Errorf("%w: duplicate member %s", ErrInvalid, member.ChatID)
		}
		seen[member.ChatID] = true

		for j, tx := range member.Transactions {
			if tx.Description == "" {
				return fmt.Errorf("%w: member %s transaction %d missing description", ErrInvalid, member.ChatID, j)
			}
			if _, err := tx.ParsedDate(); err != nil {
				return fmt.Errorf("%w: member %s transaction %d: %v", ErrInvalid, member.ChatID, j, err)
			}
		}
	}
	return nil
}

// ParsedDate returns the transaction date as a Unix timestamp (UTC midnight).
func (t *ExtractedTransaction) ParsedDate() (int64, error) {
	parsed, err := time.Parse(DateLayout, t.Date)
	if err != nil {
		return 0, fmt.Errorf("date %q is not %s", t.Date, DateLayout)
	}
	return parsed.Unix(), nil
}
