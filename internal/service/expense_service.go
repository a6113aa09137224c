package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tallybot/tally/internal/ingest"
	"github.com/tallybot/tally/internal/ledger"
	"github.com/tallybot/tally/internal/metrics"
	"github.com/tallybot/tally/internal/models"
	"github.com/tallybot/tally/internal/money"
	"github.com/tallybot/tally/internal/storage"
)

// ExpenseService applies validated extraction batches to the ledger.
type ExpenseService struct {
	store storage.Store
}

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store) *ExpenseService {
	return &ExpenseService{store: store}
}

// ApplyResult summarizes one applied extraction batch.
type ApplyResult struct {
	Group    *models.Group
	Recorded int
}

// ApplyExtract upserts the batch's group, persons, and memberships, then
// records every transaction through the store so each member's running
// balance is maintained incrementally.
//
// The collaborator's reported TotalExpenses is only cross-checked against
// the batch's own transaction sum; ledger-derived totals stay authoritative
// for all settlement math. A mismatch is logged, not fatal: the recorded
// transactions, not the report, are what settlements will be computed from.
func (s *ExpenseService) ApplyExtract(ctx context.Context, extract *ingest.ExtractedExpenses) (*ApplyResult, error) {
	if err := extract.Validate(); err != nil {
		return nil, err
	}

	group := &models.Group{
		ChatID:      extract.Group.ChatID,
		Name:        extract.Group.Name,
		Description: extract.Group.Description,
		Currency:    extract.Group.Currency,
	}
	if err := s.store.UpsertGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("apply extract: %w", err)
	}

	recorded := 0
	batchSum := money.Zero
	for _, em := range extract.Group.Members {
		person := &models.Person{
			ChatID:    em.ChatID,
			Username:  em.Username,
			FirstName: em.FirstName,
			LastName:  em.LastName,
		}
		if err := s.store.UpsertPerson(ctx, person); err != nil {
			return nil, fmt.Errorf("apply extract: %w", err)
		}

		member, err := s.store.EnsureMember(ctx, group.ID, person.ID)
		if err != nil {
			return nil, fmt.Errorf("apply extract: %w", err)
		}

		for _, et := range em.Transactions {
			date, err := et.ParsedDate()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ingest.ErrInvalid, err)
			}
			if _, err := s.store.RecordTransaction(ctx, member.ID, et.Description, et.Amount, date); err != nil {
				return nil, fmt.Errorf("apply extract: %w", err)
			}
			batchSum = batchSum.Add(et.Amount)
			recorded++
			metrics.TransactionsRecorded.Inc()
		}
	}

	s.reconcileReportedTotal(extract, batchSum, group.ID)

	now := time.Now().Unix()
	if err := s.store.SetLastProcessedAt(ctx, group.ID, now); err != nil {
		return nil, fmt.Errorf("apply extract: %w", err)
	}
	group.LastProcessedAt = now

	slog.Info("Extraction batch applied",
		"group_id", group.ID,
		"members", len(extract.Group.Members),
		"transactions", recorded,
	)
	return &ApplyResult{Group: group, Recorded: recorded}, nil
}

// reconcileReportedTotal compares the collaborator's reported total against
// the batch's recorded sum. The ledger wins; the report is just a signal
// that the extraction drifted.
func (s *ExpenseService) reconcileReportedTotal(extract *ingest.ExtractedExpenses, batchSum money.Money, groupID string) {
	diff := batchSum.Sub(extract.TotalExpenses).Abs()
	if diff.Cmp(ledger.ResidualTolerance(len(extract.Group.Members))) > 0 {
		slog.Warn("Reported total disagrees with recorded transactions; ledger total is authoritative",
			"group_id", groupID,
			"reported", extract.TotalExpenses,
			"recorded", batchSum,
		)
	}
}

// GroupBalances returns the current balance snapshot for a group, keyed by
// person ID.
func (s *ExpenseService) GroupBalances(ctx context.Context, groupID string) (map[string]money.Money, error) {
	return s.store.GroupBalances(ctx, groupID)
}

// GroupByChatID resolves a chat platform identifier to its group. The
// extraction collaborator only knows chat ids, so this is how it discovers
// group ids for the balance and settlement endpoints.
func (s *ExpenseService) GroupByChatID(ctx context.Context, chatID string) (*models.Group, error) {
	return s.store.GetGroupByChatID(ctx, chatID)
}
