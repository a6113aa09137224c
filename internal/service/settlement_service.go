package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tallybot/tally/internal/ledger"
	"github.com/tallybot/tally/internal/metrics"
	"github.com/tallybot/tally/internal/models"
	"github.com/tallybot/tally/internal/money"
	"github.com/tallybot/tally/internal/storage"
)

// SettlementService computes and persists settlement plans for groups.
type SettlementService struct {
	store storage.Store
	locks groupLocks
}

// NewSettlementService creates a new SettlementService with the given
// storage backend.
func NewSettlementService(store storage.Store) *SettlementService {
	return &SettlementService{store: store}
}

// ComputeResult is the output of one settlement computation.
type ComputeResult struct {
	Group       *models.Group
	Settlements []*models.Settlement

	// Reused is true when the existing pending plan was returned instead
	// of generating a new one.
	Reused bool
}

// ComputeSettlements derives net balances for the group and turns them into
// a persisted pending settlement plan.
//
// Runs for the same group are serialized by an in-process lock keyed by
// group id, so two overlapping computations can never both persist a plan
// and double-settle the group.
//
// Idempotency: the plan is always recomputed from current balances. If the
// group already has a pending plan and it matches the recomputation
// transfer-for-transfer, that plan is returned unchanged; otherwise the
// stale pending settlements are cancelled and the fresh plan is persisted.
// The comparison is exact, so re-running on an unchanged ledger never
// duplicates a plan regardless of timing.
func (s *SettlementService) ComputeSettlements(ctx context.Context, groupID string) (*ComputeResult, error) {
	unlock := s.locks.lock(groupID)
	defer unlock()

	result, err := s.computeLocked(ctx, groupID)
	if err != nil {
		metrics.SettlementRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	switch {
	case result.Reused:
		metrics.SettlementRuns.WithLabelValues("reused").Inc()
	case len(result.Settlements) == 0:
		metrics.SettlementRuns.WithLabelValues("empty").Inc()
	default:
		metrics.SettlementRuns.WithLabelValues("generated").Inc()
		metrics.SettlementsGenerated.Add(float64(len(result.Settlements)))
	}
	return result, nil
}

func (s *SettlementService) computeLocked(ctx context.Context, groupID string) (*ComputeResult, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	pending, err := s.store.PendingSettlements(ctx, groupID)
	if err != nil {
		return nil, err
	}

	balances, err := s.store.GroupBalances(ctx, groupID)
	if err != nil {
		return nil, err
	}

	transfers, err := s.solve(ctx, groupID, balances)
	if err != nil {
		return nil, err
	}

	if len(pending) > 0 && planMatches(pending, transfers) {
		slog.Info("Returning existing pending settlement plan",
			"group_id", groupID,
			"settlements", len(pending),
		)
		return &ComputeResult{Group: group, Settlements: pending, Reused: true}, nil
	}

	// Supersede the stale plan before persisting the new one. Cancellation
	// and insert cannot share one store transaction across these calls, but
	// the per-group lock keeps any observer from racing a half-replaced
	// plan into a double settlement.
	if len(pending) > 0 {
		ids := make([]string, len(pending))
		for i, p := range pending {
			ids[i] = p.ID
		}
		cancelled, err := s.store.CancelSettlements(ctx, ids)
		if err != nil {
			return nil, err
		}
		slog.Info("Superseded stale settlement plan", "group_id", groupID, "cancelled", cancelled)
	}

	settlements := make([]*models.Settlement, len(transfers))
	for i, tr := range transfers {
		settlements[i] = &models.Settlement{
			GroupID:    groupID,
			PayerID:    tr.From,
			ReceiverID: tr.To,
			Amount:     tr.Amount,
		}
	}
	if err := s.store.RecordSettlements(ctx, settlements); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	if err := s.store.SetLastSettledAt(ctx, groupID, now); err != nil {
		return nil, err
	}
	group.LastSettledAt = now

	slog.Info("Settlement plan generated",
		"group_id", groupID,
		"participants", len(balances),
		"settlements", len(settlements),
	)
	return &ComputeResult{Group: group, Settlements: settlements}, nil
}

// solve runs the pure ledger math: fair share, net balances, greedy
// matching. It also verifies the balance invariant against the transaction
// sum before trusting the running balances.
func (s *SettlementService) solve(ctx context.Context, groupID string, balances map[string]money.Money) ([]ledger.Transfer, error) {
	total, err := s.store.TransactionSum(ctx, groupID)
	if err != nil {
		return nil, err
	}

	memberSum := money.Zero
	for _, bal := range balances {
		memberSum = memberSum.Add(bal)
	}
	if !memberSum.Equal(total) {
		// Running balances are maintained incrementally; if they disagree
		// with the transaction sum the ledger is corrupt. Abort, persist
		// nothing, never silently correct.
		return nil, &ledger.InvariantError{
			Op:     "compute settlements",
			Detail: fmt.Sprintf("group %s: member balances sum to %s but transactions sum to %s", groupID, memberSum, total),
		}
	}

	fairShare, err := ledger.FairShare(total, len(balances))
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, err)
	}

	return ledger.Settle(ledger.NetBalances(balances, fairShare))
}

// planMatches reports whether an existing pending plan is exactly the plan
// the current balances produce. Both sides carry solver order, so a
// positional comparison is enough.
func planMatches(pending []*models.Settlement, transfers []ledger.Transfer) bool {
	if len(pending) != len(transfers) {
		return false
	}
	for i, p := range pending {
		tr := transfers[i]
		if p.PayerID != tr.From || p.ReceiverID != tr.To || !p.Amount.Equal(tr.Amount) {
			return false
		}
	}
	return true
}

// CompleteSettlements marks the given pending settlements as completed and
// returns how many actually transitioned.
func (s *SettlementService) CompleteSettlements(ctx context.Context, ids []string) (int, error) {
	count, err := s.store.CompleteSettlements(ctx, ids)
	if err != nil {
		return 0, err
	}
	slog.Info("Settlements completed", "requested", len(ids), "completed", count)
	return count, nil
}

// CancelSettlements marks the given pending settlements as cancelled and
// returns how many actually transitioned.
func (s *SettlementService) CancelSettlements(ctx context.Context, ids []string) (int, error) {
	count, err := s.store.CancelSettlements(ctx, ids)
	if err != nil {
		return 0, err
	}
	slog.Info("Settlements cancelled", "requested", len(ids), "cancelled", count)
	return count, nil
}

// ListSettlements returns all settlements for a group, newest first.
func (s *SettlementService) ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListSettlements(ctx, groupID)
}

// groupLocks serializes settlement generation per group. The deployment is
// a single process in front of SQLite, so an in-process keyed mutex plays
// the role an advisory database lock would in a multi-node setup. Entries
// are reference counted and dropped once the last holder unlocks, so the
// map stays proportional to in-flight computations, not to every group id
// ever seen.
type groupLocks struct {
	mu sync.Mutex
	m  map[string]*groupLock
}

type groupLock struct {
	sync.Mutex
	refs int
}

func (l *groupLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*groupLock)
	}
	gl, ok := l.m[key]
	if !ok {
		gl = &groupLock{}
		l.m[key] = gl
	}
	gl.refs++
	l.mu.Unlock()

	gl.Lock()
	return func() {
		gl.Unlock()
		l.mu.Lock()
		gl.refs--
		if gl.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}
