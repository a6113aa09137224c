package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallybot/tally/internal/models"
)

// RecordSettlements persists solver output with status pending.
// All rows are inserted in one database transaction so a failed run never
// leaves a partial settlement set behind.
func (s *SQLiteStore) RecordSettlements(ctx context.Context, settlements []*models.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}

	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, settlement := range settlements {
		if settlement.ID == "" {
			settlement.ID = uuid.New().String()
		}
		settlement.Status = models.SettlementPending
		settlement.CreatedAt = now
		settlement.UpdatedAt = now

		_, err = tx.ExecContext(ctx,
			`INSERT INTO settlements (id, group_id, payer_id, receiver_id, amount, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			settlement.ID, settlement.GroupID, settlement.PayerID, settlement.ReceiverID,
			settlement.Amount, settlement.Status, settlement.CreatedAt, settlement.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert settlement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlements: %w", err)
	}
	return nil
}

// PendingSettlements returns the group's settlements still in pending,
// oldest first so the set reads in the order the solver emitted it.
func (s *SQLiteStore) PendingSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	return s.querySettlements(ctx,
		`SELECT id, group_id, payer_id, receiver_id, amount, status, created_at, updated_at
		 FROM settlements WHERE group_id = ? AND status = ? ORDER BY rowid ASC`,
		groupID, models.SettlementPending,
	)
}

// ListSettlements returns all of the group's settlements, newest first.
func (s *SQLiteStore) ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	return s.querySettlements(ctx,
		`SELECT id, group_id, payer_id, receiver_id, amount, status, created_at, updated_at
		 FROM settlements WHERE group_id = ? ORDER BY created_at DESC, rowid DESC`,
		groupID,
	)
}

func (s *SQLiteStore) querySettlements(ctx context.Context, query string, args ...any) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement := &models.Settlement{}
		if err := rows.Scan(&settlement.ID, &settlement.GroupID, &settlement.PayerID,
			&settlement.ReceiverID, &settlement.Amount, &settlement.Status,
			&settlement.CreatedAt, &settlement.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

// CompleteSettlements transitions matching pending settlements to completed.
// Ids that do not exist or are no longer pending are skipped, not errors;
// the returned count covers only rows that actually transitioned, so calling
// twice with the same ids completes each settlement at most once.
func (s *SQLiteStore) CompleteSettlements(ctx context.Context, ids []string) (int, error) {
	return s.transitionSettlements(ctx, ids, models.SettlementCompleted)
}

// CancelSettlements transitions matching pending settlements to cancelled,
// with the same skip semantics as CompleteSettlements.
func (s *SQLiteStore) CancelSettlements(ctx context.Context, ids []string) (int, error) {
	return s.transitionSettlements(ctx, ids, models.SettlementCancelled)
}

func (s *SQLiteStore) transitionSettlements(ctx context.Context, ids []string, to models.SettlementStatus) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	// The status guard in the WHERE clause is what makes terminal states
	// terminal: a completed or cancelled row never matches again.
	query := `UPDATE settlements SET status = ?, updated_at = ?
		 WHERE status = ? AND id IN (?` + repeatPlaceholder(len(ids)-1) + `)`

	args := make([]any, 0, len(ids)+3)
	args = append(args, to, time.Now().Unix(), models.SettlementPending)
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to transition settlements to %s: %w", to, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(rows), nil
}

// repeatPlaceholder returns a string of ", ?" repeated n times.
// Used for building IN clauses with multiple placeholders.
func repeatPlaceholder(n int) string {
	if n <= 0 {
		return ""
	}
	result := ""
	for i := 0; i < n; i++ {
		result += ", ?"
	}
	return result
}
