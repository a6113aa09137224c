package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallybot/tally/internal/models"
	"github.com/tallybot/tally/internal/money"
	"github.com/tallybot/tally/internal/storage"
)

// RecordTransaction appends a transaction and adds its amount to the owning
// member's running balance. Both writes happen inside one database
// transaction, so either the row and the balance update land together or
// neither does. SQLite serializes writers, which serializes concurrent
// balance updates for the same member.
func (s *SQLiteStore) RecordTransaction(ctx context.Context, memberID, description string, amount money.Money, date int64) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		groupID string
		balance money.Money
	)
	err = tx.QueryRowContext(ctx,
		"SELECT group_id, balance FROM members WHERE id = ?", memberID,
	).Scan(&groupID, &balance)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %s: %w", memberID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	record := &models.Transaction{
		ID:          uuid.New().String(),
		MemberID:    memberID,
		GroupID:     groupID,
		Description: description,
		Amount:      amount,
		Date:        date,
		CreatedAt:   time.Now().Unix(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, member_id, group_id, description, amount, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.MemberID, record.GroupID, record.Description, record.Amount,
		record.Date, record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE members SET balance = ? WHERE id = ?",
		balance.Add(amount), memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update member balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return record, nil
}

// GroupBalances returns the current balance of every member of the group,
// keyed by person ID.
func (s *SQLiteStore) GroupBalances(ctx context.Context, groupID string) (map[string]money.Money, error) {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT m.person_id, m.balance FROM members m WHERE m.group_id = ?`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]money.Money)
	for rows.Next() {
		var (
			personID string
			balance  money.Money
		)
		if err := rows.Scan(&personID, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances[personID] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	return balances, nil
}

// TransactionSum returns the exact decimal sum of all transaction amounts in
// the group. Amounts are summed in Go; SQLite's SUM would coerce the TEXT
// column to REAL.
func (s *SQLiteStore) TransactionSum(ctx context.Context, groupID string) (money.Money, error) {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return money.Zero, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT amount FROM transactions WHERE group_id = ?", groupID,
	)
	if err != nil {
		return money.Zero, fmt.Errorf("failed to get transaction amounts: %w", err)
	}
	defer rows.Close()

	total := money.Zero
	for rows.Next() {
		var amount money.Money
		if err := rows.Scan(&amount); err != nil {
			return money.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return money.Zero, fmt.Errorf("failed to iterate amounts: %w", err)
	}
	return total, nil
}

func (s *SQLiteStore) requireGroup(ctx context.Context, groupID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM groups WHERE id = ?)", groupID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check group: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil
}
