// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/tallybot/tally/internal/models"
	"github.com/tallybot/tally/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver. _txlock=immediate makes every
	// write transaction take the write lock at BEGIN, so concurrent
	// writers queue on busy_timeout instead of failing mid-transaction on
	// the lock upgrade. Pragmas go through the DSN so they apply to every
	// pooled connection.
	dsn := dbPath + "?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertPerson creates or updates a person keyed by chat id. The lookup and
// the write share one transaction so two first-time upserts of the same chat
// id serialize instead of racing into the UNIQUE constraint.
func (s *SQLiteStore) UpsertPerson(ctx context.Context, person *models.Person) error {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM persons WHERE chat_id = ?", person.ChatID,
	).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		person.ID = uuid.New().String()
		person.CreatedAt = now
		person.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO persons (id, chat_id, username, first_name, last_name, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			person.ID, person.ChatID, person.Username, person.FirstName, person.LastName,
			person.CreatedAt, person.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert person: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up person: %w", err)
	default:
		person.ID = id
		person.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`UPDATE persons SET username = ?, first_name = ?, last_name = ?, updated_at = ? WHERE id = ?`,
			person.Username, person.FirstName, person.LastName, person.UpdatedAt, person.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update person: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit person upsert: %w", err)
	}
	return nil
}

// UpsertGroup creates or updates a group keyed by chat id. A currency change
// is rejected once the group has recorded transactions.
func (s *SQLiteStore) UpsertGroup(ctx context.Context, group *models.Group) error {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		id       string
		currency string
	)
	err = tx.QueryRowContext(ctx,
		"SELECT id, currency FROM groups WHERE chat_id = ?", group.ChatID,
	).Scan(&id, &currency)
	switch {
	case err == sql.ErrNoRows:
		group.ID = uuid.New().String()
		group.CreatedAt = now
		group.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO groups (id, chat_id, name, description, currency, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			group.ID, group.ChatID, group.Name, group.Description, group.Currency,
			group.CreatedAt, group.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}
		return tx.Commit()
	case err != nil:
		return fmt.Errorf("failed to look up group: %w", err)
	}

	if group.Currency != currency {
		var hasTx int
		err = tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM transactions WHERE group_id = ?)", id,
		).Scan(&hasTx)
		if err != nil {
			return fmt.Errorf("failed to check group transactions: %w", err)
		}
		if hasTx == 1 {
			return fmt.Errorf("group %s: %w", id, storage.ErrCurrencyLocked)
		}
	}

	group.ID = id
	group.UpdatedAt = now
	_, err = tx.ExecContext(ctx,
		`UPDATE groups SET name = ?, description = ?, currency = ?, updated_at = ? WHERE id = ?`,
		group.Name, group.Description, group.Currency, group.UpdatedAt, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return tx.Commit()
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.getGroup(ctx, "id", groupID)
}

// GetGroupByChatID retrieves a group by its external chat identifier.
func (s *SQLiteStore) GetGroupByChatID(ctx context.Context, chatID string) (*models.Group, error) {
	return s.getGroup(ctx, "chat_id", chatID)
}

func (s *SQLiteStore) getGroup(ctx context.Context, column, value string) (*models.Group, error) {
	group := &models.Group{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, name, description, currency, last_processed_at, last_settled_at, created_at, updated_at
		 FROM groups WHERE `+column+` = ?`,
		value,
	).Scan(&group.ID, &group.ChatID, &group.Name, &group.Description, &group.Currency,
		&group.LastProcessedAt, &group.LastSettledAt, &group.CreatedAt, &group.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", value, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// EnsureMember returns the membership of person in group, creating it with a
// zero balance if missing.
func (s *SQLiteStore) EnsureMember(ctx context.Context, groupID, personID string) (*models.Member, error) {
	member := &models.Member{GroupID: groupID, PersonID: personID}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, balance, joined_at FROM members WHERE group_id = ? AND person_id = ?",
		groupID, personID,
	).Scan(&member.ID, &member.Balance, &member.JoinedAt)
	if err == nil {
		return member, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up member: %w", err)
	}

	// Verify both references exist so a typo surfaces as NotFound rather
	// than a dangling row.
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM groups WHERE id = ?)", groupID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check group: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM persons WHERE id = ?)", personID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check person: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("person %s: %w", personID, storage.ErrNotFound)
	}

	member.ID = uuid.New().String()
	member.JoinedAt = time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO members (id, group_id, person_id, joined_at) VALUES (?, ?, ?, ?)",
		member.ID, groupID, personID, member.JoinedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert member: %w", err)
	}
	return member, nil
}

// SetLastProcessedAt records the group's ingestion watermark.
func (s *SQLiteStore) SetLastProcessedAt(ctx context.Context, groupID string, ts int64) error {
	return s.setGroupWatermark(ctx, "last_processed_at", groupID, ts)
}

// SetLastSettledAt records when settlement generation last ran for the group.
func (s *SQLiteStore) SetLastSettledAt(ctx context.Context, groupID string, ts int64) error {
	return s.setGroupWatermark(ctx, "last_settled_at", groupID, ts)
}

func (s *SQLiteStore) setGroupWatermark(ctx context.Context, column, groupID string, ts int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE groups SET "+column+" = ?, updated_at = ? WHERE id = ?",
		ts, time.Now().Unix(), groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil
}
