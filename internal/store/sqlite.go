package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pycoach/server/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS accounts (
		identity TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		credential_hash TEXT NOT NULL,
		xp INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		streak INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_level ON accounts(level);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetAccount retrieves an account by identity.
func (s *SQLiteStore) GetAccount(ctx context.Context, identity string) (*domain.LearnerAccount, error) {
	query := `
		SELECT identity, display_name, credential_hash, xp, level, streak, created_at, updated_at
		FROM accounts WHERE identity = ?`

	row := s.db.QueryRowContext(ctx, query, identity)

	var acct domain.LearnerAccount
	var createdAt, updatedAt int64

	err := row.Scan(
		&acct.Identity, &acct.DisplayName, &acct.CredentialHash,
		&acct.XP, &acct.Level, &acct.Streak, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan account row: %w", err)
	}

	acct.CreatedAt = time.Unix(createdAt, 0)
	acct.UpdatedAt = time.Unix(updatedAt, 0)

	return &acct, nil
}

// CreateAccount inserts a new account record. Existing identities are
// never overwritten; a duplicate insert returns ErrAlreadyExists.
func (s *SQLiteStore) CreateAccount(ctx context.Context, acct *domain.LearnerAccount) error {
	query := `
	INSERT INTO accounts (identity, display_name, credential_hash, xp, level, streak, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		acct.Identity, acct.DisplayName, acct.CredentialHash,
		acct.XP, acct.Level, acct.Streak,
		acct.CreatedAt.Unix(), acct.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// UpdateProgress writes xp/level for an identity, conditioned on the
// stored xp still matching expectedXP.
func (s *SQLiteStore) UpdateProgress(ctx context.Context, identity string, xp, level, expectedXP int) error {
	query := `UPDATE accounts SET xp = ?, level = ?, updated_at = ? WHERE identity = ? AND xp = ?`
	result, err := s.db.ExecContext(ctx, query, xp, level, time.Now().Unix(), identity, expectedXP)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateProgress affected 0 rows", "identity", identity, "expected_xp", expectedXP)
		return ErrConflict
	}

	return nil
}

// UpdateStreak writes the daily streak counter for an identity.
func (s *SQLiteStore) UpdateStreak(ctx context.Context, identity string, streak int) error {
	query := `UPDATE accounts SET streak = ?, updated_at = ? WHERE identity = ?`
	result, err := s.db.ExecContext(ctx, query, streak, time.Now().Unix(), identity)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateStreak affected 0 rows", "identity", identity)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: accounts.identity")
}
