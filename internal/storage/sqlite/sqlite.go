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

	"github.com/checkbill/checkbill/internal/models"
	"github.com/checkbill/checkbill/internal/storage"
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

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
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

// CreateLedger persists a new ledger snapshot to the database.
func (s *SQLiteStore) CreateLedger(ctx context.Context, ledger *models.Ledger) error {
	// Generate IDs if not set
	if ledger.ID == "" {
		ledger.ID = uuid.New().String()
	}
	if ledger.CreatedAt == 0 {
		ledger.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO ledgers (id, name, created_at) VALUES (?, ?, ?)",
		ledger.ID, ledger.Name, ledger.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger: %w", err)
	}

	if err := insertSnapshot(ctx, tx, ledger); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveLedger replaces the stored snapshot with the given one. Persons and
// items are rewritten wholesale inside one transaction: the application
// rebuilds the ledger on every edit, so there is nothing to patch.
func (s *SQLiteStore) SaveLedger(ctx context.Context, ledger *models.Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE ledgers SET name = ? WHERE id = ?",
		ledger.Name, ledger.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check ledger update: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	for _, table := range []string{"item_shares", "items", "persons"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE ledger_id = ?", ledger.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := insertSnapshot(ctx, tx, ledger); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// insertSnapshot writes the ledger's persons and items inside an open
// transaction, generating IDs where missing.
func insertSnapshot(ctx context.Context, tx *sql.Tx, ledger *models.Ledger) error {
	for i := range ledger.Persons {
		p := &ledger.Persons[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO persons (ledger_id, id, name, position) VALUES (?, ?, ?, ?)",
			ledger.ID, p.ID, p.Name, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert person: %w", err)
		}
	}

	for i := range ledger.Items {
		item := &ledger.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (ledger_id, id, name, base_amount, paid_by, vat_enabled, service_charge_enabled, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ledger.ID, item.ID, item.Name, item.BaseAmount, item.PaidBy,
			boolToInt(item.VATEnabled), boolToInt(item.ServiceChargeEnabled), i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}

		for j, personID := range item.SharedBy {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO item_shares (ledger_id, item_id, person_id, position) VALUES (?, ?, ?, ?)",
				ledger.ID, item.ID, personID, j,
			)
			if err != nil {
				return fmt.Errorf("failed to insert item share: %w", err)
			}
		}
	}

	return nil
}

// GetLedger retrieves a ledger by ID, including all persons and items in
// their insertion order.
func (s *SQLiteStore) GetLedger(ctx context.Context, ledgerID string) (*models.Ledger, error) {
	ledger := &models.Ledger{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM ledgers WHERE id = ?",
		ledgerID,
	).Scan(&ledger.ID, &ledger.Name, &ledger.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	// Persons in insertion order; settlement tie-breaks depend on it.
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name FROM persons WHERE ledger_id = ? ORDER BY position",
		ledgerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get persons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		ledger.Persons = append(ledger.Persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate persons: %w", err)
	}

	itemRows, err := s.db.QueryContext(ctx,
		`SELECT id, name, base_amount, paid_by, vat_enabled, service_charge_enabled
		 FROM items WHERE ledger_id = ? ORDER BY position`,
		ledgerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item models.Item
		var vat, service int
		if err := itemRows.Scan(&item.ID, &item.Name, &item.BaseAmount, &item.PaidBy, &vat, &service); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.VATEnabled = vat != 0
		item.ServiceChargeEnabled = service != 0

		shareRows, err := s.db.QueryContext(ctx,
			"SELECT person_id FROM item_shares WHERE ledger_id = ? AND item_id = ? ORDER BY position",
			ledgerID, item.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to get item shares: %w", err)
		}

		for shareRows.Next() {
			var personID string
			if err := shareRows.Scan(&personID); err != nil {
				shareRows.Close()
				return nil, fmt.Errorf("failed to scan item share: %w", err)
			}
			item.SharedBy = append(item.SharedBy, personID)
		}
		shareRows.Close()
		if err := shareRows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate item shares: %w", err)
		}

		ledger.Items = append(ledger.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return ledger, nil
}

// DeleteLedger removes a ledger; persons, items and shares cascade.
func (s *SQLiteStore) DeleteLedger(ctx context.Context, ledgerID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM ledgers WHERE id = ?", ledgerID)
	if err != nil {
		return fmt.Errorf("failed to delete ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check ledger deletion: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListLedgers returns all ledgers, newest first, headers only.
func (s *SQLiteStore) ListLedgers(ctx context.Context) ([]*models.Ledger, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM ledgers ORDER BY created_at DESC, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []*models.Ledger
	for rows.Next() {
		ledger := &models.Ledger{}
		if err := rows.Scan(&ledger.ID, &ledger.Name, &ledger.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger: %w", err)
		}
		ledgers = append(ledgers, ledger)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledgers: %w", err)
	}

	return ledgers, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
