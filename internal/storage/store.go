// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"

	"github.com/checkbill/checkbill/internal/models"
)

// ErrNotFound is returned when a requested ledger does not exist.
var ErrNotFound = errors.New("ledger not found")

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the service layer. A ledger is always written as a
// whole snapshot: the application rebuilds it on every edit, so the store
// replaces rather than patches.
type Store interface {
	// CreateLedger persists a new ledger. ID and CreatedAt are populated
	// by the store when unset.
	CreateLedger(ctx context.Context, ledger *models.Ledger) error

	// GetLedger retrieves a ledger snapshot by its ID.
	// Returns ErrNotFound if no such ledger exists.
	GetLedger(ctx context.Context, ledgerID string) (*models.Ledger, error)

	// SaveLedger replaces the stored snapshot with the given one.
	// Returns ErrNotFound if the ledger does not exist.
	SaveLedger(ctx context.Context, ledger *models.Ledger) error

	// DeleteLedger removes a ledger and everything it owns.
	// Returns ErrNotFound if the ledger does not exist.
	DeleteLedger(ctx context.Context, ledgerID string) error

	// ListLedgers returns all ledgers, newest first, without their items
	// and persons loaded.
	ListLedgers(ctx context.Context) ([]*models.Ledger, error)

	// Close releases any resources held by the store.
	Close() error
}
