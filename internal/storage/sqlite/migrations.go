package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist. Person and item keys are
// scoped per ledger: imported snapshots may legitimately reuse the same IDs
// across ledgers (importing one share link twice, for instance). All child
// rows cascade on ledger deletion; referential integrity between items and
// persons is the ledger model's job, enforced before anything is persisted.
const schema = `
CREATE TABLE IF NOT EXISTS ledgers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS persons (
    ledger_id TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (ledger_id, id),
    FOREIGN KEY (ledger_id) REFERENCES ledgers(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS items (
    ledger_id TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    base_amount REAL NOT NULL,
    paid_by TEXT NOT NULL,
    vat_enabled INTEGER NOT NULL DEFAULT 0,
    service_charge_enabled INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL,
    PRIMARY KEY (ledger_id, id),
    FOREIGN KEY (ledger_id) REFERENCES ledgers(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS item_shares (
    ledger_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    person_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (ledger_id, item_id, person_id),
    FOREIGN KEY (ledger_id) REFERENCES ledgers(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_persons_ledger_id ON persons(ledger_id);
CREATE INDEX IF NOT EXISTS idx_items_ledger_id ON items(ledger_id);
CREATE INDEX IF NOT EXISTS idx_item_shares_ledger_id ON item_shares(ledger_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
