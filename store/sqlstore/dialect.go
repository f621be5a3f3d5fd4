package sqlstore

import (
	"strconv"
	"strings"
)

// dialect captures what differs between the supported databases.
type dialect struct {
	name   string
	driver string
	schema string

	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool

	// lockSuffix is appended to SELECTs that must lock the row they read.
	lockSuffix string

	// serialize guards the pool with the store mutex. SQLite allows one
	// writer at a time; PostgreSQL handles concurrency itself.
	serialize bool
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// SQLITE
// =============================================================================

var sqliteDialect = dialect{
	name:      "sqlite",
	driver:    "sqlite3",
	serialize: true,
	schema: `
	-- Reference: status codes shared by every table
	CREATE TABLE IF NOT EXISTS estados (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);
	INSERT INTO estados (id, name) VALUES (1, 'Activo') ON CONFLICT DO NOTHING;
	INSERT INTO estados (id, name) VALUES (2, 'Inactivo') ON CONFLICT DO NOTHING;

	CREATE TABLE IF NOT EXISTS banks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1 REFERENCES estados(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE TABLE IF NOT EXISTS credit_cards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		bank_id INTEGER REFERENCES banks(id),
		name TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1 REFERENCES estados(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_credit_cards_owner ON credit_cards(owner_id);

	CREATE TABLE IF NOT EXISTS expense_categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		status INTEGER NOT NULL DEFAULT 1 REFERENCES estados(id),
		is_system INTEGER NOT NULL DEFAULT 0,
		created_by INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);
	INSERT INTO expense_categories (id, name, description, status, is_system, created_at, updated_at)
		VALUES (1, 'General', 'Default category', 1, 1, '1970-01-01T00:00:00.000000000Z', '1970-01-01T00:00:00.000000000Z')
		ON CONFLICT DO NOTHING;

	-- Debts: financed purchases
	CREATE TABLE IF NOT EXISTS debts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		credit_card_id INTEGER NOT NULL REFERENCES credit_cards(id),
		category_id INTEGER NOT NULL REFERENCES expense_categories(id),
		total_amount TEXT NOT NULL,
		installment_count INTEGER NOT NULL CHECK (installment_count >= 1),
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1 REFERENCES estados(id),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);

	-- Listing: live debts of an owner, newest first
	CREATE INDEX IF NOT EXISTS idx_debts_owner_created
		ON debts(owner_id, created_at DESC, id DESC) WHERE deleted_at IS NULL;

	-- Expenses: installments carry debt_id, ordinary expenses do not
	CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		category_id INTEGER NOT NULL REFERENCES expense_categories(id),
		debt_id INTEGER REFERENCES debts(id),
		schedule_id TEXT,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		occurrence_date TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1 REFERENCES estados(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_debt
		ON expenses(debt_id, occurrence_date, id) WHERE debt_id IS NOT NULL;

	-- Monthly payment summary (hot path)
	CREATE INDEX IF NOT EXISTS idx_expenses_owner_date
		ON expenses(owner_id, occurrence_date) WHERE deleted_at IS NULL;
	`,
}

// =============================================================================
// POSTGRES
// =============================================================================

var postgresDialect = dialect{
	name:       "postgres",
	driver:     "postgres",
	numbered:   true,
	lockSuffix: " FOR UPDATE",
	schema: `
	CREATE TABLE IF NOT EXISTS estados (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);
	INSERT INTO estados (id, name) VALUES (1, 'Activo'), (2, 'Inactivo') ON CONFLICT DO NOTHING;

	CREATE TABLE IF NOT EXISTS banks (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1 REFERENCES estados(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE TABLE IF NOT EXISTS credit_cards (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		bank_id BIGINT REFERENCES banks(id),
		name TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1 REFERENCES estados(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_credit_cards_owner ON credit_cards(owner_id);

	CREATE TABLE IF NOT EXISTS expense_categories (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		status INTEGER NOT NULL DEFAULT 1 REFERENCES estados(id),
		is_system BOOLEAN NOT NULL DEFAULT FALSE,
		created_by BIGINT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);
	INSERT INTO expense_categories (id, name, description, status, is_system, created_at, updated_at)
		VALUES (1, 'General', 'Default category', 1, TRUE, '1970-01-01T00:00:00.000000000Z', '1970-01-01T00:00:00.000000000Z')
		ON CONFLICT DO NOTHING;
	-- explicit ids do not advance the sequence
	SELECT setval(pg_get_serial_sequence('expense_categories', 'id'),
		GREATEST((SELECT MAX(id) FROM expense_categories), 1));

	CREATE TABLE IF NOT EXISTS debts (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		credit_card_id BIGINT NOT NULL REFERENCES credit_cards(id),
		category_id BIGINT NOT NULL REFERENCES expense_categories(id),
		total_amount NUMERIC(14,2) NOT NULL,
		installment_count INTEGER NOT NULL CHECK (installment_count >= 1),
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1 REFERENCES estados(id),
		version BIGINT NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_debts_owner_created
		ON debts(owner_id, created_at DESC, id DESC) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS expenses (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		category_id BIGINT NOT NULL REFERENCES expense_categories(id),
		debt_id BIGINT REFERENCES debts(id),
		schedule_id TEXT,
		amount NUMERIC(14,2) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		occurrence_date TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1 REFERENCES estados(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_expenses_debt
		ON expenses(debt_id, occurrence_date, id) WHERE debt_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_expenses_owner_date
		ON expenses(owner_id, occurrence_date) WHERE deleted_at IS NULL;
	`,
}

func dialectFor(driver string) (dialect, bool) {
	switch driver {
	case "sqlite", "sqlite3":
		return sqliteDialect, true
	case "postgres", "postgresql", "pg":
		return postgresDialect, true
	default:
		return dialect{}, false
	}
}
