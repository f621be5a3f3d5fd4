/*
Package sqlstore provides a SQL-backed implementation of ledger.TxStore.

PURPOSE:
  Persists debts, installments (expense rows with a debt_id) and the
  reference data they point at. SQLite is the default for local runs and
  tests; PostgreSQL is supported with the same queries, rebound to
  numbered placeholders.

INTERFACES IMPLEMENTED:
  ledger.TxStore:  Debt and installment persistence
  ledger.Registry: Banks, credit cards and categories

SOFT DELETE:
  No statement in this package issues a DELETE. Retirement writes
  deleted_at; every read filters on it unless asked not to.

KEY TABLES:
  estados:            Status codes (1 Activo, 2 Inactivo)
  banks:              Card issuers
  credit_cards:       Financing instruments, owned by a user
  expense_categories: System and user categories
  debts:              Financed purchases (versioned)
  expenses:           Installments and ordinary expenses

STORAGE FORMATS:
  Amounts are decimal strings (NUMERIC in PostgreSQL), dates are
  YYYY-MM-DD text and timestamps are fixed-width UTC text, so every
  ordering and range filter is a plain string comparison.

CONCURRENCY:
  SQLite runs on a single connection guarded by sync.RWMutex. With
  PostgreSQL the pool is used directly and LockDebt takes a row lock
  (SELECT ... FOR UPDATE); the debt version column catches anything the
  lock does not.

USAGE:
  store, err := sqlstore.New("./data/debts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewDebtEngine(store, logger)

MIGRATION:
  Schema is auto-migrated on open. For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/debt-engine/ledger"
)

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// Store implements ledger.TxStore and ledger.Registry.
type Store struct {
	db *sql.DB
	d  dialect
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open("sqlite", dbPath)
}

// Open connects to driver ("sqlite" or "postgres") and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	d, ok := dialectFor(driver)
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if d.name == "sqlite" {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.serialize {
		// :memory: databases live and die with their connection
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, d: d}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// sqliteDSN turns on foreign keys and WAL, keeping any options already in dsn.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_journal_mode=WAL"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver reports the dialect in use.
func (s *Store) Driver() string { return s.d.name }

func (s *Store) migrate() error {
	_, err := s.db.Exec(s.d.schema)
	return err
}

func (s *Store) conn() conn { return conn{q: s.db, d: s.d} }

func (s *Store) rlock() func() {
	if !s.d.serialize {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock() func() {
	if !s.d.serialize {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// =============================================================================
// ledger.Store
// =============================================================================

func (s *Store) GetCreditCard(ctx context.Context, owner ledger.OwnerID, id ledger.CreditCardID) (*ledger.CreditCard, error) {
	defer s.rlock()()
	return s.conn().GetCreditCard(ctx, owner, id)
}

func (s *Store) GetCategory(ctx context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	defer s.rlock()()
	return s.conn().GetCategory(ctx, id)
}

func (s *Store) GetDebt(ctx context.Context, owner ledger.OwnerID, id ledger.DebtID, includeDeleted bool) (*ledger.Debt, error) {
	defer s.rlock()()
	return s.conn().GetDebt(ctx, owner, id, includeDeleted)
}

// LockDebt outside a transaction is a plain read.
func (s *Store) LockDebt(ctx context.Context, owner ledger.OwnerID, id ledger.DebtID) (*ledger.Debt, error) {
	defer s.rlock()()
	return s.conn().GetDebt(ctx, owner, id, false)
}

func (s *Store) ListDebts(ctx context.Context, q ledger.DebtQuery) ([]ledger.Debt, int, error) {
	defer s.rlock()()
	return s.conn().ListDebts(ctx, q)
}

func (s *Store) CountActiveDebts(ctx context.Context, owner ledger.OwnerID) (int, error) {
	defer s.rlock()()
	return s.conn().CountActiveDebts(ctx, owner)
}

func (s *Store) InsertDebt(ctx context.Context, d *ledger.Debt) error {
	defer s.lock()()
	return s.conn().InsertDebt(ctx, d)
}

func (s *Store) UpdateDebt(ctx context.Context, d *ledger.Debt, expectedVersion int64) error {
	defer s.lock()()
	return s.conn().UpdateDebt(ctx, d, expectedVersion)
}

func (s *Store) SoftDeleteDebt(ctx context.Context, owner ledger.OwnerID, id ledger.DebtID, at time.Time) error {
	defer s.lock()()
	return s.conn().SoftDeleteDebt(ctx, owner, id, at)
}

func (s *Store) Installments(ctx context.Context, debtID ledger.DebtID, includeDeleted bool) ([]ledger.Installment, error) {
	defer s.rlock()()
	return s.conn().Installments(ctx, debtID, includeDeleted)
}

func (s *Store) AnyInstallmentCategory(ctx context.Context, debtID ledger.DebtID) (ledger.CategoryID, bool, error) {
	defer s.rlock()()
	return s.conn().AnyInstallmentCategory(ctx, debtID)
}

// InsertInstallments outside WithTx still writes the whole set atomically.
func (s *Store) InsertInstallments(ctx context.Context, installments []ledger.Installment) error {
	return s.WithTx(ctx, func(tx ledger.Store) error {
		return tx.InsertInstallments(ctx, installments)
	})
}

func (s *Store) SoftDeleteInstallments(ctx context.Context, debtID ledger.DebtID, at time.Time) (int64, error) {
	defer s.lock()()
	return s.conn().SoftDeleteInstallments(ctx, debtID, at)
}

func (s *Store) SetInstallmentCategory(ctx context.Context, debtID ledger.DebtID, category ledger.CategoryID, at time.Time) (int64, error) {
	defer s.lock()()
	return s.conn().SetInstallmentCategory(ctx, debtID, category, at)
}

func (s *Store) InstallmentsBetween(ctx context.Context, owner ledger.OwnerID, from, to time.Time) ([]ledger.Installment, error) {
	defer s.rlock()()
	return s.conn().InstallmentsBetween(ctx, owner, from, to)
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	defer s.lock()()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{conn{q: sqlTx, d: s.d}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every statement on the open transaction. LockDebt takes a
// row lock where the dialect has one.
type txStore struct {
	conn
}

func (ts *txStore) LockDebt(ctx context.Context, owner ledger.OwnerID, id ledger.DebtID) (*ledger.Debt, error) {
	return ts.getDebt(ctx, owner, id, false, ts.d.lockSuffix)
}

// =============================================================================
// QUERIES - shared by Store and txStore
// =============================================================================

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q queryer
	d dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id.
func (c conn) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := c.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		if isUniqueConstraintError(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (c conn) GetCreditCard(ctx context.Context, owner ledger.OwnerID, id ledger.CreditCardID) (*ledger.CreditCard, error) {
	query := `
		SELECT c.id, c.owner_id, c.bank_id, c.name, c.status,
		       b.id, b.owner_id, b.name, b.status
		FROM credit_cards c
		LEFT JOIN banks b ON b.id = c.bank_id AND b.deleted_at IS NULL
		WHERE c.id = ? AND c.owner_id = ? AND c.deleted_at IS NULL
	`

	var (
		card              ledger.CreditCard
		bankRef           sql.NullInt64
		bankID, bankOwner sql.NullInt64
		bankName          sql.NullString
		bankStatus        sql.NullInt64
	)
	err := c.queryRow(ctx, query, id, owner).Scan(
		&card.ID, &card.OwnerID, &bankRef, &card.Name, &card.Status,
		&bankID, &bankOwner, &bankName, &bankStatus,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrCreditCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit card: %w", err)
	}

	card.BankID = ledger.BankID(bankRef.Int64)
	if bankID.Valid {
		card.Bank = &ledger.Bank{
			ID:      ledger.BankID(bankID.Int64),
			OwnerID: ledger.OwnerID(bankOwner.Int64),
			Name:    bankName.String,
			Status:  ledger.Status(bankStatus.Int64),
		}
	}
	return &card, nil
}

func (c conn) GetCategory(ctx context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	query := `
		SELECT id, name, description, status, is_system, created_by
		FROM expense_categories
		WHERE id = ? AND deleted_at IS NULL
	`

	var (
		cat       ledger.Category
		createdBy sql.NullInt64
	)
	err := c.queryRow(ctx, query, id).Scan(&cat.ID, &cat.Name, &cat.Description, &cat.Status, &cat.IsSystem, &createdBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	if createdBy.Valid {
		o := ledger.OwnerID(createdBy.Int64)
		cat.CreatedBy = &o
	}
	return &cat, nil
}

const debtColumns = `id, owner_id, credit_card_id, category_id, total_amount, installment_count,
	description, start_date, status, version, created_at, updated_at, deleted_at`

func (c conn) GetDebt(ctx context.Context, owner ledger.OwnerID, id ledger.DebtID, includeDeleted bool) (*ledger.Debt, error) {
	return c.getDebt(ctx, owner, id, includeDeleted, "")
}

func (c conn) LockDebt(ctx context.Context, owner ledger.OwnerID, id ledger.DebtID) (*ledger.Debt, error) {
	return c.getDebt(ctx, owner, id, false, "")
}

func (c conn) getDebt(ctx context.Context, owner ledger.OwnerID, id ledger.DebtID, includeDeleted bool, suffix string) (*ledger.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE id = ? AND owner_id = ?`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += suffix

	d, err := scanDebt(c.queryRow(ctx, query, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrDebtNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c conn) ListDebts(ctx context.Context, q ledger.DebtQuery) ([]ledger.Debt, int, error) {
	where := ` WHERE owner_id = ? AND deleted_at IS NULL`
	args := []any{q.OwnerID}
	if q.HasMonthFilter() {
		where += ` AND start_date >= ? AND start_date <= ?`
		args = append(args,
			ledger.FormatDate(ledger.StartOfMonth(q.Year, q.Month)),
			ledger.FormatDate(ledger.EndOfMonth(q.Year, q.Month)))
	}

	var total int
	if err := c.queryRow(ctx, `SELECT COUNT(*) FROM debts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count debts: %w", err)
	}

	query := `SELECT ` + debtColumns + ` FROM debts` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := c.query(ctx, query, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query debts: %w", err)
	}
	defer rows.Close()

	var debts []ledger.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, 0, err
		}
		debts = append(debts, d)
	}
	return debts, total, rows.Err()
}

func (c conn) CountActiveDebts(ctx context.Context, owner ledger.OwnerID) (int, error) {
	var n int
	err := c.queryRow(ctx,
		`SELECT COUNT(*) FROM debts WHERE owner_id = ? AND status = ? AND deleted_at IS NULL`,
		owner, ledger.StatusActive,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count debts: %w", err)
	}
	return n, nil
}

func (c conn) InsertDebt(ctx context.Context, d *ledger.Debt) error {
	query := `
		INSERT INTO debts
		(owner_id, credit_card_id, category_id, total_amount, installment_count,
		 description, start_date, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := c.insert(ctx, query,
		d.OwnerID, d.CreditCardID, d.CategoryID,
		formatAmount(d.TotalAmount), d.InstallmentCount,
		d.Description, ledger.FormatDate(d.StartDate), d.Status, d.Version,
		formatTimestamp(d.CreatedAt), formatTimestamp(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert debt: %w", err)
	}
	d.ID = ledger.DebtID(id)
	return nil
}

func (c conn) UpdateDebt(ctx context.Context, d *ledger.Debt, expectedVersion int64) error {
	query := `
		UPDATE debts
		SET credit_card_id = ?, category_id = ?, total_amount = ?, installment_count = ?,
		    description = ?, start_date = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND owner_id = ? AND version = ? AND deleted_at IS NULL
	`
	res, err := c.exec(ctx, query,
		d.CreditCardID, d.CategoryID, formatAmount(d.TotalAmount), d.InstallmentCount,
		d.Description, ledger.FormatDate(d.StartDate), d.Status, formatTimestamp(d.UpdatedAt),
		d.ID, d.OwnerID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	if n == 0 {
		return ledger.ErrConcurrentModification
	}
	d.Version = expectedVersion + 1
	return nil
}

func (c conn) SoftDeleteDebt(ctx context.Context, owner ledger.OwnerID, id ledger.DebtID, at time.Time) error {
	ts := formatTimestamp(at)
	res, err := c.exec(ctx,
		`UPDATE debts SET deleted_at = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
		ts, ts, id, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to delete debt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete debt: %w", err)
	}
	if n == 0 {
		return ledger.ErrDebtNotFound
	}
	return nil
}

const installmentColumns = `id, owner_id, category_id, debt_id, schedule_id, amount, description,
	occurrence_date, status, created_at, updated_at, deleted_at`

func (c conn) Installments(ctx context.Context, debtID ledger.DebtID, includeDeleted bool) ([]ledger.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM expenses WHERE debt_id = ?`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY occurrence_date ASC, id ASC`
	return c.queryInstallments(ctx, query, debtID)
}

func (c conn) AnyInstallmentCategory(ctx context.Context, debtID ledger.DebtID) (ledger.CategoryID, bool, error) {
	var id ledger.CategoryID
	err := c.queryRow(ctx,
		`SELECT category_id FROM expenses WHERE debt_id = ? ORDER BY id ASC LIMIT 1`, debtID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query installment category: %w", err)
	}
	return id, true, nil
}

func (c conn) InsertInstallments(ctx context.Context, installments []ledger.Installment) error {
	query := `
		INSERT INTO expenses
		(owner_id, category_id, debt_id, schedule_id, amount, description,
		 occurrence_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i := range installments {
		in := &installments[i]
		id, err := c.insert(ctx, query,
			in.OwnerID, in.CategoryID, nullInt64(int64(in.DebtID)), nullString(in.ScheduleID),
			formatAmount(in.Amount), in.Description, ledger.FormatDate(in.Date), in.Status,
			formatTimestamp(in.CreatedAt), formatTimestamp(in.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert installment %d: %w", i+1, err)
		}
		in.ID = ledger.InstallmentID(id)
	}
	return nil
}

func (c conn) SoftDeleteInstallments(ctx context.Context, debtID ledger.DebtID, at time.Time) (int64, error) {
	ts := formatTimestamp(at)
	res, err := c.exec(ctx,
		`UPDATE expenses SET deleted_at = ?, updated_at = ? WHERE debt_id = ? AND deleted_at IS NULL`,
		ts, ts, debtID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to retire installments: %w", err)
	}
	return res.RowsAffected()
}

func (c conn) SetInstallmentCategory(ctx context.Context, debtID ledger.DebtID, category ledger.CategoryID, at time.Time) (int64, error) {
	res, err := c.exec(ctx,
		`UPDATE expenses SET category_id = ?, updated_at = ? WHERE debt_id = ? AND deleted_at IS NULL`,
		category, formatTimestamp(at), debtID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update installment category: %w", err)
	}
	return res.RowsAffected()
}

func (c conn) InstallmentsBetween(ctx context.Context, owner ledger.OwnerID, from, to time.Time) ([]ledger.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM expenses
		WHERE owner_id = ? AND debt_id IS NOT NULL AND deleted_at IS NULL AND status = ?
		  AND occurrence_date >= ? AND occurrence_date <= ?
		ORDER BY occurrence_date ASC, id ASC`
	return c.queryInstallments(ctx, query, owner, ledger.StatusActive, ledger.FormatDate(from), ledger.FormatDate(to))
}

func (c conn) queryInstallments(ctx context.Context, query string, args ...any) ([]ledger.Installment, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var installments []ledger.Installment
	for rows.Next() {
		in, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, in)
	}
	return installments, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanDebt(row scanner) (ledger.Debt, error) {
	var (
		d                    ledger.Debt
		total, start         string
		createdAt, updatedAt string
		deletedAt            sql.NullString
	)
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.CreditCardID, &d.CategoryID, &total, &d.InstallmentCount,
		&d.Description, &start, &d.Status, &d.Version, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, err
		}
		return d, fmt.Errorf("failed to scan debt: %w", err)
	}

	if d.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return d, fmt.Errorf("debt %d: bad total_amount %q: %w", d.ID, total, err)
	}
	if d.StartDate, err = ledger.ParseDate(start); err != nil {
		return d, fmt.Errorf("debt %d: bad start_date %q: %w", d.ID, start, err)
	}
	if d.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return d, err
	}
	if d.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return d, err
	}
	if d.DeletedAt, err = parseNullTimestamp(deletedAt); err != nil {
		return d, err
	}
	return d, nil
}

func scanInstallment(row scanner) (ledger.Installment, error) {
	var (
		in                   ledger.Installment
		debtID               sql.NullInt64
		scheduleID           sql.NullString
		amount, date         string
		createdAt, updatedAt string
		deletedAt            sql.NullString
	)
	err := row.Scan(
		&in.ID, &in.OwnerID, &in.CategoryID, &debtID, &scheduleID, &amount, &in.Description,
		&date, &in.Status, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return in, fmt.Errorf("failed to scan installment: %w", err)
	}

	in.DebtID = ledger.DebtID(debtID.Int64)
	in.ScheduleID = scheduleID.String
	if in.Amount, err = decimal.NewFromString(amount); err != nil {
		return in, fmt.Errorf("installment %d: bad amount %q: %w", in.ID, amount, err)
	}
	if in.Date, err = ledger.ParseDate(date); err != nil {
		return in, fmt.Errorf("installment %d: bad date %q: %w", in.ID, date, err)
	}
	if in.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return in, err
	}
	if in.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return in, err
	}
	if in.DeletedAt, err = parseNullTimestamp(deletedAt); err != nil {
		return in, err
	}
	return in, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// timestampLayout is fixed width so text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTimestamp(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(ledger.AmountScale)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
