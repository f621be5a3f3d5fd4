/*
store.go - Persistence interface for debts, installments and reference data

PURPOSE:
  Defines the interface between the engine and the database. The Store
  handles durability; the engine decides what to write and in which
  transaction.

KEY INTERFACES:
  Store:   Reads and single-statement writes
  TxStore: Store + WithTx for atomic multi-row writes

SOFT-DELETE CONTRACT:
  No method removes rows. Retirement sets deleted_at:
  - SoftDeleteDebt(): marks one live debt
  - SoftDeleteInstallments(): marks every live installment of a debt
  Rows already retired keep their original deleted_at.

ATOMIC WRITES:
  Every lifecycle operation runs inside WithTx. If fn returns an error
  the whole transaction is rolled back, so a debt is never visible with
  a partial or stale installment set.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and PostgreSQL
  - ledger/store: in-memory for tests and local runs

SEE ALSO:
  - engine.go: the only writer
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// GetCreditCard returns a live card owned by owner, with its bank.
	// Returns ErrCreditCardNotFound otherwise.
	GetCreditCard(ctx context.Context, owner OwnerID, id CreditCardID) (*CreditCard, error)

	// GetCategory returns a live category. Returns ErrCategoryNotFound otherwise.
	// Visibility to a particular owner is checked by the caller.
	GetCategory(ctx context.Context, id CategoryID) (*Category, error)

	// GetDebt returns the debt scoped to owner. Retired debts are only
	// returned when includeDeleted is set. Returns ErrDebtNotFound otherwise.
	GetDebt(ctx context.Context, owner OwnerID, id DebtID, includeDeleted bool) (*Debt, error)

	// LockDebt is GetDebt for live debts, taking a row lock where the
	// database supports it. Only meaningful inside WithTx.
	LockDebt(ctx context.Context, owner OwnerID, id DebtID) (*Debt, error)

	// ListDebts returns one page of live debts and the total match count.
	ListDebts(ctx context.Context, q DebtQuery) ([]Debt, int, error)

	// CountActiveDebts counts live debts with StatusActive.
	CountActiveDebts(ctx context.Context, owner OwnerID) (int, error)

	// InsertDebt persists d and sets its ID.
	InsertDebt(ctx context.Context, d *Debt) error

	// UpdateDebt writes the mutable fields of d if the stored version still
	// equals expectedVersion, and sets d.Version to expectedVersion+1.
	// Returns ErrConcurrentModification when no row matched.
	UpdateDebt(ctx context.Context, d *Debt, expectedVersion int64) error

	// SoftDeleteDebt retires a live debt. Returns ErrDebtNotFound when no
	// live row matched.
	SoftDeleteDebt(ctx context.Context, owner OwnerID, id DebtID, at time.Time) error

	// Installments returns the rows linked to debtID ordered by date, then id.
	Installments(ctx context.Context, debtID DebtID, includeDeleted bool) ([]Installment, error)

	// AnyInstallmentCategory returns the category of any installment ever
	// generated for debtID, retired ones included.
	AnyInstallmentCategory(ctx context.Context, debtID DebtID) (CategoryID, bool, error)

	// InsertInstallments persists every row and sets their IDs in place.
	InsertInstallments(ctx context.Context, installments []Installment) error

	// SoftDeleteInstallments retires every live installment of debtID and
	// returns how many rows changed.
	SoftDeleteInstallments(ctx context.Context, debtID DebtID, at time.Time) (int64, error)

	// SetInstallmentCategory re-stamps the category of every live
	// installment of debtID.
	SetInstallmentCategory(ctx context.Context, debtID DebtID, category CategoryID, at time.Time) (int64, error)

	// InstallmentsBetween returns live, active debt installments of owner
	// dated within [from, to].
	InstallmentsBetween(ctx context.Context, owner OwnerID, from, to time.Time) ([]Installment, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// Registry writes the records debts point at. Each Save inserts a new row
// and sets its ID; a zero Status is stored as StatusActive.
type Registry interface {
	SaveBank(ctx context.Context, b *Bank) error
	SaveCreditCard(ctx context.Context, c *CreditCard) error
	SaveCategory(ctx context.Context, c *Category) error

	// RetireCreditCard soft-deletes an owned card. Debts keep pointing at
	// it and resolve it to nil on read.
	RetireCreditCard(ctx context.Context, owner OwnerID, id CreditCardID) error
}
