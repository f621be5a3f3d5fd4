/*
Package ledger provides the debt and installment consistency engine.

PURPOSE:
  A debt is a financed purchase split into a fixed number of monthly
  installments. Every installment is materialized as an expense row that
  points back at its debt. This package owns the rules that keep the two
  in sync: a debt never exists without its full schedule, an edit that
  invalidates the schedule regenerates it, and retiring a debt retires
  every installment with it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed identifiers (OwnerID, DebtID, ...) so ids cannot be mixed up
  - Debt: the financed purchase
  - Installment: one scheduled payment, an expense row with a DebtID
  - CreditCard / Bank: the financing instrument and its issuer
  - Category: referenced by installments, never owned by them
  - Status: active/inactive flag shared by every record

DESIGN PRINCIPLES:
  1. Precision: amounts are decimal.Decimal with two decimal places
  2. Soft delete: rows are retired with DeletedAt, never removed
  3. Single category: the category lives on the Debt; installments carry
     a copy that the engine keeps identical
  4. Optimistic concurrency: Debt.Version is bumped on every write

SEE ALSO:
  - schedule.go: installment schedule generation
  - engine.go: create/update/delete lifecycle
  - store.go: persistence contract
*/
package ledger

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OwnerID int64
type DebtID int64
type InstallmentID int64
type CreditCardID int64
type BankID int64
type CategoryID int64

// =============================================================================
// STATUS
// =============================================================================

// Status mirrors the estados reference table.
type Status int

const (
	StatusActive   Status = 1
	StatusInactive Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// =============================================================================
// AMOUNTS
// =============================================================================

// AmountScale is the number of decimal places stored for every amount.
const AmountScale = 2

// MustParseAmount parses a decimal literal and panics if it is malformed.
func MustParseAmount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// SumAmounts adds the amounts of the given installments.
func SumAmounts(installments []Installment) decimal.Decimal {
	total := decimal.Zero
	for _, in := range installments {
		total = total.Add(in.Amount)
	}
	return total
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

type Bank struct {
	ID      BankID
	OwnerID OwnerID
	Name    string
	Status  Status
}

// CreditCard is the financing instrument a debt is charged to.
type CreditCard struct {
	ID      CreditCardID
	OwnerID OwnerID
	BankID  BankID
	Name    string
	Status  Status

	// Bank is resolved by the store when the card is loaded. Nil when the
	// issuer row is missing.
	Bank *Bank
}

type Category struct {
	ID          CategoryID
	Name        string
	Description string
	Status      Status
	IsSystem    bool
	CreatedBy   *OwnerID // nil for system categories
}

// VisibleTo reports whether owner may file expenses under the category.
func (c Category) VisibleTo(owner OwnerID) bool {
	return c.IsSystem || c.CreatedBy == nil || *c.CreatedBy == owner
}

// =============================================================================
// DEBT
// =============================================================================

type Debt struct {
	ID               DebtID
	OwnerID          OwnerID
	CreditCardID     CreditCardID
	CategoryID       CategoryID
	TotalAmount      decimal.Decimal
	InstallmentCount int
	Description      string
	StartDate        time.Time
	Status           Status
	Version          int64

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (d Debt) IsDeleted() bool { return d.DeletedAt != nil }

// =============================================================================
// INSTALLMENT - Expense row generated from a debt
// =============================================================================

type Installment struct {
	ID          InstallmentID
	OwnerID     OwnerID
	CategoryID  CategoryID
	DebtID      DebtID // zero for ordinary expenses
	ScheduleID  string // generation that produced the row
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	Status      Status

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (i Installment) IsDeleted() bool { return i.DeletedAt != nil }

// LiveInstallments filters out soft-deleted rows, preserving order.
func LiveInstallments(installments []Installment) []Installment {
	live := make([]Installment, 0, len(installments))
	for _, in := range installments {
		if !in.IsDeleted() {
			live = append(live, in)
		}
	}
	return live
}

// =============================================================================
// READ MODELS
// =============================================================================

// DebtDetail is a debt with everything a client needs to display it.
type DebtDetail struct {
	Debt         Debt
	CreditCard   *CreditCard
	Category     *Category
	Installments []Installment
}

// DebtSummary is one row of a debt listing.
type DebtSummary struct {
	Debt       Debt
	CreditCard *CreditCard
	Category   *Category
}

// DebtQuery selects a page of an owner's live debts. Year and Month filter
// on the start date and only apply when both are set.
type DebtQuery struct {
	OwnerID  OwnerID
	Page     int
	PageSize int
	Year     int
	Month    time.Month
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage keeps Offset from overflowing.
	MaxPage = math.MaxInt / MaxPageSize
)

// Normalize fills defaults and clamps the page number and size.
func (q DebtQuery) Normalize() DebtQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.Year <= 0 || q.Month < time.January || q.Month > time.December {
		q.Year, q.Month = 0, 0
	}
	return q
}

func (q DebtQuery) Offset() int { return (q.Page - 1) * q.PageSize }

// HasMonthFilter reports whether the query restricts the start date.
func (q DebtQuery) HasMonthFilter() bool { return q.Year > 0 && q.Month != 0 }

type DebtPage struct {
	Items      []DebtSummary
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// DebtPaymentSummary aggregates the installments due in one month.
type DebtPaymentSummary struct {
	OwnerID      OwnerID
	Year         int
	Month        time.Month
	TotalPayment decimal.Decimal
	Installments int
	ActiveDebts  int
}
