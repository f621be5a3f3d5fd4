/*
engine.go - Debt lifecycle engine

PURPOSE:
  Creates, updates and retires debts together with their installment
  schedules. Every mutating operation runs inside one store transaction:
  either the debt and its complete installment set are written, or
  nothing is.

OPERATIONS:
  Create:  insert debt + generated schedule
  Update:  apply edits; regenerate the schedule when the edit invalidates it
  Delete:  soft-delete the debt, then its live installments
  Get:     debt with full installment history (retired rows included)
  List:    paginated live debts of an owner
  Summary: installments due in a month (see summary.go)

REGENERATION POLICY:
  The schedule is regenerated if and only if the total amount, the
  installment count, the start date or the credit card changed. A new
  label or category alone never regenerates; a category change re-stamps
  the live installments in place instead.

  Regeneration soft-deletes the live installments and inserts a fresh
  set stamped with a new schedule id. The retired rows stay queryable.

CONCURRENCY:
  Update loads the debt with LockDebt and writes it back with a version
  compare-and-swap. Callers may pass ExpectedVersion to detect edits made
  since they last read the debt.

SEE ALSO:
  - schedule.go: GenerateSchedule
  - store.go: TxStore contract
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultCategoryID is the system category used when a regenerated debt
// has no other category to inherit.
const DefaultCategoryID CategoryID = 1

// =============================================================================
// DEBT ENGINE
// =============================================================================

type DebtEngine struct {
	Store TxStore
	Log   logrus.FieldLogger

	// DefaultCategory is the last-resort category for regeneration.
	DefaultCategory CategoryID

	// Clock and NewScheduleID are replaceable for tests.
	Clock         func() time.Time
	NewScheduleID func() string
}

func NewDebtEngine(store TxStore, log logrus.FieldLogger) *DebtEngine {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &DebtEngine{
		Store:           store,
		Log:             log,
		DefaultCategory: DefaultCategoryID,
		Clock:           func() time.Time { return time.Now().UTC() },
		NewScheduleID:   uuid.NewString,
	}
}

func (e *DebtEngine) now() time.Time { return e.Clock().UTC() }

// CheckDefaultCategory verifies that DefaultCategory exists and is active.
// Regeneration falls back to it, so a server should refuse to start without it.
func (e *DebtEngine) CheckDefaultCategory(ctx context.Context) error {
	c, err := e.Store.GetCategory(ctx, e.DefaultCategory)
	if err != nil {
		return fmt.Errorf("default category %d: %w", e.DefaultCategory, err)
	}
	if c.Status != StatusActive {
		return fmt.Errorf("default category %d: %w", e.DefaultCategory, ErrCategoryNotFound)
	}
	return nil
}

// =============================================================================
// CREATE
// =============================================================================

type CreateDebtInput struct {
	OwnerID          OwnerID
	CreditCardID     CreditCardID
	TotalAmount      decimal.Decimal
	InstallmentCount int
	CategoryID       CategoryID
	Description      string
	StartDate        *time.Time // nil means today
}

func (in CreateDebtInput) validate() error {
	if in.OwnerID == 0 {
		return invalid("owner_id", "is required")
	}
	if in.CreditCardID == 0 {
		return invalid("credit_card_id", "is required")
	}
	if !in.TotalAmount.IsPositive() {
		return invalid("total_amount", "must be greater than zero")
	}
	if in.InstallmentCount < 1 {
		return invalid("installments", "must be at least 1")
	}
	if in.InstallmentCount > MaxInstallments {
		return invalid("installments", fmt.Sprintf("must be at most %d", MaxInstallments))
	}
	if in.CategoryID == 0 {
		return invalid("category_id", "is required")
	}
	return nil
}

// Create inserts a debt and its full installment schedule atomically.
func (e *DebtEngine) Create(ctx context.Context, in CreateDebtInput) (*DebtDetail, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	start := Truncate(e.now())
	if in.StartDate != nil {
		start = Truncate(*in.StartDate)
	}
	now := e.now()

	var detail *DebtDetail
	err := e.Store.WithTx(ctx, func(s Store) error {
		// 1. Resolve card (with bank) and category before writing anything
		card, err := s.GetCreditCard(ctx, in.OwnerID, in.CreditCardID)
		if err != nil {
			return err
		}
		category, err := resolveCategory(ctx, s, in.OwnerID, in.CategoryID)
		if err != nil {
			return err
		}

		// 2. Parent debt
		debt := Debt{
			OwnerID:          in.OwnerID,
			CreditCardID:     card.ID,
			CategoryID:       category.ID,
			TotalAmount:      in.TotalAmount.Round(AmountScale),
			InstallmentCount: in.InstallmentCount,
			Description:      in.Description,
			StartDate:        start,
			Status:           StatusActive,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.InsertDebt(ctx, &debt); err != nil {
			return fmt.Errorf("insert debt: %w", err)
		}

		// 3. Installments
		installments, err := e.generate(ctx, s, debt, card, category.ID, now)
		if err != nil {
			return err
		}

		detail = &DebtDetail{Debt: debt, CreditCard: card, Category: category, Installments: installments}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Log.WithFields(logrus.Fields{
		"owner_id":     in.OwnerID,
		"debt_id":      detail.Debt.ID,
		"installments": len(detail.Installments),
	}).Info("debt created")
	return detail, nil
}

// generate runs the schedule generator for debt and inserts the drafts.
func (e *DebtEngine) generate(ctx context.Context, s Store, debt Debt, card *CreditCard, category CategoryID, now time.Time) ([]Installment, error) {
	drafts, err := GenerateSchedule(ScheduleInput{
		TotalAmount: debt.TotalAmount,
		Count:       debt.InstallmentCount,
		StartDate:   debt.StartDate,
		Label:       LabelFor(debt.Description, card),
	})
	if err != nil {
		return nil, err
	}

	scheduleID := e.NewScheduleID()
	installments := make([]Installment, len(drafts))
	for i, d := range drafts {
		installments[i] = Installment{
			OwnerID:     debt.OwnerID,
			CategoryID:  category,
			DebtID:      debt.ID,
			ScheduleID:  scheduleID,
			Amount:      d.Amount,
			Description: d.Description,
			Date:        d.Date,
			Status:      StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	if err := s.InsertInstallments(ctx, installments); err != nil {
		return nil, fmt.Errorf("insert installments: %w", err)
	}
	return installments, nil
}

func resolveCategory(ctx context.Context, s Store, owner OwnerID, id CategoryID) (*Category, error) {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if !category.VisibleTo(owner) {
		return nil, ErrCategoryNotFound
	}
	if category.Status != StatusActive {
		return nil, invalid("category_id", "category is inactive")
	}
	return category, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateDebtInput carries a partial edit. Nil fields are left unchanged.
type UpdateDebtInput struct {
	OwnerID          OwnerID
	DebtID           DebtID
	TotalAmount      *decimal.Decimal
	InstallmentCount *int
	StartDate        *time.Time
	CreditCardID     *CreditCardID
	CategoryID       *CategoryID
	Description      *string

	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int64
}

func (in UpdateDebtInput) validate() error {
	if in.TotalAmount != nil && !in.TotalAmount.IsPositive() {
		return invalid("total_amount", "must be greater than zero")
	}
	if in.InstallmentCount != nil && *in.InstallmentCount < 1 {
		return invalid("installments", "must be at least 1")
	}
	if in.InstallmentCount != nil && *in.InstallmentCount > MaxInstallments {
		return invalid("installments", fmt.Sprintf("must be at most %d", MaxInstallments))
	}
	if in.CreditCardID != nil && *in.CreditCardID == 0 {
		return invalid("credit_card_id", "must not be zero")
	}
	if in.CategoryID != nil && *in.CategoryID == 0 {
		return invalid("category_id", "must not be zero")
	}
	return nil
}

// changes describes what an update touches.
type changes struct {
	amount, count, start, card bool
	description, category      bool
}

// NeedsRegeneration reports whether the existing schedule is invalidated.
func (c changes) NeedsRegeneration() bool {
	return c.amount || c.count || c.start || c.card
}

func diff(d Debt, in UpdateDebtInput) changes {
	var c changes
	if in.TotalAmount != nil {
		c.amount = !in.TotalAmount.Round(AmountScale).Equal(d.TotalAmount)
	}
	if in.InstallmentCount != nil {
		c.count = *in.InstallmentCount != d.InstallmentCount
	}
	if in.StartDate != nil {
		c.start = !SameDay(*in.StartDate, d.StartDate)
	}
	if in.CreditCardID != nil {
		c.card = *in.CreditCardID != d.CreditCardID
	}
	if in.Description != nil {
		c.description = *in.Description != d.Description
	}
	if in.CategoryID != nil {
		c.category = *in.CategoryID != d.CategoryID
	}
	return c
}

// Update applies a partial edit and regenerates the schedule when needed.
func (e *DebtEngine) Update(ctx context.Context, in UpdateDebtInput) (*DebtDetail, error) {
	now := e.now()

	var (
		detail      *DebtDetail
		regenerated bool
	)
	err := e.Store.WithTx(ctx, func(s Store) error {
		// 1. Ownership check
		debt, err := s.LockDebt(ctx, in.OwnerID, in.DebtID)
		if err != nil {
			return err
		}
		if err := in.validate(); err != nil {
			return err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != debt.Version {
			return &VersionConflictError{DebtID: debt.ID, Expected: *in.ExpectedVersion, Actual: debt.Version}
		}

		// 2. Regeneration-trigger policy
		c := diff(*debt, in)

		// 3. Validate new references before mutating
		card, err := s.GetCreditCard(ctx, in.OwnerID, pick(in.CreditCardID, debt.CreditCardID))
		if err != nil {
			if c.card || !IsNotFound(err) {
				return err
			}
			// The current card was retired after the debt was created.
			card = nil
		}
		var category *Category
		if in.CategoryID != nil {
			if category, err = resolveCategory(ctx, s, in.OwnerID, *in.CategoryID); err != nil {
				return err
			}
		}

		// 4. Scalar updates (version compare-and-swap)
		updated := *debt
		if in.TotalAmount != nil {
			updated.TotalAmount = in.TotalAmount.Round(AmountScale)
		}
		if in.InstallmentCount != nil {
			updated.InstallmentCount = *in.InstallmentCount
		}
		if in.StartDate != nil {
			updated.StartDate = Truncate(*in.StartDate)
		}
		if in.CreditCardID != nil {
			updated.CreditCardID = *in.CreditCardID
		}
		if in.Description != nil {
			updated.Description = *in.Description
		}
		if category != nil {
			updated.CategoryID = category.ID
		}
		if c.NeedsRegeneration() {
			if updated.CategoryID, err = e.regenerationCategory(ctx, s, in, *debt); err != nil {
				return err
			}
		}
		updated.UpdatedAt = now
		if err := s.UpdateDebt(ctx, &updated, debt.Version); err != nil {
			return err
		}

		// 5. Regenerate or re-stamp
		switch {
		case c.NeedsRegeneration():
			regenerated = true
			if _, err := s.SoftDeleteInstallments(ctx, updated.ID, now); err != nil {
				return fmt.Errorf("retire installments: %w", err)
			}
			if _, err := e.generate(ctx, s, updated, card, updated.CategoryID, now); err != nil {
				return err
			}
		case c.category:
			if _, err := s.SetInstallmentCategory(ctx, updated.ID, updated.CategoryID, now); err != nil {
				return fmt.Errorf("restamp installment category: %w", err)
			}
		}

		installments, err := s.Installments(ctx, updated.ID, false)
		if err != nil {
			return err
		}
		if category == nil || category.ID != updated.CategoryID {
			if category, err = s.GetCategory(ctx, updated.CategoryID); err != nil && !IsNotFound(err) {
				return err
			}
		}
		detail = &DebtDetail{Debt: updated, CreditCard: card, Category: category, Installments: installments}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Log.WithFields(logrus.Fields{
		"owner_id":    in.OwnerID,
		"debt_id":     in.DebtID,
		"version":     detail.Debt.Version,
		"regenerated": regenerated,
	}).Info("debt updated")
	return detail, nil
}

// regenerationCategory picks the category for a new schedule: the one
// supplied by the caller, else the debt's own, else any installment ever
// generated for it, else the engine default.
func (e *DebtEngine) regenerationCategory(ctx context.Context, s Store, in UpdateDebtInput, debt Debt) (CategoryID, error) {
	if in.CategoryID != nil {
		return *in.CategoryID, nil
	}
	if debt.CategoryID != 0 {
		return debt.CategoryID, nil
	}
	id, ok, err := s.AnyInstallmentCategory(ctx, debt.ID)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}
	return e.DefaultCategory, nil
}

func pick[T any](override *T, current T) T {
	if override != nil {
		return *override
	}
	return current
}

// =============================================================================
// DELETE
// =============================================================================

// Delete soft-deletes the debt and then every live installment linked to it.
func (e *DebtEngine) Delete(ctx context.Context, owner OwnerID, id DebtID) error {
	now := e.now()
	var retired int64
	err := e.Store.WithTx(ctx, func(s Store) error {
		if _, err := s.LockDebt(ctx, owner, id); err != nil {
			return err
		}
		if err := s.SoftDeleteDebt(ctx, owner, id, now); err != nil {
			return err
		}
		n, err := s.SoftDeleteInstallments(ctx, id, now)
		if err != nil {
			return fmt.Errorf("retire installments: %w", err)
		}
		retired = n
		return nil
	})
	if err != nil {
		return err
	}

	e.Log.WithFields(logrus.Fields{
		"owner_id":     owner,
		"debt_id":      id,
		"installments": retired,
	}).Info("debt deleted")
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns a debt with its complete installment history, including
// soft-deleted rows. Retired debts are returned too.
func (e *DebtEngine) Get(ctx context.Context, owner OwnerID, id DebtID) (*DebtDetail, error) {
	debt, err := e.Store.GetDebt(ctx, owner, id, true)
	if err != nil {
		return nil, err
	}
	installments, err := e.Store.Installments(ctx, debt.ID, true)
	if err != nil {
		return nil, err
	}
	r := newResolver(e.Store, owner)
	card, err := r.card(ctx, debt.CreditCardID)
	if err != nil {
		return nil, err
	}
	category, err := r.category(ctx, debt.CategoryID)
	if err != nil {
		return nil, err
	}
	return &DebtDetail{Debt: *debt, CreditCard: card, Category: category, Installments: installments}, nil
}

// List returns one page of the owner's live debts, newest first.
func (e *DebtEngine) List(ctx context.Context, q DebtQuery) (*DebtPage, error) {
	q = q.Normalize()
	debts, total, err := e.Store.ListDebts(ctx, q)
	if err != nil {
		return nil, err
	}

	r := newResolver(e.Store, q.OwnerID)
	items := make([]DebtSummary, 0, len(debts))
	for _, d := range debts {
		card, err := r.card(ctx, d.CreditCardID)
		if err != nil {
			return nil, err
		}
		category, err := r.category(ctx, d.CategoryID)
		if err != nil {
			return nil, err
		}
		items = append(items, DebtSummary{Debt: d, CreditCard: card, Category: category})
	}

	return &DebtPage{
		Items:      items,
		Page:       q.Page,
		PageSize:   q.PageSize,
		Total:      total,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
	}, nil
}

// resolver memoizes reference lookups for one read. Missing references
// resolve to nil rather than failing the read.
type resolver struct {
	store      Store
	owner      OwnerID
	cards      map[CreditCardID]*CreditCard
	categories map[CategoryID]*Category
}

func newResolver(s Store, owner OwnerID) *resolver {
	return &resolver{
		store:      s,
		owner:      owner,
		cards:      make(map[CreditCardID]*CreditCard),
		categories: make(map[CategoryID]*Category),
	}
}

func (r *resolver) card(ctx context.Context, id CreditCardID) (*CreditCard, error) {
	if c, ok := r.cards[id]; ok {
		return c, nil
	}
	c, err := r.store.GetCreditCard(ctx, r.owner, id)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	r.cards[id] = c
	return c, nil
}

func (r *resolver) category(ctx context.Context, id CategoryID) (*Category, error) {
	if c, ok := r.categories[id]; ok {
		return c, nil
	}
	c, err := r.store.GetCategory(ctx, id)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	r.categories[id] = c
	return c, nil
}
