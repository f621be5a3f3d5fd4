package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/debt-engine/ledger"
)

// =============================================================================
// REGISTRY (ledger.Registry interface)
// =============================================================================

func (s *Store) SaveBank(ctx context.Context, b *ledger.Bank) error {
	defer s.lock()()

	if b.Status == 0 {
		b.Status = ledger.StatusActive
	}
	now := formatTimestamp(time.Now())
	id, err := s.conn().insert(ctx,
		`INSERT INTO banks (owner_id, name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		b.OwnerID, b.Name, b.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save bank: %w", err)
	}
	b.ID = ledger.BankID(id)
	return nil
}

func (s *Store) SaveCreditCard(ctx context.Context, c *ledger.CreditCard) error {
	defer s.lock()()

	if c.Status == 0 {
		c.Status = ledger.StatusActive
	}
	now := formatTimestamp(time.Now())
	id, err := s.conn().insert(ctx,
		`INSERT INTO credit_cards (owner_id, bank_id, name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.OwnerID, nullInt64(int64(c.BankID)), c.Name, c.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save credit card: %w", err)
	}
	c.ID = ledger.CreditCardID(id)
	return nil
}

// SaveCategory stores a category. Names are unique across owners; a
// clash returns ErrDuplicate.
func (s *Store) SaveCategory(ctx context.Context, c *ledger.Category) error {
	defer s.lock()()

	if c.Status == 0 {
		c.Status = ledger.StatusActive
	}
	var createdBy any
	if c.CreatedBy != nil {
		createdBy = int64(*c.CreatedBy)
	}
	now := formatTimestamp(time.Now())
	id, err := s.conn().insert(ctx,
		`INSERT INTO expense_categories (name, description, status, is_system, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.Status, c.IsSystem, createdBy, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	c.ID = ledger.CategoryID(id)
	return nil
}

// RetireCreditCard soft-deletes a card. Debts keep pointing at it.
func (s *Store) RetireCreditCard(ctx context.Context, owner ledger.OwnerID, id ledger.CreditCardID) error {
	defer s.lock()()

	now := formatTimestamp(time.Now())
	res, err := s.conn().exec(ctx,
		`UPDATE credit_cards SET deleted_at = ?, updated_at = ? WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
		now, now, id, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to retire credit card: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.ErrCreditCardNotFound
	}
	return nil
}
