// Package store provides an in-memory ledger.TxStore.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/debt-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	data
}

type data struct {
	banks        map[ledger.BankID]ledger.Bank
	cards        map[ledger.CreditCardID]ledger.CreditCard
	cardsDeleted map[ledger.CreditCardID]bool
	categories   map[ledger.CategoryID]ledger.Category
	debts        map[ledger.DebtID]ledger.Debt
	installments []ledger.Installment
	seq          int64
}

// NewMemory returns an empty store holding only the default system
// category.
func NewMemory() *Memory {
	m := &Memory{data: data{
		banks:        make(map[ledger.BankID]ledger.Bank),
		cards:        make(map[ledger.CreditCardID]ledger.CreditCard),
		cardsDeleted: make(map[ledger.CreditCardID]bool),
		categories:   make(map[ledger.CategoryID]ledger.Category),
		debts:        make(map[ledger.DebtID]ledger.Debt),
	}}
	m.categories[ledger.DefaultCategoryID] = ledger.Category{
		ID:       ledger.DefaultCategoryID,
		Name:     "General",
		Status:   ledger.StatusActive,
		IsSystem: true,
	}
	m.seq = int64(ledger.DefaultCategoryID)
	return m
}

func (d *data) next() int64 {
	d.seq++
	return d.seq
}

// =============================================================================
// REFERENCE DATA (not part of ledger.Store; registries own these writes)
// =============================================================================

func (m *Memory) AddBank(b ledger.Bank) ledger.Bank {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == 0 {
		b.ID = ledger.BankID(m.next())
	}
	if b.Status == 0 {
		b.Status = ledger.StatusActive
	}
	m.banks[b.ID] = b
	return b
}

func (m *Memory) AddCreditCard(c ledger.CreditCard) ledger.CreditCard {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = ledger.CreditCardID(m.next())
	}
	if c.Status == 0 {
		c.Status = ledger.StatusActive
	}
	c.Bank = nil
	m.cards[c.ID] = c
	return c
}

func (m *Memory) AddCategory(c ledger.Category) ledger.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = ledger.CategoryID(m.next())
	}
	if c.Status == 0 {
		c.Status = ledger.StatusActive
	}
	m.categories[c.ID] = c
	return c
}

// ledger.Registry

func (m *Memory) SaveBank(_ context.Context, b *ledger.Bank) error {
	*b = m.AddBank(*b)
	return nil
}

func (m *Memory) SaveCreditCard(_ context.Context, c *ledger.CreditCard) error {
	*c = m.AddCreditCard(*c)
	return nil
}

func (m *Memory) SaveCategory(_ context.Context, c *ledger.Category) error {
	*c = m.AddCategory(*c)
	return nil
}

// RetireCreditCard soft-deletes a card.
func (m *Memory) RetireCreditCard(_ context.Context, owner ledger.OwnerID, id ledger.CreditCardID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.getCreditCard(owner, id); err != nil {
		return err
	}
	m.cardsDeleted[id] = true
	return nil
}

// =============================================================================
// ledger.Store
// =============================================================================

func (m *Memory) GetCreditCard(_ context.Context, owner ledger.OwnerID, id ledger.CreditCardID) (*ledger.CreditCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCreditCard(owner, id)
}

func (m *Memory) GetCategory(_ context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCategory(id)
}

func (m *Memory) GetDebt(_ context.Context, owner ledger.OwnerID, id ledger.DebtID, includeDeleted bool) (*ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDebt(owner, id, includeDeleted)
}

func (m *Memory) LockDebt(_ context.Context, owner ledger.OwnerID, id ledger.DebtID) (*ledger.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getDebt(owner, id, false)
}

func (m *Memory) ListDebts(_ context.Context, q ledger.DebtQuery) ([]ledger.Debt, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listDebts(q)
}

func (m *Memory) CountActiveDebts(_ context.Context, owner ledger.OwnerID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countActiveDebts(owner), nil
}

func (m *Memory) InsertDebt(_ context.Context, d *ledger.Debt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertDebt(d)
	return nil
}

func (m *Memory) UpdateDebt(_ context.Context, d *ledger.Debt, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateDebt(d, expectedVersion)
}

func (m *Memory) SoftDeleteDebt(_ context.Context, owner ledger.OwnerID, id ledger.DebtID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.softDeleteDebt(owner, id, at)
}

func (m *Memory) Installments(_ context.Context, debtID ledger.DebtID, includeDeleted bool) ([]ledger.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.installmentsOf(debtID, includeDeleted), nil
}

func (m *Memory) AnyInstallmentCategory(_ context.Context, debtID ledger.DebtID) (ledger.CategoryID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.anyInstallmentCategory(debtID)
	return id, ok, nil
}

func (m *Memory) InsertInstallments(_ context.Context, installments []ledger.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertInstallments(installments)
	return nil
}

func (m *Memory) SoftDeleteInstallments(_ context.Context, debtID ledger.DebtID, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.softDeleteInstallments(debtID, at), nil
}

func (m *Memory) SetInstallmentCategory(_ context.Context, debtID ledger.DebtID, category ledger.CategoryID, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setInstallmentCategory(debtID, category, at), nil
}

func (m *Memory) InstallmentsBetween(_ context.Context, owner ledger.OwnerID, from, to time.Time) ([]ledger.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.installmentsBetween(owner, from, to), nil
}

// =============================================================================
// LOCKED OPERATIONS - callers hold m.mu
// =============================================================================

func (d *data) getCreditCard(owner ledger.OwnerID, id ledger.CreditCardID) (*ledger.CreditCard, error) {
	c, ok := d.cards[id]
	if !ok || c.OwnerID != owner || d.cardsDeleted[id] {
		return nil, ledger.ErrCreditCardNotFound
	}
	if b, ok := d.banks[c.BankID]; ok {
		c.Bank = &b
	}
	return &c, nil
}

func (d *data) getCategory(id ledger.CategoryID) (*ledger.Category, error) {
	c, ok := d.categories[id]
	if !ok {
		return nil, ledger.ErrCategoryNotFound
	}
	return &c, nil
}

func (d *data) getDebt(owner ledger.OwnerID, id ledger.DebtID, includeDeleted bool) (*ledger.Debt, error) {
	debt, ok := d.debts[id]
	if !ok || debt.OwnerID != owner || (debt.IsDeleted() && !includeDeleted) {
		return nil, ledger.ErrDebtNotFound
	}
	return &debt, nil
}

func (d *data) listDebts(q ledger.DebtQuery) ([]ledger.Debt, int, error) {
	var from, to time.Time
	if q.HasMonthFilter() {
		from, to = ledger.StartOfMonth(q.Year, q.Month), ledger.EndOfMonth(q.Year, q.Month)
	}

	var matched []ledger.Debt
	for _, debt := range d.debts {
		if debt.OwnerID != q.OwnerID || debt.IsDeleted() {
			continue
		}
		if q.HasMonthFilter() && (debt.StartDate.Before(from) || debt.StartDate.After(to)) {
			continue
		}
		matched = append(matched, debt)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (d *data) countActiveDebts(owner ledger.OwnerID) int {
	n := 0
	for _, debt := range d.debts {
		if debt.OwnerID == owner && !debt.IsDeleted() && debt.Status == ledger.StatusActive {
			n++
		}
	}
	return n
}

func (d *data) insertDebt(debt *ledger.Debt) {
	debt.ID = ledger.DebtID(d.next())
	d.debts[debt.ID] = *debt
}

func (d *data) updateDebt(debt *ledger.Debt, expectedVersion int64) error {
	stored, ok := d.debts[debt.ID]
	if !ok || stored.OwnerID != debt.OwnerID || stored.IsDeleted() || stored.Version != expectedVersion {
		return ledger.ErrConcurrentModification
	}
	debt.Version = expectedVersion + 1
	debt.CreatedAt = stored.CreatedAt
	debt.DeletedAt = nil
	d.debts[debt.ID] = *debt
	return nil
}

func (d *data) softDeleteDebt(owner ledger.OwnerID, id ledger.DebtID, at time.Time) error {
	debt, ok := d.debts[id]
	if !ok || debt.OwnerID != owner || debt.IsDeleted() {
		return ledger.ErrDebtNotFound
	}
	debt.DeletedAt = &at
	debt.UpdatedAt = at
	debt.Version++
	d.debts[id] = debt
	return nil
}

func (d *data) installmentsOf(debtID ledger.DebtID, includeDeleted bool) []ledger.Installment {
	var out []ledger.Installment
	for _, in := range d.installments {
		if in.DebtID != debtID || (in.IsDeleted() && !includeDeleted) {
			continue
		}
		out = append(out, in)
	}
	sortInstallments(out)
	return out
}

func (d *data) anyInstallmentCategory(debtID ledger.DebtID) (ledger.CategoryID, bool) {
	for _, in := range d.installments {
		if in.DebtID == debtID {
			return in.CategoryID, true
		}
	}
	return 0, false
}

func (d *data) insertInstallments(installments []ledger.Installment) {
	for i := range installments {
		installments[i].ID = ledger.InstallmentID(d.next())
		d.installments = append(d.installments, installments[i])
	}
}

func (d *data) softDeleteInstallments(debtID ledger.DebtID, at time.Time) int64 {
	var n int64
	for i := range d.installments {
		in := &d.installments[i]
		if in.DebtID == debtID && !in.IsDeleted() {
			t := at
			in.DeletedAt = &t
			in.UpdatedAt = at
			n++
		}
	}
	return n
}

func (d *data) setInstallmentCategory(debtID ledger.DebtID, category ledger.CategoryID, at time.Time) int64 {
	var n int64
	for i := range d.installments {
		in := &d.installments[i]
		if in.DebtID == debtID && !in.IsDeleted() {
			in.CategoryID = category
			in.UpdatedAt = at
			n++
		}
	}
	return n
}

func (d *data) installmentsBetween(owner ledger.OwnerID, from, to time.Time) []ledger.Installment {
	var out []ledger.Installment
	for _, in := range d.installments {
		if in.OwnerID != owner || in.DebtID == 0 || in.IsDeleted() || in.Status != ledger.StatusActive {
			continue
		}
		if in.Date.Before(from) || in.Date.After(to) {
			continue
		}
		out = append(out, in)
	}
	sortInstallments(out)
	return out
}

func sortInstallments(ins []ledger.Installment) {
	sort.SliceStable(ins, func(i, j int) bool {
		if !ins[i].Date.Equal(ins[j].Date) {
			return ins[i].Date.Before(ins[j].Date)
		}
		return ins[i].ID < ins[j].ID
	})
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txView{data: &m.data}); err != nil {
		m.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (m *Memory) snapshot() data {
	s := data{
		banks:        make(map[ledger.BankID]ledger.Bank, len(m.banks)),
		cards:        make(map[ledger.CreditCardID]ledger.CreditCard, len(m.cards)),
		cardsDeleted: make(map[ledger.CreditCardID]bool, len(m.cardsDeleted)),
		categories:   make(map[ledger.CategoryID]ledger.Category, len(m.categories)),
		debts:        make(map[ledger.DebtID]ledger.Debt, len(m.debts)),
		installments: append([]ledger.Installment(nil), m.installments...),
		seq:          m.seq,
	}
	for k, v := range m.banks {
		s.banks[k] = v
	}
	for k, v := range m.cards {
		s.cards[k] = v
	}
	for k, v := range m.cardsDeleted {
		s.cardsDeleted[k] = v
	}
	for k, v := range m.categories {
		s.categories[k] = v
	}
	for k, v := range m.debts {
		s.debts[k] = v
	}
	return s
}

// txView is the ledger.Store handed to WithTx callbacks. The parent lock
// is already held.
type txView struct {
	data *data
}

func (v *txView) GetCreditCard(_ context.Context, owner ledger.OwnerID, id ledger.CreditCardID) (*ledger.CreditCard, error) {
	return v.data.getCreditCard(owner, id)
}

func (v *txView) GetCategory(_ context.Context, id ledger.CategoryID) (*ledger.Category, error) {
	return v.data.getCategory(id)
}

func (v *txView) GetDebt(_ context.Context, owner ledger.OwnerID, id ledger.DebtID, includeDeleted bool) (*ledger.Debt, error) {
	return v.data.getDebt(owner, id, includeDeleted)
}

func (v *txView) LockDebt(_ context.Context, owner ledger.OwnerID, id ledger.DebtID) (*ledger.Debt, error) {
	return v.data.getDebt(owner, id, false)
}

func (v *txView) ListDebts(_ context.Context, q ledger.DebtQuery) ([]ledger.Debt, int, error) {
	return v.data.listDebts(q)
}

func (v *txView) CountActiveDebts(_ context.Context, owner ledger.OwnerID) (int, error) {
	return v.data.countActiveDebts(owner), nil
}

func (v *txView) InsertDebt(_ context.Context, d *ledger.Debt) error {
	v.data.insertDebt(d)
	return nil
}

func (v *txView) UpdateDebt(_ context.Context, d *ledger.Debt, expectedVersion int64) error {
	return v.data.updateDebt(d, expectedVersion)
}

func (v *txView) SoftDeleteDebt(_ context.Context, owner ledger.OwnerID, id ledger.DebtID, at time.Time) error {
	return v.data.softDeleteDebt(owner, id, at)
}

func (v *txView) Installments(_ context.Context, debtID ledger.DebtID, includeDeleted bool) ([]ledger.Installment, error) {
	return v.data.installmentsOf(debtID, includeDeleted), nil
}

func (v *txView) AnyInstallmentCategory(_ context.Context, debtID ledger.DebtID) (ledger.CategoryID, bool, error) {
	id, ok := v.data.anyInstallmentCategory(debtID)
	return id, ok, nil
}

func (v *txView) InsertInstallments(_ context.Context, installments []ledger.Installment) error {
	v.data.insertInstallments(installments)
	return nil
}

func (v *txView) SoftDeleteInstallments(_ context.Context, debtID ledger.DebtID, at time.Time) (int64, error) {
	return v.data.softDeleteInstallments(debtID, at), nil
}

func (v *txView) SetInstallmentCategory(_ context.Context, debtID ledger.DebtID, category ledger.CategoryID, at time.Time) (int64, error) {
	return v.data.setInstallmentCategory(debtID, category, at), nil
}

func (v *txView) InstallmentsBetween(_ context.Context, owner ledger.OwnerID, from, to time.Time) ([]ledger.Installment, error) {
	return v.data.installmentsBetween(owner, from, to), nil
}
