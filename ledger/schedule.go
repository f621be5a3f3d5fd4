package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEDULE GENERATOR - Pure function, no I/O
// =============================================================================

const (
	defaultDebtLabel = "Deuda"
	defaultBankLabel = "Banco"
)

const (
	// MaxInstallments bounds a single schedule (50 years of monthly payments).
	MaxInstallments = 600

	// maxScheduleYear is the last year a stored date can carry.
	maxScheduleYear = 9999
)

// LabelContext holds the text used to describe each installment.
type LabelContext struct {
	Description string
	Bank        string
	Card        string
}

// Label formats the description of installment i (zero-based) of n.
func (lc LabelContext) Label(i, n int) string {
	desc := lc.Description
	if desc == "" {
		desc = defaultDebtLabel
	}
	bank := lc.Bank
	if bank == "" {
		bank = defaultBankLabel
	}
	return fmt.Sprintf("%s - %s - %s - Cuota %d/%d", desc, bank, lc.Card, i+1, n)
}

// LabelFor builds the label context of a debt charged to card.
func LabelFor(description string, card *CreditCard) LabelContext {
	lc := LabelContext{Description: description}
	if card != nil {
		lc.Card = card.Name
		if card.Bank != nil {
			lc.Bank = card.Bank.Name
		}
	}
	return lc
}

type ScheduleInput struct {
	TotalAmount decimal.Decimal
	Count       int
	StartDate   time.Time
	Label       LabelContext
}

// InstallmentDraft is one not-yet-persisted installment.
type InstallmentDraft struct {
	Index       int
	Amount      decimal.Decimal
	Date        time.Time
	Description string
}

// GenerateSchedule splits TotalAmount into Count monthly drafts starting at
// StartDate. Each draft gets the equal share rounded down to AmountScale
// places; the last draft absorbs the remainder so the drafts always sum to
// TotalAmount exactly.
func GenerateSchedule(in ScheduleInput) ([]InstallmentDraft, error) {
	if in.Count < 1 {
		return nil, invalid("installments", "must be at least 1")
	}
	if in.Count > MaxInstallments {
		return nil, invalid("installments", fmt.Sprintf("must be at most %d", MaxInstallments))
	}
	if !in.TotalAmount.IsPositive() {
		return nil, invalid("total_amount", "must be greater than zero")
	}
	if in.StartDate.Year() < 1 || AddMonths(in.StartDate, in.Count-1).Year() > maxScheduleYear {
		return nil, invalid("start_date", fmt.Sprintf("schedule must fall between years 1 and %d", maxScheduleYear))
	}

	share := in.TotalAmount.Div(decimal.NewFromInt(int64(in.Count))).RoundDown(AmountScale)
	last := in.TotalAmount.Sub(share.Mul(decimal.NewFromInt(int64(in.Count - 1))))

	drafts := make([]InstallmentDraft, in.Count)
	for i := range drafts {
		amount := share
		if i == in.Count-1 {
			amount = last
		}
		drafts[i] = InstallmentDraft{
			Index:       i,
			Amount:      amount,
			Date:        AddMonths(in.StartDate, i),
			Description: in.Label.Label(i, in.Count),
		}
	}
	return drafts, nil
}
