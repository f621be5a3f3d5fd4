package ledger

import (
	"context"
	"time"
)

// Summary reports what the owner pays toward debts in the given month:
// the live, active installments dated inside it and the number of live
// active debts. Retired installments never count.
func (e *DebtEngine) Summary(ctx context.Context, owner OwnerID, year int, month time.Month) (*DebtPaymentSummary, error) {
	if year <= 0 {
		return nil, invalid("year", "must be positive")
	}
	if month < time.January || month > time.December {
		return nil, invalid("month", "must be between 1 and 12")
	}

	installments, err := e.Store.InstallmentsBetween(ctx, owner, StartOfMonth(year, month), EndOfMonth(year, month))
	if err != nil {
		return nil, err
	}
	active, err := e.Store.CountActiveDebts(ctx, owner)
	if err != nil {
		return nil, err
	}

	return &DebtPaymentSummary{
		OwnerID:      owner,
		Year:         year,
		Month:        month,
		TotalPayment: SumAmounts(installments),
		Installments: len(installments),
		ActiveDebts:  active,
	}, nil
}
