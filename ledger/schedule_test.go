package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/debt-engine/ledger"
)

func amounts(drafts []ledger.InstallmentDraft) []string {
	out := make([]string, len(drafts))
	for i, d := range drafts {
		out[i] = d.Amount.StringFixed(ledger.AmountScale)
	}
	return out
}

func draftTotal(drafts []ledger.InstallmentDraft) decimal.Decimal {
	total := decimal.Zero
	for _, d := range drafts {
		total = total.Add(d.Amount)
	}
	return total
}

// =============================================================================
// AMOUNTS
// =============================================================================

func TestGenerateSchedule_EvenSplit(t *testing.T) {
	// GIVEN: 120000 over 6 months starting Jan 15
	// WHEN: The schedule is generated
	// THEN: Six installments of 20000, one per month, same day

	drafts, err := ledger.GenerateSchedule(ledger.ScheduleInput{
		TotalAmount: ledger.MustParseAmount("120000"),
		Count:       6,
		StartDate:   ledger.NewDate(2025, time.January, 15),
		Label:       ledger.LabelContext{Description: "Laptop", Bank: "BancoX", Card: "Visa"},
	})
	require.NoError(t, err)
	require.Len(t, drafts, 6)

	for i, d := range drafts {
		assert.Equal(t, i, d.Index)
		assert.True(t, d.Amount.Equal(ledger.MustParseAmount("20000")), "installment %d", i+1)
		assert.Equal(t, ledger.NewDate(2025, time.January+time.Month(i), 15), d.Date)
	}
	assert.Equal(t, "Laptop - BancoX - Visa - Cuota 1/6", drafts[0].Description)
	assert.Equal(t, "Laptop - BancoX - Visa - Cuota 6/6", drafts[5].Description)
}

func TestGenerateSchedule_LastInstallmentAbsorbsRemainder(t *testing.T) {
	// GIVEN: 100 over 3 installments
	// WHEN: The schedule is generated
	// THEN: 33.33, 33.33, 33.34 and the sum is exactly 100

	drafts, err := ledger.GenerateSchedule(ledger.ScheduleInput{
		TotalAmount: ledger.MustParseAmount("100"),
		Count:       3,
		StartDate:   ledger.NewDate(2025, time.March, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"33.33", "33.33", "33.34"}, amounts(drafts))
	assert.True(t, draftTotal(drafts).Equal(ledger.MustParseAmount("100")))
}

func TestGenerateSchedule_SumAlwaysMatchesTotal(t *testing.T) {
	cases := []struct {
		total string
		count int
	}{
		{"0.05", 3},
		{"1000.01", 7},
		{"99999.99", 12},
		{"10", 1},
		{"2.5", 4},
	}

	for _, tc := range cases {
		drafts, err := ledger.GenerateSchedule(ledger.ScheduleInput{
			TotalAmount: ledger.MustParseAmount(tc.total),
			Count:       tc.count,
			StartDate:   ledger.NewDate(2025, time.June, 10),
		})
		require.NoError(t, err, tc.total)
		require.Len(t, drafts, tc.count)
		assert.True(t, draftTotal(drafts).Equal(ledger.MustParseAmount(tc.total)), "%s / %d", tc.total, tc.count)
		for _, d := range drafts {
			assert.True(t, d.Amount.Equal(d.Amount.Round(ledger.AmountScale)), "%s has more than two decimals", d.Amount)
		}
	}
}

func TestGenerateSchedule_SingleInstallment(t *testing.T) {
	drafts, err := ledger.GenerateSchedule(ledger.ScheduleInput{
		TotalAmount: ledger.MustParseAmount("450.75"),
		Count:       1,
		StartDate:   ledger.NewDate(2025, time.May, 2),
	})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "450.75", drafts[0].Amount.StringFixed(2))
	assert.Equal(t, ledger.NewDate(2025, time.May, 2), drafts[0].Date)
}

// =============================================================================
// DATES
// =============================================================================

func TestGenerateSchedule_MonthEndRollsOver(t *testing.T) {
	// GIVEN: A schedule starting Jan 31
	// WHEN: The second installment is dated
	// THEN: It lands on Mar 3 (Feb 31 normalizes forward)

	drafts, err := ledger.GenerateSchedule(ledger.ScheduleInput{
		TotalAmount: ledger.MustParseAmount("300"),
		Count:       3,
		StartDate:   ledger.NewDate(2025, time.January, 31),
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.NewDate(2025, time.January, 31), drafts[0].Date)
	assert.Equal(t, ledger.NewDate(2025, time.March, 3), drafts[1].Date)
	assert.Equal(t, ledger.NewDate(2025, time.March, 31), drafts[2].Date)
}

func TestGenerateSchedule_CrossesYearBoundary(t *testing.T) {
	drafts, err := ledger.GenerateSchedule(ledger.ScheduleInput{
		TotalAmount: ledger.MustParseAmount("400"),
		Count:       4,
		StartDate:   ledger.NewDate(2025, time.November, 5),
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.NewDate(2026, time.February, 5), drafts[3].Date)
}

// =============================================================================
// LABELS
// =============================================================================

func TestLabel_Defaults(t *testing.T) {
	lc := ledger.LabelFor("", &ledger.CreditCard{Name: "Visa"})
	assert.Equal(t, "Deuda - Banco - Visa - Cuota 2/5", lc.Label(1, 5))
}

func TestLabelFor_UsesBankName(t *testing.T) {
	card := &ledger.CreditCard{Name: "Oro", Bank: &ledger.Bank{Name: "BancoY"}}
	assert.Equal(t, "TV - BancoY - Oro - Cuota 1/1", ledger.LabelFor("TV", card).Label(0, 1))
}

func TestLabelFor_NilCard(t *testing.T) {
	assert.Equal(t, "TV - Banco -  - Cuota 1/2", ledger.LabelFor("TV", nil).Label(0, 2))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestGenerateSchedule_RejectsInvalidInput(t *testing.T) {
	start := ledger.NewDate(2025, time.January, 1)

	_, err := ledger.GenerateSchedule(ledger.ScheduleInput{TotalAmount: ledger.MustParseAmount("100"), Count: 0, StartDate: start})
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))

	_, err = ledger.GenerateSchedule(ledger.ScheduleInput{TotalAmount: decimal.Zero, Count: 3, StartDate: start})
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))

	_, err = ledger.GenerateSchedule(ledger.ScheduleInput{TotalAmount: ledger.MustParseAmount("-5"), Count: 3, StartDate: start})
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "total_amount", verr.Field)
}

func TestGenerateSchedule_Bounds(t *testing.T) {
	total := ledger.MustParseAmount("1000000")

	// GIVEN: More installments than one schedule may hold
	_, err := ledger.GenerateSchedule(ledger.ScheduleInput{
		TotalAmount: total,
		Count:       ledger.MaxInstallments + 1,
		StartDate:   ledger.NewDate(2025, time.January, 15),
	})
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "installments", verr.Field)

	// GIVEN: A schedule whose last date would need a five-digit year
	_, err = ledger.GenerateSchedule(ledger.ScheduleInput{
		TotalAmount: total,
		Count:       2,
		StartDate:   ledger.NewDate(9999, time.December, 15),
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start_date", verr.Field)

	// THEN: The largest schedule ending in 9999 is accepted
	drafts, err := ledger.GenerateSchedule(ledger.ScheduleInput{
		TotalAmount: total,
		Count:       ledger.MaxInstallments,
		StartDate:   ledger.NewDate(9950, time.January, 15),
	})
	require.NoError(t, err)
	require.Len(t, drafts, ledger.MaxInstallments)
	assert.Equal(t, "9999-12-15", ledger.FormatDate(drafts[len(drafts)-1].Date))
}

func TestMustParseAmount_PanicsOnMalformedInput(t *testing.T) {
	assert.Equal(t, "12.50", ledger.MustParseAmount("12.5").StringFixed(2))
	assert.Panics(t, func() { ledger.MustParseAmount("twelve") })
}
