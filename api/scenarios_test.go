/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- A demo card is registered for the caller
	- Debts carry their full schedules
	- Regeneration and deletion leave the expected history

These tests ensure scenarios work correctly and can be used as integration tests.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, ts *testServer, id string) ScenarioResultDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ScenarioResultDTO](t, rec)
}

func TestScenario_List(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, len(scenarios))
	for _, s := range list {
		assert.Contains(t, scenarioLoaders, s.ID, "scenario %s has no loader", s.ID)
	}
}

func TestScenario_LaptopPurchase(t *testing.T) {
	ts := newTestServer(t)

	res := loadScenario(t, ts, "laptop-purchase")

	require.Len(t, res.Debts, 1)
	d := res.Debts[0]
	assert.Equal(t, "120000.00", d.TotalAmount)
	require.Len(t, d.InstallmentList, 6)
	assert.Equal(t, "Laptop - Banco Demo - Visa Demo - Cuota 6/6", d.InstallmentList[5].Description)
}

func TestScenario_ShortenedPlan(t *testing.T) {
	// GIVEN: The shortened-plan scenario
	ts := newTestServer(t)

	// WHEN: It is loaded
	res := loadScenario(t, ts, "shortened-plan")

	// THEN: The live schedule is 3 x 40000 at version 2
	require.Len(t, res.Debts, 1)
	d := res.Debts[0]
	assert.Equal(t, int64(2), d.Version)
	require.Len(t, d.InstallmentList, 3)
	assert.Equal(t, "40000.00", d.InstallmentList[2].Amount)
}

func TestScenario_CancelledDebt(t *testing.T) {
	ts := newTestServer(t)

	res := loadScenario(t, ts, "cancelled-debt")

	require.Len(t, res.Debts, 1)
	d := res.Debts[0]
	assert.NotNil(t, d.DeletedAt)
	assert.Len(t, d.InstallmentList, 6)
	assert.Zero(t, liveCount(d.InstallmentList))

	page := decode[DebtPageDTO](t, ts.do(t, http.MethodGet, "/api/debts", nil))
	assert.Empty(t, page.Items)
}

func TestScenario_UnevenSplit(t *testing.T) {
	ts := newTestServer(t)

	res := loadScenario(t, ts, "uneven-split")

	require.Len(t, res.Debts, 1)
	var amounts []string
	for _, in := range res.Debts[0].InstallmentList {
		amounts = append(amounts, in.Amount)
	}
	assert.Equal(t, []string{"33.33", "33.33", "33.34"}, amounts)
}

func TestScenario_TwoCards(t *testing.T) {
	ts := newTestServer(t)

	res := loadScenario(t, ts, "two-cards")

	require.Len(t, res.Debts, 2)
	assert.Equal(t, "Banco Norte", res.Debts[0].CreditCard.Bank.Name)
	assert.Equal(t, "Banco Sur", res.Debts[1].CreditCard.Bank.Name)
	assert.Len(t, res.Debts[0].InstallmentList, 12)
	assert.Len(t, res.Debts[1].InstallmentList, 4)
	assert.Equal(t, "7500.14", res.Debts[1].InstallmentList[3].Amount)

	// Scenario data belongs to the caller only.
	other, err := IssueToken(testSecret, otherOwner, 0)
	require.NoError(t, err)
	page := decode[DebtPageDTO](t, ts.doAs(t, other, http.MethodGet, "/api/debts", nil))
	assert.Empty(t, page.Items)
}

func TestScenario_RetiredCard(t *testing.T) {
	// GIVEN: The retired-card scenario
	ts := newTestServer(t)

	// WHEN: It is loaded
	res := loadScenario(t, ts, "retired-card")

	// THEN: The debt no longer resolves its card but keeps its schedule
	require.Len(t, res.Debts, 1)
	d := res.Debts[0]
	assert.Nil(t, d.CreditCard)
	assert.Equal(t, "Heladera (tarjeta dada de baja)", d.Description)
	assert.Equal(t, int64(2), d.Version)
	require.Len(t, d.InstallmentList, 3)
	assert.Equal(t, "Heladera - Banco Demo - Visa Vencida - Cuota 1/3", d.InstallmentList[0].Description)
}

func TestScenario_Unknown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "does-not-exist"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			ts := newTestServer(t)
			res := loadScenario(t, ts, s.ID)
			assert.Equal(t, s.ID, res.Scenario)
			assert.NotEmpty(t, res.Debts)
		})
	}
}
