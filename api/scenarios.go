/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	debts for the calling owner. Every debt goes through the engine, so
	scenarios double as end-to-end checks of the lifecycle rules.

AVAILABLE SCENARIOS:

	laptop-purchase:   120000 in 6 monthly installments
	shortened-plan:    Same purchase re-planned to 3 installments (regeneration)
	cancelled-debt:    A debt created and then deleted
	uneven-split:      100 in 3 installments (last one absorbs the remainder)
	two-cards:         Debts on two cards from different banks
	retired-card:      Card retired after purchase; the debt stays editable

HOW SCENARIOS WORK:
 1. Register a demo bank and credit card for the owner
 2. Create debts on the system category
 3. Optionally update or delete them

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "shortened-plan"}

NOTE:

	Scenarios add data; they never reset anything. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: error mapping
  - ledger/engine.go: the operations scenarios drive
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/warp/debt-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "laptop-purchase",
		Name:        "Laptop Purchase",
		Description: "120000 financed in 6 monthly installments from 2024-01-10",
	},
	{
		ID:          "shortened-plan",
		Name:        "Shortened Plan",
		Description: "Laptop purchase re-planned to 3 installments of 40000",
	},
	{
		ID:          "cancelled-debt",
		Name:        "Cancelled Debt",
		Description: "Debt deleted after creation; history stays readable",
	},
	{
		ID:          "uneven-split",
		Name:        "Uneven Split",
		Description: "100 in 3 installments: 33.33, 33.33, 33.34",
	},
	{
		ID:          "two-cards",
		Name:        "Two Cards",
		Description: "Debts on cards from two different banks",
	},
	{
		ID:          "retired-card",
		Name:        "Retired Card",
		Description: "Card retired after the purchase; the debt is re-described without it",
	},
}

type scenarioLoader func(ctx context.Context, h *Handler, owner ledger.OwnerID) ([]*ledger.DebtDetail, error)

var scenarioLoaders = map[string]scenarioLoader{
	"laptop-purchase": loadLaptopPurchase,
	"shortened-plan":  loadShortenedPlan,
	"cancelled-debt":  loadCancelledDebt,
	"uneven-split":    loadUnevenSplit,
	"two-cards":       loadTwoCards,
	"retired-card":    loadRetiredCard,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario for the calling owner.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	debts, err := load(r.Context(), h, owner)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.Log.WithField("scenario", req.ScenarioID).WithField("owner_id", owner).Info("scenario loaded")

	result := ScenarioResultDTO{Scenario: req.ScenarioID, Debts: make([]DebtDetailDTO, len(debts))}
	for i, d := range debts {
		result.Debts[i] = toDebtDetailDTO(d)
	}
	writeJSON(w, http.StatusCreated, result)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) demoCard(ctx context.Context, owner ledger.OwnerID, bankName, cardName string) (*ledger.CreditCard, error) {
	bank := ledger.Bank{OwnerID: owner, Name: bankName}
	if err := h.Registry.SaveBank(ctx, &bank); err != nil {
		return nil, err
	}
	card := ledger.CreditCard{OwnerID: owner, BankID: bank.ID, Name: cardName}
	if err := h.Registry.SaveCreditCard(ctx, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (h *Handler) createDemoDebt(ctx context.Context, owner ledger.OwnerID, card *ledger.CreditCard, total string, n int, start, description string) (*ledger.DebtDetail, error) {
	startDate, err := ledger.ParseDate(start)
	if err != nil {
		return nil, err
	}
	return h.Engine.Create(ctx, ledger.CreateDebtInput{
		OwnerID:          owner,
		CreditCardID:     card.ID,
		TotalAmount:      ledger.MustParseAmount(total),
		InstallmentCount: n,
		CategoryID:       h.Engine.DefaultCategory,
		Description:      description,
		StartDate:        &startDate,
	})
}

func loadLaptopPurchase(ctx context.Context, h *Handler, owner ledger.OwnerID) ([]*ledger.DebtDetail, error) {
	card, err := h.demoCard(ctx, owner, "Banco Demo", "Visa Demo")
	if err != nil {
		return nil, err
	}
	d, err := h.createDemoDebt(ctx, owner, card, "120000", 6, "2024-01-10", "Laptop")
	if err != nil {
		return nil, err
	}
	return []*ledger.DebtDetail{d}, nil
}

func loadShortenedPlan(ctx context.Context, h *Handler, owner ledger.OwnerID) ([]*ledger.DebtDetail, error) {
	created, err := loadLaptopPurchase(ctx, h, owner)
	if err != nil {
		return nil, err
	}
	count := 3
	d, err := h.Engine.Update(ctx, ledger.UpdateDebtInput{
		OwnerID:          owner,
		DebtID:           created[0].Debt.ID,
		InstallmentCount: &count,
	})
	if err != nil {
		return nil, err
	}
	return []*ledger.DebtDetail{d}, nil
}

func loadCancelledDebt(ctx context.Context, h *Handler, owner ledger.OwnerID) ([]*ledger.DebtDetail, error) {
	created, err := loadLaptopPurchase(ctx, h, owner)
	if err != nil {
		return nil, err
	}
	id := created[0].Debt.ID
	if err := h.Engine.Delete(ctx, owner, id); err != nil {
		return nil, err
	}
	d, err := h.Engine.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return []*ledger.DebtDetail{d}, nil
}

func loadUnevenSplit(ctx context.Context, h *Handler, owner ledger.OwnerID) ([]*ledger.DebtDetail, error) {
	card, err := h.demoCard(ctx, owner, "Banco Demo", "Mastercard Demo")
	if err != nil {
		return nil, err
	}
	d, err := h.createDemoDebt(ctx, owner, card, "100", 3, "2024-03-01", "Auriculares")
	if err != nil {
		return nil, err
	}
	return []*ledger.DebtDetail{d}, nil
}

func loadTwoCards(ctx context.Context, h *Handler, owner ledger.OwnerID) ([]*ledger.DebtDetail, error) {
	visa, err := h.demoCard(ctx, owner, "Banco Norte", "Visa Oro")
	if err != nil {
		return nil, err
	}
	amex, err := h.demoCard(ctx, owner, "Banco Sur", "Amex Platinum")
	if err != nil {
		return nil, err
	}

	tv, err := h.createDemoDebt(ctx, owner, visa, "45000", 12, "2024-02-15", "Televisor")
	if err != nil {
		return nil, err
	}
	phone, err := h.createDemoDebt(ctx, owner, amex, "30000.50", 4, "2024-02-28", "Telefono")
	if err != nil {
		return nil, err
	}
	return []*ledger.DebtDetail{tv, phone}, nil
}

func loadRetiredCard(ctx context.Context, h *Handler, owner ledger.OwnerID) ([]*ledger.DebtDetail, error) {
	card, err := h.demoCard(ctx, owner, "Banco Demo", "Visa Vencida")
	if err != nil {
		return nil, err
	}
	created, err := h.createDemoDebt(ctx, owner, card, "9000", 3, "2024-04-05", "Heladera")
	if err != nil {
		return nil, err
	}
	if err := h.Registry.RetireCreditCard(ctx, owner, card.ID); err != nil {
		return nil, err
	}
	description := "Heladera (tarjeta dada de baja)"
	d, err := h.Engine.Update(ctx, ledger.UpdateDebtInput{
		OwnerID:     owner,
		DebtID:      created.Debt.ID,
		Description: &description,
	})
	if err != nil {
		return nil, err
	}
	return []*ledger.DebtDetail{d}, nil
}
