/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Small response wrappers

WIRE FORMATS:
  Amounts:    decimal strings with two places ("20000.00")
  Dates:      YYYY-MM-DD
  Timestamps: RFC 3339, UTC

VALIDATION:
  Validation is done by the engine, not in DTOs. DTOs are pure data
  carriers; handlers only reject what cannot be parsed.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/debt-engine/ledger"
)

// =============================================================================
// REQUESTS
// =============================================================================

// CreateDebtRequest is the body of POST /api/debts. total_amount accepts a
// JSON number or string.
type CreateDebtRequest struct {
	CreditCardID int64            `json:"credit_card_id"`
	TotalAmount  *decimal.Decimal `json:"total_amount"`
	Installments int              `json:"installments"`
	CategoryID   int64            `json:"category_id"`
	Description  string           `json:"description"`
	StartDate    string           `json:"start_date,omitempty"`
}

// UpdateDebtRequest is the body of PUT /api/debts/{id}. Absent fields are
// left unchanged.
type UpdateDebtRequest struct {
	CreditCardID    *int64           `json:"credit_card_id,omitempty"`
	TotalAmount     *decimal.Decimal `json:"total_amount,omitempty"`
	Installments    *int             `json:"installments,omitempty"`
	CategoryID      *int64           `json:"category_id,omitempty"`
	Description     *string          `json:"description,omitempty"`
	StartDate       *string          `json:"start_date,omitempty"`
	ExpectedVersion *int64           `json:"expected_version,omitempty"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type BankDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CreditCardDTO struct {
	ID   int64    `json:"id"`
	Name string   `json:"name"`
	Bank *BankDTO `json:"bank,omitempty"`
}

type CategoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DebtDTO represents a debt in API responses.
type DebtDTO struct {
	ID           int64   `json:"id"`
	CreditCardID int64   `json:"credit_card_id"`
	CategoryID   int64   `json:"category_id"`
	TotalAmount  string  `json:"total_amount"`
	Installments int     `json:"installments"`
	Description  string  `json:"description"`
	StartDate    string  `json:"start_date"`
	Status       string  `json:"status"`
	Version      int64   `json:"version"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	DeletedAt    *string `json:"deleted_at,omitempty"`
}

// InstallmentDTO is one generated expense row.
type InstallmentDTO struct {
	ID          int64   `json:"id"`
	Amount      string  `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	CategoryID  int64   `json:"category_id"`
	ScheduleID  string  `json:"schedule_id"`
	Status      string  `json:"status"`
	DeletedAt   *string `json:"deleted_at,omitempty"`
}

// DebtDetailDTO is a debt with its references and installments.
type DebtDetailDTO struct {
	DebtDTO
	CreditCard      *CreditCardDTO   `json:"credit_card"`
	Category        *CategoryDTO     `json:"category"`
	InstallmentList []InstallmentDTO `json:"installment_list"`
}

// DebtListItemDTO is one row of GET /api/debts.
type DebtListItemDTO struct {
	DebtDTO
	CreditCard *CreditCardDTO `json:"credit_card"`
	Category   *CategoryDTO   `json:"category"`
}

type PaginationDTO struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type DebtPageDTO struct {
	Items      []DebtListItemDTO `json:"items"`
	Pagination PaginationDTO     `json:"pagination"`
}

// PaymentSummaryDTO is the response of GET /api/debts/summary.
type PaymentSummaryDTO struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	TotalPayment string `json:"total_payment"`
	Installments int    `json:"installments"`
	ActiveDebts  int    `json:"active_debts"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ScenarioResultDTO struct {
	Scenario string          `json:"scenario"`
	Debts    []DebtDetailDTO `json:"debts"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func amountString(d decimal.Decimal) string { return d.StringFixed(ledger.AmountScale) }

func timestampString(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func optionalTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := timestampString(*t)
	return &s
}

func toDebtDTO(d ledger.Debt) DebtDTO {
	return DebtDTO{
		ID:           int64(d.ID),
		CreditCardID: int64(d.CreditCardID),
		CategoryID:   int64(d.CategoryID),
		TotalAmount:  amountString(d.TotalAmount),
		Installments: d.InstallmentCount,
		Description:  d.Description,
		StartDate:    ledger.FormatDate(d.StartDate),
		Status:       d.Status.String(),
		Version:      d.Version,
		CreatedAt:    timestampString(d.CreatedAt),
		UpdatedAt:    timestampString(d.UpdatedAt),
		DeletedAt:    optionalTimestamp(d.DeletedAt),
	}
}

func toCreditCardDTO(c *ledger.CreditCard) *CreditCardDTO {
	if c == nil {
		return nil
	}
	dto := &CreditCardDTO{ID: int64(c.ID), Name: c.Name}
	if c.Bank != nil {
		dto.Bank = &BankDTO{ID: int64(c.Bank.ID), Name: c.Bank.Name}
	}
	return dto
}

func toCategoryDTO(c *ledger.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	return &CategoryDTO{ID: int64(c.ID), Name: c.Name}
}

func toInstallmentDTOs(installments []ledger.Installment) []InstallmentDTO {
	out := make([]InstallmentDTO, len(installments))
	for i, in := range installments {
		out[i] = InstallmentDTO{
			ID:          int64(in.ID),
			Amount:      amountString(in.Amount),
			Date:        ledger.FormatDate(in.Date),
			Description: in.Description,
			CategoryID:  int64(in.CategoryID),
			ScheduleID:  in.ScheduleID,
			Status:      in.Status.String(),
			DeletedAt:   optionalTimestamp(in.DeletedAt),
		}
	}
	return out
}

func toDebtDetailDTO(d *ledger.DebtDetail) DebtDetailDTO {
	return DebtDetailDTO{
		DebtDTO:         toDebtDTO(d.Debt),
		CreditCard:      toCreditCardDTO(d.CreditCard),
		Category:        toCategoryDTO(d.Category),
		InstallmentList: toInstallmentDTOs(d.Installments),
	}
}

func toDebtPageDTO(p *ledger.DebtPage) DebtPageDTO {
	items := make([]DebtListItemDTO, len(p.Items))
	for i, s := range p.Items {
		items[i] = DebtListItemDTO{
			DebtDTO:    toDebtDTO(s.Debt),
			CreditCard: toCreditCardDTO(s.CreditCard),
			Category:   toCategoryDTO(s.Category),
		}
	}
	return DebtPageDTO{
		Items: items,
		Pagination: PaginationDTO{
			Page:       p.Page,
			Limit:      p.PageSize,
			Total:      p.Total,
			TotalPages: p.TotalPages,
		},
	}
}

func toPaymentSummaryDTO(s *ledger.DebtPaymentSummary) PaymentSummaryDTO {
	return PaymentSummaryDTO{
		Year:         s.Year,
		Month:        int(s.Month),
		TotalPayment: amountString(s.TotalPayment),
		Installments: s.Installments,
		ActiveDebts:  s.ActiveDebts,
	}
}
