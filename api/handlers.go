/*
handlers.go - HTTP API handlers for the debt engine

PURPOSE:
  Exposes the debt lifecycle engine via REST API. Handles HTTP
  request/response and JSON serialization, and delegates every rule to
  ledger.DebtEngine.

ENDPOINTS:
  Debts:
    POST   /api/debts                 Create debt + installment schedule
    GET    /api/debts                 List live debts (page, limit, year, month)
    GET    /api/debts/summary         Installments due in a month
    GET    /api/debts/{id}            Debt with full installment history
    PUT    /api/debts/{id}            Edit; regenerates schedule when needed
    DELETE /api/debts/{id}            Soft-delete debt and installments

  Scenarios:
    GET    /api/scenarios             List demo scenarios
    POST   /api/scenarios/load        Load a demo scenario

REQUEST FLOW:
  1. Owner comes from the bearer token (see auth.go)
  2. Parse path, query and body
  3. Call the engine
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid token
  - 404: Debt, card or category not found (or not owned)
  - 409: Version conflict
  - 500: Internal errors (cause is logged, never returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/warp/debt-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is implemented by stores that can report database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *ledger.DebtEngine
	Registry ledger.Registry
	Log      logrus.FieldLogger
}

// NewHandler creates a new handler around engine.
func NewHandler(engine *ledger.DebtEngine, registry ledger.Registry, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = engine.Log
	}
	return &Handler{Engine: engine, Registry: registry, Log: log}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and, when the store supports it, database
// reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Engine.Store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.Log.WithError(err).Error("health check failed")
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// DEBT ENDPOINTS
// =============================================================================

// CreateDebt creates a debt and its installments.
// POST /api/debts
func (h *Handler) CreateDebt(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	var req CreateDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TotalAmount == nil {
		writeError(w, http.StatusBadRequest, "total_amount is required", nil)
		return
	}

	in := ledger.CreateDebtInput{
		OwnerID:          owner,
		CreditCardID:     ledger.CreditCardID(req.CreditCardID),
		TotalAmount:      *req.TotalAmount,
		InstallmentCount: req.Installments,
		CategoryID:       ledger.CategoryID(req.CategoryID),
		Description:      req.Description,
	}
	if req.StartDate != "" {
		start, err := ledger.ParseDate(req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
			return
		}
		in.StartDate = &start
	}

	detail, err := h.Engine.Create(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDebtDetailDTO(detail))
}

// ListDebts returns one page of the owner's live debts.
// GET /api/debts?page=1&limit=10&year=2025&month=3
func (h *Handler) ListDebts(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	var q ledger.DebtQuery
	var month int
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"page", &q.Page},
		{"limit", &q.PageSize},
		{"year", &q.Year},
		{"month", &month},
	} {
		if err := queryInt(r, p.name, p.dst); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+p.name, err)
			return
		}
	}
	q.OwnerID = owner
	q.Month = time.Month(month)

	page, err := h.Engine.List(r.Context(), q)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtPageDTO(page))
}

// GetDebt returns a debt with every installment ever generated for it.
// GET /api/debts/{id}
func (h *Handler) GetDebt(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	id, ok := debtIDParam(w, r)
	if !ok {
		return
	}

	detail, err := h.Engine.Get(r.Context(), owner, id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDetailDTO(detail))
}

// UpdateDebt applies a partial edit.
// PUT /api/debts/{id}
func (h *Handler) UpdateDebt(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	id, ok := debtIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := ledger.UpdateDebtInput{
		OwnerID:          owner,
		DebtID:           id,
		TotalAmount:      req.TotalAmount,
		InstallmentCount: req.Installments,
		Description:      req.Description,
		ExpectedVersion:  req.ExpectedVersion,
	}
	if req.CreditCardID != nil {
		card := ledger.CreditCardID(*req.CreditCardID)
		in.CreditCardID = &card
	}
	if req.CategoryID != nil {
		category := ledger.CategoryID(*req.CategoryID)
		in.CategoryID = &category
	}
	if req.StartDate != nil {
		start, err := ledger.ParseDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
			return
		}
		in.StartDate = &start
	}

	detail, err := h.Engine.Update(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtDetailDTO(detail))
}

// DeleteDebt soft-deletes a debt and its live installments.
// DELETE /api/debts/{id}
func (h *Handler) DeleteDebt(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())
	id, ok := debtIDParam(w, r)
	if !ok {
		return
	}

	if err := h.Engine.Delete(r.Context(), owner, id); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Debt and its installments deleted"})
}

// DebtSummary reports what is due in a month. Defaults to the current one.
// GET /api/debts/summary?year=2025&month=3
func (h *Handler) DebtSummary(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	today := h.Engine.Clock()
	year, month := today.Year(), int(today.Month())
	if err := queryInt(r, "year", &year); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	if err := queryInt(r, "month", &month); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	summary, err := h.Engine.Summary(r.Context(), owner, year, time.Month(month))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentSummaryDTO(summary))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors to HTTP statuses. Server errors are
// logged with the request id and answered with a generic message.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation_error",
			Details: map[string]string{"field": verr.Field, "message": verr.Message},
		})
	case ledger.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case ledger.IsConflict(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	default:
		h.Log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: "internal_error"})
	}
}

func debtIDParam(w http.ResponseWriter, r *http.Request) (ledger.DebtID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid debt id", nil)
		return 0, false
	}
	return ledger.DebtID(id), true
}

// queryInt leaves dst untouched when the parameter is absent.
func queryInt(r *http.Request, name string, dst *int) error {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
