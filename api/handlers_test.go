/*
handlers_test.go - HTTP tests for the debt API

Tests for:
- Authentication (missing, malformed and foreign tokens)
- Debt lifecycle over HTTP (create, get, update, delete, list)
- Error mapping (400, 404, 409, 500)
- Monthly payment summary
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/debt-engine/ledger"
	"github.com/warp/debt-engine/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testSecret = "test-secret"

const (
	testOwner  ledger.OwnerID = 42
	otherOwner ledger.OwnerID = 43
)

type testServer struct {
	router http.Handler
	store  *sqlstore.Store
	logs   *logtest.Hook
	token  string
	card   ledger.CreditCard
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return newTestServerWithStore(t, s, s)
}

func newTestServerWithStore(t *testing.T, s *sqlstore.Store, tx ledger.TxStore) *testServer {
	t.Helper()
	ctx := context.Background()

	bank := ledger.Bank{OwnerID: testOwner, Name: "Banco Uno"}
	require.NoError(t, s.SaveBank(ctx, &bank))
	card := ledger.CreditCard{OwnerID: testOwner, BankID: bank.ID, Name: "Visa"}
	require.NoError(t, s.SaveCreditCard(ctx, &card))

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	engine := ledger.NewDebtEngine(tx, log)
	h := NewHandler(engine, s, log)

	token, err := IssueToken(testSecret, testOwner, 0)
	require.NoError(t, err)

	return &testServer{
		router: NewRouter(h, RouterConfig{JWTSecret: testSecret}),
		store:  s,
		logs:   hook,
		token:  token,
		card:   card,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return ts.doAs(t, ts.token, method, path, body)
}

func (ts *testServer) doAs(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createDebt(t *testing.T, total string, n int, start string) DebtDetailDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/debts", map[string]any{
		"credit_card_id": ts.card.ID,
		"total_amount":   total,
		"installments":   n,
		"category_id":    1,
		"description":    "Laptop",
		"start_date":     start,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[DebtDetailDTO](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func liveCount(installments []InstallmentDTO) int {
	n := 0
	for _, in := range installments {
		if in.DeletedAt == nil {
			n++
		}
	}
	return n
}

// =============================================================================
// HEALTH AND AUTH
// =============================================================================

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.doAs(t, "", http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth_Rejections(t *testing.T) {
	ts := newTestServer(t)
	wrongKey, err := IssueToken("another-secret", testOwner, 0)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		message string
	}{
		{"missing token", "", "Authentication required"},
		{"garbage token", "not-a-jwt", "Invalid or expired token"},
		{"wrong signing key", wrongKey, "Invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.doAs(t, tt.token, http.MethodGet, "/api/debts", nil)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.message, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestParseToken_RoundTrip(t *testing.T) {
	token, err := IssueToken(testSecret, testOwner, 0)
	require.NoError(t, err)

	owner, err := ParseToken(testSecret, token)

	require.NoError(t, err)
	assert.Equal(t, testOwner, owner)
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateDebt_Success(t *testing.T) {
	// GIVEN: A registered card
	ts := newTestServer(t)

	// WHEN: A 120000 debt is financed in 6 installments
	d := ts.createDebt(t, "120000", 6, "2024-01-10")

	// THEN: The debt and its full schedule come back
	assert.Equal(t, "120000.00", d.TotalAmount)
	assert.Equal(t, 6, d.Installments)
	assert.Equal(t, int64(1), d.Version)
	assert.Equal(t, "active", d.Status)
	require.NotNil(t, d.CreditCard)
	require.NotNil(t, d.CreditCard.Bank)
	assert.Equal(t, "Banco Uno", d.CreditCard.Bank.Name)
	require.Len(t, d.InstallmentList, 6)
	assert.Equal(t, "20000.00", d.InstallmentList[0].Amount)
	assert.Equal(t, "2024-01-10", d.InstallmentList[0].Date)
	assert.Equal(t, "2024-06-10", d.InstallmentList[5].Date)
	assert.Equal(t, "Laptop - Banco Uno - Visa - Cuota 1/6", d.InstallmentList[0].Description)
}

func TestCreateDebt_AcceptsNumericAmount(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/debts",
		fmt.Sprintf(`{"credit_card_id":%d,"total_amount":100,"installments":3,"category_id":1,"start_date":"2024-03-01"}`, ts.card.ID))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decode[DebtDetailDTO](t, rec)
	require.Len(t, d.InstallmentList, 3)
	assert.Equal(t, "33.33", d.InstallmentList[0].Amount)
	assert.Equal(t, "33.34", d.InstallmentList[2].Amount)
}

func TestCreateDebt_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "malformed body",
			body:   `{"credit_card_id":`,
			status: http.StatusBadRequest,
		},
		{
			name:   "missing amount",
			body:   map[string]any{"credit_card_id": ts.card.ID, "installments": 2, "category_id": 1},
			status: http.StatusBadRequest,
		},
		{
			name:   "bad start date",
			body:   map[string]any{"credit_card_id": ts.card.ID, "total_amount": "10", "installments": 2, "category_id": 1, "start_date": "2024-13-01"},
			status: http.StatusBadRequest,
		},
		{
			name:   "zero installments",
			body:   map[string]any{"credit_card_id": ts.card.ID, "total_amount": "10", "installments": 0, "category_id": 1},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "too many installments",
			body:   map[string]any{"credit_card_id": ts.card.ID, "total_amount": "1000000", "installments": 96500, "category_id": 1},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "unknown card",
			body:   map[string]any{"credit_card_id": 999, "total_amount": "10", "installments": 2, "category_id": 1},
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "unknown category",
			body:   map[string]any{"credit_card_id": ts.card.ID, "total_amount": "10", "installments": 2, "category_id": 999},
			status: http.StatusNotFound,
			code:   "not_found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/debts", tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}

	// Nothing was written by the failed requests.
	page := decode[DebtPageDTO](t, ts.do(t, http.MethodGet, "/api/debts", nil))
	assert.Equal(t, 0, page.Pagination.Total)
}

func TestCreateDebt_ValidationDetails(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/debts", map[string]any{
		"credit_card_id": ts.card.ID, "total_amount": "-5", "installments": 2, "category_id": 1,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}](t, rec)
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Equal(t, "total_amount", resp.Details["field"])
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdateDebt_RegeneratesSchedule(t *testing.T) {
	// GIVEN: A debt in 6 installments
	ts := newTestServer(t)
	d := ts.createDebt(t, "120000", 6, "2024-01-10")

	// WHEN: The plan is shortened to 3 installments
	rec := ts.do(t, http.MethodPut, fmt.Sprintf("/api/debts/%d", d.ID), map[string]any{"installments": 3})

	// THEN: The live schedule has 3 rows of 40000
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[DebtDetailDTO](t, rec)
	assert.Equal(t, int64(2), updated.Version)
	require.Len(t, updated.InstallmentList, 3)
	for _, in := range updated.InstallmentList {
		assert.Equal(t, "40000.00", in.Amount)
	}

	// AND: The history keeps the 6 retired rows
	got := decode[DebtDetailDTO](t, ts.do(t, http.MethodGet, fmt.Sprintf("/api/debts/%d", d.ID), nil))
	assert.Len(t, got.InstallmentList, 9)
	assert.Equal(t, 3, liveCount(got.InstallmentList))
}

func TestUpdateDebt_StaleVersionConflicts(t *testing.T) {
	ts := newTestServer(t)
	d := ts.createDebt(t, "1000", 2, "2024-01-10")
	path := fmt.Sprintf("/api/debts/%d", d.ID)

	first := ts.do(t, http.MethodPut, path, map[string]any{"description": "Phone", "expected_version": 1})
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	rec := ts.do(t, http.MethodPut, path, map[string]any{"description": "Tablet", "expected_version": 1})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode[ErrorResponse](t, rec).Code)
	got := decode[DebtDetailDTO](t, ts.do(t, http.MethodGet, path, nil))
	assert.Equal(t, "Phone", got.Description)
}

func TestUpdateDebt_BadInput(t *testing.T) {
	ts := newTestServer(t)
	d := ts.createDebt(t, "1000", 2, "2024-01-10")

	rec := ts.do(t, http.MethodPut, "/api/debts/abc", map[string]any{"installments": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/api/debts/%d", d.ID), map[string]any{"start_date": "10/01/2024"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/api/debts/%d", d.ID), map[string]any{"installments": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// DELETE AND READS
// =============================================================================

func TestDeleteDebt_CascadesAndHidesFromList(t *testing.T) {
	// GIVEN: A debt with 4 installments
	ts := newTestServer(t)
	d := ts.createDebt(t, "400", 4, "2024-01-10")
	path := fmt.Sprintf("/api/debts/%d", d.ID)

	// WHEN: It is deleted
	rec := ts.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Debt and its installments deleted", decode[MessageResponse](t, rec).Message)

	// THEN: A second delete is a 404
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, path, nil).Code)

	// AND: Get still shows it, with every installment retired
	got := decode[DebtDetailDTO](t, ts.do(t, http.MethodGet, path, nil))
	assert.NotNil(t, got.DeletedAt)
	assert.Len(t, got.InstallmentList, 4)
	assert.Zero(t, liveCount(got.InstallmentList))

	// AND: The listing no longer includes it
	page := decode[DebtPageDTO](t, ts.do(t, http.MethodGet, "/api/debts", nil))
	assert.Empty(t, page.Items)
}

func TestListDebts_PaginationAndFilter(t *testing.T) {
	ts := newTestServer(t)
	ts.createDebt(t, "100", 1, "2024-01-10")
	ts.createDebt(t, "200", 1, "2024-02-10")
	newest := ts.createDebt(t, "300", 1, "2024-02-20")

	page := decode[DebtPageDTO](t, ts.do(t, http.MethodGet, "/api/debts?page=1&limit=2", nil))
	require.Len(t, page.Items, 2)
	assert.Equal(t, newest.ID, page.Items[0].ID)
	assert.Equal(t, PaginationDTO{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, page.Pagination)

	feb := decode[DebtPageDTO](t, ts.do(t, http.MethodGet, "/api/debts?year=2024&month=2", nil))
	assert.Equal(t, 2, feb.Pagination.Total)

	rec := ts.do(t, http.MethodGet, "/api/debts?page=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A page far past the end is empty, not page 1 relabeled.
	rec = ts.do(t, http.MethodGet, "/api/debts?page=9223372036854775807", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	far := decode[DebtPageDTO](t, rec)
	assert.Empty(t, far.Items)
	assert.Equal(t, ledger.MaxPage, far.Pagination.Page)
	assert.Equal(t, 3, far.Pagination.Total)
}

func TestDebts_OwnerIsolation(t *testing.T) {
	// GIVEN: A debt owned by testOwner
	ts := newTestServer(t)
	d := ts.createDebt(t, "1000", 2, "2024-01-10")
	path := fmt.Sprintf("/api/debts/%d", d.ID)
	other, err := IssueToken(testSecret, otherOwner, 0)
	require.NoError(t, err)

	// THEN: Another owner can neither see nor touch it
	assert.Equal(t, http.StatusNotFound, ts.doAs(t, other, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.doAs(t, other, http.MethodPut, path, map[string]any{"description": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, ts.doAs(t, other, http.MethodDelete, path, nil).Code)

	page := decode[DebtPageDTO](t, ts.doAs(t, other, http.MethodGet, "/api/debts", nil))
	assert.Empty(t, page.Items)

	// AND: The debt is untouched
	got := decode[DebtDetailDTO](t, ts.do(t, http.MethodGet, path, nil))
	assert.Nil(t, got.DeletedAt)
	assert.Equal(t, "Laptop", got.Description)
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestDebtSummary(t *testing.T) {
	// GIVEN: Two debts with an installment due in March 2024
	ts := newTestServer(t)
	ts.createDebt(t, "120000", 6, "2024-01-10")
	ts.createDebt(t, "100", 3, "2024-01-20")

	// WHEN: The March summary is requested
	rec := ts.do(t, http.MethodGet, "/api/debts/summary?year=2024&month=3", nil)

	// THEN: Both installments are added up
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, PaymentSummaryDTO{
		Year:         2024,
		Month:        3,
		TotalPayment: "20033.34",
		Installments: 2,
		ActiveDebts:  2,
	}, decode[PaymentSummaryDTO](t, rec))
}

func TestDebtSummary_InvalidMonth(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/debts/summary?year=2024&month=13", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/debts/summary?month=abc", nil).Code)
}

// =============================================================================
// SERVER ERRORS
// =============================================================================

var errStoreDown = errors.New("connection reset by peer")

type brokenListStore struct {
	*sqlstore.Store
}

func (brokenListStore) ListDebts(context.Context, ledger.DebtQuery) ([]ledger.Debt, int, error) {
	return nil, 0, errStoreDown
}

func TestServerError_HidesCause(t *testing.T) {
	// GIVEN: A store whose listing fails
	s, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ts := newTestServerWithStore(t, s, brokenListStore{s})

	// WHEN: Debts are listed
	rec := ts.do(t, http.MethodGet, "/api/debts", nil)

	// THEN: The client gets a generic 500
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Internal server error", resp.Error)
	assert.Equal(t, "internal_error", resp.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")

	// AND: The cause is logged
	var logged bool
	for _, e := range ts.logs.AllEntries() {
		cause, _ := e.Data[logrus.ErrorKey].(error)
		if e.Message == "request failed" && errors.Is(cause, errStoreDown) {
			logged = true
		}
	}
	assert.True(t, logged, "expected the store error to be logged")
}
