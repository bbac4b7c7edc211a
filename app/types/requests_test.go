package types

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
)

func jsonContext(t *testing.T, method, target, body string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestCreateAccountRequestValidation(t *testing.T) {
	ctx := jsonContext(t, "POST", "/accounts", `{"vendor_id":" vendor-1 ","email":"owner@example.com","business_name":"Acme","country":"us"}`)

	req, err := NewCreateAccountRequestFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vendor-1", req.VendorID)
	assert.Equal(t, "US", req.Country)
	assert.NoError(t, req.Validate())

	req.Email = "not-an-email"
	assert.Error(t, req.Validate())

	req.Email = "owner@example.com"
	req.Country = "USA"
	assert.Error(t, req.Validate())
}

func TestStartPaymentRequestValidation(t *testing.T) {
	ctx := jsonContext(t, "POST", "/payments", `{"order_id":"order-1","amount_minor":5000,"currency":"usd"}`)

	req, err := NewStartPaymentRequestFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", req.Currency)
	assert.NoError(t, req.Validate())

	req.AmountMinor = 0
	assert.Error(t, req.Validate())

	req.AmountMinor = 5000
	req.OrderID = ""
	assert.Error(t, req.Validate())
}

func TestStartPaymentRequestConvertsMajorUnitAmount(t *testing.T) {
	ctx := jsonContext(t, "POST", "/payments", `{"order_id":"order-1","amount":19.99,"currency":"usd"}`)

	req, err := NewStartPaymentRequestFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1999), req.AmountMinor)
	assert.NoError(t, req.Validate())

	// amount_minor wins when both fields are set.
	ctx = jsonContext(t, "POST", "/payments", `{"order_id":"order-1","amount":19.99,"amount_minor":5000,"currency":"usd"}`)
	req, err = NewStartPaymentRequestFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), req.AmountMinor)

	// Zero-decimal currencies convert one to one.
	ctx = jsonContext(t, "POST", "/payments", `{"order_id":"order-1","amount":500,"currency":"jpy"}`)
	req, err = NewStartPaymentRequestFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), req.AmountMinor)
}

func TestRequestWithdrawalRequestConvertsMajorUnitAmount(t *testing.T) {
	ctx := jsonContext(t, "POST", "/vendors/vendor-1/withdrawals", `{"amount":25.00,"currency":"usd"}`)
	ctx.SetParamNames("vendor_id")
	ctx.SetParamValues("vendor-1")

	req, err := NewRequestWithdrawalRequestFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vendor-1", req.VendorID)
	assert.Equal(t, int64(2500), req.AmountMinor)
	assert.NoError(t, req.Validate())
}

func TestListWithdrawalsRequestParsesQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/vendors/vendor-1/withdrawals?status=completed&page=3&page_size=10", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("vendor_id")
	ctx.SetParamValues("vendor-1")

	parsed, err := NewListWithdrawalsRequestFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vendor-1", parsed.VendorID)
	assert.True(t, parsed.HasStatus)
	assert.Equal(t, entity.WithdrawalStatusCompleted, parsed.Status)
	assert.Equal(t, int32(3), parsed.Page)
	assert.Equal(t, int32(10), parsed.PageSize)
	assert.NoError(t, parsed.Validate())
}

func TestListWithdrawalsRequestRejectsBadStatus(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/vendors/vendor-1/withdrawals?status=bogus", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("vendor_id")
	ctx.SetParamValues("vendor-1")

	_, err := NewListWithdrawalsRequestFromContext(ctx)
	assert.Error(t, err)
}

func TestParseWithdrawalStatus(t *testing.T) {
	status, err := ParseWithdrawalStatus("Processing")
	require.NoError(t, err)
	assert.Equal(t, entity.WithdrawalStatusProcessing, status)

	_, err = ParseWithdrawalStatus("unknown")
	assert.Error(t, err)
}
