package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type CreateAccountRequest struct {
	VendorID     string `json:"vendor_id"`
	Email        string `json:"email"`
	BusinessName string `json:"business_name"`
	Country      string `json:"country"`
}

func NewCreateAccountRequestFromContext(ctx echo.Context) (*CreateAccountRequest, error) {
	var body CreateAccountRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.VendorID = strings.TrimSpace(body.VendorID)
	body.Email = strings.TrimSpace(body.Email)
	body.BusinessName = strings.TrimSpace(body.BusinessName)
	body.Country = strings.ToUpper(strings.TrimSpace(body.Country))

	return &body, nil
}

func (r *CreateAccountRequest) Validate() error {
	if r.VendorID == "" {
		return errors.New("vendor_id is required")
	}
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return errors.New("email is invalid")
	}
	if r.BusinessName == "" {
		return errors.New("business_name is required")
	}
	if len(r.Country) != 2 {
		return errors.New("country must be a 2-letter code")
	}
	return nil
}

type OnboardingLinkRequest struct {
	VendorID   string `json:"vendor_id" param:"vendor_id"`
	RefreshURL string `json:"refresh_url"`
	ReturnURL  string `json:"return_url"`
}

func NewOnboardingLinkRequestFromContext(ctx echo.Context) (*OnboardingLinkRequest, error) {
	var body OnboardingLinkRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.VendorID = strings.TrimSpace(ctx.Param("vendor_id"))
	body.RefreshURL = strings.TrimSpace(body.RefreshURL)
	body.ReturnURL = strings.TrimSpace(body.ReturnURL)

	return &body, nil
}

func (r *OnboardingLinkRequest) Validate() error {
	if r.VendorID == "" {
		return errors.New("vendor_id is required")
	}
	if !strings.HasPrefix(r.RefreshURL, "http") {
		return errors.New("refresh_url is required")
	}
	if !strings.HasPrefix(r.ReturnURL, "http") {
		return errors.New("return_url is required")
	}
	return nil
}

type UpdateBusinessProfileRequest struct {
	VendorID     string `json:"vendor_id" param:"vendor_id"`
	BusinessName string `json:"business_name"`
}

func NewUpdateBusinessProfileRequestFromContext(ctx echo.Context) (*UpdateBusinessProfileRequest, error) {
	var body UpdateBusinessProfileRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.VendorID = strings.TrimSpace(ctx.Param("vendor_id"))
	body.BusinessName = strings.TrimSpace(body.BusinessName)

	return &body, nil
}

func (r *UpdateBusinessProfileRequest) Validate() error {
	if r.VendorID == "" {
		return errors.New("vendor_id is required")
	}
	if r.BusinessName == "" {
		return errors.New("business_name is required")
	}
	return nil
}

// StartPaymentRequest takes the amount either pre-converted in minor units or
// as a decimal major-unit amount; amount_minor wins when both are set.
type StartPaymentRequest struct {
	OrderID     string  `json:"order_id"`
	AmountMinor int64   `json:"amount_minor"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

func NewStartPaymentRequestFromContext(ctx echo.Context) (*StartPaymentRequest, error) {
	var body StartPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.OrderID = strings.TrimSpace(body.OrderID)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	if body.AmountMinor == 0 && body.Amount > 0 {
		body.AmountMinor = ToMinorUnits(body.Amount, body.Currency)
	}

	return &body, nil
}

func (r *StartPaymentRequest) Validate() error {
	if r.OrderID == "" {
		return errors.New("order_id is required")
	}
	if r.AmountMinor <= 0 {
		return errors.New("amount_minor must be > 0")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

type ConfirmPaymentRequest struct {
	OrderID   string `json:"order_id" param:"order_id"`
	ReturnURL string `json:"return_url"`
}

func NewConfirmPaymentRequestFromContext(ctx echo.Context) (*ConfirmPaymentRequest, error) {
	var body ConfirmPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.OrderID = strings.TrimSpace(ctx.Param("order_id"))
	body.ReturnURL = strings.TrimSpace(body.ReturnURL)

	return &body, nil
}

func (r *ConfirmPaymentRequest) Validate() error {
	if r.OrderID == "" {
		return errors.New("order_id is required")
	}
	return nil
}

type RequestWithdrawalRequest struct {
	VendorID    string  `json:"vendor_id" param:"vendor_id"`
	AmountMinor int64   `json:"amount_minor"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

func NewRequestWithdrawalRequestFromContext(ctx echo.Context) (*RequestWithdrawalRequest, error) {
	var body RequestWithdrawalRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.VendorID = strings.TrimSpace(ctx.Param("vendor_id"))
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	if body.AmountMinor == 0 && body.Amount > 0 {
		body.AmountMinor = ToMinorUnits(body.Amount, body.Currency)
	}

	return &body, nil
}

func (r *RequestWithdrawalRequest) Validate() error {
	if r.VendorID == "" {
		return errors.New("vendor_id is required")
	}
	if r.AmountMinor <= 0 {
		return errors.New("amount_minor must be > 0")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

type ListWithdrawalsRequest struct {
	VendorID  string
	HasStatus bool
	Status    int32
	Page      int32
	PageSize  int32
}

func NewListWithdrawalsRequestFromContext(ctx echo.Context) (*ListWithdrawalsRequest, error) {
	req := &ListWithdrawalsRequest{
		VendorID: strings.TrimSpace(ctx.Param("vendor_id")),
		Page:     1,
		PageSize: 20,
	}

	if statusRaw := strings.TrimSpace(ctx.QueryParam("status")); statusRaw != "" {
		status, err := ParseWithdrawalStatus(statusRaw)
		if err != nil {
			return nil, err
		}
		req.HasStatus = true
		req.Status = status
	}

	if pageRaw := strings.TrimSpace(ctx.QueryParam("page")); pageRaw != "" {
		page, err := strconv.ParseInt(pageRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Page = int32(page)
	}

	if sizeRaw := strings.TrimSpace(ctx.QueryParam("page_size")); sizeRaw != "" {
		size, err := strconv.ParseInt(sizeRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.PageSize = int32(size)
	}

	return req, nil
}

func (r *ListWithdrawalsRequest) Validate() error {
	if r.VendorID == "" {
		return errors.New("vendor_id is required")
	}
	if r.Page < 1 {
		return errors.New("page must be >= 1")
	}
	if r.PageSize < 1 || r.PageSize > 100 {
		return errors.New("page_size must be between 1 and 100")
	}
	return nil
}
