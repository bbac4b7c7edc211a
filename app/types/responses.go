package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type AccountResponse struct {
	VendorID         string `json:"vendor_id"`
	Email            string `json:"email"`
	BusinessName     string `json:"business_name"`
	Country          string `json:"country"`
	Status           string `json:"status"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
	ReadyForPayouts  bool   `json:"ready_for_payouts"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type AccountEnvelopeResponse struct {
	Account *AccountResponse `json:"account"`
}

type OnboardingLinkResponse struct {
	URL string `json:"url"`
}

// AttemptResponse never carries the client secret; only the response that
// starts a payment does, and only once.
type AttemptResponse struct {
	OrderID      string `json:"order_id"`
	Status       string `json:"status"`
	AmountMinor  int64  `json:"amount_minor"`
	Currency     string `json:"currency"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type StartPaymentResponse struct {
	Attempt      *AttemptResponse `json:"attempt"`
	ClientSecret string           `json:"client_secret,omitempty"`
}

type ConfirmPaymentResponse struct {
	Attempt     *AttemptResponse `json:"attempt"`
	RedirectURL string           `json:"redirect_url,omitempty"`
}

type WithdrawalResponse struct {
	ID              string `json:"id"`
	VendorID        string `json:"vendor_id"`
	AmountMinor     int64  `json:"amount_minor"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	ArrivalEstimate string `json:"arrival_estimate,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
	Livemode        bool   `json:"livemode"`
	CreatedAt       string `json:"created_at"`
	ProcessedAt     string `json:"processed_at,omitempty"`
}

type WithdrawalEnvelopeResponse struct {
	Withdrawal *WithdrawalResponse `json:"withdrawal"`
}

type Pagination struct {
	Page     int32 `json:"page"`
	PageSize int32 `json:"page_size"`
	Total    int64 `json:"total"`
}

type ListWithdrawalsResponse struct {
	Withdrawals []*WithdrawalResponse `json:"withdrawals"`
	Pagination  *Pagination           `json:"pagination"`
}

type WithdrawalSummaryResponse struct {
	TotalWithdrawnMinor   int64 `json:"total_withdrawn_minor"`
	PendingCount          int64 `json:"pending_count"`
	CompletedCount        int64 `json:"completed_count"`
	TotalCount            int64 `json:"total_count"`
	AvailableBalanceMinor int64 `json:"available_balance_minor"`
}
