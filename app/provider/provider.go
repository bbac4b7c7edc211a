package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProviderUnavailable covers transport failures, timeouts and 5xx
	// responses. Retryable by the caller with backoff; never retried here,
	// because a blind retry of account or transfer creation can duplicate
	// processor-side state.
	ErrProviderUnavailable = errors.New("payment provider unavailable")

	// ErrProviderRejected covers definitive 4xx refusals. Not retryable
	// without changing input.
	ErrProviderRejected = errors.New("payment provider rejected the request")

	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// RejectionError carries only the provider's machine-readable reason code.
// The raw error body may contain internal account metadata and must never
// leave the server.
type RejectionError struct {
	Code string
}

func (e *RejectionError) Error() string {
	if e.Code == "" {
		return ErrProviderRejected.Error()
	}
	return ErrProviderRejected.Error() + ": " + e.Code
}

func (e *RejectionError) Unwrap() error {
	return ErrProviderRejected
}

type CreateAccountInput struct {
	Country               string
	Email                 string
	BusinessType          string
	CompanyName           string
	RequestedCapabilities []string
}

type AccountState struct {
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	Country          string
	Type             string
}

type TransferInput struct {
	DestinationAccountID string
	AmountMinor          int64
	Currency             string
	Metadata             map[string]string
}

type TransferOutput struct {
	TransferID string
	Livemode   bool
}

type IntentOutput struct {
	IntentID     string
	ClientSecret string
}

// ConfirmOutput is the classified result of one confirmation round-trip.
// Status uses the entity attempt status values; 0 means the processor state
// did not map to any known outcome. ErrorMessage is raw processor text and
// must pass customer-safe classification before being surfaced.
type ConfirmOutput struct {
	Status       int32
	RedirectURL  string
	ErrorCode    string
	ErrorMessage string
}

type WebhookAccountSnapshot struct {
	AccountID        string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

type WebhookTransferSnapshot struct {
	TransferID string
}

type WebhookIntentSnapshot struct {
	IntentID string
	OrderID  string
}

type WebhookEvent struct {
	EventID   string
	EventType string
	Livemode  bool
	CreatedAt time.Time

	Account  *WebhookAccountSnapshot
	Transfer *WebhookTransferSnapshot
	Intent   *WebhookIntentSnapshot
}

type Client interface {
	CreateAccount(ctx context.Context, input *CreateAccountInput) (string, error)
	UpdateAccount(ctx context.Context, accountID, companyName, businessType string) error
	RetrieveAccount(ctx context.Context, accountID string) (*AccountState, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	CreateTransfer(ctx context.Context, input *TransferInput) (*TransferOutput, error)
	// RetrieveTransfer reports the withdrawal status the transfer maps to,
	// using the entity withdrawal status values; 0 means unknown.
	RetrieveTransfer(ctx context.Context, transferID string) (int32, error)
	CreatePaymentIntent(ctx context.Context, orderID string, amountMinor int64, currency string) (*IntentOutput, error)
	ConfirmPaymentIntent(ctx context.Context, clientSecret, returnURL string) (*ConfirmOutput, error)
	VerifyAndParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}
