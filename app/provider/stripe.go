package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com"

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	APIBaseURL                string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type StripeClient struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeClient(cfg StripeConfig) *StripeClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.SignatureToleranceSeconds <= 0 {
		cfg.SignatureToleranceSeconds = 300
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaultStripeAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	return &StripeClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *StripeClient) CreateAccount(ctx context.Context, input *CreateAccountInput) (string, error) {
	if strings.TrimSpace(c.cfg.SecretKey) == "" {
		return "", errors.New("stripe secret key is not configured")
	}

	values := url.Values{}
	values.Set("type", "express")
	values.Set("country", strings.ToUpper(strings.TrimSpace(input.Country)))
	values.Set("email", strings.TrimSpace(input.Email))
	values.Set("business_type", strings.TrimSpace(input.BusinessType))
	values.Set("company[name]", strings.TrimSpace(input.CompanyName))
	for _, capability := range input.RequestedCapabilities {
		values.Set("capabilities["+strings.TrimSpace(capability)+"][requested]", "true")
	}

	body, err := c.postForm(ctx, "/v1/accounts", values)
	if err != nil {
		return "", err
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	accountID := strings.TrimSpace(payload.ID)
	if accountID == "" {
		return "", errors.New("stripe account id missing")
	}

	return accountID, nil
}

func (c *StripeClient) UpdateAccount(ctx context.Context, accountID, companyName, businessType string) error {
	values := url.Values{}
	values.Set("company[name]", strings.TrimSpace(companyName))
	if strings.TrimSpace(businessType) != "" {
		values.Set("business_type", strings.TrimSpace(businessType))
	}

	_, err := c.postForm(ctx, "/v1/accounts/"+url.PathEscape(accountID), values)
	return err
}

func (c *StripeClient) RetrieveAccount(ctx context.Context, accountID string) (*AccountState, error) {
	body, err := c.getJSON(ctx, "/v1/accounts/"+url.PathEscape(accountID))
	if err != nil {
		return nil, err
	}

	var payload struct {
		ChargesEnabled   bool   `json:"charges_enabled"`
		PayoutsEnabled   bool   `json:"payouts_enabled"`
		DetailsSubmitted bool   `json:"details_submitted"`
		Country          string `json:"country"`
		Type             string `json:"type"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return &AccountState{
		ChargesEnabled:   payload.ChargesEnabled,
		PayoutsEnabled:   payload.PayoutsEnabled,
		DetailsSubmitted: payload.DetailsSubmitted,
		Country:          payload.Country,
		Type:             payload.Type,
	}, nil
}

func (c *StripeClient) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	values := url.Values{}
	values.Set("account", strings.TrimSpace(accountID))
	values.Set("refresh_url", strings.TrimSpace(refreshURL))
	values.Set("return_url", strings.TrimSpace(returnURL))
	values.Set("type", "account_onboarding")

	body, err := c.postForm(ctx, "/v1/account_links", values)
	if err != nil {
		return "", err
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	link := strings.TrimSpace(payload.URL)
	if link == "" {
		return "", errors.New("stripe onboarding link missing")
	}

	return link, nil
}

func (c *StripeClient) CreateTransfer(ctx context.Context, input *TransferInput) (*TransferOutput, error) {
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(input.AmountMinor, 10))
	values.Set("currency", strings.ToLower(input.Currency))
	values.Set("destination", strings.TrimSpace(input.DestinationAccountID))
	for k, v := range input.Metadata {
		values.Set("metadata["+k+"]", v)
	}

	body, err := c.postForm(ctx, "/v1/transfers", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID       string `json:"id"`
		Livemode bool   `json:"livemode"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	transferID := strings.TrimSpace(payload.ID)
	if transferID == "" {
		return nil, errors.New("stripe transfer id missing")
	}

	return &TransferOutput{TransferID: transferID, Livemode: payload.Livemode}, nil
}

func (c *StripeClient) RetrieveTransfer(ctx context.Context, transferID string) (int32, error) {
	body, err := c.getJSON(ctx, "/v1/transfers/"+url.PathEscape(transferID))
	if err != nil {
		var rejection *RejectionError
		if errors.As(err, &rejection) && rejection.Code == "resource_missing" {
			return entity.WithdrawalStatusFailed, nil
		}
		return 0, err
	}

	var payload struct {
		ID             string `json:"id"`
		Reversed       bool   `json:"reversed"`
		AmountReversed int64  `json:"amount_reversed"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, err
	}

	if payload.Reversed || payload.AmountReversed > 0 {
		return entity.WithdrawalStatusFailed, nil
	}
	return entity.WithdrawalStatusCompleted, nil
}

func (c *StripeClient) CreatePaymentIntent(ctx context.Context, orderID string, amountMinor int64, currency string) (*IntentOutput, error) {
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(amountMinor, 10))
	values.Set("currency", strings.ToLower(currency))
	values.Set("automatic_payment_methods[enabled]", "true")
	values.Set("metadata[order_id]", strings.TrimSpace(orderID))

	body, err := c.postForm(ctx, "/v1/payment_intents", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.ID) == "" || strings.TrimSpace(payload.ClientSecret) == "" {
		return nil, errors.New("stripe payment intent fields missing")
	}

	return &IntentOutput{
		IntentID:     strings.TrimSpace(payload.ID),
		ClientSecret: strings.TrimSpace(payload.ClientSecret),
	}, nil
}

// ConfirmPaymentIntent drives one confirmation round-trip. Declines come back
// from Stripe as 402 responses carrying cardholder-facing text; those are a
// confirmation outcome, not a request rejection, so they are returned in the
// output rather than as an error.
func (c *StripeClient) ConfirmPaymentIntent(ctx context.Context, clientSecret, returnURL string) (*ConfirmOutput, error) {
	intentID, err := intentIDFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("client_secret", strings.TrimSpace(clientSecret))
	if strings.TrimSpace(returnURL) != "" {
		values.Set("return_url", strings.TrimSpace(returnURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIBaseURL+"/v1/payment_intents/"+url.PathEscape(intentID)+"/confirm",
		strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		var failure struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &failure); err != nil {
			return nil, err
		}
		return &ConfirmOutput{
			Status:       entity.AttemptStatusFailed,
			ErrorCode:    strings.TrimSpace(failure.Error.Code),
			ErrorMessage: strings.TrimSpace(failure.Error.Message),
		}, nil
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status=%d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, &RejectionError{Code: parseStripeErrorCode(body)}
	}

	var payload struct {
		Status     string `json:"status"`
		NextAction struct {
			RedirectToURL struct {
				URL string `json:"url"`
			} `json:"redirect_to_url"`
		} `json:"next_action"`
		LastPaymentError struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"last_payment_error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	result := &ConfirmOutput{
		ErrorCode:    strings.TrimSpace(payload.LastPaymentError.Code),
		ErrorMessage: strings.TrimSpace(payload.LastPaymentError.Message),
	}

	switch payload.Status {
	case "succeeded":
		result.Status = entity.AttemptStatusSucceeded
	case "requires_action", "requires_source_action":
		result.Status = entity.AttemptStatusRequiresAction
		result.RedirectURL = strings.TrimSpace(payload.NextAction.RedirectToURL.URL)
	case "canceled":
		result.Status = entity.AttemptStatusCanceled
	case "requires_payment_method", "requires_confirmation":
		result.Status = entity.AttemptStatusFailed
	default:
		result.Status = 0
	}

	return result, nil
}

func (c *StripeClient) VerifyAndParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if strings.TrimSpace(c.cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}
	if !verifyStripeSignature(payload, signature, c.cfg.WebhookSecret, c.cfg.SignatureToleranceSeconds) {
		return nil, ErrInvalidSignature
	}

	var event struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Livemode bool   `json:"livemode"`
		Created  int64  `json:"created"`
		Data     struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	result := &WebhookEvent{
		EventID:   strings.TrimSpace(event.ID),
		EventType: strings.TrimSpace(event.Type),
		Livemode:  event.Livemode,
		CreatedAt: time.Unix(event.Created, 0).UTC(),
	}

	switch result.EventType {
	case "account.updated":
		var object struct {
			ID               string `json:"id"`
			ChargesEnabled   bool   `json:"charges_enabled"`
			PayoutsEnabled   bool   `json:"payouts_enabled"`
			DetailsSubmitted bool   `json:"details_submitted"`
		}
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, err
		}
		result.Account = &WebhookAccountSnapshot{
			AccountID:        strings.TrimSpace(object.ID),
			ChargesEnabled:   object.ChargesEnabled,
			PayoutsEnabled:   object.PayoutsEnabled,
			DetailsSubmitted: object.DetailsSubmitted,
		}
	case "transfer.paid", "transfer.failed", "transfer.reversed":
		var object struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, err
		}
		result.Transfer = &WebhookTransferSnapshot{TransferID: strings.TrimSpace(object.ID)}
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var object struct {
			ID       string `json:"id"`
			Metadata struct {
				OrderID string `json:"order_id"`
			} `json:"metadata"`
		}
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, err
		}
		result.Intent = &WebhookIntentSnapshot{
			IntentID: strings.TrimSpace(object.ID),
			OrderID:  strings.TrimSpace(object.Metadata.OrderID),
		}
	}

	return result, nil
}

func (c *StripeClient) postForm(ctx context.Context, path string, values url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, path)
}

func (c *StripeClient) getJSON(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	return c.do(req, path)
}

func (c *StripeClient) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, path, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %s: status=%d", ErrProviderUnavailable, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, &RejectionError{Code: parseStripeErrorCode(body)}
	}

	return body, nil
}

// parseStripeErrorCode extracts the machine reason code and nothing else from
// an error response body.
func parseStripeErrorCode(body []byte) string {
	var payload struct {
		Error struct {
			Code string `json:"code"`
			Type string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return "request_rejected"
	}
	if code := strings.TrimSpace(payload.Error.Code); code != "" {
		return code
	}
	if errType := strings.TrimSpace(payload.Error.Type); errType != "" {
		return errType
	}
	return "request_rejected"
}

func intentIDFromClientSecret(clientSecret string) (string, error) {
	clientSecret = strings.TrimSpace(clientSecret)
	idx := strings.Index(clientSecret, "_secret")
	if idx <= 0 {
		return "", errors.New("malformed client secret")
	}
	return clientSecret[:idx], nil
}

func verifyStripeSignature(payload []byte, signatureHeader string, webhookSecret string, toleranceSeconds int64) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || strings.TrimSpace(webhookSecret) == "" {
		return false
	}

	parts := strings.Split(signatureHeader, ",")
	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimSpace(strings.TrimPrefix(part, "t="))
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimSpace(strings.TrimPrefix(part, "v1=")))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := time.Now().Unix()
	if now-tsUnix > toleranceSeconds || tsUnix-now > toleranceSeconds {
		return false
	}

	signedPayload := []byte(ts + "." + string(payload))
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write(signedPayload)
	expected := mac.Sum(nil)

	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}

	return false
}
