package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
)

func TestVerifyStripeSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	ts := time.Now().Unix()
	signed := fmt.Sprintf("%d.%s", ts, string(payload))

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signed))
	sig := hex.EncodeToString(mac.Sum(nil))
	header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

	if !verifyStripeSignature(payload, header, secret, 300) {
		t.Fatal("expected signature to validate")
	}
	if verifyStripeSignature(payload, header, "wrong-secret", 300) {
		t.Fatal("expected signature with wrong secret to fail")
	}

	stale := fmt.Sprintf("t=%d,v1=%s", ts-3600, sig)
	if verifyStripeSignature(payload, stale, secret, 300) {
		t.Fatal("expected stale timestamp to fail")
	}
}

func TestIntentIDFromClientSecret(t *testing.T) {
	id, err := intentIDFromClientSecret("pi_abc123_secret_xyz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "pi_abc123" {
		t.Fatalf("unexpected intent id: %s", id)
	}

	if _, err := intentIDFromClientSecret("garbage"); err == nil {
		t.Fatal("expected malformed client secret to fail")
	}
}

func TestStripeClientErrorMapping(t *testing.T) {
	var status int
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk_test", APIBaseURL: server.URL})

	status = http.StatusBadGateway
	body = `{}`
	if _, err := client.RetrieveAccount(context.Background(), "acct_1"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected unavailable for 5xx, got %v", err)
	}

	status = http.StatusBadRequest
	body = `{"error":{"code":"account_invalid","type":"invalid_request_error","message":"internal detail"}}`
	_, err := client.RetrieveAccount(context.Background(), "acct_1")
	if !errors.Is(err, ErrProviderRejected) {
		t.Fatalf("expected rejection for 4xx, got %v", err)
	}
	var rejection *RejectionError
	if !errors.As(err, &rejection) || rejection.Code != "account_invalid" {
		t.Fatalf("expected machine code only, got %v", err)
	}
}

func TestConfirmPaymentIntentDecline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"card_declined","message":"Your card was declined."}}`))
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk_test", APIBaseURL: server.URL})

	out, err := client.ConfirmPaymentIntent(context.Background(), "pi_1_secret_x", "")
	if err != nil {
		t.Fatalf("expected decline to be an outcome, got error: %v", err)
	}
	if out.Status != entity.AttemptStatusFailed {
		t.Fatalf("unexpected status: %d", out.Status)
	}
	if out.ErrorCode != "card_declined" || out.ErrorMessage != "Your card was declined." {
		t.Fatalf("unexpected decline fields: %+v", out)
	}
}

func TestConfirmPaymentIntentRequiresAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"requires_action","next_action":{"redirect_to_url":{"url":"https://hooks.stripe.com/redirect/x"}}}`))
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk_test", APIBaseURL: server.URL})

	out, err := client.ConfirmPaymentIntent(context.Background(), "pi_1_secret_x", "https://shop.example/return")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != entity.AttemptStatusRequiresAction {
		t.Fatalf("unexpected status: %d", out.Status)
	}
	if out.RedirectURL != "https://hooks.stripe.com/redirect/x" {
		t.Fatalf("unexpected redirect URL: %s", out.RedirectURL)
	}
}

func TestVerifyAndParseWebhookAccountUpdated(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_acc","type":"account.updated","livemode":false,"created":1700000000,"data":{"object":{"id":"acct_9","charges_enabled":true,"payouts_enabled":true,"details_submitted":true}}}`)

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, string(payload))))
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	client := NewStripeClient(StripeConfig{SecretKey: "sk_test", WebhookSecret: secret})

	event, err := client.VerifyAndParseWebhook(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.EventID != "evt_acc" || event.EventType != "account.updated" {
		t.Fatalf("unexpected event envelope: %+v", event)
	}
	if event.Account == nil || event.Account.AccountID != "acct_9" || !event.Account.PayoutsEnabled {
		t.Fatalf("unexpected account snapshot: %+v", event.Account)
	}

	if _, err := client.VerifyAndParseWebhook(context.Background(), payload, "t=1,v1=deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}
