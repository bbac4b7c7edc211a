package service

import "strings"

// GenericPaymentErrorMessage is shown whenever processor error text might leak
// integration internals to a customer.
const GenericPaymentErrorMessage = "Your payment could not be processed. Please try again or use a different payment method."

// internalIndicators are lowercase substrings that mark processor error text
// as integration-facing rather than cardholder-facing.
var internalIndicators = []string{
	"stripe",
	"payment_intent",
	"paymentintent",
	"client_secret",
	"secret_key",
	"api_key",
	"unexpected state",
	"idempotency",
	"parameter",
	"invalid_request",
	"api.stripe.com",
}

// CustomerSafeMessage classifies raw processor error text. Text touching any
// internal indicator is replaced with the generic message; genuine cardholder
// text such as a decline reason passes through verbatim.
func CustomerSafeMessage(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return GenericPaymentErrorMessage
	}

	lowered := strings.ToLower(trimmed)
	for _, indicator := range internalIndicators {
		if strings.Contains(lowered, indicator) {
			return GenericPaymentErrorMessage
		}
	}
	return trimmed
}
