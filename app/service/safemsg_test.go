package service

import "testing"

func TestCustomerSafeMessage(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"decline passes through", "Your card was declined.", "Your card was declined."},
		{"insufficient funds passes through", "Your card has insufficient funds.", "Your card has insufficient funds."},
		{"unexpected state is masked", "The PaymentIntent is in an unexpected state.", GenericPaymentErrorMessage},
		{"processor name is masked", "No such customer on Stripe account", GenericPaymentErrorMessage},
		{"secret reference is masked", "Invalid client_secret provided", GenericPaymentErrorMessage},
		{"parameter error is masked", "Missing required parameter: amount", GenericPaymentErrorMessage},
		{"idempotency error is masked", "Keys for idempotency requests may only be used once", GenericPaymentErrorMessage},
		{"empty falls back to generic", "", GenericPaymentErrorMessage},
		{"whitespace falls back to generic", "   ", GenericPaymentErrorMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CustomerSafeMessage(tc.raw); got != tc.want {
				t.Fatalf("CustomerSafeMessage(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
