package service

import "errors"

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrAccountNotFound       = errors.New("vendor payment account not found")
	ErrAccountNotProvisioned = errors.New("vendor payment account is not provisioned")
	ErrAccountNotReady       = errors.New("vendor payment account is not ready for payouts")
	ErrInsufficientBalance   = errors.New("insufficient settled balance")
	ErrAttemptNotFound       = errors.New("payment attempt not found")
	ErrWithdrawalNotFound    = errors.New("withdrawal not found")
	ErrDuplicateEvent        = errors.New("webhook event already processed")
	ErrWebhookRejected       = errors.New("webhook rejected")
)
