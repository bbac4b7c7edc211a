package types

import (
	"errors"
	"strings"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
)

func ParseWithdrawalStatus(raw string) (int32, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "processing":
		return entity.WithdrawalStatusProcessing, nil
	case "completed":
		return entity.WithdrawalStatusCompleted, nil
	case "failed":
		return entity.WithdrawalStatusFailed, nil
	default:
		return 0, errors.New("invalid status")
	}
}
