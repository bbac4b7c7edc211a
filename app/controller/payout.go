package controller

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sellermesh/ms-go-vendor-payouts/app/factory"
	"github.com/sellermesh/ms-go-vendor-payouts/app/mapper"
	"github.com/sellermesh/ms-go-vendor-payouts/app/provider"
	"github.com/sellermesh/ms-go-vendor-payouts/app/service"
	"github.com/sellermesh/ms-go-vendor-payouts/app/types"
)

type PayoutController struct {
	payoutService *service.PayoutService
	logger        logrus.FieldLogger
}

func NewPayoutController(payoutService *service.PayoutService) *PayoutController {
	return &PayoutController{
		payoutService: payoutService,
		logger:        factory.NewModuleLogger("payouts-controller"),
	}
}

func (c *PayoutController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PayoutController) CreateAccount(ctx echo.Context) error {
	req, err := types.NewCreateAccountRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.payoutService.CreateAccount(ctx.Request().Context(), req)
	if err != nil {
		return c.mapServiceError(ctx, err, "Create account failed")
	}

	return ctx.JSON(http.StatusCreated, &types.AccountEnvelopeResponse{Account: mapper.AccountToResponse(item)})
}

func (c *PayoutController) GetAccount(ctx echo.Context) error {
	vendorID := strings.TrimSpace(ctx.Param("vendor_id"))

	item, err := c.payoutService.GetAccount(ctx.Request().Context(), vendorID)
	if err != nil {
		return c.mapServiceError(ctx, err, "Get account failed")
	}

	return ctx.JSON(http.StatusOK, &types.AccountEnvelopeResponse{Account: mapper.AccountToResponse(item)})
}

func (c *PayoutController) GenerateOnboardingLink(ctx echo.Context) error {
	req, err := types.NewOnboardingLinkRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	link, err := c.payoutService.GenerateOnboardingLink(ctx.Request().Context(), req)
	if err != nil {
		return c.mapServiceError(ctx, err, "Generate onboarding link failed")
	}

	return ctx.JSON(http.StatusOK, &types.OnboardingLinkResponse{URL: link})
}

func (c *PayoutController) RefreshAccountStatus(ctx echo.Context) error {
	vendorID := strings.TrimSpace(ctx.Param("vendor_id"))

	item, err := c.payoutService.RefreshAccountStatus(ctx.Request().Context(), vendorID)
	if err != nil {
		return c.mapServiceError(ctx, err, "Refresh account status failed")
	}

	return ctx.JSON(http.StatusOK, &types.AccountEnvelopeResponse{Account: mapper.AccountToResponse(item)})
}

func (c *PayoutController) UpdateBusinessProfile(ctx echo.Context) error {
	req, err := types.NewUpdateBusinessProfileRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.payoutService.UpdateBusinessProfile(ctx.Request().Context(), req)
	if err != nil {
		return c.mapServiceError(ctx, err, "Update business profile failed")
	}

	return ctx.JSON(http.StatusOK, &types.AccountEnvelopeResponse{Account: mapper.AccountToResponse(item)})
}

func (c *PayoutController) StartPayment(ctx echo.Context) error {
	req, err := types.NewStartPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.payoutService.StartPayment(ctx.Request().Context(), req)
	if err != nil {
		return c.mapServiceError(ctx, err, "Start payment failed")
	}

	resp := &types.StartPaymentResponse{Attempt: mapper.AttemptToResponse(item)}
	if item.ClientSecret != nil {
		resp.ClientSecret = *item.ClientSecret
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (c *PayoutController) ConfirmPayment(ctx echo.Context) error {
	req, err := types.NewConfirmPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.payoutService.ConfirmPayment(ctx.Request().Context(), req)
	if err != nil {
		return c.mapServiceError(ctx, err, "Confirm payment failed")
	}

	return ctx.JSON(http.StatusOK, &types.ConfirmPaymentResponse{
		Attempt:     mapper.AttemptToResponse(result.Attempt),
		RedirectURL: result.RedirectURL,
	})
}

func (c *PayoutController) GetAttempt(ctx echo.Context) error {
	orderID := strings.TrimSpace(ctx.Param("order_id"))

	item, err := c.payoutService.GetAttempt(ctx.Request().Context(), orderID)
	if err != nil {
		return c.mapServiceError(ctx, err, "Get payment attempt failed")
	}

	return ctx.JSON(http.StatusOK, mapper.AttemptToResponse(item))
}

func (c *PayoutController) RequestWithdrawal(ctx echo.Context) error {
	req, err := types.NewRequestWithdrawalRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.payoutService.RequestWithdrawal(ctx.Request().Context(), req)
	if err != nil {
		return c.mapServiceError(ctx, err, "Request withdrawal failed")
	}

	return ctx.JSON(http.StatusCreated, &types.WithdrawalEnvelopeResponse{Withdrawal: mapper.WithdrawalToResponse(item)})
}

func (c *PayoutController) GetWithdrawal(ctx echo.Context) error {
	publicID := strings.TrimSpace(ctx.Param("id"))

	item, err := c.payoutService.GetWithdrawal(ctx.Request().Context(), publicID)
	if err != nil {
		return c.mapServiceError(ctx, err, "Get withdrawal failed")
	}

	return ctx.JSON(http.StatusOK, &types.WithdrawalEnvelopeResponse{Withdrawal: mapper.WithdrawalToResponse(item)})
}

func (c *PayoutController) ListWithdrawals(ctx echo.Context) error {
	req, err := types.NewListWithdrawalsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, total, err := c.payoutService.ListWithdrawals(ctx.Request().Context(), req)
	if err != nil {
		return c.mapServiceError(ctx, err, "List withdrawals failed")
	}

	return ctx.JSON(http.StatusOK, &types.ListWithdrawalsResponse{
		Withdrawals: mapper.WithdrawalsToResponse(items),
		Pagination: &types.Pagination{
			Page:     req.Page,
			PageSize: req.PageSize,
			Total:    total,
		},
	})
}

func (c *PayoutController) SummarizeWithdrawals(ctx echo.Context) error {
	vendorID := strings.TrimSpace(ctx.Param("vendor_id"))

	summary, err := c.payoutService.SummarizeWithdrawals(ctx.Request().Context(), vendorID)
	if err != nil {
		return c.mapServiceError(ctx, err, "Summarize withdrawals failed")
	}
	available, err := c.payoutService.AvailableBalance(ctx.Request().Context(), vendorID)
	if err != nil {
		return c.mapServiceError(ctx, err, "Summarize withdrawals failed")
	}

	return ctx.JSON(http.StatusOK, mapper.SummaryToResponse(summary, available))
}

func (c *PayoutController) HandleProviderWebhook(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	signature := strings.TrimSpace(ctx.Request().Header.Get("Stripe-Signature"))

	event, err := c.payoutService.HandleProviderWebhook(ctx.Request().Context(), payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateEvent):
			return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Event already processed"})
		case errors.Is(err, service.ErrWebhookRejected):
			return c.writeError(ctx, http.StatusBadRequest, "webhook rejected")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Handle provider webhook failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	factory.LoggerWithContext(c.logger, ctx).WithField("event_type", event.EventType).Info("Provider webhook processed")
	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Webhook processed"})
}

func (c *PayoutController) mapServiceError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidStatus):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		return c.writeError(ctx, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrAttemptNotFound), errors.Is(err, service.ErrWithdrawalNotFound):
		return c.writeError(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAccountNotProvisioned), errors.Is(err, service.ErrAccountNotReady):
		return c.writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, provider.ErrProviderRejected):
		return c.writeError(ctx, http.StatusUnprocessableEntity, "payment provider rejected the request")
	case errors.Is(err, provider.ErrProviderUnavailable):
		return c.writeError(ctx, http.StatusServiceUnavailable, "payment provider is unavailable")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *PayoutController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
