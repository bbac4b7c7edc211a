package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
	"github.com/sellermesh/ms-go-vendor-payouts/app/provider"
	"github.com/sellermesh/ms-go-vendor-payouts/app/repository"
	"github.com/sellermesh/ms-go-vendor-payouts/config"
)

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*entity.VendorAccount
	nextID   uint64
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: map[string]*entity.VendorAccount{}, nextID: 1}
}

func (r *fakeAccountRepo) Create(_ context.Context, account *entity.VendorAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.VendorID]; ok {
		return repository.ErrAccountAlreadyExists
	}
	account.ID = r.nextID
	r.nextID++
	copyItem := *account
	r.accounts[account.VendorID] = &copyItem
	return nil
}

func (r *fakeAccountRepo) FindByVendorID(_ context.Context, vendorID string) (*entity.VendorAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.accounts[vendorID]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *fakeAccountRepo) FindByProviderAccountID(_ context.Context, providerAccountID string) (*entity.VendorAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.accounts {
		if item.ProviderAccountID != nil && *item.ProviderAccountID == providerAccountID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) AttachProviderAccountID(_ context.Context, vendorID, providerAccountID string, status int32, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.accounts[vendorID]
	if !ok || item.ProviderAccountID != nil {
		return repository.ErrAccountAlreadyExists
	}
	id := providerAccountID
	item.ProviderAccountID = &id
	item.Status = status
	item.UpdatedAt = now
	return nil
}

func (r *fakeAccountRepo) UpdateCapabilities(_ context.Context, vendorID string, flags entity.CapabilityFlags, status int32, observedAt, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.accounts[vendorID]
	if !ok || !item.FlagsObservedAt.Before(observedAt) {
		return false, nil
	}
	item.ChargesEnabled = flags.ChargesEnabled
	item.PayoutsEnabled = flags.PayoutsEnabled
	item.DetailsSubmitted = flags.DetailsSubmitted
	item.Status = status
	item.FlagsObservedAt = observedAt
	item.UpdatedAt = now
	return true, nil
}

func (r *fakeAccountRepo) UpdateBusinessProfile(_ context.Context, vendorID, businessName string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.accounts[vendorID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	item.BusinessName = businessName
	item.SensitiveEditCount++
	item.UpdatedAt = now
	return nil
}

func (r *fakeAccountRepo) ListStaleVerification(_ context.Context, observedBefore time.Time, limit int32) ([]*entity.VendorAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.VendorAccount, 0)
	for _, item := range r.accounts {
		if item.ProviderAccountID == nil {
			continue
		}
		if item.Status != entity.AccountStatusPendingVerification && item.Status != entity.AccountStatusRestricted {
			continue
		}
		if item.FlagsObservedAt.After(observedBefore) {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return limitAccounts(items, limit), nil
}

func limitAccounts(items []*entity.VendorAccount, limit int32) []*entity.VendorAccount {
	if limit > 0 && int(limit) < len(items) {
		return items[:limit]
	}
	return items
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts map[uint64]*entity.PaymentAttempt
	nextID   uint64
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: map[uint64]*entity.PaymentAttempt{}, nextID: 1}
}

func (r *fakeAttemptRepo) Create(_ context.Context, attempt *entity.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.attempts {
		if item.OrderID == attempt.OrderID {
			return repository.ErrAttemptAlreadyExists
		}
	}
	attempt.ID = r.nextID
	r.nextID++
	copyItem := *attempt
	r.attempts[attempt.ID] = &copyItem
	return nil
}

func (r *fakeAttemptRepo) FindByOrderID(_ context.Context, orderID string) (*entity.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.attempts {
		if item.OrderID == orderID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakeAttemptRepo) FindByProviderIntentID(_ context.Context, intentID string) (*entity.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.attempts {
		if item.ProviderIntentID != nil && *item.ProviderIntentID == intentID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakeAttemptRepo) MarkSucceeded(_ context.Context, id uint64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.attempts[id]
	if !ok || item.Status == entity.AttemptStatusSucceeded {
		return false, nil
	}
	item.Status = entity.AttemptStatusSucceeded
	item.LastErrorCategory = nil
	item.LastErrorMessage = nil
	item.NotifyDeliveryStatus = entity.NotifyDeliveryPending
	item.NotifyDeliveryAttempts = 0
	nextAt := now
	item.NotifyDeliveryNextAt = &nextAt
	item.NotifyDeliveryLastErr = nil
	item.UpdatedAt = now
	return true, nil
}

func (r *fakeAttemptRepo) UpdateNotifyDelivery(_ context.Context, id uint64, status, attempts int32, nextAt *time.Time, lastErr *string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.attempts[id]
	if !ok {
		return repository.ErrAttemptNotFound
	}
	item.NotifyDeliveryStatus = status
	item.NotifyDeliveryAttempts = attempts
	item.NotifyDeliveryNextAt = nextAt
	item.NotifyDeliveryLastErr = lastErr
	item.UpdatedAt = now
	return nil
}

func (r *fakeAttemptRepo) ListDueNotifyDispatch(_ context.Context, now time.Time, limit int32) ([]*entity.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.PaymentAttempt, 0)
	for _, item := range r.attempts {
		if item.NotifyDeliveryStatus != entity.NotifyDeliveryPending {
			continue
		}
		if item.NotifyDeliveryNextAt != nil && item.NotifyDeliveryNextAt.After(now) {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (r *fakeAttemptRepo) UpdateOutcome(_ context.Context, id uint64, status int32, errorCategory, errorMessage *string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.attempts[id]
	if !ok {
		return false, nil
	}
	if item.Status != entity.AttemptStatusInitiated && item.Status != entity.AttemptStatusRequiresAction {
		return false, nil
	}
	item.Status = status
	item.LastErrorCategory = errorCategory
	item.LastErrorMessage = errorMessage
	item.UpdatedAt = now
	return true, nil
}

func (r *fakeAttemptRepo) Rearm(_ context.Context, id uint64, intentID, clientSecret string, amountMinor int64, currency string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.attempts[id]
	if !ok {
		return false, nil
	}
	if item.Status != entity.AttemptStatusFailed && item.Status != entity.AttemptStatusCanceled {
		return false, nil
	}
	item.ProviderIntentID = &intentID
	item.ClientSecret = &clientSecret
	item.Status = entity.AttemptStatusInitiated
	item.LastErrorCategory = nil
	item.LastErrorMessage = nil
	item.AmountMinor = amountMinor
	item.Currency = currency
	item.UpdatedAt = now
	return true, nil
}

func (r *fakeAttemptRepo) ListStalePending(_ context.Context, cutoff time.Time, limit int32) ([]*entity.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.PaymentAttempt, 0)
	for _, item := range r.attempts {
		if item.Status != entity.AttemptStatusInitiated && item.Status != entity.AttemptStatusRequiresAction {
			continue
		}
		if item.UpdatedAt.After(cutoff) {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

type fakeWithdrawalRepo struct {
	mu          sync.Mutex
	withdrawals map[uint64]*entity.Withdrawal
	nextID      uint64
}

func newFakeWithdrawalRepo() *fakeWithdrawalRepo {
	return &fakeWithdrawalRepo{withdrawals: map[uint64]*entity.Withdrawal{}, nextID: 1}
}

func (r *fakeWithdrawalRepo) Create(_ context.Context, withdrawal *entity.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	withdrawal.ID = r.nextID
	r.nextID++
	copyItem := *withdrawal
	r.withdrawals[withdrawal.ID] = &copyItem
	return nil
}

func (r *fakeWithdrawalRepo) FindByPublicID(_ context.Context, publicID string) (*entity.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.withdrawals {
		if item.PublicID == publicID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakeWithdrawalRepo) FindByProviderTransferID(_ context.Context, transferID string) (*entity.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.withdrawals {
		if item.ProviderTransferID != nil && *item.ProviderTransferID == transferID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakeWithdrawalRepo) AttachTransfer(_ context.Context, id uint64, transferID string, arrivalEstimate *string, livemode bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.withdrawals[id]
	if !ok || item.Status != entity.WithdrawalStatusProcessing {
		return repository.ErrWithdrawalNotFound
	}
	tid := transferID
	item.ProviderTransferID = &tid
	item.ArrivalEstimate = arrivalEstimate
	item.Livemode = livemode
	item.UpdatedAt = now
	return nil
}

func (r *fakeWithdrawalRepo) MarkCompleted(_ context.Context, id uint64, processedAt, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.withdrawals[id]
	if !ok || item.Status != entity.WithdrawalStatusProcessing {
		return false, nil
	}
	item.Status = entity.WithdrawalStatusCompleted
	p := processedAt
	item.ProcessedAt = &p
	item.UpdatedAt = now
	return true, nil
}

func (r *fakeWithdrawalRepo) MarkFailed(_ context.Context, id uint64, reason *string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.withdrawals[id]
	if !ok || item.Status != entity.WithdrawalStatusProcessing {
		return false, nil
	}
	item.Status = entity.WithdrawalStatusFailed
	item.FailureReason = reason
	p := now
	item.ProcessedAt = &p
	item.UpdatedAt = now
	return true, nil
}

func (r *fakeWithdrawalRepo) List(_ context.Context, filter repository.WithdrawalFilter) ([]*entity.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.filterLocked(filter)
	start := int(filter.Offset)
	if start > len(items) {
		return []*entity.Withdrawal{}, nil
	}
	end := start + int(filter.Limit)
	if filter.Limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end], nil
}

func (r *fakeWithdrawalRepo) Count(_ context.Context, filter repository.WithdrawalFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.filterLocked(filter))), nil
}

func (r *fakeWithdrawalRepo) filterLocked(filter repository.WithdrawalFilter) []*entity.Withdrawal {
	items := make([]*entity.Withdrawal, 0)
	for _, item := range r.withdrawals {
		if filter.VendorID != "" && item.VendorID != filter.VendorID {
			continue
		}
		if filter.HasStatus && item.Status != filter.Status {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items
}

func (r *fakeWithdrawalRepo) Summarize(_ context.Context, vendorID string) (*entity.WithdrawalSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary := &entity.WithdrawalSummary{}
	for _, item := range r.withdrawals {
		if item.VendorID != vendorID {
			continue
		}
		summary.TotalCount++
		switch item.Status {
		case entity.WithdrawalStatusProcessing:
			summary.PendingCount++
		case entity.WithdrawalStatusCompleted:
			summary.CompletedCount++
			summary.TotalWithdrawnMinor += item.AmountMinor
		}
	}
	return summary, nil
}

func (r *fakeWithdrawalRepo) ListStaleProcessing(_ context.Context, before time.Time, limit int32) ([]*entity.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Withdrawal, 0)
	for _, item := range r.withdrawals {
		if item.Status != entity.WithdrawalStatusProcessing || item.ProviderTransferID == nil {
			continue
		}
		if item.UpdatedAt.After(before) {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

type fakeEarningsRepo struct {
	mu        sync.Mutex
	available map[string]int64
	withdrawn map[string]int64
}

func newFakeEarningsRepo() *fakeEarningsRepo {
	return &fakeEarningsRepo{available: map[string]int64{}, withdrawn: map[string]int64{}}
}

func (r *fakeEarningsRepo) AvailableBalance(_ context.Context, vendorID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available[vendorID] - r.withdrawn[vendorID], nil
}

func (r *fakeEarningsRepo) Reserve(_ context.Context, vendorID string, amountMinor int64, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.available[vendorID]; !ok {
		return repository.ErrInsufficientBalance
	}
	if r.available[vendorID]-r.withdrawn[vendorID] < amountMinor {
		return repository.ErrInsufficientBalance
	}
	r.withdrawn[vendorID] += amountMinor
	return nil
}

func (r *fakeEarningsRepo) Release(_ context.Context, vendorID string, amountMinor int64, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.withdrawn[vendorID] >= amountMinor {
		r.withdrawn[vendorID] -= amountMinor
	}
	return nil
}

type fakeAccountEventRepo struct {
	mu     sync.Mutex
	events []*entity.AccountEvent
}

func (r *fakeAccountEventRepo) Create(_ context.Context, event *entity.AccountEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

func (r *fakeAccountEventRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, event := range r.events {
		names = append(names, event.EventType)
	}
	return names
}

type fakeWebhookEventRepo struct {
	mu     sync.Mutex
	events []*entity.WebhookEvent
}

func (r *fakeWebhookEventRepo) Create(_ context.Context, event *entity.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ProviderEventID != nil {
		for _, item := range r.events {
			if item.ProviderEventID != nil && *item.ProviderEventID == *event.ProviderEventID {
				return repository.ErrEventAlreadyExists
			}
		}
	}
	copyItem := *event
	r.events = append(r.events, &copyItem)
	return nil
}

func (r *fakeWebhookEventRepo) ExistsByProviderEventID(_ context.Context, providerEventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.events {
		if item.Status != entity.WebhookStatusProcessed {
			continue
		}
		if item.ProviderEventID != nil && *item.ProviderEventID == providerEventID {
			return true, nil
		}
	}
	return false, nil
}

type fakeProviderClient struct {
	mu sync.Mutex

	accountCounter  int
	intentCounter   int
	transferCounter int

	accountState   *provider.AccountState
	confirmOutput  *provider.ConfirmOutput
	transferStatus int32

	createAccountErr  error
	createTransferErr error
	confirmErr        error

	webhookEvent *provider.WebhookEvent
	webhookErr   error
}

func newFakeProviderClient() *fakeProviderClient {
	return &fakeProviderClient{
		accountState: &provider.AccountState{},
	}
}

func (c *fakeProviderClient) CreateAccount(_ context.Context, _ *provider.CreateAccountInput) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createAccountErr != nil {
		return "", c.createAccountErr
	}
	c.accountCounter++
	return "acct_" + strconv.Itoa(c.accountCounter), nil
}

func (c *fakeProviderClient) UpdateAccount(_ context.Context, _, _, _ string) error {
	return nil
}

func (c *fakeProviderClient) RetrieveAccount(_ context.Context, _ string) (*provider.AccountState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := *c.accountState
	return &state, nil
}

func (c *fakeProviderClient) CreateOnboardingLink(_ context.Context, accountID, _, _ string) (string, error) {
	return "https://connect.example/onboard/" + accountID, nil
}

func (c *fakeProviderClient) CreateTransfer(_ context.Context, _ *provider.TransferInput) (*provider.TransferOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createTransferErr != nil {
		return nil, c.createTransferErr
	}
	c.transferCounter++
	return &provider.TransferOutput{TransferID: "tr_" + strconv.Itoa(c.transferCounter), Livemode: false}, nil
}

func (c *fakeProviderClient) RetrieveTransfer(_ context.Context, _ string) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transferStatus, nil
}

func (c *fakeProviderClient) CreatePaymentIntent(_ context.Context, _ string, _ int64, _ string) (*provider.IntentOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intentCounter++
	id := "pi_" + strconv.Itoa(c.intentCounter)
	return &provider.IntentOutput{IntentID: id, ClientSecret: id + "_secret_x"}, nil
}

func (c *fakeProviderClient) ConfirmPaymentIntent(_ context.Context, _, _ string) (*provider.ConfirmOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confirmErr != nil {
		return nil, c.confirmErr
	}
	if c.confirmOutput == nil {
		return &provider.ConfirmOutput{Status: entity.AttemptStatusSucceeded}, nil
	}
	out := *c.confirmOutput
	return &out, nil
}

func (c *fakeProviderClient) VerifyAndParseWebhook(_ context.Context, _ []byte, _ string) (*provider.WebhookEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.webhookErr != nil {
		return nil, c.webhookErr
	}
	event := *c.webhookEvent
	return &event, nil
}

type fakeOrderNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *fakeOrderNotifier) MarkOrderPaid(_ context.Context, orderID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, orderID)
	return n.err
}

func (n *fakeOrderNotifier) setErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *fakeOrderNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type testEnv struct {
	service     *PayoutService
	accounts    *fakeAccountRepo
	attempts    *fakeAttemptRepo
	withdrawals *fakeWithdrawalRepo
	earnings    *fakeEarningsRepo
	events      *fakeAccountEventRepo
	webhooks    *fakeWebhookEventRepo
	provider    *fakeProviderClient
	orders      *fakeOrderNotifier
}

func newTestEnv() *testEnv {
	env := &testEnv{
		accounts:    newFakeAccountRepo(),
		attempts:    newFakeAttemptRepo(),
		withdrawals: newFakeWithdrawalRepo(),
		earnings:    newFakeEarningsRepo(),
		events:      &fakeAccountEventRepo{},
		webhooks:    &fakeWebhookEventRepo{},
		provider:    newFakeProviderClient(),
		orders:      &fakeOrderNotifier{},
	}
	env.service = NewPayoutService(
		env.accounts,
		env.attempts,
		env.withdrawals,
		env.earnings,
		env.events,
		env.webhooks,
		env.provider,
		env.orders,
		config.PayoutsConfig{
			MinimumWithdrawalMinor:   100,
			AttemptPendingTimeout:    time.Hour,
			TransferStaleAfter:       15 * time.Minute,
			AccountRefreshStaleAfter: 30 * time.Minute,
			NotifyMaxAttempts:        3,
			NotifyRetryInterval:      5 * time.Minute,
			JobBatchSize:             100,
		},
	)
	return env
}

func (e *testEnv) readyAccount(vendorID string) *entity.VendorAccount {
	now := time.Now().UTC().Add(-time.Hour)
	providerID := "acct_" + vendorID
	account := &entity.VendorAccount{
		VendorID:          vendorID,
		ProviderAccountID: &providerID,
		Email:             vendorID + "@example.com",
		BusinessName:      "Vendor " + vendorID,
		CountryCode:       "US",
		ChargesEnabled:    true,
		PayoutsEnabled:    true,
		DetailsSubmitted:  true,
		Status:            entity.AccountStatusReady,
		FlagsObservedAt:   now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_ = e.accounts.Create(context.Background(), account)
	return account
}
