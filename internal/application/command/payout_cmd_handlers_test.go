package command

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/event"
	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/internal/infrastructure/bus"
	"holidaysri-admin/internal/infrastructure/cache"
	"holidaysri-admin/internal/infrastructure/memory"
	"holidaysri-admin/internal/infrastructure/notification"
	apperrors "holidaysri-admin/pkg/errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg notification.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingAssets struct {
	refs []string
}

func (a *recordingAssets) DeleteFiles(_ context.Context, refs []string) error {
	a.refs = append(a.refs, refs...)
	return nil
}

type fixture struct {
	store     *memory.Store
	factory   *memory.Factory
	locker    *cache.LocalLocker
	eventBus  *bus.InMemoryEventBus
	published []event.DomainEvent
	mailer    *recordingMailer
	assets    *recordingAssets
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:    store,
		factory:  memory.NewFactory(store),
		locker:   cache.NewLocalLocker(),
		eventBus: bus.NewInMemoryEventBus(),
		mailer:   &recordingMailer{},
		assets:   &recordingAssets{},
	}
	record := bus.EventHandlerFunc(func(_ context.Context, ev event.DomainEvent) error {
		f.published = append(f.published, ev)
		return nil
	})
	require.NoError(t, bus.SubscribeAll(f.eventBus, record,
		event.TypePayoutRequestApproved, event.TypePayoutRequestRejected, event.TypePayoutRequestPaid))
	return f
}

func (f *fixture) seedRequest(t *testing.T, id string, variant workflow.Variant, amounts ...int64) *aggregate.PayoutRequest {
	t.Helper()
	items := make([]aggregate.SourceItem, len(amounts))
	for i, a := range amounts {
		itemID := id + "-item-" + string(rune('a'+i))
		items[i] = aggregate.SourceItem{ID: itemID, Amount: decimal.NewFromInt(a), Origin: "referral", EarnedAt: time.Now()}
		f.store.AddEarning(memory.Earning{ID: itemID, Variant: variant, Amount: items[i].Amount})
	}
	campaignID := ""
	if variant == workflow.VariantDonationWithdrawal {
		campaignID = "camp-" + id
	}
	req, err := aggregate.NewPayoutRequest(id, variant,
		aggregate.Requester{ID: "u-" + id, Name: "Nimal Perera", Email: "nimal@example.lk"},
		items,
		aggregate.PayoutDestination{Bank: &aggregate.BankAccount{BankName: "BOC", AccountNumber: "0012", AccountName: "N Perera"}},
		campaignID,
	)
	require.NoError(t, err)
	require.NoError(t, f.store.AddPayoutRequest(context.Background(), req))
	return req
}

func appStatus(t *testing.T, err error) int {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected application error, got %v", err)
	return appErr.Status
}

func TestApproveSettlesSourceRecords(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "c1", workflow.VariantClaim, 1000, 500)
	h := NewApprovePayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())

	req, err := h.Handle(context.Background(), &ApprovePayoutRequest{
		Variant: workflow.VariantClaim, RequestID: "c1", AdminID: "admin-1", AdminNote: "  verified  ",
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, req.Status())
	assert.Equal(t, "verified", req.AdminNote())
	assert.Equal(t, "admin-1", req.ProcessedBy())
	require.NotNil(t, req.ProcessedAt())

	earning, ok := f.store.Earning("c1-item-a")
	require.True(t, ok)
	assert.Equal(t, "settled", earning.Status)
	assert.Equal(t, "c1", earning.RequestID)

	require.Len(t, f.published, 1)
	assert.Equal(t, event.TypePayoutRequestApproved, f.published[0].EventType())

	uow := f.factory.CreateUnitOfWork()
	events, err := uow.PayoutRequestRepository().GetEvents(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypePayoutRequestSubmitted, events[0].EventType)
	assert.Equal(t, event.TypePayoutRequestApproved, events[1].EventType)
}

func TestApproveRequiresNoteForClaims(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "h1", workflow.VariantHSCEarned, 40)
	h := NewApprovePayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())

	_, err := h.Handle(context.Background(), &ApprovePayoutRequest{
		Variant: workflow.VariantHSCEarned, RequestID: "h1", AdminID: "admin-1", AdminNote: "   ",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appStatus(t, err))
	assert.Empty(t, f.published)

	earning, _ := f.store.Earning("h1-item-a")
	assert.Equal(t, "locked", earning.Status)
}

func TestApproveTwiceIsConflict(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "d1", workflow.VariantDonationWithdrawal, 2000)
	h := NewApprovePayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())
	cmd := &ApprovePayoutRequest{Variant: workflow.VariantDonationWithdrawal, RequestID: "d1", AdminID: "admin-1"}

	_, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appStatus(t, err))
}

func TestApproveUnknownRequest(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "c1", workflow.VariantClaim, 100)
	h := NewApprovePayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())

	_, err := h.Handle(context.Background(), &ApprovePayoutRequest{
		Variant: workflow.VariantHSCEarned, RequestID: "c1", AdminID: "admin-1", AdminNote: "ok",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appStatus(t, err))
}

func TestTransitionWhileLockedIsConflict(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "c1", workflow.VariantClaim, 100)
	release, err := f.locker.Acquire(context.Background(), lockKey(workflow.VariantClaim, "c1"), time.Minute)
	require.NoError(t, err)
	defer release()

	h := NewRejectPayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())
	_, err = h.Handle(context.Background(), &RejectPayoutRequest{
		Variant: workflow.VariantClaim, RequestID: "c1", AdminID: "admin-1", AdminNote: "duplicate",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appStatus(t, err))
}

func TestRejectReleasesSourceRecords(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "c2", workflow.VariantClaim, 300)
	h := NewRejectPayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())

	req, err := h.Handle(context.Background(), &RejectPayoutRequest{
		Variant: workflow.VariantClaim, RequestID: "c2", AdminID: "admin-2", AdminNote: "Bank details mismatch",
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected, req.Status())
	assert.Equal(t, "Bank details mismatch", req.AdminNote())

	earning, _ := f.store.Earning("c2-item-a")
	assert.Equal(t, "available", earning.Status)
	assert.Empty(t, earning.RequestID)
}

func TestRejectWithoutReasonLeavesRequestPending(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "d2", workflow.VariantDonationWithdrawal, 900)
	h := NewRejectPayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())

	_, err := h.Handle(context.Background(), &RejectPayoutRequest{
		Variant: workflow.VariantDonationWithdrawal, RequestID: "d2", AdminID: "admin-2",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appStatus(t, err))

	uow := f.factory.CreateUnitOfWork()
	req, err := uow.PayoutRequestRepository().GetByID(context.Background(), workflow.VariantDonationWithdrawal, "d2")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, req.Status())
}

func seedCampaign(f *fixture, id string) {
	f.store.AddCampaign(aggregate.Campaign{
		ID:              id,
		Title:           "Flood relief Kalutara",
		AdvertisementID: "ad-" + id,
		ImagePublicIDs:  []string{"holidaysri/campaigns/" + id},
		RaisedAmount:    decimal.NewFromInt(2000),
		Currency:        "LKR",
	})
	f.store.AddAdvertisement(aggregate.Advertisement{
		ID:             "ad-" + id,
		CampaignID:     id,
		ImagePublicIDs: []string{"https://res.cloudinary.com/demo/image/upload/v1/holidaysri/ads/" + id + ".jpg"},
	})
}

func TestMarkPaidCascade(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "d3", workflow.VariantDonationWithdrawal, 2000)
	seedCampaign(f, "camp-d3")

	approve := NewApprovePayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())
	_, err := approve.Handle(context.Background(), &ApprovePayoutRequest{
		Variant: workflow.VariantDonationWithdrawal, RequestID: "d3", AdminID: "admin-1",
	})
	require.NoError(t, err)

	h := NewMarkPayoutRequestPaidHandler(f.factory, f.locker, f.eventBus, f.mailer, f.assets, zerolog.Nop())
	result, err := h.Handle(context.Background(), &MarkPayoutRequestPaid{
		RequestID: "d3", AdminID: "admin-1", PaymentNote: "TXN-8812", Confirmed: true,
	})
	require.NoError(t, err)
	assert.True(t, result.EmailSent)
	assert.Equal(t, "d3", result.RequestID)
	assert.Equal(t, "camp-d3", result.CampaignID)
	assert.Equal(t, "ad-camp-d3", result.AdvertisementID)

	assert.False(t, f.store.HasCampaign("camp-d3"))
	assert.False(t, f.store.HasAdvertisement("ad-camp-d3"))

	uow := f.factory.CreateUnitOfWork()
	_, err = uow.PayoutRequestRepository().GetByID(context.Background(), workflow.VariantDonationWithdrawal, "d3")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	fund, err := uow.PaidFundRepository().GetByRequestID(context.Background(), "d3")
	require.NoError(t, err)
	assert.Equal(t, "Flood relief Kalutara", fund.CampaignTitle)
	assert.True(t, fund.Amount.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, "TXN-8812", fund.PaymentNote)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "nimal@example.lk", f.mailer.sent[0].ToEmail)
	assert.Len(t, f.assets.refs, 2)

	last := f.published[len(f.published)-1]
	assert.Equal(t, event.TypePayoutRequestPaid, last.EventType())
}

func TestMarkPaidReportsEmailFailure(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "d4", workflow.VariantDonationWithdrawal, 500)
	seedCampaign(f, "camp-d4")
	f.mailer.err = errors.New("smtp down")

	approve := NewApprovePayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())
	_, err := approve.Handle(context.Background(), &ApprovePayoutRequest{
		Variant: workflow.VariantDonationWithdrawal, RequestID: "d4", AdminID: "admin-1",
	})
	require.NoError(t, err)

	h := NewMarkPayoutRequestPaidHandler(f.factory, f.locker, f.eventBus, f.mailer, nil, zerolog.Nop())
	result, err := h.Handle(context.Background(), &MarkPayoutRequestPaid{RequestID: "d4", AdminID: "admin-1", Confirmed: true})
	require.NoError(t, err)
	assert.False(t, result.EmailSent)
	assert.False(t, f.store.HasCampaign("camp-d4"))
}

func TestMarkPaidGuards(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "d5", workflow.VariantDonationWithdrawal, 500)
	seedCampaign(f, "camp-d5")
	h := NewMarkPayoutRequestPaidHandler(f.factory, f.locker, f.eventBus, f.mailer, f.assets, zerolog.Nop())

	_, err := h.Handle(context.Background(), &MarkPayoutRequestPaid{RequestID: "d5", AdminID: "admin-1", Confirmed: true})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appStatus(t, err), "pending requests cannot be paid")

	approve := NewApprovePayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())
	_, err = approve.Handle(context.Background(), &ApprovePayoutRequest{
		Variant: workflow.VariantDonationWithdrawal, RequestID: "d5", AdminID: "admin-1",
	})
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), &MarkPayoutRequestPaid{RequestID: "d5", AdminID: "admin-1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appStatus(t, err), "confirmation is required")

	assert.True(t, f.store.HasCampaign("camp-d5"))
	assert.Empty(t, f.mailer.sent)
}

func TestRolledBackTransactionKeepsConcurrentApproval(t *testing.T) {
	f := newFixture(t)
	f.seedRequest(t, "r1", workflow.VariantClaim, 1000)
	h := NewApprovePayoutRequestHandler(f.factory, f.locker, f.eventBus, zerolog.Nop())
	ctx := context.Background()

	other := f.factory.CreateUnitOfWork()
	require.NoError(t, other.Begin(ctx))

	approved := make(chan error, 1)
	go func() {
		_, err := h.Handle(ctx, &ApprovePayoutRequest{
			Variant: workflow.VariantClaim, RequestID: "r1", AdminID: "admin-1", AdminNote: "Verified",
		})
		approved <- err
	}()

	require.NoError(t, other.Rollback(ctx))
	require.NoError(t, <-approved)

	req, err := f.factory.CreateUnitOfWork().PayoutRequestRepository().GetByID(ctx, workflow.VariantClaim, "r1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, req.Status())
}
