package console_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"holidaysri-admin/internal/application/command"
	"holidaysri-admin/internal/application/query"
	"holidaysri-admin/internal/application/services"
	"holidaysri-admin/internal/console"
	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/internal/infrastructure/bus"
	"holidaysri-admin/internal/infrastructure/cache"
	apihttp "holidaysri-admin/internal/infrastructure/http"
	"holidaysri-admin/internal/infrastructure/memory"
	"holidaysri-admin/internal/infrastructure/notification"
	jwtutil "holidaysri-admin/pkg/jwt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct{ messages []notification.Message }

func (m *sentMail) Send(_ context.Context, msg notification.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

type backend struct {
	url   string
	store *memory.Store
	mail  *sentMail
}

func startBackend(t *testing.T) *backend {
	t.Helper()
	store := memory.NewStore()
	factory := memory.NewFactory(store)
	locker := cache.NewLocalLocker()
	eventBus := bus.NewInMemoryEventBus()
	log := zerolog.Nop()
	jwtManager := jwtutil.NewJWTManager("console-test", time.Hour)
	mail := &sentMail{}
	validate := validator.New()

	payouts := services.NewPayoutService(
		command.NewApprovePayoutRequestHandler(factory, locker, eventBus, log),
		command.NewRejectPayoutRequestHandler(factory, locker, eventBus, log),
		command.NewMarkPayoutRequestPaidHandler(factory, locker, eventBus, mail, nil, log),
		query.NewListPayoutRequestsHandler(factory),
		query.NewGetPayoutRequestHandler(factory),
		query.NewGetPayoutStatsHandler(factory),
		query.NewGetPayoutHistoryHandler(factory),
	)

	admin, err := aggregate.NewAdmin("admin-1", "Finance", "finance@holidaysri.lk", "correct-horse", aggregate.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, factory.CreateUnitOfWork().AdminRepository().Save(context.Background(), admin))

	srv := httptest.NewServer(apihttp.NewRouter(apihttp.RouterDeps{
		Log:        log,
		JWTManager: jwtManager,
		Payouts:    apihttp.NewHTTPPayoutController(payouts, validate),
		Auth:       apihttp.NewHTTPAuthController(command.NewLoginHandler(factory, jwtManager, log), validate),
	}))
	t.Cleanup(srv.Close)
	return &backend{url: srv.URL, store: store, mail: mail}
}

func (b *backend) seed(t *testing.T, id string, variant workflow.Variant, amounts ...string) {
	t.Helper()
	items := make([]aggregate.SourceItem, 0, len(amounts))
	for i, a := range amounts {
		items = append(items, aggregate.SourceItem{ID: id + "-" + string(rune('a'+i)), Amount: decimal.RequireFromString(a)})
	}
	campaign := ""
	if variant == workflow.VariantDonationWithdrawal {
		campaign = "camp-" + id
		b.store.AddCampaign(aggregate.Campaign{ID: campaign, Title: "Flood relief", AdvertisementID: "ad-" + id})
		b.store.AddAdvertisement(aggregate.Advertisement{ID: "ad-" + id, CampaignID: campaign, Title: "Flood relief"})
	}
	req, err := aggregate.NewPayoutRequest(id, variant,
		aggregate.Requester{ID: "u-" + id, Name: "Kasun", Email: "kasun@example.lk"},
		items,
		aggregate.PayoutDestination{Bank: &aggregate.BankAccount{BankName: "BOC", AccountNumber: "0091", AccountName: "Kasun"}},
		campaign,
	)
	require.NoError(t, err)
	require.NoError(t, b.store.AddPayoutRequest(context.Background(), req))
}

func (b *backend) signIn(t *testing.T) *console.Client {
	t.Helper()
	session := console.NewTokenSession("")
	client := console.NewClient(b.url, session)
	res, err := client.Login(context.Background(), "finance@holidaysri.lk", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "Admin", res.Admin.Role)
	require.True(t, session.IsAuthenticated())
	return client
}

func TestApproveClaimFromListing(t *testing.T) {
	b := startBackend(t)
	b.seed(t, "c1", workflow.VariantClaim, "600", "400")
	b.seed(t, "c2", workflow.VariantClaim, "2500")
	b.seed(t, "c3", workflow.VariantClaim, "750")
	client := b.signIn(t)
	ctx := context.Background()

	view, err := console.NewListingView(client, workflow.VariantClaim)
	require.NoError(t, err)
	require.NoError(t, view.SetFilter(ctx, console.Filter{Status: "pending"}))

	state := view.State()
	require.Len(t, state.Items, 3)
	pending := state.Stats.Get(workflow.StatusPending)
	assert.EqualValues(t, 3, pending.Count)
	assert.True(t, decimal.NewFromInt(4250).Equal(pending.TotalAmount))

	for _, item := range state.Items {
		sum := decimal.Zero
		for _, s := range item.SourceItems {
			sum = sum.Add(s.Amount)
		}
		assert.True(t, sum.Equal(item.TotalAmount), item.ID)
	}

	engine, err := console.NewEngine(client, workflow.VariantClaim)
	require.NoError(t, err)
	target := state.Items[0]
	modal, err := console.OpenModal(engine, target, workflow.ActionApprove, view.RefreshOnSuccess())
	require.NoError(t, err)
	modal.SetNote("Verified bank transfer")

	res, err := modal.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "approved", res.Request.Status)
	assert.Equal(t, "Verified bank transfer", res.Request.AdminNote)
	assert.Empty(t, res.Request.AvailableActions)

	state = view.State()
	assert.Len(t, state.Items, 2)
	assert.EqualValues(t, 2, state.Stats.Get(workflow.StatusPending).Count)
	assert.EqualValues(t, 1, state.Stats.Get(workflow.StatusApproved).Count)
	for _, item := range state.Items {
		assert.NotEqual(t, target.ID, item.ID)
	}

	require.NoError(t, view.SetFilter(ctx, console.Filter{Status: "approved"}))
	state = view.State()
	require.Len(t, state.Items, 1)
	assert.Equal(t, target.ID, state.Items[0].ID)
	assert.Equal(t, "Verified bank transfer", state.Items[0].AdminNote)
}

func TestRejectWithoutReasonIsBlocked(t *testing.T) {
	b := startBackend(t)
	b.seed(t, "h1", workflow.VariantHSCEarned, "120")
	client := b.signIn(t)
	ctx := context.Background()

	engine, err := console.NewEngine(client, workflow.VariantHSCEarned)
	require.NoError(t, err)
	view, err := console.NewListingView(client, workflow.VariantHSCEarned)
	require.NoError(t, err)
	require.NoError(t, view.Refresh(ctx))
	req := view.State().Items[0]

	_, err = engine.Reject(ctx, req, "")
	var verr *console.ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, view.Refresh(ctx))
	assert.Equal(t, "pending", view.State().Items[0].Status)

	res, err := engine.Reject(ctx, req, "Earnings under review")
	require.NoError(t, err)
	assert.Equal(t, "rejected", res.Request.Status)
}

func TestMarkDonationPaid(t *testing.T) {
	b := startBackend(t)
	b.seed(t, "d1", workflow.VariantDonationWithdrawal, "5000")
	client := b.signIn(t)
	ctx := context.Background()

	engine, err := console.NewEngine(client, workflow.VariantDonationWithdrawal)
	require.NoError(t, err)
	view, err := console.NewListingView(client, workflow.VariantDonationWithdrawal)
	require.NoError(t, err)
	require.NoError(t, view.Refresh(ctx))
	req := view.State().Items[0]

	approved, err := engine.Approve(ctx, req, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"mark_paid"}, approved.Request.AvailableActions)

	modal, err := console.OpenModal(engine, *approved.Request, workflow.ActionMarkPaid, view.RefreshOnSuccess())
	require.NoError(t, err)
	modal.SetNote("Transferred, slip 4471")
	assert.False(t, modal.CanSubmit())
	modal.Confirm(true)

	res, err := modal.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, res.EmailSent())
	assert.Equal(t, "camp-d1", res.Paid.CampaignID)

	state := view.State()
	assert.Empty(t, state.Items)
	assert.Equal(t, console.EmptyNoRecords, state.Empty)
	assert.False(t, b.store.HasCampaign("camp-d1"))
	assert.False(t, b.store.HasAdvertisement("ad-d1"))
	require.Len(t, b.mail.messages, 1)
	assert.Equal(t, "kasun@example.lk", b.mail.messages[0].ToEmail)
}

func TestConcurrentAdminsConflict(t *testing.T) {
	b := startBackend(t)
	b.seed(t, "c1", workflow.VariantClaim, "1000")
	ctx := context.Background()

	first, err := console.NewEngine(b.signIn(t), workflow.VariantClaim)
	require.NoError(t, err)
	second, err := console.NewEngine(b.signIn(t), workflow.VariantClaim)
	require.NoError(t, err)

	view, err := console.NewListingView(b.signIn(t), workflow.VariantClaim)
	require.NoError(t, err)
	require.NoError(t, view.Refresh(ctx))
	stale := view.State().Items[0]

	_, err = first.Approve(ctx, stale, "Verified")
	require.NoError(t, err)

	_, err = second.Reject(ctx, stale, "Looks wrong")
	var ae *console.ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, console.KindServer, ae.Kind)
	assert.Equal(t, http.StatusConflict, ae.Status)
	assert.NotEmpty(t, ae.Message)

	require.NoError(t, view.Refresh(ctx))
	assert.Equal(t, "approved", view.State().Items[0].Status)
}
