package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"holidaysri-admin/internal/application/command"
	"holidaysri-admin/internal/application/query"
	"holidaysri-admin/internal/application/services"
	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/internal/infrastructure/bus"
	"holidaysri-admin/internal/infrastructure/cache"
	"holidaysri-admin/internal/infrastructure/memory"
	"holidaysri-admin/internal/infrastructure/notification"
	jwtutil "holidaysri-admin/pkg/jwt"
	"holidaysri-admin/pkg/payoutapi"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okMailer struct{}

func (okMailer) Send(context.Context, notification.Message) error { return nil }

type testAPI struct {
	server *httptest.Server
	store  *memory.Store
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	factory := memory.NewFactory(store)
	locker := cache.NewLocalLocker()
	eventBus := bus.NewInMemoryEventBus()
	log := zerolog.Nop()
	jwtManager := jwtutil.NewJWTManager("router-test", time.Hour)
	validate := validator.New()

	payouts := services.NewPayoutService(
		command.NewApprovePayoutRequestHandler(factory, locker, eventBus, log),
		command.NewRejectPayoutRequestHandler(factory, locker, eventBus, log),
		command.NewMarkPayoutRequestPaidHandler(factory, locker, eventBus, okMailer{}, nil, log),
		query.NewListPayoutRequestsHandler(factory),
		query.NewGetPayoutRequestHandler(factory),
		query.NewGetPayoutStatsHandler(factory),
		query.NewGetPayoutHistoryHandler(factory),
	)

	admin, err := aggregate.NewAdmin("admin-1", "Finance", "finance@holidaysri.lk", "correct-horse", aggregate.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, factory.CreateUnitOfWork().AdminRepository().Save(context.Background(), admin))

	router := NewRouter(RouterDeps{
		Log:        log,
		JWTManager: jwtManager,
		Payouts:    NewHTTPPayoutController(payouts, validate),
		Auth:       NewHTTPAuthController(command.NewLoginHandler(factory, jwtManager, log), validate),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	token, _, err := jwtManager.GenerateToken("admin-1", "finance@holidaysri.lk", "Finance", string(aggregate.RoleAdmin))
	require.NoError(t, err)
	return &testAPI{server: srv, store: store, token: token}
}

func (a *testAPI) seed(t *testing.T, id string, variant workflow.Variant, amount string) {
	t.Helper()
	campaign := ""
	if variant == workflow.VariantDonationWithdrawal {
		campaign = "camp-" + id
		a.store.AddCampaign(aggregate.Campaign{ID: campaign, Title: "School books"})
	}
	req, err := aggregate.NewPayoutRequest(id, variant,
		aggregate.Requester{ID: "u-" + id, Name: "Dilini", Email: "dilini@example.lk"},
		[]aggregate.SourceItem{{ID: id + "-1", Amount: decimal.RequireFromString(amount)}},
		aggregate.PayoutDestination{Bank: &aggregate.BankAccount{BankName: "Sampath", AccountNumber: "77", AccountName: "Dilini"}},
		campaign,
	)
	require.NoError(t, err)
	require.NoError(t, a.store.AddPayoutRequest(context.Background(), req))
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestListAndStats(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, "c1", workflow.VariantClaim, "1000")
	api.seed(t, "c2", workflow.VariantClaim, "2500")
	api.seed(t, "c3", workflow.VariantClaim, "750")

	var list payoutapi.Envelope[payoutapi.ListPage]
	status := api.do(t, http.MethodGet, "/claim-requests/requests?status=pending&limit=2", nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, list.Success)
	assert.Len(t, list.Data.Items, 2)
	assert.Equal(t, payoutapi.Pagination{Current: 1, Pages: 2, Total: 3}, list.Data.Pagination)
	assert.Equal(t, []string{"approve", "reject"}, list.Data.Items[0].AvailableActions)

	var stats payoutapi.Envelope[payoutapi.Stats]
	status = api.do(t, http.MethodGet, "/claim-requests/stats", nil, &stats)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, stats.Data["pending"].Count)
	assert.True(t, stats.Data["pending"].TotalAmount.Equal(decimal.NewFromInt(4250)))
	assert.NotContains(t, stats.Data, "paid")
}

func TestApproveRejectOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, "h1", workflow.VariantHSCEarned, "40")
	api.seed(t, "h2", workflow.VariantHSCEarned, "60")

	var failed payoutapi.Envelope[json.RawMessage]
	status := api.do(t, http.MethodPost, "/hsc-earned-claims/requests/h1/reject", payoutapi.TransitionBody{AdminNote: " "}, &failed)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "VALIDATION_ERROR", failed.Error.Code)

	var approved payoutapi.Envelope[payoutapi.PayoutRequest]
	status = api.do(t, http.MethodPost, "/hsc-earned-claims/requests/h1/approve", payoutapi.TransitionBody{AdminNote: "Verified"}, &approved)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "approved", approved.Data.Status)
	assert.Equal(t, "admin-1", approved.Data.ProcessedBy)
	assert.Empty(t, approved.Data.AvailableActions)

	status = api.do(t, http.MethodPost, "/hsc-earned-claims/requests/h1/reject", payoutapi.TransitionBody{AdminNote: "late"}, &failed)
	assert.Equal(t, http.StatusConflict, status)

	var updated payoutapi.Envelope[payoutapi.PayoutRequest]
	status = api.do(t, http.MethodPut, "/hsc-earned-claims/requests/h2", payoutapi.UpdateStatusBody{Status: "rejected", AdminNote: "Duplicate claim"}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "rejected", updated.Data.Status)

	status = api.do(t, http.MethodPut, "/hsc-earned-claims/requests/h2", payoutapi.UpdateStatusBody{Status: "paid"}, &failed)
	assert.Equal(t, http.StatusBadRequest, status)

	var history payoutapi.Envelope[[]payoutapi.HistoryEntry]
	status = api.do(t, http.MethodGet, "/hsc-earned-claims/requests/h1/history", nil, &history)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, history.Data, 2)
	assert.Equal(t, "PayoutRequestApproved", history.Data[1].EventType)
}

func TestMarkPaidOnlyForDonations(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, "d1", workflow.VariantDonationWithdrawal, "5000")
	api.seed(t, "c1", workflow.VariantClaim, "10")

	status := api.do(t, http.MethodPost, "/claim-requests/mark-as-paid/c1", payoutapi.MarkPaidBody{}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = api.do(t, http.MethodPost, "/donation-withdrawals/requests/d1/approve", payoutapi.TransitionBody{}, nil)
	require.Equal(t, http.StatusOK, status)

	var paid payoutapi.Envelope[payoutapi.MarkPaidResult]
	status = api.do(t, http.MethodPost, "/donation-withdrawals/mark-as-paid/d1", payoutapi.MarkPaidBody{PaymentNote: "Slip 4471"}, &paid)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, paid.Data.EmailSent)
	assert.Equal(t, "camp-d1", paid.Data.CampaignID)

	var list payoutapi.Envelope[payoutapi.ListPage]
	api.do(t, http.MethodGet, "/donation-withdrawals/requests", nil, &list)
	assert.Empty(t, list.Data.Items)

	status = api.do(t, http.MethodGet, "/donation-withdrawals/requests/d1", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAuth(t *testing.T) {
	api := newTestAPI(t)
	token := api.token
	api.token = ""

	status := api.do(t, http.MethodGet, "/claim-requests/requests", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	var login payoutapi.Envelope[payoutapi.LoginResult]
	status = api.do(t, http.MethodPost, "/auth/login", payoutapi.LoginBody{Email: "finance@holidaysri.lk", Password: "correct-horse"}, &login)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, login.Data.Token)
	assert.Equal(t, "Admin", login.Data.Admin.Role)

	status = api.do(t, http.MethodPost, "/auth/login", payoutapi.LoginBody{Email: "not-an-email", Password: "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	api.token = token
	status = api.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestViewerRoleIsForbidden(t *testing.T) {
	api := newTestAPI(t)
	jwtManager := jwtutil.NewJWTManager("router-test", time.Hour)
	token, _, err := jwtManager.GenerateToken("viewer-1", "viewer@holidaysri.lk", "Viewer", string(aggregate.RoleViewer))
	require.NoError(t, err)
	api.token = token

	status := api.do(t, http.MethodGet, fmt.Sprintf("/%s/requests", workflow.MustLookup(workflow.VariantClaim).Domain), nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestEscapedIDReachesOneRequest(t *testing.T) {
	api := newTestAPI(t)
	api.seed(t, "c/1", workflow.VariantClaim, "100")
	api.seed(t, "c", workflow.VariantClaim, "200")
	endpoints := payoutapi.Endpoints{Domain: "claim-requests"}

	var approved payoutapi.Envelope[payoutapi.PayoutRequest]
	status := api.do(t, http.MethodPost, endpoints.Approve("c/1"), payoutapi.TransitionBody{AdminNote: "Verified"}, &approved)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "c/1", approved.Data.ID)

	var other payoutapi.Envelope[payoutapi.PayoutRequest]
	status = api.do(t, http.MethodGet, endpoints.Request("c"), nil, &other)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", other.Data.Status)
}
