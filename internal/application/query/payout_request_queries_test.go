package query

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/internal/infrastructure/memory"
	apperrors "holidaysri-admin/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *memory.Store, id string, variant workflow.Variant, name string, amounts ...string) *aggregate.PayoutRequest {
	t.Helper()
	items := make([]aggregate.SourceItem, len(amounts))
	for i, a := range amounts {
		items[i] = aggregate.SourceItem{ID: fmt.Sprintf("%s-%d", id, i), Amount: decimal.RequireFromString(a)}
	}
	campaign := ""
	if variant == workflow.VariantDonationWithdrawal {
		campaign = "camp-" + id
	}
	req, err := aggregate.NewPayoutRequest(id, variant,
		aggregate.Requester{ID: "u-" + id, Name: name, Email: id + "@example.lk"},
		items,
		aggregate.PayoutDestination{Exchange: &aggregate.ExchangeAccount{Provider: "Binance", AccountID: "B-" + id}},
		campaign,
	)
	require.NoError(t, err)
	require.NoError(t, store.AddPayoutRequest(context.Background(), req))
	return req
}

func TestStatsAggregatesPerStatus(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "c1", workflow.VariantClaim, "Amali", "1000")
	seed(t, store, "c2", workflow.VariantClaim, "Kasun", "2500")
	seed(t, store, "c3", workflow.VariantClaim, "Ruwan", "750")
	seed(t, store, "h1", workflow.VariantHSCEarned, "Amali", "99")

	h := NewGetPayoutStatsHandler(memory.NewFactory(store))
	stats, err := h.Handle(context.Background(), &GetPayoutStatsQuery{Variant: workflow.VariantClaim})
	require.NoError(t, err)

	assert.Len(t, stats, 3)
	assert.EqualValues(t, 3, stats[workflow.StatusPending].Count)
	assert.True(t, stats[workflow.StatusPending].TotalAmount.Equal(decimal.NewFromInt(4250)))
	assert.EqualValues(t, 0, stats[workflow.StatusApproved].Count)
	assert.True(t, stats[workflow.StatusRejected].TotalAmount.IsZero())
}

func TestStatsIncludesPaidForDonations(t *testing.T) {
	h := NewGetPayoutStatsHandler(memory.NewFactory(memory.NewStore()))
	stats, err := h.Handle(context.Background(), &GetPayoutStatsQuery{Variant: workflow.VariantDonationWithdrawal})
	require.NoError(t, err)
	assert.Contains(t, stats, workflow.StatusPaid)
}

func TestListFiltersAndPaginates(t *testing.T) {
	store := memory.NewStore()
	for i := 0; i < 12; i++ {
		seed(t, store, fmt.Sprintf("c%02d", i), workflow.VariantClaim, "Requester", "10")
	}
	seed(t, store, "cz", workflow.VariantClaim, "Zahra Nazeer", "10")
	h := NewListPayoutRequestsHandler(memory.NewFactory(store))

	page, err := h.Handle(context.Background(), &ListPayoutRequestsQuery{Variant: workflow.VariantClaim, Status: "all", Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 13, page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Items, 5)

	page, err = h.Handle(context.Background(), &ListPayoutRequestsQuery{Variant: workflow.VariantClaim, Search: "zahra"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "cz", page.Items[0].ID())

	page, err = h.Handle(context.Background(), &ListPayoutRequestsQuery{Variant: workflow.VariantClaim, Status: "approved"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.EqualValues(t, 0, page.Total)
	assert.Equal(t, 0, page.Pages)
}

func TestListRejectsStatusOutsideVariant(t *testing.T) {
	h := NewListPayoutRequestsHandler(memory.NewFactory(memory.NewStore()))
	_, err := h.Handle(context.Background(), &ListPayoutRequestsQuery{Variant: workflow.VariantClaim, Status: "paid"})
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestGetAndHistory(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "h1", workflow.VariantHSCEarned, "Amali", "12.5", "7.5")
	factory := memory.NewFactory(store)

	req, err := NewGetPayoutRequestHandler(factory).Handle(context.Background(), &GetPayoutRequestQuery{Variant: workflow.VariantHSCEarned, RequestID: "h1"})
	require.NoError(t, err)
	assert.True(t, req.TotalAmount().Equal(decimal.NewFromInt(20)))

	_, err = NewGetPayoutRequestHandler(factory).Handle(context.Background(), &GetPayoutRequestQuery{Variant: workflow.VariantClaim, RequestID: "h1"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Status)

	history, err := NewGetPayoutHistoryHandler(factory).Handle(context.Background(), &GetPayoutHistoryQuery{RequestID: "h1"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].EventVersion)
}
