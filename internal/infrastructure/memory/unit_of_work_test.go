package memory

import (
	"context"
	"testing"
	"time"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/workflow"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *Store, id string) {
	t.Helper()
	req, err := aggregate.NewPayoutRequest(id, workflow.VariantClaim,
		aggregate.Requester{ID: "u-" + id, Name: "Ruwan", Email: "ruwan@example.lk"},
		[]aggregate.SourceItem{{ID: id + "-a", Amount: decimal.NewFromInt(1000)}},
		aggregate.PayoutDestination{Bank: &aggregate.BankAccount{BankName: "HNB", AccountNumber: "12", AccountName: "Ruwan"}},
		"",
	)
	require.NoError(t, err)
	require.NoError(t, store.AddPayoutRequest(context.Background(), req))
}

func status(t *testing.T, store *Store, id string) workflow.Status {
	t.Helper()
	req, err := NewFactory(store).CreateUnitOfWork().PayoutRequestRepository().GetByID(context.Background(), workflow.VariantClaim, id)
	require.NoError(t, err)
	return req.Status()
}

func TestRollbackKeepsOtherCommits(t *testing.T) {
	store := NewStore()
	factory := NewFactory(store)
	seed(t, store, "r1")
	seed(t, store, "r2")
	ctx := context.Background()

	first := factory.CreateUnitOfWork()
	require.NoError(t, first.Begin(ctx))
	r2, err := first.PayoutRequestRepository().GetByID(ctx, workflow.VariantClaim, "r2")
	require.NoError(t, err)
	require.NoError(t, r2.Reject("admin-2", "Duplicate"))
	require.NoError(t, first.PayoutRequestRepository().Save(ctx, r2))

	committed := make(chan error, 1)
	go func() {
		second := factory.CreateUnitOfWork()
		defer second.Close()
		if err := second.Begin(ctx); err != nil {
			committed <- err
			return
		}
		r1, err := second.PayoutRequestRepository().GetByID(ctx, workflow.VariantClaim, "r1")
		if err == nil {
			err = r1.Approve("admin-1", "Verified")
		}
		if err == nil {
			err = second.PayoutRequestRepository().Save(ctx, r1)
		}
		if err == nil {
			err = second.Commit(ctx)
		}
		committed <- err
	}()

	select {
	case err := <-committed:
		t.Fatalf("second transaction ran while the first was open: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Rollback(ctx))
	require.NoError(t, <-committed)

	assert.Equal(t, workflow.StatusApproved, status(t, store, "r1"))
	assert.Equal(t, workflow.StatusPending, status(t, store, "r2"))
}

func TestWritesOutsideTransactionSurviveRollback(t *testing.T) {
	store := NewStore()
	factory := NewFactory(store)
	ctx := context.Background()

	uow := factory.CreateUnitOfWork()
	require.NoError(t, uow.Begin(ctx))

	done := make(chan struct{})
	go func() {
		store.AddCampaign(aggregate.Campaign{ID: "camp-1", Title: "Flood relief"})
		close(done)
	}()

	require.NoError(t, uow.Rollback(ctx))
	<-done
	assert.True(t, store.HasCampaign("camp-1"))
}

func TestBeginStopsWhenContextEnds(t *testing.T) {
	factory := NewFactory(NewStore())

	first := factory.CreateUnitOfWork()
	require.NoError(t, first.Begin(context.Background()))
	defer first.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := factory.CreateUnitOfWork().Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseReleasesTransaction(t *testing.T) {
	store := NewStore()
	factory := NewFactory(store)
	seed(t, store, "r1")
	ctx := context.Background()

	uow := factory.CreateUnitOfWork()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.PayoutRequestRepository().Delete(ctx, "r1"))
	require.NoError(t, uow.Close())

	next := factory.CreateUnitOfWork()
	require.NoError(t, next.Begin(ctx))
	require.NoError(t, next.Commit(ctx))
	assert.Equal(t, workflow.StatusPending, status(t, store, "r1"))
}
