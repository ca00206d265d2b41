package services

import (
	"context"
	"testing"
	"time"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/internal/infrastructure/memory"
	"holidaysri-admin/internal/infrastructure/notification"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureMailer struct {
	sent []notification.Message
}

func (m *captureMailer) Send(_ context.Context, msg notification.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func addClaim(t *testing.T, store *memory.Store, id string, amount int64) {
	t.Helper()
	req, err := aggregate.NewPayoutRequest(id, workflow.VariantClaim,
		aggregate.Requester{ID: "u1", Name: "Amali", Email: "amali@example.lk"},
		[]aggregate.SourceItem{{ID: id + "-e", Amount: decimal.NewFromInt(amount)}},
		aggregate.PayoutDestination{Bank: &aggregate.BankAccount{BankName: "HNB", AccountNumber: "1", AccountName: "Amali"}},
		"",
	)
	require.NoError(t, err)
	require.NoError(t, store.AddPayoutRequest(context.Background(), req))
}

func TestDigestSummarisesPendingRequests(t *testing.T) {
	store := memory.NewStore()
	addClaim(t, store, "c1", 1000)
	addClaim(t, store, "c2", 250)

	mailer := &captureMailer{}
	svc := NewPendingDigestService(memory.NewFactory(store), mailer, DigestConfig{
		StaleAfter: 48 * time.Hour,
		Recipients: []string{"finance@holidaysri.lk", "ops@holidaysri.lk"},
	}, zerolog.Nop())
	svc.now = func() time.Time { return time.Now().Add(72 * time.Hour) }

	digest, err := svc.BuildDigest(context.Background())
	require.NoError(t, err)
	require.Len(t, digest.Lines, 3)
	assert.Equal(t, "claim request", digest.Lines[0].Label)
	assert.EqualValues(t, 2, digest.Lines[0].Count)
	assert.True(t, digest.Lines[0].Amount.Equal(decimal.NewFromInt(1250)))
	assert.EqualValues(t, 2, digest.Lines[0].Stale)
	assert.EqualValues(t, 0, digest.Lines[1].Count)

	require.NoError(t, svc.SendDigest(context.Background()))
	require.Len(t, mailer.sent, 2)
	assert.Contains(t, mailer.sent[0].HTML, "claim request: 2 pending")
}

func TestDigestSkippedWhenNothingPending(t *testing.T) {
	mailer := &captureMailer{}
	svc := NewPendingDigestService(memory.NewFactory(memory.NewStore()), mailer, DigestConfig{
		Recipients: []string{"finance@holidaysri.lk"},
	}, zerolog.Nop())

	require.NoError(t, svc.SendDigest(context.Background()))
	assert.Empty(t, mailer.sent)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	svc := NewPendingDigestService(memory.NewFactory(memory.NewStore()), &captureMailer{}, DigestConfig{
		Schedule:   "not a schedule",
		Recipients: []string{"finance@holidaysri.lk"},
	}, zerolog.Nop())
	assert.Error(t, svc.Start(context.Background()))
	svc.Stop()
}
