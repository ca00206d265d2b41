package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"holidaysri-admin/internal/domain/event"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventBusJoinsHandlerErrors(t *testing.T) {
	b := NewInMemoryEventBus()
	var calls int
	boom := errors.New("smtp down")

	require.NoError(t, SubscribeAll(b, EventHandlerFunc(func(ctx context.Context, e event.DomainEvent) error {
		calls++
		return boom
	}), event.TypePayoutRequestApproved, event.TypePayoutRequestRejected))

	err := b.Publish(context.Background(), &event.PayoutRequestApproved{RequestID: "r1"})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, b.Publish(context.Background(), &event.PayoutRequestPaid{RequestID: "r1"}))
	assert.Equal(t, 1, calls)
}

func TestAsyncEventBusSurvivesCancelledPublisher(t *testing.T) {
	b := NewAsyncEventBus(zerolog.Nop())
	var seen atomic.Int32

	require.NoError(t, b.Subscribe(event.TypePayoutRequestPaid, EventHandlerFunc(func(ctx context.Context, e event.DomainEvent) error {
		if ctx.Err() == nil {
			seen.Add(1)
		}
		return nil
	})))
	require.NoError(t, b.Subscribe(event.TypePayoutRequestPaid, EventHandlerFunc(func(ctx context.Context, e event.DomainEvent) error {
		panic("handler bug")
	})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, b.Publish(ctx, &event.PayoutRequestPaid{RequestID: "r2"}))
	require.NoError(t, b.Stop())

	assert.Equal(t, int32(1), seen.Load())
}
