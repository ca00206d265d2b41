package notification

import (
	"context"
	"fmt"

	"holidaysri-admin/internal/domain/event"
	"holidaysri-admin/internal/domain/workflow"

	"github.com/rs/zerolog"
)

// PayoutNotifier emails requesters when an admin decides on their request
type PayoutNotifier struct {
	mailer Mailer
	log    zerolog.Logger
}

func NewPayoutNotifier(mailer Mailer, log zerolog.Logger) *PayoutNotifier {
	return &PayoutNotifier{mailer: mailer, log: log.With().Str("component", "payout_notifier").Logger()}
}

// EventTypes lists the events Handle reacts to
func (n *PayoutNotifier) EventTypes() []string {
	return []string{event.TypePayoutRequestApproved, event.TypePayoutRequestRejected}
}

func kindOf(variant string) string {
	def, err := workflow.Lookup(workflow.Variant(variant))
	if err != nil {
		return "payout request"
	}
	return def.Label
}

func (n *PayoutNotifier) Handle(ctx context.Context, ev event.DomainEvent) error {
	var (
		msg Message
		err error
	)

	switch e := ev.(type) {
	case *event.PayoutRequestApproved:
		msg, err = ApprovedEmail(e.RequesterEmail, RequestMail{
			Name:     e.RequesterName,
			Kind:     kindOf(e.Variant),
			Amount:   e.TotalAmount,
			Currency: e.Currency,
			Note:     e.AdminNote,
		})
	case *event.PayoutRequestRejected:
		msg, err = RejectedEmail(e.RequesterEmail, RequestMail{
			Name:     e.RequesterName,
			Kind:     kindOf(e.Variant),
			Amount:   e.TotalAmount,
			Currency: e.Currency,
			Note:     e.Reason,
		})
	default:
		return nil
	}
	if err != nil {
		return err
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify requester of %s: %w", ev.AggregateID(), err)
	}
	n.log.Info().Str("event_type", ev.EventType()).Str("request_id", ev.AggregateID()).Msg("requester notified")
	return nil
}
