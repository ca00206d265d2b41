package command

import (
	"context"
	stderrors "errors"
	"fmt"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/event"
	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/internal/infrastructure/bus"
	"holidaysri-admin/internal/infrastructure/cache"
	"holidaysri-admin/internal/infrastructure/notification"
	"holidaysri-admin/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AssetRemover deletes hosted images by public ID or URL
type AssetRemover interface {
	DeleteFiles(ctx context.Context, refs []string) error
}

// MarkPayoutRequestPaidHandler settles an approved donation withdrawal. In one
// transaction it records the paid fund, then deletes the campaign, its
// advertisement and the request itself. After commit it emails the requester
// and removes the campaign images.
type MarkPayoutRequestPaidHandler struct {
	transitioner
	mailer notification.Mailer
	assets AssetRemover
}

// NewMarkPayoutRequestPaidHandler wires the handler. assets may be nil when no
// asset host is configured.
func NewMarkPayoutRequestPaidHandler(
	uowFactory repository.UnitOfWorkFactory,
	locker cache.Locker,
	eventBus bus.EventBus,
	mailer notification.Mailer,
	assets AssetRemover,
	log zerolog.Logger,
) *MarkPayoutRequestPaidHandler {
	return &MarkPayoutRequestPaidHandler{
		transitioner: transitioner{
			uowFactory: uowFactory,
			locker:     locker,
			eventBus:   eventBus,
			lockTTL:    DefaultLockTTL,
			log:        log,
		},
		mailer: mailer,
		assets: assets,
	}
}

func (h *MarkPayoutRequestPaidHandler) Handle(ctx context.Context, cmd *MarkPayoutRequestPaid) (*MarkPaidResult, error) {
	if cmd == nil {
		return nil, errors.NewValidationError("command cannot be nil")
	}
	if cmd.AdminID == "" {
		return nil, errors.NewUnauthorizedError("admin id is required")
	}

	var (
		events []event.DomainEvent
		fund   *aggregate.PaidFund
		images []string
	)

	req, err := h.run(ctx, workflow.VariantDonationWithdrawal, cmd.RequestID, workflow.ActionMarkPaid,
		func(ctx context.Context, uow repository.UnitOfWork, req *aggregate.PayoutRequest) error {
			if err := req.MarkPaid(cmd.AdminID, cmd.PaymentNote, cmd.Confirmed); err != nil {
				return err
			}

			campaign, err := uow.CampaignRepository().GetByID(ctx, req.CampaignID())
			switch {
			case stderrors.Is(err, repository.ErrNotFound):
				h.log.Warn().Str("campaign_id", req.CampaignID()).Msg("campaign already removed")
				campaign = nil
			case err != nil:
				return fmt.Errorf("failed to load campaign: %w", err)
			}

			fund, err = aggregate.NewPaidFund(uuid.New().String(), req, campaign)
			if err != nil {
				return err
			}
			if err := uow.PaidFundRepository().Save(ctx, fund); err != nil {
				return fmt.Errorf("failed to record paid fund: %w", err)
			}

			if events, err = saveRequest(ctx, uow, req); err != nil {
				return err
			}

			if campaign != nil {
				images = append(images, campaign.ImagePublicIDs...)
				if campaign.AdvertisementID != "" {
					ad, err := uow.AdvertisementRepository().GetByID(ctx, campaign.AdvertisementID)
					switch {
					case err == nil:
						images = append(images, ad.ImagePublicIDs...)
						if err := uow.AdvertisementRepository().Delete(ctx, ad.ID); err != nil {
							return fmt.Errorf("failed to delete advertisement: %w", err)
						}
					case !stderrors.Is(err, repository.ErrNotFound):
						return fmt.Errorf("failed to load advertisement: %w", err)
					}
				}
				if err := uow.CampaignRepository().Delete(ctx, campaign.ID); err != nil {
					return fmt.Errorf("failed to delete campaign: %w", err)
				}
			}

			if err := uow.PayoutRequestRepository().Delete(ctx, req.ID()); err != nil {
				return fmt.Errorf("failed to delete request: %w", err)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	result := &MarkPaidResult{
		RequestID:       req.ID(),
		CampaignID:      req.CampaignID(),
		AdvertisementID: fund.AdvertisementID,
		PaidFundID:      fund.ID,
		EmailSent:       h.sendConfirmation(ctx, req),
	}

	if h.assets != nil && len(images) > 0 {
		if err := h.assets.DeleteFiles(ctx, images); err != nil {
			h.log.Warn().Err(err).Str("campaign_id", req.CampaignID()).Msg("failed to remove campaign images")
		}
	}

	h.publish(ctx, events)
	return result, nil
}

// sendConfirmation reports whether the requester was emailed. The payout
// stands either way.
func (h *MarkPayoutRequestPaidHandler) sendConfirmation(ctx context.Context, req *aggregate.PayoutRequest) bool {
	msg, err := notification.PaymentConfirmationEmail(req.Requester().Email, notification.RequestMail{
		Name:     req.Requester().Name,
		Kind:     workflow.MustLookup(req.Variant()).Label,
		Amount:   req.TotalAmount(),
		Currency: req.Currency(),
		Note:     req.PaymentNote(),
	})
	if err == nil {
		err = h.mailer.Send(ctx, msg)
	}
	if err != nil {
		h.log.Warn().Err(err).Str("request_id", req.ID()).Msg("payment confirmation email not sent")
		return false
	}
	return true
}
