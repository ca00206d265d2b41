package services

import (
	"context"

	"holidaysri-admin/internal/application/command"
	"holidaysri-admin/internal/application/query"
	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/domain/workflow"
)

// PayoutService orchestrates payout request operations for every variant
type PayoutService struct {
	// Command handlers (using Unit of Work)
	approveHandler  *command.ApprovePayoutRequestHandler
	rejectHandler   *command.RejectPayoutRequestHandler
	markPaidHandler *command.MarkPayoutRequestPaidHandler

	// Query handlers
	listHandler    *query.ListPayoutRequestsHandler
	getHandler     *query.GetPayoutRequestHandler
	statsHandler   *query.GetPayoutStatsHandler
	historyHandler *query.GetPayoutHistoryHandler
}

// NewPayoutService creates a new payout service
func NewPayoutService(
	approveHandler *command.ApprovePayoutRequestHandler,
	rejectHandler *command.RejectPayoutRequestHandler,
	markPaidHandler *command.MarkPayoutRequestPaidHandler,
	listHandler *query.ListPayoutRequestsHandler,
	getHandler *query.GetPayoutRequestHandler,
	statsHandler *query.GetPayoutStatsHandler,
	historyHandler *query.GetPayoutHistoryHandler,
) *PayoutService {
	return &PayoutService{
		approveHandler:  approveHandler,
		rejectHandler:   rejectHandler,
		markPaidHandler: markPaidHandler,
		listHandler:     listHandler,
		getHandler:      getHandler,
		statsHandler:    statsHandler,
		historyHandler:  historyHandler,
	}
}

// Command operations

func (s *PayoutService) Approve(ctx context.Context, cmd command.ApprovePayoutRequest) (*aggregate.PayoutRequest, error) {
	return s.approveHandler.Handle(ctx, &cmd)
}

func (s *PayoutService) Reject(ctx context.Context, cmd command.RejectPayoutRequest) (*aggregate.PayoutRequest, error) {
	return s.rejectHandler.Handle(ctx, &cmd)
}

// MarkPaid settles a donation withdrawal and removes its campaign
func (s *PayoutService) MarkPaid(ctx context.Context, cmd command.MarkPayoutRequestPaid) (*command.MarkPaidResult, error) {
	return s.markPaidHandler.Handle(ctx, &cmd)
}

// Query operations

func (s *PayoutService) List(ctx context.Context, q query.ListPayoutRequestsQuery) (*query.PayoutRequestPage, error) {
	return s.listHandler.Handle(ctx, &q)
}

func (s *PayoutService) Get(ctx context.Context, variant workflow.Variant, id string) (*aggregate.PayoutRequest, error) {
	return s.getHandler.Handle(ctx, &query.GetPayoutRequestQuery{Variant: variant, RequestID: id})
}

func (s *PayoutService) Stats(ctx context.Context, variant workflow.Variant) (map[workflow.Status]repository.StatusTotals, error) {
	return s.statsHandler.Handle(ctx, &query.GetPayoutStatsQuery{Variant: variant})
}

func (s *PayoutService) History(ctx context.Context, id string) ([]repository.EventRecord, error) {
	return s.historyHandler.Handle(ctx, &query.GetPayoutHistoryQuery{RequestID: id})
}
