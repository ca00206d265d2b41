package query

import (
	"context"
	stderrors "errors"
	"strings"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/pkg/errors"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListPayoutRequestsQuery represents one page of a variant's listing.
// Status "" or "all" means every status.
type ListPayoutRequestsQuery struct {
	Variant workflow.Variant
	Status  string
	Search  string
	Page    int
	Limit   int
}

// PayoutRequestPage is a page of requests in backend order
type PayoutRequestPage struct {
	Items []*aggregate.PayoutRequest
	Page  int
	Pages int
	Total int64
}

// ListPayoutRequestsHandler handles listing queries
type ListPayoutRequestsHandler struct {
	uowFactory repository.UnitOfWorkFactory
}

func NewListPayoutRequestsHandler(uowFactory repository.UnitOfWorkFactory) *ListPayoutRequestsHandler {
	return &ListPayoutRequestsHandler{uowFactory: uowFactory}
}

func (h *ListPayoutRequestsHandler) Handle(ctx context.Context, q *ListPayoutRequestsQuery) (*PayoutRequestPage, error) {
	if q == nil {
		return nil, errors.NewValidationError("query cannot be nil")
	}
	def, err := workflow.Lookup(q.Variant)
	if err != nil {
		return nil, errors.NewNotFoundError("workflow")
	}
	status, err := def.ParseStatus(q.Status)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	uow := h.uowFactory.CreateUnitOfWork()
	defer uow.Close()

	items, total, err := uow.PayoutRequestRepository().List(ctx, repository.PayoutRequestFilter{
		Variant: q.Variant,
		Status:  status,
		Search:  strings.TrimSpace(q.Search),
		Offset:  (page - 1) * limit,
		Limit:   limit,
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to list payout requests")
	}

	return &PayoutRequestPage{
		Items: items,
		Page:  page,
		Pages: int((total + int64(limit) - 1) / int64(limit)),
		Total: total,
	}, nil
}

// GetPayoutRequestQuery represents a query for a single request
type GetPayoutRequestQuery struct {
	Variant   workflow.Variant
	RequestID string
}

// GetPayoutRequestHandler handles single-request queries
type GetPayoutRequestHandler struct {
	uowFactory repository.UnitOfWorkFactory
}

func NewGetPayoutRequestHandler(uowFactory repository.UnitOfWorkFactory) *GetPayoutRequestHandler {
	return &GetPayoutRequestHandler{uowFactory: uowFactory}
}

func (h *GetPayoutRequestHandler) Handle(ctx context.Context, q *GetPayoutRequestQuery) (*aggregate.PayoutRequest, error) {
	if q == nil || q.RequestID == "" {
		return nil, errors.NewValidationError("request id is required")
	}

	uow := h.uowFactory.CreateUnitOfWork()
	defer uow.Close()

	req, err := uow.PayoutRequestRepository().GetByID(ctx, q.Variant, q.RequestID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewNotFoundError("payout request")
		}
		return nil, errors.NewInternalError("failed to load payout request")
	}
	return req, nil
}

// GetPayoutStatsQuery asks for the per-status totals of a variant
type GetPayoutStatsQuery struct {
	Variant workflow.Variant
}

// GetPayoutStatsHandler serves the dashboard tiles. Every status of the
// variant is present in the result, zero-valued when it has no requests.
type GetPayoutStatsHandler struct {
	uowFactory repository.UnitOfWorkFactory
}

func NewGetPayoutStatsHandler(uowFactory repository.UnitOfWorkFactory) *GetPayoutStatsHandler {
	return &GetPayoutStatsHandler{uowFactory: uowFactory}
}

func (h *GetPayoutStatsHandler) Handle(ctx context.Context, q *GetPayoutStatsQuery) (map[workflow.Status]repository.StatusTotals, error) {
	if q == nil {
		return nil, errors.NewValidationError("query cannot be nil")
	}
	def, err := workflow.Lookup(q.Variant)
	if err != nil {
		return nil, errors.NewNotFoundError("workflow")
	}

	uow := h.uowFactory.CreateUnitOfWork()
	defer uow.Close()

	stats, err := uow.PayoutRequestRepository().Stats(ctx, q.Variant)
	if err != nil {
		return nil, errors.NewInternalError("failed to aggregate payout stats")
	}

	out := make(map[workflow.Status]repository.StatusTotals, len(def.Statuses))
	for _, s := range def.Statuses {
		totals, ok := stats[s]
		if !ok {
			totals = repository.StatusTotals{TotalAmount: decimal.Zero}
		}
		out[s] = totals
	}
	return out, nil
}

// GetPayoutHistoryQuery asks for a request's audit trail
type GetPayoutHistoryQuery struct {
	RequestID string
}

// GetPayoutHistoryHandler returns stored events oldest first. The trail
// outlives the request, so paid donation withdrawals keep their history.
type GetPayoutHistoryHandler struct {
	uowFactory repository.UnitOfWorkFactory
}

func NewGetPayoutHistoryHandler(uowFactory repository.UnitOfWorkFactory) *GetPayoutHistoryHandler {
	return &GetPayoutHistoryHandler{uowFactory: uowFactory}
}

func (h *GetPayoutHistoryHandler) Handle(ctx context.Context, q *GetPayoutHistoryQuery) ([]repository.EventRecord, error) {
	if q == nil || q.RequestID == "" {
		return nil, errors.NewValidationError("request id is required")
	}

	uow := h.uowFactory.CreateUnitOfWork()
	defer uow.Close()

	records, err := uow.PayoutRequestRepository().GetEvents(ctx, q.RequestID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load request history")
	}
	if len(records) == 0 {
		return nil, errors.NewNotFoundError("payout request history")
	}
	return records, nil
}
