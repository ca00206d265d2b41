package repository

import (
	"context"
	"errors"
	"time"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/workflow"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

// PayoutRequestFilter narrows a listing. An empty Status means all statuses.
type PayoutRequestFilter struct {
	Variant workflow.Variant
	Status  workflow.Status
	Search  string // requester name or email, case-insensitive substring
	Offset  int
	Limit   int
}

// StatusTotals is one tile of the stats dashboard
type StatusTotals struct {
	Count       int64
	TotalAmount decimal.Decimal
}

// EventRecord is a stored entry of a request's audit trail
type EventRecord struct {
	AggregateID  string
	EventType    string
	EventVersion int
	OccurredAt   time.Time
	Data         map[string]interface{}
}

// PayoutRequestRepository persists payout requests and their event trail
type PayoutRequestRepository interface {
	// Save inserts a new request or updates an existing one. Updates succeed only
	// when the stored version equals the version the aggregate was loaded at;
	// otherwise ErrVersionConflict is returned.
	Save(ctx context.Context, req *aggregate.PayoutRequest) error
	GetByID(ctx context.Context, variant workflow.Variant, id string) (*aggregate.PayoutRequest, error)
	List(ctx context.Context, filter PayoutRequestFilter) ([]*aggregate.PayoutRequest, int64, error)
	Stats(ctx context.Context, variant workflow.Variant) (map[workflow.Status]StatusTotals, error)
	CountOlderThan(ctx context.Context, variant workflow.Variant, status workflow.Status, before time.Time) (int64, error)
	Delete(ctx context.Context, id string) error

	GetEvents(ctx context.Context, aggregateID string) ([]EventRecord, error)
}

// EarningRepository tracks the earning/donation records claimed by requests
type EarningRepository interface {
	// MarkSettled flags the records as paid out by requestID
	MarkSettled(ctx context.Context, variant workflow.Variant, ids []string, requestID string) error
	// Release unlocks the records so they can be claimed again
	Release(ctx context.Context, variant workflow.Variant, ids []string) error
}

type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*aggregate.Campaign, error)
	Delete(ctx context.Context, id string) error
}

type AdvertisementRepository interface {
	GetByID(ctx context.Context, id string) (*aggregate.Advertisement, error)
	Delete(ctx context.Context, id string) error
}

type PaidFundRepository interface {
	Save(ctx context.Context, fund *aggregate.PaidFund) error
	GetByRequestID(ctx context.Context, requestID string) (*aggregate.PaidFund, error)
}

type AdminRepository interface {
	Save(ctx context.Context, admin *aggregate.Admin) error
	GetByEmail(ctx context.Context, email string) (*aggregate.Admin, error)
	GetByID(ctx context.Context, id string) (*aggregate.Admin, error)
}
