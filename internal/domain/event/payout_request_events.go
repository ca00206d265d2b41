package event

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypePayoutRequestSubmitted = "PayoutRequestSubmitted"
	TypePayoutRequestApproved  = "PayoutRequestApproved"
	TypePayoutRequestRejected  = "PayoutRequestRejected"
	TypePayoutRequestPaid      = "PayoutRequestPaid"
)

// PayoutRequestSubmitted event - fired when a requester files a payout request
type PayoutRequestSubmitted struct {
	RequestID      string          `json:"request_id"`
	Variant        string          `json:"variant"`
	RequesterID    string          `json:"requester_id"`
	RequesterEmail string          `json:"requester_email"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	ItemCount      int             `json:"item_count"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (e *PayoutRequestSubmitted) EventType() string     { return TypePayoutRequestSubmitted }
func (e *PayoutRequestSubmitted) AggregateID() string   { return e.RequestID }
func (e *PayoutRequestSubmitted) OccurredAt() time.Time { return e.Timestamp }
func (e *PayoutRequestSubmitted) Version() int          { return 1 }

// PayoutRequestApproved event - fired when an admin approves a pending request
type PayoutRequestApproved struct {
	RequestID      string          `json:"request_id"`
	Variant        string          `json:"variant"`
	RequesterName  string          `json:"requester_name"`
	RequesterEmail string          `json:"requester_email"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	SourceItemIDs  []string        `json:"source_item_ids"`
	AdminNote      string          `json:"admin_note"`
	ProcessedBy    string          `json:"processed_by"`
	EventVersion   int             `json:"version"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (e *PayoutRequestApproved) EventType() string     { return TypePayoutRequestApproved }
func (e *PayoutRequestApproved) AggregateID() string   { return e.RequestID }
func (e *PayoutRequestApproved) OccurredAt() time.Time { return e.Timestamp }
func (e *PayoutRequestApproved) Version() int          { return e.EventVersion }

// PayoutRequestRejected event - fired when an admin rejects a pending request
type PayoutRequestRejected struct {
	RequestID      string          `json:"request_id"`
	Variant        string          `json:"variant"`
	RequesterName  string          `json:"requester_name"`
	RequesterEmail string          `json:"requester_email"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	SourceItemIDs  []string        `json:"source_item_ids"`
	Reason         string          `json:"reason"`
	ProcessedBy    string          `json:"processed_by"`
	EventVersion   int             `json:"version"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (e *PayoutRequestRejected) EventType() string     { return TypePayoutRequestRejected }
func (e *PayoutRequestRejected) AggregateID() string   { return e.RequestID }
func (e *PayoutRequestRejected) OccurredAt() time.Time { return e.Timestamp }
func (e *PayoutRequestRejected) Version() int          { return e.EventVersion }

// PayoutRequestPaid event - fired when an approved donation withdrawal is paid out
type PayoutRequestPaid struct {
	RequestID      string          `json:"request_id"`
	Variant        string          `json:"variant"`
	CampaignID     string          `json:"campaign_id"`
	RequesterName  string          `json:"requester_name"`
	RequesterEmail string          `json:"requester_email"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	PaymentNote    string          `json:"payment_note"`
	PaidBy         string          `json:"paid_by"`
	EventVersion   int             `json:"version"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (e *PayoutRequestPaid) EventType() string     { return TypePayoutRequestPaid }
func (e *PayoutRequestPaid) AggregateID() string   { return e.RequestID }
func (e *PayoutRequestPaid) OccurredAt() time.Time { return e.Timestamp }
func (e *PayoutRequestPaid) Version() int          { return e.EventVersion }
