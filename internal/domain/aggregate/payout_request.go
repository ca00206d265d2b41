package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"holidaysri-admin/internal/domain/event"
	"holidaysri-admin/internal/domain/workflow"

	"github.com/shopspring/decimal"
)

// Requester is the account that accumulated the payout
type Requester struct {
	ID    string
	Name  string
	Email string
}

// SourceItem is one earning or donation record being claimed
type SourceItem struct {
	ID       string
	Amount   decimal.Decimal
	Origin   string
	EarnedAt time.Time
}

// BankAccount represents the requester's bank account information
type BankAccount struct {
	BankName      string
	AccountNumber string
	AccountName   string
	Branch        string
}

// ExchangeAccount is an exchange or wallet account identifier
type ExchangeAccount struct {
	Provider  string
	AccountID string
}

// PayoutDestination holds exactly one of Bank or Exchange
type PayoutDestination struct {
	Bank     *BankAccount
	Exchange *ExchangeAccount
}

var ErrInvalidDestination = errors.New("payout destination must have exactly one of bank or exchange details")

// Validate checks the one-of rule
func (d PayoutDestination) Validate() error {
	if (d.Bank == nil) == (d.Exchange == nil) {
		return ErrInvalidDestination
	}
	if d.Bank != nil && (d.Bank.BankName == "" || d.Bank.AccountNumber == "" || d.Bank.AccountName == "") {
		return fmt.Errorf("complete bank account information is required")
	}
	if d.Exchange != nil && (d.Exchange.Provider == "" || d.Exchange.AccountID == "") {
		return fmt.Errorf("exchange provider and account id are required")
	}
	return nil
}

// PayoutRequest is an admin-reviewable request to convert earnings or
// donations into an external payment
type PayoutRequest struct {
	id          string
	variant     workflow.Variant
	requester   Requester
	sourceItems []SourceItem
	totalAmount decimal.Decimal
	currency    string
	destination PayoutDestination
	campaignID  string
	status      workflow.Status
	adminNote   string
	processedBy string
	processedAt *time.Time
	paidBy      string
	paidAt      *time.Time
	paymentNote string
	version     int
	createdAt   time.Time
	updatedAt   time.Time

	uncommittedEvents []event.DomainEvent
}

// NewPayoutRequest creates a pending request. totalAmount is fixed here as the
// sum of the source items and never recomputed.
func NewPayoutRequest(
	id string,
	variant workflow.Variant,
	requester Requester,
	items []SourceItem,
	destination PayoutDestination,
	campaignID string,
) (*PayoutRequest, error) {
	def, err := workflow.Lookup(variant)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("request ID cannot be empty")
	}
	if requester.ID == "" || requester.Email == "" {
		return nil, fmt.Errorf("requester ID and email are required")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one source item is required")
	}
	total := decimal.Zero
	for _, item := range items {
		if !item.Amount.IsPositive() {
			return nil, fmt.Errorf("source item %s must have a positive amount", item.ID)
		}
		total = total.Add(item.Amount)
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}
	if variant == workflow.VariantDonationWithdrawal && campaignID == "" {
		return nil, fmt.Errorf("campaign ID is required for donation withdrawals")
	}

	now := time.Now().UTC()
	r := &PayoutRequest{
		id:          id,
		variant:     variant,
		requester:   requester,
		sourceItems: append([]SourceItem(nil), items...),
		totalAmount: total,
		currency:    def.Currency,
		destination: destination,
		campaignID:  campaignID,
		status:      workflow.StatusPending,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}

	r.raiseEvent(&event.PayoutRequestSubmitted{
		RequestID:      id,
		Variant:        string(variant),
		RequesterID:    requester.ID,
		RequesterEmail: requester.Email,
		TotalAmount:    total,
		Currency:       def.Currency,
		ItemCount:      len(items),
		Timestamp:      now,
	})

	return r, nil
}

// PayoutRequestState is the persisted form used to rebuild an aggregate
type PayoutRequestState struct {
	ID          string
	Variant     workflow.Variant
	Requester   Requester
	SourceItems []SourceItem
	TotalAmount decimal.Decimal
	Currency    string
	Destination PayoutDestination
	CampaignID  string
	Status      workflow.Status
	AdminNote   string
	ProcessedBy string
	ProcessedAt *time.Time
	PaidBy      string
	PaidAt      *time.Time
	PaymentNote string
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReconstructPayoutRequest reconstructs a request from database state
func ReconstructPayoutRequest(s PayoutRequestState) *PayoutRequest {
	return &PayoutRequest{
		id:          s.ID,
		variant:     s.Variant,
		requester:   s.Requester,
		sourceItems: s.SourceItems,
		totalAmount: s.TotalAmount,
		currency:    s.Currency,
		destination: s.Destination,
		campaignID:  s.CampaignID,
		status:      s.Status,
		adminNote:   s.AdminNote,
		processedBy: s.ProcessedBy,
		processedAt: s.ProcessedAt,
		paidBy:      s.PaidBy,
		paidAt:      s.PaidAt,
		paymentNote: s.PaymentNote,
		version:     s.Version,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
	}
}

// Snapshot returns the persistable state of the request
func (r *PayoutRequest) Snapshot() PayoutRequestState {
	return PayoutRequestState{
		ID:          r.id,
		Variant:     r.variant,
		Requester:   r.requester,
		SourceItems: r.SourceItems(),
		TotalAmount: r.totalAmount,
		Currency:    r.currency,
		Destination: r.destination,
		CampaignID:  r.campaignID,
		Status:      r.status,
		AdminNote:   r.adminNote,
		ProcessedBy: r.processedBy,
		ProcessedAt: r.processedAt,
		PaidBy:      r.paidBy,
		PaidAt:      r.paidAt,
		PaymentNote: r.paymentNote,
		Version:     r.version,
		CreatedAt:   r.createdAt,
		UpdatedAt:   r.updatedAt,
	}
}

func (r *PayoutRequest) definition() workflow.Definition {
	return workflow.MustLookup(r.variant)
}

// AvailableActions returns the transitions legal from the current status
func (r *PayoutRequest) AvailableActions() []workflow.Action {
	return r.definition().Actions(r.status)
}

// Approve moves a pending request to approved
func (r *PayoutRequest) Approve(adminID, note string) error {
	note = strings.TrimSpace(note)
	if err := r.definition().Validate(r.status, workflow.ActionApprove, workflow.Input{Note: note}); err != nil {
		return err
	}

	now := time.Now().UTC()
	r.status = workflow.StatusApproved
	r.adminNote = note
	r.processedBy = adminID
	r.processedAt = &now
	r.version++
	r.updatedAt = now

	r.raiseEvent(&event.PayoutRequestApproved{
		RequestID:      r.id,
		Variant:        string(r.variant),
		RequesterName:  r.requester.Name,
		RequesterEmail: r.requester.Email,
		TotalAmount:    r.totalAmount,
		Currency:       r.currency,
		SourceItemIDs:  r.SourceItemIDs(),
		AdminNote:      note,
		ProcessedBy:    adminID,
		EventVersion:   r.version,
		Timestamp:      now,
	})

	return nil
}

// Reject moves a pending request to rejected; a reason is always required
func (r *PayoutRequest) Reject(adminID, reason string) error {
	reason = strings.TrimSpace(reason)
	if err := r.definition().Validate(r.status, workflow.ActionReject, workflow.Input{Note: reason}); err != nil {
		return err
	}

	now := time.Now().UTC()
	r.status = workflow.StatusRejected
	r.adminNote = reason
	r.processedBy = adminID
	r.processedAt = &now
	r.version++
	r.updatedAt = now

	r.raiseEvent(&event.PayoutRequestRejected{
		RequestID:      r.id,
		Variant:        string(r.variant),
		RequesterName:  r.requester.Name,
		RequesterEmail: r.requester.Email,
		TotalAmount:    r.totalAmount,
		Currency:       r.currency,
		SourceItemIDs:  r.SourceItemIDs(),
		Reason:         reason,
		ProcessedBy:    adminID,
		EventVersion:   r.version,
		Timestamp:      now,
	})

	return nil
}

// MarkPaid moves an approved donation withdrawal to paid. The caller must have
// collected the admin's confirmation.
func (r *PayoutRequest) MarkPaid(adminID, paymentNote string, confirmed bool) error {
	paymentNote = strings.TrimSpace(paymentNote)
	in := workflow.Input{Note: paymentNote, Confirmed: confirmed}
	if err := r.definition().Validate(r.status, workflow.ActionMarkPaid, in); err != nil {
		return err
	}

	now := time.Now().UTC()
	r.status = workflow.StatusPaid
	r.paidBy = adminID
	r.paidAt = &now
	r.paymentNote = paymentNote
	r.version++
	r.updatedAt = now

	r.raiseEvent(&event.PayoutRequestPaid{
		RequestID:      r.id,
		Variant:        string(r.variant),
		CampaignID:     r.campaignID,
		RequesterName:  r.requester.Name,
		RequesterEmail: r.requester.Email,
		TotalAmount:    r.totalAmount,
		Currency:       r.currency,
		PaymentNote:    paymentNote,
		PaidBy:         adminID,
		EventVersion:   r.version,
		Timestamp:      now,
	})

	return nil
}

func (r *PayoutRequest) raiseEvent(ev event.DomainEvent) {
	r.uncommittedEvents = append(r.uncommittedEvents, ev)
}

func (r *PayoutRequest) GetUncommittedEvents() []event.DomainEvent {
	return r.uncommittedEvents
}

func (r *PayoutRequest) MarkEventsAsCommitted() {
	r.uncommittedEvents = nil
}

// SourceItemIDs returns the ids of the claimed records in order
func (r *PayoutRequest) SourceItemIDs() []string {
	ids := make([]string, len(r.sourceItems))
	for i, item := range r.sourceItems {
		ids[i] = item.ID
	}
	return ids
}

// Getters
func (r *PayoutRequest) ID() string                { return r.id }
func (r *PayoutRequest) Variant() workflow.Variant { return r.variant }
func (r *PayoutRequest) Requester() Requester      { return r.requester }
func (r *PayoutRequest) SourceItems() []SourceItem {
	return append([]SourceItem(nil), r.sourceItems...)
}
func (r *PayoutRequest) TotalAmount() decimal.Decimal   { return r.totalAmount }
func (r *PayoutRequest) Currency() string               { return r.currency }
func (r *PayoutRequest) Destination() PayoutDestination { return r.destination }
func (r *PayoutRequest) CampaignID() string             { return r.campaignID }
func (r *PayoutRequest) Status() workflow.Status        { return r.status }
func (r *PayoutRequest) AdminNote() string              { return r.adminNote }
func (r *PayoutRequest) ProcessedBy() string            { return r.processedBy }
func (r *PayoutRequest) ProcessedAt() *time.Time        { return r.processedAt }
func (r *PayoutRequest) PaidBy() string                 { return r.paidBy }
func (r *PayoutRequest) PaidAt() *time.Time             { return r.paidAt }
func (r *PayoutRequest) PaymentNote() string            { return r.paymentNote }
func (r *PayoutRequest) Version() int                   { return r.version }
func (r *PayoutRequest) CreatedAt() time.Time           { return r.createdAt }
func (r *PayoutRequest) UpdatedAt() time.Time           { return r.updatedAt }

// Entity interface implementation
func (r *PayoutRequest) GetID() string      { return r.id }
func (r *PayoutRequest) GetVersion() int    { return r.version }
func (r *PayoutRequest) SetVersion(ver int) { r.version = ver }
