// Package payoutapi holds the JSON wire types of the payout admin API. The
// HTTP server encodes them and the console decodes them.
package payoutapi

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Envelope is the response shape of every endpoint
type Envelope[T any] struct {
	RequestID string    `json:"request_id"`
	Success   bool      `json:"success"`
	Data      T         `json:"data"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError is the error body of a failed call
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Requester struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SourceItem struct {
	ID       string          `json:"_id"`
	Amount   decimal.Decimal `json:"amount"`
	Origin   string          `json:"origin,omitempty"`
	EarnedAt *time.Time      `json:"earnedAt,omitempty"`
}

type BankDetails struct {
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	Branch        string `json:"branch,omitempty"`
}

type ExchangeDetails struct {
	Provider  string `json:"provider"`
	AccountID string `json:"accountId"`
}

// PayoutRequest is a request as listed and returned by transitions
type PayoutRequest struct {
	ID               string           `json:"_id"`
	Variant          string           `json:"variant"`
	Requester        Requester        `json:"requester"`
	SourceItems      []SourceItem     `json:"sourceItems"`
	TotalAmount      decimal.Decimal  `json:"totalAmount"`
	Currency         string           `json:"currency"`
	BankDetails      *BankDetails     `json:"bankDetails,omitempty"`
	ExchangeDetails  *ExchangeDetails `json:"exchangeDetails,omitempty"`
	CampaignID       string           `json:"campaignId,omitempty"`
	Status           string           `json:"status"`
	AdminNote        string           `json:"adminNote,omitempty"`
	ProcessedBy      string           `json:"processedBy,omitempty"`
	ProcessedAt      *time.Time       `json:"processedAt,omitempty"`
	PaidBy           string           `json:"paidBy,omitempty"`
	PaidAt           *time.Time       `json:"paidAt,omitempty"`
	PaymentNote      string           `json:"paymentNote,omitempty"`
	AvailableActions []string         `json:"availableActions"`
	Version          int              `json:"version"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
}

// ListPage is the body of a listing call
type ListPage struct {
	Items      []PayoutRequest `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

type StatusTotals struct {
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Stats maps a status name to its totals
type Stats map[string]StatusTotals

// TransitionBody is sent with approve and reject
type TransitionBody struct {
	AdminNote string `json:"adminNote"`
}

// UpdateStatusBody is the single-endpoint form of approve/reject
type UpdateStatusBody struct {
	Status    string `json:"status" validate:"required,oneof=approved rejected"`
	AdminNote string `json:"adminNote"`
}

type MarkPaidBody struct {
	PaymentNote string `json:"paymentNote"`
}

type MarkPaidResult struct {
	RequestID       string `json:"requestId"`
	CampaignID      string `json:"campaignId"`
	AdvertisementID string `json:"advertisementId,omitempty"`
	PaidFundID      string `json:"paidFundId,omitempty"`
	EmailSent       bool   `json:"emailSent"`
}

// HistoryEntry is one audit trail event
type HistoryEntry struct {
	EventType  string                 `json:"eventType"`
	Version    int                    `json:"version"`
	OccurredAt time.Time              `json:"occurredAt"`
	Data       map[string]interface{} `json:"data"`
}

type LoginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type Admin struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Admin     Admin     `json:"admin"`
}

// Endpoints are the paths of one variant, relative to the API base URL.
// Ids are path-escaped.
type Endpoints struct {
	Domain string
}

func (e Endpoints) List() string  { return "/" + e.Domain + "/requests" }
func (e Endpoints) Stats() string { return "/" + e.Domain + "/stats" }

func (e Endpoints) Request(id string) string {
	return fmt.Sprintf("/%s/requests/%s", e.Domain, url.PathEscape(id))
}

func (e Endpoints) Approve(id string) string { return e.Request(id) + "/approve" }
func (e Endpoints) Reject(id string) string  { return e.Request(id) + "/reject" }
func (e Endpoints) History(id string) string { return e.Request(id) + "/history" }

func (e Endpoints) MarkPaid(id string) string {
	return fmt.Sprintf("/%s/mark-as-paid/%s", e.Domain, url.PathEscape(id))
}
