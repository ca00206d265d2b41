package aggregate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Campaign is a donation campaign whose raised funds are withdrawn through a
// donation withdrawal request
type Campaign struct {
	ID              string
	Title           string
	OwnerID         string
	AdvertisementID string
	ImagePublicIDs  []string
	RaisedAmount    decimal.Decimal
	Currency        string
	CreatedAt       time.Time
}

// Advertisement is the listing that promotes a campaign
type Advertisement struct {
	ID             string
	CampaignID     string
	Title          string
	ImagePublicIDs []string
	CreatedAt      time.Time
}

// PaidFund is the permanent audit record kept after a donation withdrawal is
// paid and its campaign removed
type PaidFund struct {
	ID              string
	RequestID       string
	CampaignID      string
	CampaignTitle   string
	AdvertisementID string
	RequesterID     string
	RequesterName   string
	RequesterEmail  string
	Amount          decimal.Decimal
	Currency        string
	PaymentNote     string
	PaidBy          string
	PaidAt          time.Time
}

// NewPaidFund builds the audit entry for a request that has just been marked paid
func NewPaidFund(id string, req *PayoutRequest, campaign *Campaign) (*PaidFund, error) {
	if req.PaidAt() == nil {
		return nil, fmt.Errorf("request %s has not been marked paid", req.ID())
	}
	fund := &PaidFund{
		ID:             id,
		RequestID:      req.ID(),
		CampaignID:     req.CampaignID(),
		RequesterID:    req.Requester().ID,
		RequesterName:  req.Requester().Name,
		RequesterEmail: req.Requester().Email,
		Amount:         req.TotalAmount(),
		Currency:       req.Currency(),
		PaymentNote:    req.PaymentNote(),
		PaidBy:         req.PaidBy(),
		PaidAt:         *req.PaidAt(),
	}
	if campaign != nil {
		fund.CampaignTitle = campaign.Title
		fund.AdvertisementID = campaign.AdvertisementID
	}
	return fund, nil
}
