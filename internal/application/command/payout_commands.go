package command

import "holidaysri-admin/internal/domain/workflow"

// ApprovePayoutRequest approves a pending request of any variant
type ApprovePayoutRequest struct {
	Variant   workflow.Variant
	RequestID string
	AdminID   string
	AdminNote string
}

// RejectPayoutRequest rejects a pending request; AdminNote is the reason
type RejectPayoutRequest struct {
	Variant   workflow.Variant
	RequestID string
	AdminID   string
	AdminNote string
}

// MarkPayoutRequestPaid settles an approved donation withdrawal. Confirmed
// records that the admin acknowledged the irreversible cleanup.
type MarkPayoutRequestPaid struct {
	RequestID   string
	AdminID     string
	PaymentNote string
	Confirmed   bool
}

// MarkPaidResult reports what markPaid did after the record was removed
type MarkPaidResult struct {
	RequestID       string `json:"requestId"`
	CampaignID      string `json:"campaignId"`
	AdvertisementID string `json:"advertisementId,omitempty"`
	PaidFundID      string `json:"paidFundId"`
	EmailSent       bool   `json:"emailSent"`
}
