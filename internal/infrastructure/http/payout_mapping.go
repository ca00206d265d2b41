package http

import (
	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/pkg/payoutapi"
)

func toPayoutRequestDTO(req *aggregate.PayoutRequest) payoutapi.PayoutRequest {
	items := make([]payoutapi.SourceItem, 0, len(req.SourceItems()))
	for _, item := range req.SourceItems() {
		dto := payoutapi.SourceItem{ID: item.ID, Amount: item.Amount, Origin: item.Origin}
		if !item.EarnedAt.IsZero() {
			earned := item.EarnedAt
			dto.EarnedAt = &earned
		}
		items = append(items, dto)
	}

	actions := make([]string, 0, 2)
	for _, a := range req.AvailableActions() {
		actions = append(actions, string(a))
	}

	dto := payoutapi.PayoutRequest{
		ID:      req.ID(),
		Variant: string(req.Variant()),
		Requester: payoutapi.Requester{
			ID:    req.Requester().ID,
			Name:  req.Requester().Name,
			Email: req.Requester().Email,
		},
		SourceItems:      items,
		TotalAmount:      req.TotalAmount(),
		Currency:         req.Currency(),
		CampaignID:       req.CampaignID(),
		Status:           string(req.Status()),
		AdminNote:        req.AdminNote(),
		ProcessedBy:      req.ProcessedBy(),
		ProcessedAt:      req.ProcessedAt(),
		PaidBy:           req.PaidBy(),
		PaidAt:           req.PaidAt(),
		PaymentNote:      req.PaymentNote(),
		AvailableActions: actions,
		Version:          req.Version(),
		CreatedAt:        req.CreatedAt(),
		UpdatedAt:        req.UpdatedAt(),
	}

	dest := req.Destination()
	if b := dest.Bank; b != nil {
		dto.BankDetails = &payoutapi.BankDetails{
			BankName:      b.BankName,
			AccountNumber: b.AccountNumber,
			AccountName:   b.AccountName,
			Branch:        b.Branch,
		}
	}
	if e := dest.Exchange; e != nil {
		dto.ExchangeDetails = &payoutapi.ExchangeDetails{Provider: e.Provider, AccountID: e.AccountID}
	}
	return dto
}

func toStatsDTO(stats map[workflow.Status]repository.StatusTotals) payoutapi.Stats {
	out := make(payoutapi.Stats, len(stats))
	for status, totals := range stats {
		out[string(status)] = payoutapi.StatusTotals{Count: totals.Count, TotalAmount: totals.TotalAmount}
	}
	return out
}
