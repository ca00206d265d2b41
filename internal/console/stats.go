package console

import (
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/pkg/payoutapi"

	"github.com/shopspring/decimal"
)

// StatsSource says where a Stats value came from
type StatsSource string

const (
	// SourceServer is the backend's stats endpoint
	SourceServer StatsSource = "server"
	// SourceComputed is summed from the records the console holds
	SourceComputed StatsSource = "computed"
)

// Stats is the per-status count and amount summary shown above a listing
type Stats struct {
	Source   StatsSource
	ByStatus map[workflow.Status]payoutapi.StatusTotals
}

// Aggregate sums items per status. Every status of def is present, zero when
// no item has it. Amounts are the requests' own totals.
func Aggregate(def workflow.Definition, items []payoutapi.PayoutRequest) Stats {
	s := emptyStats(def, SourceComputed)
	for _, item := range items {
		status := workflow.Status(item.Status)
		t := s.ByStatus[status]
		t.Count++
		t.TotalAmount = t.TotalAmount.Add(item.TotalAmount)
		s.ByStatus[status] = t
	}
	return s
}

// FromServer converts the stats endpoint's body
func FromServer(def workflow.Definition, raw payoutapi.Stats) Stats {
	s := emptyStats(def, SourceServer)
	for status, t := range raw {
		s.ByStatus[workflow.Status(status)] = t
	}
	return s
}

func emptyStats(def workflow.Definition, source StatsSource) Stats {
	s := Stats{Source: source, ByStatus: make(map[workflow.Status]payoutapi.StatusTotals, len(def.Statuses))}
	for _, status := range def.Statuses {
		s.ByStatus[status] = payoutapi.StatusTotals{TotalAmount: decimal.Zero}
	}
	return s
}

// Get returns the totals of one status
func (s Stats) Get(status workflow.Status) payoutapi.StatusTotals {
	t, ok := s.ByStatus[status]
	if !ok {
		return payoutapi.StatusTotals{TotalAmount: decimal.Zero}
	}
	return t
}

// Records is the number of requests across every status
func (s Stats) Records() int64 {
	var n int64
	for _, t := range s.ByStatus {
		n += t.Count
	}
	return n
}
