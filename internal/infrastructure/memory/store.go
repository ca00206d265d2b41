// Package memory provides an in-process implementation of the repositories
// and unit of work. It backs the test suites and the STORAGE=memory dev mode.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/event"
	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/domain/workflow"

	"github.com/shopspring/decimal"
)

// Earning is a claimable earning record
type Earning struct {
	ID        string
	Variant   workflow.Variant
	Amount    decimal.Decimal
	Status    string
	RequestID string
}

// Store holds every collection. One transaction runs at a time: it holds tx
// from Begin until Commit or Rollback, and writes outside a transaction wait
// for it, so a rollback only ever undoes its own writes.
type Store struct {
	tx        chan struct{}
	mu        sync.Mutex
	requests  map[string]aggregate.PayoutRequestState
	events    []repository.EventRecord
	earnings  map[string]Earning
	campaigns map[string]aggregate.Campaign
	ads       map[string]aggregate.Advertisement
	paidFunds map[string]aggregate.PaidFund
	admins    map[string]*aggregate.Admin
}

func NewStore() *Store {
	return &Store{
		tx:        make(chan struct{}, 1),
		requests:  make(map[string]aggregate.PayoutRequestState),
		earnings:  make(map[string]Earning),
		campaigns: make(map[string]aggregate.Campaign),
		ads:       make(map[string]aggregate.Advertisement),
		paidFunds: make(map[string]aggregate.PaidFund),
		admins:    make(map[string]*aggregate.Admin),
	}
}

type snapshot struct {
	requests  map[string]aggregate.PayoutRequestState
	events    []repository.EventRecord
	earnings  map[string]Earning
	campaigns map[string]aggregate.Campaign
	ads       map[string]aggregate.Advertisement
	paidFunds map[string]aggregate.PaidFund
	admins    map[string]*aggregate.Admin
}

// autocommit locks the store for a write made outside any transaction
func (s *Store) autocommit() func() {
	s.tx <- struct{}{}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		<-s.tx
	}
}

// repo is embedded by every repository; u is nil for the Store helpers
type repo struct {
	s *Store
	u *UnitOfWork
}

// write locks the store for a mutation
func (r repo) write() func() {
	if r.u != nil && r.u.IsInTransaction() {
		r.s.mu.Lock()
		return r.s.mu.Unlock
	}
	return r.s.autocommit()
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		requests:  copyMap(s.requests),
		events:    append([]repository.EventRecord(nil), s.events...),
		earnings:  copyMap(s.earnings),
		campaigns: copyMap(s.campaigns),
		ads:       copyMap(s.ads),
		paidFunds: copyMap(s.paidFunds),
		admins:    copyMap(s.admins),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = snap.requests
	s.events = snap.events
	s.earnings = snap.earnings
	s.campaigns = snap.campaigns
	s.ads = snap.ads
	s.paidFunds = snap.paidFunds
	s.admins = snap.admins
}

// AddPayoutRequest stores a request and its submission event
func (s *Store) AddPayoutRequest(ctx context.Context, req *aggregate.PayoutRequest) error {
	return (&payoutRequestRepo{repo{s: s}}).Save(ctx, req)
}

// AddEarning seeds a claimable earning record
func (s *Store) AddEarning(e Earning) {
	defer s.autocommit()()
	if e.Status == "" {
		e.Status = "locked"
	}
	s.earnings[e.ID] = e
}

// Earning returns a seeded earning record
func (s *Store) Earning(id string) (Earning, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.earnings[id]
	return e, ok
}

func (s *Store) AddCampaign(c aggregate.Campaign) {
	defer s.autocommit()()
	s.campaigns[c.ID] = c
}

func (s *Store) AddAdvertisement(a aggregate.Advertisement) {
	defer s.autocommit()()
	s.ads[a.ID] = a
}

func (s *Store) HasCampaign(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.campaigns[id]
	return ok
}

func (s *Store) HasAdvertisement(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ads[id]
	return ok
}

type payoutRequestRepo struct{ repo }

func (r *payoutRequestRepo) Save(_ context.Context, req *aggregate.PayoutRequest) error {
	s := r.s
	defer r.write()()

	events := req.GetUncommittedEvents()
	expected := req.Version() - len(events)

	current, exists := s.requests[req.ID()]
	switch {
	case expected == 0 && exists:
		return fmt.Errorf("payout request %s: %w", req.ID(), repository.ErrVersionConflict)
	case expected > 0 && (!exists || current.Version != expected):
		return fmt.Errorf("payout request %s changed since it was loaded: %w", req.ID(), repository.ErrVersionConflict)
	}

	for i, e := range events {
		data, err := eventData(e)
		if err != nil {
			return err
		}
		s.events = append(s.events, repository.EventRecord{
			AggregateID:  req.ID(),
			EventType:    e.EventType(),
			EventVersion: expected + i + 1,
			OccurredAt:   e.OccurredAt(),
			Data:         data,
		})
	}
	s.requests[req.ID()] = req.Snapshot()
	req.MarkEventsAsCommitted()
	return nil
}

func eventData(e event.DomainEvent) (map[string]interface{}, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.EventType(), err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.EventType(), err)
	}
	return data, nil
}

func (r *payoutRequestRepo) GetByID(_ context.Context, variant workflow.Variant, id string) (*aggregate.PayoutRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, ok := r.s.requests[id]
	if !ok || st.Variant != variant {
		return nil, fmt.Errorf("payout request %s: %w", id, repository.ErrNotFound)
	}
	return aggregate.ReconstructPayoutRequest(st), nil
}

func matches(st aggregate.PayoutRequestState, f repository.PayoutRequestFilter) bool {
	if st.Variant != f.Variant {
		return false
	}
	if f.Status != "" && st.Status != f.Status {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(st.Requester.Name), q) &&
			!strings.Contains(strings.ToLower(st.Requester.Email), q) {
			return false
		}
	}
	return true
}

func (r *payoutRequestRepo) List(_ context.Context, f repository.PayoutRequestFilter) ([]*aggregate.PayoutRequest, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var hits []aggregate.PayoutRequestState
	for _, st := range r.s.requests {
		if matches(st, f) {
			hits = append(hits, st)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].ID < hits[j].ID
	})

	total := int64(len(hits))
	start := f.Offset
	if start > len(hits) {
		start = len(hits)
	}
	end := len(hits)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}

	out := make([]*aggregate.PayoutRequest, 0, end-start)
	for _, st := range hits[start:end] {
		out = append(out, aggregate.ReconstructPayoutRequest(st))
	}
	return out, total, nil
}

func (r *payoutRequestRepo) Stats(_ context.Context, variant workflow.Variant) (map[workflow.Status]repository.StatusTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stats := make(map[workflow.Status]repository.StatusTotals)
	for _, st := range r.s.requests {
		if st.Variant != variant {
			continue
		}
		t := stats[st.Status]
		t.Count++
		t.TotalAmount = t.TotalAmount.Add(st.TotalAmount)
		stats[st.Status] = t
	}
	return stats, nil
}

func (r *payoutRequestRepo) CountOlderThan(_ context.Context, variant workflow.Variant, status workflow.Status, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, st := range r.s.requests {
		if st.Variant == variant && st.Status == status && st.CreatedAt.Before(before) {
			n++
		}
	}
	return n, nil
}

func (r *payoutRequestRepo) Delete(_ context.Context, id string) error {
	defer r.write()()

	if _, ok := r.s.requests[id]; !ok {
		return fmt.Errorf("payout request %s: %w", id, repository.ErrNotFound)
	}
	delete(r.s.requests, id)
	return nil
}

func (r *payoutRequestRepo) GetEvents(_ context.Context, aggregateID string) ([]repository.EventRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []repository.EventRecord
	for _, e := range r.s.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

type earningRepo struct{ repo }

func (r *earningRepo) MarkSettled(_ context.Context, variant workflow.Variant, ids []string, requestID string) error {
	return r.update(variant, ids, func(e *Earning) {
		e.Status = "settled"
		e.RequestID = requestID
	})
}

func (r *earningRepo) Release(_ context.Context, variant workflow.Variant, ids []string) error {
	return r.update(variant, ids, func(e *Earning) {
		e.Status = "available"
		e.RequestID = ""
	})
}

func (r *earningRepo) update(variant workflow.Variant, ids []string, fn func(*Earning)) error {
	defer r.write()()

	for _, id := range ids {
		e, ok := r.s.earnings[id]
		if !ok || e.Variant != variant {
			continue
		}
		fn(&e)
		r.s.earnings[id] = e
	}
	return nil
}

type campaignRepo struct{ repo }

func (r *campaignRepo) GetByID(_ context.Context, id string) (*aggregate.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", id, repository.ErrNotFound)
	}
	return &c, nil
}

func (r *campaignRepo) Delete(_ context.Context, id string) error {
	defer r.write()()

	if _, ok := r.s.campaigns[id]; !ok {
		return fmt.Errorf("campaign %s: %w", id, repository.ErrNotFound)
	}
	delete(r.s.campaigns, id)
	return nil
}

type advertisementRepo struct{ repo }

func (r *advertisementRepo) GetByID(_ context.Context, id string) (*aggregate.Advertisement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.ads[id]
	if !ok {
		return nil, fmt.Errorf("advertisement %s: %w", id, repository.ErrNotFound)
	}
	return &a, nil
}

func (r *advertisementRepo) Delete(_ context.Context, id string) error {
	defer r.write()()

	if _, ok := r.s.ads[id]; !ok {
		return fmt.Errorf("advertisement %s: %w", id, repository.ErrNotFound)
	}
	delete(r.s.ads, id)
	return nil
}

type paidFundRepo struct{ repo }

func (r *paidFundRepo) Save(_ context.Context, fund *aggregate.PaidFund) error {
	defer r.write()()

	for _, f := range r.s.paidFunds {
		if f.RequestID == fund.RequestID {
			return fmt.Errorf("paid fund for %s already recorded", fund.RequestID)
		}
	}
	r.s.paidFunds[fund.ID] = *fund
	return nil
}

func (r *paidFundRepo) GetByRequestID(_ context.Context, requestID string) (*aggregate.PaidFund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, f := range r.s.paidFunds {
		if f.RequestID == requestID {
			fund := f
			return &fund, nil
		}
	}
	return nil, fmt.Errorf("paid fund for %s: %w", requestID, repository.ErrNotFound)
}

type adminRepo struct{ repo }

func (r *adminRepo) Save(_ context.Context, a *aggregate.Admin) error {
	defer r.write()()
	r.s.admins[a.ID()] = a
	return nil
}

func (r *adminRepo) GetByEmail(_ context.Context, email string) (*aggregate.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range r.s.admins {
		if a.Email() == email {
			return a, nil
		}
	}
	return nil, fmt.Errorf("admin: %w", repository.ErrNotFound)
}

func (r *adminRepo) GetByID(_ context.Context, id string) (*aggregate.Admin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.admins[id]
	if !ok {
		return nil, fmt.Errorf("admin: %w", repository.ErrNotFound)
	}
	return a, nil
}
