package console

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/pkg/payoutapi"

	"golang.org/x/sync/errgroup"
)

const defaultPageLimit = 10

// Filter selects the page of requests a listing shows
type Filter struct {
	Status string // "" or "all" for every status
	Search string
	Page   int
	Limit  int
}

func (f Filter) normalized() Filter {
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	if f.Status == "" {
		f.Status = "all"
	}
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageLimit
	}
	return f
}

func (f Filter) params() url.Values {
	v := url.Values{}
	v.Set("status", f.Status)
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	v.Set("page", strconv.Itoa(f.Page))
	v.Set("limit", strconv.Itoa(f.Limit))
	return v
}

// EmptyState tells the two kinds of empty listing apart
type EmptyState int

const (
	EmptyNone EmptyState = iota
	// EmptyNoMatches means records exist but none match the filter
	EmptyNoMatches
	// EmptyNoRecords means the variant has no records at all
	EmptyNoRecords
)

// ListingState is what the view renders
type ListingState struct {
	Filter     Filter
	Loading    bool
	Items      []payoutapi.PayoutRequest
	Pagination payoutapi.Pagination
	Stats      Stats
	Empty      EmptyState
	// Err is the failure of the latest fetch; the previous page stays in place
	Err error
}

// ListingView shows one page of requests of a variant with its stats. Each
// fetch carries a generation number and only the newest one may update the
// state.
type ListingView struct {
	client    *Client
	def       workflow.Definition
	endpoints payoutapi.Endpoints

	mu     sync.Mutex
	gen    uint64
	closed bool
	state  ListingState
}

func NewListingView(client *Client, variant workflow.Variant) (*ListingView, error) {
	def, err := workflow.Lookup(variant)
	if err != nil {
		return nil, err
	}
	return &ListingView{
		client:    client,
		def:       def,
		endpoints: payoutapi.Endpoints{Domain: def.Domain},
		state: ListingState{
			Filter: Filter{}.normalized(),
			Stats:  emptyStats(def, SourceServer),
		},
	}, nil
}

// State returns a copy of the current state
func (v *ListingView) State() ListingState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	s.Items = append([]payoutapi.PayoutRequest(nil), v.state.Items...)
	return s
}

// SetFilter replaces the filter and fetches. A status outside the variant
// fails locally.
func (v *ListingView) SetFilter(ctx context.Context, f Filter) error {
	f = f.normalized()
	if _, err := v.def.ParseStatus(f.Status); err != nil {
		return &ValidationError{Field: "status", Message: err.Error(), Err: err}
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	v.state.Filter = f
	v.mu.Unlock()
	return v.Refresh(ctx)
}

// Refresh fetches the list and the stats in parallel. A result that was
// overtaken by a newer fetch is dropped with ErrStaleResult.
func (v *ListingView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	v.gen++
	gen := v.gen
	filter := v.state.Filter
	v.state.Loading = true
	v.mu.Unlock()

	var (
		page     payoutapi.ListPage
		stats    payoutapi.Stats
		statsErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = call[payoutapi.ListPage](gctx, v.client, http.MethodGet,
			v.endpoints.List(), filter.params(), nil, "Failed to load requests")
		return err
	})
	g.Go(func() error {
		stats, statsErr = call[payoutapi.Stats](gctx, v.client, http.MethodGet,
			v.endpoints.Stats(), nil, nil, "Failed to load stats")
		return nil
	})
	err := g.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrViewClosed
	}
	if gen != v.gen {
		return ErrStaleResult
	}
	v.state.Loading = false
	if err != nil {
		v.state.Err = err
		return err
	}

	v.state.Err = nil
	v.state.Items = page.Items
	v.state.Pagination = page.Pagination
	if statsErr != nil {
		v.state.Stats = Aggregate(v.def, page.Items)
	} else {
		v.state.Stats = FromServer(v.def, stats)
	}
	v.state.Empty = v.emptyState(filter, page)
	return nil
}

func (v *ListingView) emptyState(f Filter, page payoutapi.ListPage) EmptyState {
	if len(page.Items) > 0 {
		return EmptyNone
	}
	unfiltered := f.Status == "all" && f.Search == ""
	if unfiltered || (v.state.Stats.Source == SourceServer && v.state.Stats.Records() == 0) {
		return EmptyNoRecords
	}
	return EmptyNoMatches
}

// RefreshOnSuccess returns a modal callback that reloads this view. A failed
// reload is kept in the view's state.
func (v *ListingView) RefreshOnSuccess() func(context.Context, *Result) {
	return func(ctx context.Context, _ *Result) {
		_ = v.Refresh(ctx)
	}
}

// Close stops the view; fetches still running are discarded
func (v *ListingView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}
