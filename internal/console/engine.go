package console

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/pkg/payoutapi"
)

var fallbackMessages = map[workflow.Action]string{
	workflow.ActionApprove:  "Failed to approve request",
	workflow.ActionReject:   "Failed to reject request",
	workflow.ActionMarkPaid: "Failed to mark request as paid",
}

// Result is the outcome of a successful transition
type Result struct {
	Action  workflow.Action
	Request *payoutapi.PayoutRequest
	// Paid is set for mark-as-paid only
	Paid *payoutapi.MarkPaidResult
}

// EmailSent reports whether the payment confirmation email went out
func (r *Result) EmailSent() bool {
	return r != nil && r.Paid != nil && r.Paid.EmailSent
}

// Engine issues transitions for one variant. It checks every action against
// the variant's definition before calling the backend and allows at most one
// call in flight per request.
type Engine struct {
	client    *Client
	def       workflow.Definition
	endpoints payoutapi.Endpoints

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewEngine(client *Client, variant workflow.Variant) (*Engine, error) {
	def, err := workflow.Lookup(variant)
	if err != nil {
		return nil, err
	}
	return &Engine{
		client:    client,
		def:       def,
		endpoints: payoutapi.Endpoints{Domain: def.Domain},
		inFlight:  make(map[string]struct{}),
	}, nil
}

func (e *Engine) Definition() workflow.Definition { return e.def.Clone() }

// Actions returns the actions legal for req's current status
func (e *Engine) Actions(req payoutapi.PayoutRequest) []workflow.Action {
	return e.def.Actions(workflow.Status(req.Status))
}

// Validate checks action and input locally
func (e *Engine) Validate(req payoutapi.PayoutRequest, action workflow.Action, in workflow.Input) error {
	err := e.def.Validate(workflow.Status(req.Status), action, in)
	if err == nil {
		return nil
	}
	field := ""
	msg := err.Error()
	switch {
	case errors.Is(err, workflow.ErrNoteRequired):
		field = noteField(action)
		msg = noteLabel(action) + " is required"
	case errors.Is(err, workflow.ErrConfirmationRequired):
		field = "confirmed"
		msg = "Please confirm this action before continuing"
	}
	return &ValidationError{Field: field, Message: msg, Err: err}
}

// InFlight reports whether a transition for id is running
func (e *Engine) InFlight(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[id]
	return ok
}

func (e *Engine) acquire(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inFlight[id]; ok {
		return false
	}
	e.inFlight[id] = struct{}{}
	return true
}

func (e *Engine) release(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, id)
}

// Execute runs action on req. Invalid input fails with *ValidationError and
// makes no call; a second call for a request already in flight fails with
// ErrInFlight.
func (e *Engine) Execute(ctx context.Context, req payoutapi.PayoutRequest, action workflow.Action, in workflow.Input) (*Result, error) {
	in.Note = strings.TrimSpace(in.Note)
	if err := e.Validate(req, action, in); err != nil {
		return nil, err
	}
	if !e.acquire(req.ID) {
		return nil, ErrInFlight
	}
	defer e.release(req.ID)

	fallback := fallbackMessages[action]
	switch action {
	case workflow.ActionApprove:
		updated, err := call[payoutapi.PayoutRequest](ctx, e.client, http.MethodPost,
			e.endpoints.Approve(req.ID), nil, payoutapi.TransitionBody{AdminNote: in.Note}, fallback)
		if err != nil {
			return nil, err
		}
		return &Result{Action: action, Request: &updated}, nil
	case workflow.ActionReject:
		updated, err := call[payoutapi.PayoutRequest](ctx, e.client, http.MethodPost,
			e.endpoints.Reject(req.ID), nil, payoutapi.TransitionBody{AdminNote: in.Note}, fallback)
		if err != nil {
			return nil, err
		}
		return &Result{Action: action, Request: &updated}, nil
	default:
		paid, err := call[payoutapi.MarkPaidResult](ctx, e.client, http.MethodPost,
			e.endpoints.MarkPaid(req.ID), nil, payoutapi.MarkPaidBody{PaymentNote: in.Note}, fallback)
		if err != nil {
			return nil, err
		}
		return &Result{Action: action, Paid: &paid}, nil
	}
}

func (e *Engine) Approve(ctx context.Context, req payoutapi.PayoutRequest, note string) (*Result, error) {
	return e.Execute(ctx, req, workflow.ActionApprove, workflow.Input{Note: note})
}

func (e *Engine) Reject(ctx context.Context, req payoutapi.PayoutRequest, reason string) (*Result, error) {
	return e.Execute(ctx, req, workflow.ActionReject, workflow.Input{Note: reason})
}

// MarkPaid requires confirmed to be true
func (e *Engine) MarkPaid(ctx context.Context, req payoutapi.PayoutRequest, paymentNote string, confirmed bool) (*Result, error) {
	return e.Execute(ctx, req, workflow.ActionMarkPaid, workflow.Input{Note: paymentNote, Confirmed: confirmed})
}

func noteField(action workflow.Action) string {
	if action == workflow.ActionMarkPaid {
		return "paymentNote"
	}
	return "adminNote"
}

func noteLabel(action workflow.Action) string {
	switch action {
	case workflow.ActionReject:
		return "Rejection reason"
	case workflow.ActionMarkPaid:
		return "Payment note"
	default:
		return "Admin note"
	}
}
