package console

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/pkg/payoutapi"
)

var ErrActionUnavailable = errors.New("action is not available for this request")

// Field is one input the modal asks for
type Field struct {
	Name     string
	Label    string
	Required bool
}

// Form describes what a modal renders
type Form struct {
	Action  workflow.Action
	Note    Field
	Confirm bool
	// Warning and Effects are shown for destructive actions
	Warning string
	Effects []string
}

// Modal collects the input of one action on one request. It stays open with
// its input on any failure and closes only on success.
type Modal struct {
	engine    *Engine
	request   payoutapi.PayoutRequest
	action    workflow.Action
	onSuccess func(context.Context, *Result)

	mu         sync.Mutex
	note       string
	confirmed  bool
	open       bool
	submitting bool
	err        error
	result     *Result
}

// OpenModal opens a modal for action, which must be legal for the request's
// current status. onSuccess may be nil.
func OpenModal(engine *Engine, req payoutapi.PayoutRequest, action workflow.Action, onSuccess func(context.Context, *Result)) (*Modal, error) {
	legal := false
	for _, a := range engine.Actions(req) {
		if a == action {
			legal = true
			break
		}
	}
	if !legal {
		return nil, fmt.Errorf("%w: cannot %s a request that is %s", ErrActionUnavailable, action, req.Status)
	}
	return &Modal{engine: engine, request: req, action: action, onSuccess: onSuccess, open: true}, nil
}

// Form returns the inputs and warnings of the modal's action
func (m *Modal) Form() Form {
	t, _ := m.engine.Definition().Transition(m.action)
	f := Form{
		Action: m.action,
		Note: Field{
			Name:     noteField(m.action),
			Label:    noteLabel(m.action),
			Required: t.Note == workflow.NoteRequired,
		},
		Confirm: t.RequiresConfirmation,
	}
	if t.RequiresConfirmation {
		f.Warning = "This action cannot be undone."
		f.Effects = append([]string(nil), t.Effects...)
	}
	return f
}

func (m *Modal) SetNote(note string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.note = note
}

func (m *Modal) Confirm(confirmed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed = confirmed
}

func (m *Modal) input() workflow.Input {
	return workflow.Input{Note: m.note, Confirmed: m.confirmed}
}

// CanSubmit reports whether the submit control is enabled
func (m *Modal) CanSubmit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open || m.submitting || m.engine.InFlight(m.request.ID) {
		return false
	}
	return m.engine.Validate(m.request, m.action, m.input()) == nil
}

// Submit issues the action. On failure the error is kept for display and the
// modal stays open; on success it closes and onSuccess runs.
func (m *Modal) Submit(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return nil, ErrModalClosed
	}
	if m.submitting {
		m.mu.Unlock()
		return nil, ErrInFlight
	}
	in := m.input()
	if err := m.engine.Validate(m.request, m.action, in); err != nil {
		m.err = err
		m.mu.Unlock()
		return nil, err
	}
	m.submitting = true
	m.err = nil
	m.mu.Unlock()

	res, err := m.engine.Execute(ctx, m.request, m.action, in)

	m.mu.Lock()
	m.submitting = false
	if err != nil {
		m.err = err
		m.mu.Unlock()
		return nil, err
	}
	m.open = false
	m.result = res
	m.mu.Unlock()

	if m.onSuccess != nil {
		m.onSuccess(ctx, res)
	}
	return res, nil
}

// Close dismisses the modal without acting
func (m *Modal) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
}

func (m *Modal) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *Modal) Submitting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitting
}

// Err is the last failure, rendered inline
func (m *Modal) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Modal) Note() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.note
}

func (m *Modal) Confirmed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmed
}

func (m *Modal) Result() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}
