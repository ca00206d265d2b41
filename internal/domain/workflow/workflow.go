// Package workflow holds the approval state machine shared by every payout
// variant: which actions are legal from which status, which inputs each action
// needs, and where it leads.
package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a payout request
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

// Action is an admin transition
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionMarkPaid Action = "mark_paid"
)

// Variant names one instantiation of the workflow
type Variant string

const (
	VariantClaim              Variant = "claim"
	VariantHSCEarned          Variant = "hsc_earned"
	VariantDonationWithdrawal Variant = "donation_withdrawal"
)

// NoteRule says whether an action needs a note
type NoteRule int

const (
	NoteOptional NoteRule = iota
	NoteRequired
)

var (
	ErrUnknownVariant       = errors.New("unknown workflow variant")
	ErrUnknownAction        = errors.New("unknown action")
	ErrIllegalTransition    = errors.New("illegal transition")
	ErrNoteRequired         = errors.New("note is required")
	ErrConfirmationRequired = errors.New("confirmation is required")
)

// Transition describes one legal edge of the state machine
type Transition struct {
	Action Action
	From   Status
	To     Status
	Note   NoteRule
	// RequiresConfirmation marks destructive actions that need an explicit
	// acknowledgement before they are issued.
	RequiresConfirmation bool
	// Effects lists the backend side effects, shown to the admin before confirming.
	Effects []string
}

// Input is what an admin supplies with an action
type Input struct {
	Note      string
	Confirmed bool
}

// Definition is the full rule set of one variant
type Definition struct {
	Variant     Variant
	Label       string
	Domain      string // URL segment, e.g. "claim-requests"
	Currency    string
	Statuses    []Status
	Transitions []Transition
}

// Actions returns exactly the actions that are legal from status, in table order.
func (d Definition) Actions(from Status) []Action {
	var actions []Action
	for _, t := range d.Transitions {
		if t.From == from {
			actions = append(actions, t.Action)
		}
	}
	return actions
}

// Transition returns the rule for action
func (d Definition) Transition(action Action) (Transition, bool) {
	for _, t := range d.Transitions {
		if t.Action == action {
			return t, true
		}
	}
	return Transition{}, false
}

// Target returns the status an action leads to
func (d Definition) Target(action Action) (Status, error) {
	t, ok := d.Transition(action)
	if !ok {
		return "", fmt.Errorf("%w: %s is not available for %s", ErrUnknownAction, action, d.Variant)
	}
	return t.To, nil
}

// IsTerminal reports whether no action leaves status
func (d Definition) IsTerminal(status Status) bool {
	return len(d.Actions(status)) == 0
}

// HasStatus reports whether status belongs to this variant
func (d Definition) HasStatus(status Status) bool {
	for _, s := range d.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Validate checks that action may run from the given status with input.
// It never touches the network; callers run it before issuing a transition.
func (d Definition) Validate(from Status, action Action, in Input) error {
	t, ok := d.Transition(action)
	if !ok {
		return fmt.Errorf("%w: %s is not available for %s", ErrUnknownAction, action, d.Variant)
	}
	if t.From != from {
		return fmt.Errorf("%w: cannot %s a request that is %s", ErrIllegalTransition, action, from)
	}
	if t.Note == NoteRequired && strings.TrimSpace(in.Note) == "" {
		return fmt.Errorf("%w to %s", ErrNoteRequired, action)
	}
	if t.RequiresConfirmation && !in.Confirmed {
		return fmt.Errorf("%w to %s", ErrConfirmationRequired, action)
	}
	return nil
}

var markPaidEffects = []string{
	"record a permanent paid-fund entry",
	"send a payment confirmation email to the requester",
	"delete the donation campaign",
	"delete the campaign advertisement",
}

var definitions = map[Variant]Definition{
	VariantClaim: {
		Variant:  VariantClaim,
		Label:    "claim request",
		Domain:   "claim-requests",
		Currency: "LKR",
		Statuses: []Status{StatusPending, StatusApproved, StatusRejected},
		Transitions: []Transition{
			{Action: ActionApprove, From: StatusPending, To: StatusApproved, Note: NoteRequired},
			{Action: ActionReject, From: StatusPending, To: StatusRejected, Note: NoteRequired},
		},
	},
	VariantHSCEarned: {
		Variant:  VariantHSCEarned,
		Label:    "HSC earned claim",
		Domain:   "hsc-earned-claims",
		Currency: "HSC",
		Statuses: []Status{StatusPending, StatusApproved, StatusRejected},
		Transitions: []Transition{
			{Action: ActionApprove, From: StatusPending, To: StatusApproved, Note: NoteRequired},
			{Action: ActionReject, From: StatusPending, To: StatusRejected, Note: NoteRequired},
		},
	},
	VariantDonationWithdrawal: {
		Variant:  VariantDonationWithdrawal,
		Label:    "donation withdrawal",
		Domain:   "donation-withdrawals",
		Currency: "LKR",
		Statuses: []Status{StatusPending, StatusApproved, StatusRejected, StatusPaid},
		Transitions: []Transition{
			{Action: ActionApprove, From: StatusPending, To: StatusApproved, Note: NoteOptional},
			{Action: ActionReject, From: StatusPending, To: StatusRejected, Note: NoteRequired},
			{
				Action:               ActionMarkPaid,
				From:                 StatusApproved,
				To:                   StatusPaid,
				Note:                 NoteOptional,
				RequiresConfirmation: true,
				Effects:              markPaidEffects,
			},
		},
	},
}

// Lookup returns a copy of the definition of a variant
func Lookup(v Variant) (Definition, error) {
	d, ok := definitions[v]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	return d.Clone(), nil
}

// Clone copies every slice so the copy can be edited freely
func (d Definition) Clone() Definition {
	d.Statuses = append([]Status(nil), d.Statuses...)
	transitions := make([]Transition, len(d.Transitions))
	for i, t := range d.Transitions {
		t.Effects = append([]string(nil), t.Effects...)
		transitions[i] = t
	}
	d.Transitions = transitions
	return d
}

// MustLookup is Lookup for the built-in variants
func MustLookup(v Variant) Definition {
	d, err := Lookup(v)
	if err != nil {
		panic(err)
	}
	return d
}

// Variants lists every built-in variant
func Variants() []Variant {
	return []Variant{VariantClaim, VariantHSCEarned, VariantDonationWithdrawal}
}

// ByDomain finds the definition mounted at a URL segment
func ByDomain(domain string) (Definition, error) {
	for _, v := range Variants() {
		if d := definitions[v]; d.Domain == domain {
			return d.Clone(), nil
		}
	}
	return Definition{}, fmt.Errorf("%w: no variant at %q", ErrUnknownVariant, domain)
}

// StatusFilters lists the listing filters offered for this variant, "all" first.
func (d Definition) StatusFilters() []string {
	filters := []string{"all"}
	for _, s := range d.Statuses {
		filters = append(filters, string(s))
	}
	return filters
}

// ParseStatus accepts "" or "all" as no filter
func (d Definition) ParseStatus(raw string) (Status, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "all" {
		return "", nil
	}
	s := Status(raw)
	if !d.HasStatus(s) {
		return "", fmt.Errorf("invalid status %q for %s", raw, d.Variant)
	}
	return s, nil
}
