package command

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/event"
	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/internal/infrastructure/bus"
	"holidaysri-admin/internal/infrastructure/cache"
	"holidaysri-admin/pkg/errors"

	"github.com/rs/zerolog"
)

// DefaultLockTTL bounds how long one transition may hold a request
const DefaultLockTTL = 30 * time.Second

// transitioner runs one admin transition on one request: lock, load, mutate,
// save with the version check, commit, then publish.
type transitioner struct {
	uowFactory repository.UnitOfWorkFactory
	locker     cache.Locker
	eventBus   bus.EventBus
	lockTTL    time.Duration
	log        zerolog.Logger
}

func lockKey(variant workflow.Variant, id string) string {
	return fmt.Sprintf("payout:%s:%s", variant, id)
}

// mutation changes req inside the open unit of work
type mutation func(ctx context.Context, uow repository.UnitOfWork, req *aggregate.PayoutRequest) error

func (t *transitioner) run(
	ctx context.Context,
	variant workflow.Variant,
	id string,
	action workflow.Action,
	mutate mutation,
) (*aggregate.PayoutRequest, error) {
	if _, err := workflow.Lookup(variant); err != nil {
		return nil, errors.NewNotFoundError("workflow")
	}
	if id == "" {
		return nil, errors.NewValidationError("request id is required")
	}

	release, err := t.locker.Acquire(ctx, lockKey(variant, id), t.lockTTL)
	if err != nil {
		if stderrors.Is(err, cache.ErrLocked) {
			return nil, errors.NewConflictError("Request is already being processed")
		}
		return nil, errors.NewServiceUnavailableError(fmt.Sprintf("failed to lock request: %v", err))
	}
	defer release()

	uow := t.uowFactory.CreateUnitOfWork()
	defer uow.Close()

	if err := uow.Begin(ctx); err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to begin transaction: %v", err))
	}

	req, err := uow.PayoutRequestRepository().GetByID(ctx, variant, id)
	if err != nil {
		uow.Rollback(ctx)
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewNotFoundError("payout request")
		}
		return nil, fmt.Errorf("failed to load payout request: %w", err)
	}

	if err := mutate(ctx, uow, req); err != nil {
		uow.Rollback(ctx)
		return nil, mapTransitionError(err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, mapTransitionError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	t.log.Info().
		Str("variant", string(variant)).
		Str("request_id", id).
		Str("action", string(action)).
		Str("status", string(req.Status())).
		Msg("payout request transitioned")

	return req, nil
}

// saveRequest persists req and returns the events it raised
func saveRequest(ctx context.Context, uow repository.UnitOfWork, req *aggregate.PayoutRequest) ([]event.DomainEvent, error) {
	events := req.GetUncommittedEvents()
	if err := uow.PayoutRequestRepository().Save(ctx, req); err != nil {
		return nil, err
	}
	return events, nil
}

// publish fans committed events out. Subscribers are notifications, so a
// failure is logged and never undoes the transition.
func (t *transitioner) publish(ctx context.Context, events []event.DomainEvent) {
	for _, ev := range events {
		if err := t.eventBus.Publish(ctx, ev); err != nil {
			t.log.Warn().Err(err).
				Str("event_type", ev.EventType()).
				Str("request_id", ev.AggregateID()).
				Msg("failed to publish event")
		}
	}
}

func mapTransitionError(err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	switch {
	case stderrors.Is(err, workflow.ErrIllegalTransition):
		return errors.NewConflictError(err.Error())
	case stderrors.Is(err, workflow.ErrNoteRequired),
		stderrors.Is(err, workflow.ErrConfirmationRequired),
		stderrors.Is(err, workflow.ErrUnknownAction):
		return errors.NewValidationError(err.Error())
	case stderrors.Is(err, repository.ErrVersionConflict):
		return errors.NewConflictError("Request was modified by another admin, reload and try again")
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NewNotFoundError("payout request")
	}
	return errors.NewInternalError(err.Error())
}

// ============================================
// Approve
// ============================================

// ApprovePayoutRequestHandler approves a pending request and settles its
// source records
type ApprovePayoutRequestHandler struct {
	transitioner
}

func NewApprovePayoutRequestHandler(
	uowFactory repository.UnitOfWorkFactory,
	locker cache.Locker,
	eventBus bus.EventBus,
	log zerolog.Logger,
) *ApprovePayoutRequestHandler {
	return &ApprovePayoutRequestHandler{transitioner{
		uowFactory: uowFactory,
		locker:     locker,
		eventBus:   eventBus,
		lockTTL:    DefaultLockTTL,
		log:        log,
	}}
}

func (h *ApprovePayoutRequestHandler) Handle(ctx context.Context, cmd *ApprovePayoutRequest) (*aggregate.PayoutRequest, error) {
	if cmd == nil {
		return nil, errors.NewValidationError("command cannot be nil")
	}
	if cmd.AdminID == "" {
		return nil, errors.NewUnauthorizedError("admin id is required")
	}

	var events []event.DomainEvent
	req, err := h.run(ctx, cmd.Variant, cmd.RequestID, workflow.ActionApprove,
		func(ctx context.Context, uow repository.UnitOfWork, req *aggregate.PayoutRequest) error {
			if err := req.Approve(cmd.AdminID, cmd.AdminNote); err != nil {
				return err
			}
			if err := uow.EarningRepository().MarkSettled(ctx, req.Variant(), req.SourceItemIDs(), req.ID()); err != nil {
				return fmt.Errorf("failed to settle source records: %w", err)
			}
			var err error
			events, err = saveRequest(ctx, uow, req)
			return err
		})
	if err != nil {
		return nil, err
	}

	h.publish(ctx, events)
	return req, nil
}

// ============================================
// Reject
// ============================================

// RejectPayoutRequestHandler rejects a pending request and releases its
// source records for a later claim
type RejectPayoutRequestHandler struct {
	transitioner
}

func NewRejectPayoutRequestHandler(
	uowFactory repository.UnitOfWorkFactory,
	locker cache.Locker,
	eventBus bus.EventBus,
	log zerolog.Logger,
) *RejectPayoutRequestHandler {
	return &RejectPayoutRequestHandler{transitioner{
		uowFactory: uowFactory,
		locker:     locker,
		eventBus:   eventBus,
		lockTTL:    DefaultLockTTL,
		log:        log,
	}}
}

func (h *RejectPayoutRequestHandler) Handle(ctx context.Context, cmd *RejectPayoutRequest) (*aggregate.PayoutRequest, error) {
	if cmd == nil {
		return nil, errors.NewValidationError("command cannot be nil")
	}
	if cmd.AdminID == "" {
		return nil, errors.NewUnauthorizedError("admin id is required")
	}

	var events []event.DomainEvent
	req, err := h.run(ctx, cmd.Variant, cmd.RequestID, workflow.ActionReject,
		func(ctx context.Context, uow repository.UnitOfWork, req *aggregate.PayoutRequest) error {
			if err := req.Reject(cmd.AdminID, cmd.AdminNote); err != nil {
				return err
			}
			if err := uow.EarningRepository().Release(ctx, req.Variant(), req.SourceItemIDs()); err != nil {
				return fmt.Errorf("failed to release source records: %w", err)
			}
			var err error
			events, err = saveRequest(ctx, uow, req)
			return err
		})
	if err != nil {
		return nil, err
	}

	h.publish(ctx, events)
	return req, nil
}
