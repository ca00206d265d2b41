package services

import (
	"context"
	"fmt"
	"time"

	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/domain/workflow"
	"holidaysri-admin/internal/infrastructure/notification"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DigestConfig controls the pending-request digest
type DigestConfig struct {
	Schedule   string        // cron expression, e.g. "0 8 * * *"
	StaleAfter time.Duration // pending longer than this is flagged
	Recipients []string
}

// PendingDigestService emails admins a summary of requests waiting for review
type PendingDigestService struct {
	uowFactory repository.UnitOfWorkFactory
	mailer     notification.Mailer
	cfg        DigestConfig
	log        zerolog.Logger
	cron       *cron.Cron
	now        func() time.Time
}

func NewPendingDigestService(
	uowFactory repository.UnitOfWorkFactory,
	mailer notification.Mailer,
	cfg DigestConfig,
	log zerolog.Logger,
) *PendingDigestService {
	return &PendingDigestService{
		uowFactory: uowFactory,
		mailer:     mailer,
		cfg:        cfg,
		log:        log.With().Str("component", "pending_digest").Logger(),
		now:        time.Now,
	}
}

// Start schedules the digest. It does nothing without recipients.
func (s *PendingDigestService) Start(ctx context.Context) error {
	if len(s.cfg.Recipients) == 0 {
		s.log.Info().Msg("no digest recipients configured, digest disabled")
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if err := s.SendDigest(ctx); err != nil {
			s.log.Error().Err(err).Msg("pending digest failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.cfg.Schedule).Int("recipients", len(s.cfg.Recipients)).Msg("pending digest scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running digest
func (s *PendingDigestService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// BuildDigest collects one line per variant from the stats aggregation
func (s *PendingDigestService) BuildDigest(ctx context.Context) (notification.Digest, error) {
	uow := s.uowFactory.CreateUnitOfWork()
	defer uow.Close()
	repo := uow.PayoutRequestRepository()

	digest := notification.Digest{StaleAfter: s.cfg.StaleAfter.String()}
	cutoff := s.now().Add(-s.cfg.StaleAfter)

	for _, v := range workflow.Variants() {
		def := workflow.MustLookup(v)
		stats, err := repo.Stats(ctx, v)
		if err != nil {
			return notification.Digest{}, fmt.Errorf("failed to aggregate %s: %w", v, err)
		}
		pending := stats[workflow.StatusPending]

		var stale int64
		if s.cfg.StaleAfter > 0 && pending.Count > 0 {
			stale, err = repo.CountOlderThan(ctx, v, workflow.StatusPending, cutoff)
			if err != nil {
				return notification.Digest{}, fmt.Errorf("failed to count stale %s: %w", v, err)
			}
		}

		digest.Lines = append(digest.Lines, notification.DigestLine{
			Label:    def.Label,
			Count:    pending.Count,
			Amount:   pending.TotalAmount,
			Currency: def.Currency,
			Stale:    stale,
		})
	}
	return digest, nil
}

// SendDigest emails the digest unless nothing is pending
func (s *PendingDigestService) SendDigest(ctx context.Context) error {
	digest, err := s.BuildDigest(ctx)
	if err != nil {
		return err
	}

	var pending int64
	for _, line := range digest.Lines {
		pending += line.Count
	}
	if pending == 0 {
		s.log.Debug().Msg("nothing pending, digest skipped")
		return nil
	}

	var sent int
	for _, to := range s.cfg.Recipients {
		msg, err := notification.DigestEmail(to, digest)
		if err != nil {
			return err
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.log.Warn().Err(err).Str("to", to).Msg("failed to send digest")
			continue
		}
		sent++
	}

	s.log.Info().Int64("pending", pending).Int("sent", sent).Msg("pending digest sent")
	return nil
}
