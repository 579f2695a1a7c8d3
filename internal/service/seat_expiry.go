package service

import (
	"context"

	"github.com/baechuer/waitline/internal/audit"
	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/pkg/logger"
)

// SeatExpiry frees rows whose service interval has elapsed and
// re-triggers dequeue. No broadcast is made here — a seated client's SSE
// stream has already closed, so there is no listener left to notify.
type SeatExpiry struct {
	Store domain.PartyStore
	Jobs  domain.JobBus
	Audit *audit.Logger
}

func (s *SeatExpiry) Run(ctx context.Context) error {
	log := logger.Logger.With().Str("component", "seat_expiry_service").Logger()

	ids, err := s.Store.RemoveExpiredSeats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("remove_expired_seats failed")
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.Jobs.Enqueue(ctx, domain.QueueDequeue, nil, 0); err != nil {
		log.Error().Err(err).Msg("enqueue dequeue failed")
		return err
	}

	if s.Audit != nil {
		s.Audit.PartySeatExpired(ctx, ids)
	}
	return nil
}
