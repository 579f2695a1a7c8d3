package service

import (
	"context"

	"github.com/baechuer/waitline/internal/audit"
	"github.com/baechuer/waitline/internal/contracts/event"
	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/pkg/logger"
)

// CheckinExpiry purges checking-in parties whose grace window has lapsed,
// re-triggering dequeue so their seats are reconsidered.
type CheckinExpiry struct {
	Store  domain.PartyStore
	PubSub domain.PubSub
	Jobs   domain.JobBus
	Audit  *audit.Logger
}

func (c *CheckinExpiry) Run(ctx context.Context) error {
	log := logger.Logger.With().Str("component", "checkin_expiry_service").Logger()

	ids, err := c.Store.DeleteCheckinExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("delete_checkin_expired failed")
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	if err := c.PubSub.Publish(ctx, domain.ChannelCheckinExpired, event.CheckinExpiredMessage{PartyIDs: ids}); err != nil {
		log.Error().Err(err).Msg("publish checkin-expired message failed")
		return err
	}

	if err := c.Jobs.Enqueue(ctx, domain.QueueDequeue, nil, 0); err != nil {
		log.Error().Err(err).Msg("enqueue dequeue failed")
		return err
	}

	if c.Audit != nil {
		c.Audit.PartyCheckinExpired(ctx, ids)
	}
	return nil
}
