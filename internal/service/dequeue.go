// Package service implements the Dequeue, Check-in Expiry, and Seat
// Expiry services plus the session-bound party API, as thin orchestration
// over domain.PartyStore/PubSub/JobBus.
package service

import (
	"context"
	"time"

	"github.com/baechuer/waitline/internal/audit"
	"github.com/baechuer/waitline/internal/clock"
	"github.com/baechuer/waitline/internal/contracts/event"
	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/pkg/logger"
)

// Dequeue admits as many queued parties as available seats allow and
// republishes the current queue positions. Run ignores its triggering job
// payload entirely; all decisions come from re-reading store state.
type Dequeue struct {
	Store  domain.PartyStore
	PubSub domain.PubSub
	Jobs   domain.JobBus
	Clock  domain.Clock
	Audit  *audit.Logger
}

func (d *Dequeue) Run(ctx context.Context) error {
	log := logger.Logger.With().Str("component", "dequeue_service").Logger()

	available, err := d.Store.AvailableSeats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("available_seats failed")
		return err
	}

	if available > 0 {
		ids, err := d.Store.PartiesToDequeue(ctx, available)
		if err != nil {
			log.Error().Err(err).Msg("parties_to_dequeue failed")
			return err
		}

		if len(ids) > 0 {
			expiration, err := d.Store.SetCheckingIn(ctx, ids)
			if err != nil {
				log.Error().Err(err).Msg("set_checking_in failed")
				return err
			}

			delay := clock.DelayUntil(d.Clock, expiration)
			if err := d.Jobs.Enqueue(ctx, domain.QueueCheckinExpired, nil, delay); err != nil {
				log.Error().Err(err).Msg("enqueue checkin-expired failed")
				return err
			}

			if err := d.PubSub.Publish(ctx, domain.ChannelDequeued, event.DequeuedMessage{
				PartyIDs:             ids,
				CheckingInExpiration: expiration,
			}); err != nil {
				log.Error().Err(err).Msg("publish dequeue message failed")
				return err
			}

			if d.Audit != nil {
				d.Audit.PartyCheckingIn(ctx, ids)
			}
		}
	}

	return d.publishQueuePositions(ctx)
}

func (d *Dequeue) publishQueuePositions(ctx context.Context) error {
	log := logger.Logger.With().Str("component", "dequeue_service").Logger()

	positions, err := d.Store.CurrentQueuePositions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("current_queue_positions failed")
		return err
	}

	entries := make([]event.QueuePositionEntry, 0, len(positions))
	for _, p := range positions {
		entries = append(entries, event.QueuePositionEntry{PartyID: p.PartyID, Row: p.Row})
	}
	msg := event.QueuePositionsMessage{QueuedParties: entries}

	if err := d.PubSub.CacheSet(ctx, domain.CacheKeyQueuedPartyPositions, msg, 24*time.Hour); err != nil {
		log.Error().Err(err).Msg("cache set queue positions failed")
		return err
	}

	return d.PubSub.Publish(ctx, domain.ChannelQueuePositions, msg)
}
