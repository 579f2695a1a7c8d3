package service

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/baechuer/waitline/internal/audit"
	"github.com/baechuer/waitline/internal/clock"
	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/pkg/logger"
)

// PartyAPI implements the Session-bound API's business logic.
// The cookie session itself is owned by the transport layer; this type
// never sees a request or a session, only validated arguments, so it can
// be tested against plain fakes, with no HTTP or cookie machinery involved.
type PartyAPI struct {
	Store              domain.PartyStore
	Jobs               domain.JobBus
	Clock              domain.Clock
	Audit              *audit.Logger
	MaxSeats           int
	MaxPartyNameLength int
}

// CreateParty validates name/size and, on success, enqueues
// a dequeue job so a newly queued party is considered immediately.
func (p *PartyAPI) CreateParty(ctx context.Context, name string, size int) (domain.CreateResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > p.MaxPartyNameLength {
		return domain.CreateResult{}, domain.ErrPartyCouldNotBeCreated
	}
	if size < 1 || size > p.MaxSeats {
		return domain.CreateResult{}, domain.ErrPartyCouldNotBeCreated
	}
	escaped := html.EscapeString(name)

	result, err := p.Store.Create(ctx, escaped, size)
	if err != nil {
		return domain.CreateResult{}, err
	}

	if err := p.Jobs.Enqueue(ctx, domain.QueueDequeue, nil, 0); err != nil {
		logger.WithCtx(ctx).Error().Err(err).Msg("enqueue dequeue after create failed")
	}

	if p.Audit != nil {
		p.Audit.PartyCreated(ctx, result.PartyID, size, result.PositionInQueue)
	}
	return result, nil
}

// CheckIn promotes a checking-in party to seated and schedules its
// seat-expired job.
func (p *PartyAPI) CheckIn(ctx context.Context, partyID string, size int) (time.Time, error) {
	expiration, err := p.Store.SetSeated(ctx, partyID, size)
	if err != nil {
		return time.Time{}, err
	}

	delay := clock.DelayUntil(p.Clock, expiration)
	if err := p.Jobs.Enqueue(ctx, domain.QueueSeatExpired, nil, delay); err != nil {
		logger.WithCtx(ctx).Error().Err(err).Msg("enqueue seat-expired after check-in failed")
	}

	if p.Audit != nil {
		p.Audit.PartySeated(ctx, partyID)
	}
	return expiration, nil
}

// LeaveQueue deletes a party by id and, on success, enqueues a dequeue job
// since a seat or queue slot may have just freed.
func (p *PartyAPI) LeaveQueue(ctx context.Context, partyID string) error {
	if err := p.Store.DeleteByPartyID(ctx, partyID); err != nil {
		return err
	}

	if err := p.Jobs.Enqueue(ctx, domain.QueueDequeue, nil, 0); err != nil {
		logger.WithCtx(ctx).Error().Err(err).Msg("enqueue dequeue after leave failed")
	}

	if p.Audit != nil {
		p.Audit.PartyLeft(ctx, partyID)
	}
	return nil
}

// GetParty is used to verify party existence before delegating to the
// Event Stream Bridge.
func (p *PartyAPI) GetParty(ctx context.Context, partyID string) (domain.Party, error) {
	return p.Store.GetByPartyID(ctx, partyID)
}
