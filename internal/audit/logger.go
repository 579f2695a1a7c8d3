// Package audit records party-lifecycle transitions as structured log
// events, separate from request-scoped HTTP access logging.
package audit

import (
	"context"

	"github.com/baechuer/waitline/internal/pkg/logger"
	"github.com/rs/zerolog"
)

type Logger struct {
	log zerolog.Logger
}

func New() *Logger {
	return &Logger{log: logger.Logger.With().Str("component", "audit").Logger()}
}

func (a *Logger) PartyCreated(ctx context.Context, partyID string, size, position int) {
	logger.WithCtx(ctx).Info().
		Str("event", "party_created").
		Str("party_id", partyID).
		Int("size", size).
		Int("position", position).
		Msg("party created")
}

func (a *Logger) PartyCheckingIn(ctx context.Context, partyIDs []string) {
	logger.WithCtx(ctx).Info().
		Str("event", "party_checking_in").
		Strs("party_ids", partyIDs).
		Msg("parties admitted to checking-in")
}

func (a *Logger) PartySeated(ctx context.Context, partyID string) {
	logger.WithCtx(ctx).Info().
		Str("event", "party_seated").
		Str("party_id", partyID).
		Msg("party seated")
}

func (a *Logger) PartyCheckinExpired(ctx context.Context, partyIDs []string) {
	logger.WithCtx(ctx).Info().
		Str("event", "party_checkin_expired").
		Strs("party_ids", partyIDs).
		Msg("checking-in window expired")
}

func (a *Logger) PartySeatExpired(ctx context.Context, partyIDs []string) {
	logger.WithCtx(ctx).Info().
		Str("event", "party_seat_expired").
		Strs("party_ids", partyIDs).
		Msg("seat service interval elapsed")
}

func (a *Logger) PartyLeft(ctx context.Context, partyID string) {
	logger.WithCtx(ctx).Info().
		Str("event", "party_left").
		Str("party_id", partyID).
		Msg("party left the queue")
}
