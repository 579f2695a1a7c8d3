// StreamBridge implements the Event Stream Bridge: one instance per open
// client connection, subscribing to the Pub/Sub Bus on the client's behalf
// and forwarding only messages concerning that client's party_id, over a
// keepalive-ticking SSE connection.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/baechuer/waitline/internal/contracts/event"
	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/pkg/logger"
	"github.com/rs/zerolog"
)

const keepaliveInterval = 15 * time.Second

type StreamBridge struct {
	PubSub domain.PubSub
}

func NewStreamBridge(pubsub domain.PubSub) *StreamBridge {
	return &StreamBridge{PubSub: pubsub}
}

func (b *StreamBridge) Serve(w http.ResponseWriter, r *http.Request, party domain.Party) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	log := logger.WithCtx(ctx).With().Str("component", "event_stream_bridge").Str("party_id", party.PartyID).Logger()

	sub, err := b.PubSub.Subscribe(ctx,
		domain.ChannelDequeued,
		domain.ChannelCheckinExpired,
		domain.ChannelQueuePositions,
	)
	if err != nil {
		log.Error().Err(err).Msg("subscribe failed")
		return
	}
	defer sub.Close()

	write := func(f event.Frame) bool {
		body, err := json.Marshal(f)
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", body); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	// Initial catch-up.
	if party.Status == domain.StatusCheckingIn && party.CheckinExpiration != nil {
		exp := *party.CheckinExpiration
		write(event.Frame{Status: event.StatusCanDequeue, CheckingInExpiration: &exp})
		_ = sub.Unsubscribe(ctx, domain.ChannelDequeued, domain.ChannelQueuePositions)
	} else {
		var snapshot event.QueuePositionsMessage
		if err := b.PubSub.CacheGet(ctx, domain.CacheKeyQueuedPartyPositions, &snapshot); err == nil {
			applyQueuePositions(write, party.PartyID, snapshot, log)
		}
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if !handleMessage(ctx, sub, write, party.PartyID, msg, log) {
				return
			}

		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleMessage returns false when the stream should end.
func handleMessage(ctx context.Context, sub domain.Subscription, write func(event.Frame) bool, partyID string, msg domain.Message, log zerolog.Logger) bool {
	switch msg.Channel {
	case domain.ChannelDequeued:
		var m event.DequeuedMessage
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return true
		}
		if !contains(m.PartyIDs, partyID) {
			return true
		}
		exp := m.CheckingInExpiration
		if !write(event.Frame{Status: event.StatusCanDequeue, CheckingInExpiration: &exp}) {
			return false
		}
		_ = sub.Unsubscribe(ctx, domain.ChannelDequeued, domain.ChannelQueuePositions)
		return true

	case domain.ChannelQueuePositions:
		var m event.QueuePositionsMessage
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return true
		}
		applyQueuePositions(write, partyID, m, log)
		return true

	case domain.ChannelCheckinExpired:
		var m event.CheckinExpiredMessage
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return true
		}
		if !contains(m.PartyIDs, partyID) {
			return true
		}
		write(event.Frame{Status: event.StatusCheckinWindowExpired})
		return false // end the SSE stream

	default:
		return true
	}
}

func applyQueuePositions(write func(event.Frame) bool, partyID string, m event.QueuePositionsMessage, log zerolog.Logger) {
	for _, e := range m.QueuedParties {
		if e.PartyID == partyID {
			row := e.Row
			write(event.Frame{Status: event.StatusQueuePositionUpdate, Position: &row})
			return
		}
	}
	log.Debug().Msg("party absent from queue-positions snapshot; ignoring")
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
