// Package domain holds the core types, sentinel errors, and store/bus
// interfaces shared by every service. Nothing here talks to Postgres,
// Redis, or RabbitMQ directly.
package domain

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusCheckingIn Status = "checking-in"
	StatusSeated     Status = "seated"
)

var (
	ErrPartyNotFound          = errors.New("party not found")
	ErrPartyCouldNotBeCreated = errors.New("party could not be created")
	ErrPartyCouldNotBeDeleted = errors.New("party could not be deleted")
	ErrPartyCouldNotSetSeated = errors.New("party could not be seated")

	ErrCacheMiss = errors.New("cache miss")
)

// Party is the single persistent entity, mirroring the `parties` table.
type Party struct {
	ID                string
	PartyID           string
	Name              string
	Size              int
	QueuedAt          time.Time
	Status            Status
	CheckinExpiration *time.Time
	SeatExpiration    *time.Time
}

// QueuePosition is a row in the canonical (queued_at, party_id) ordering.
type QueuePosition struct {
	PartyID string `json:"partyID"`
	Row     int    `json:"row"`
}

// CreateResult is what create() hands back to the session-bound API.
type CreateResult struct {
	PartyID         string
	PositionInQueue int
}

// PartyStore is the Party Store component. Every method is a
// single transaction; none return partial results on error.
type PartyStore interface {
	GetByPartyID(ctx context.Context, partyID string) (Party, error)
	Create(ctx context.Context, name string, size int) (CreateResult, error)
	DeleteByPartyID(ctx context.Context, partyID string) error

	AvailableSeats(ctx context.Context) (int, error)
	CurrentQueuePositions(ctx context.Context) ([]QueuePosition, error)
	PartiesToDequeue(ctx context.Context, available int) ([]string, error)

	SetCheckingIn(ctx context.Context, partyIDs []string) (time.Time, error)
	DeleteCheckinExpired(ctx context.Context) ([]string, error)

	SetSeated(ctx context.Context, partyID string, size int) (time.Time, error)
	RemoveExpiredSeats(ctx context.Context) ([]string, error)
}

// Clock is the one source of "now" for application code outside the store
// (the store itself uses the database's own NOW()).
type Clock interface {
	Now() time.Time
}

// JobBus is the Job Bus component: named durable queues with
// delayed delivery, one worker per queue.
type JobBus interface {
	Enqueue(ctx context.Context, queue string, payload any, delay time.Duration) error
	StartWorker(ctx context.Context, queue string, handler func(ctx context.Context) error) error
}

// Message is a generic envelope delivered by a PubSub subscription.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is a live channel subscription returned by PubSub.Subscribe.
type Subscription interface {
	Messages() <-chan Message
	Unsubscribe(ctx context.Context, channels ...string) error
	Close() error
}

// PubSub is the Pub/Sub Bus component: broadcast channels plus
// a small key/value cache used to replay the latest snapshot.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)

	CacheSet(ctx context.Context, key string, payload any, ttl time.Duration) error
	CacheGet(ctx context.Context, key string, dest any) error
}

// Queue names used on the Job Bus.
const (
	QueueDequeue        = "dequeue"
	QueueCheckinExpired = "checkin-expired"
	QueueSeatExpired    = "seat-expired"
)

// Pub/sub channel names.
const (
	ChannelDequeued            = "dequeued-channel"
	ChannelCheckinExpired      = "checking-in-expired-channel"
	ChannelQueuePositions      = "queue-positions-channel"
)

// Cache key for the latest queue-positions snapshot.
const CacheKeyQueuedPartyPositions = "queued-party-positions"
