package service_test

import (
	"context"
	"testing"

	"github.com/baechuer/waitline/internal/audit"
	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCheckinExpiry_NothingExpired_NoOp(t *testing.T) {
	store := new(MockStore)
	pubsub := new(MockPubSub)
	jobs := new(MockJobBus)

	store.On("DeleteCheckinExpired", mock.Anything).Return([]string{}, nil).Once()

	svc := &service.CheckinExpiry{Store: store, PubSub: pubsub, Jobs: jobs, Audit: audit.New()}
	err := svc.Run(context.Background())

	assert.NoError(t, err)
	pubsub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	jobs.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckinExpiry_PurgesAndReDequeues(t *testing.T) {
	store := new(MockStore)
	pubsub := new(MockPubSub)
	jobs := new(MockJobBus)

	store.On("DeleteCheckinExpired", mock.Anything).Return([]string{"p1"}, nil).Once()
	pubsub.On("Publish", mock.Anything, domain.ChannelCheckinExpired, mock.Anything).Return(nil).Once()
	jobs.On("Enqueue", mock.Anything, domain.QueueDequeue, mock.Anything, mock.Anything).Return(nil).Once()

	svc := &service.CheckinExpiry{Store: store, PubSub: pubsub, Jobs: jobs, Audit: audit.New()}
	err := svc.Run(context.Background())

	assert.NoError(t, err)
	store.AssertExpectations(t)
	pubsub.AssertExpectations(t)
	jobs.AssertExpectations(t)
}
