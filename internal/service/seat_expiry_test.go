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

func TestSeatExpiry_NothingExpired_NoOp(t *testing.T) {
	store := new(MockStore)
	jobs := new(MockJobBus)

	store.On("RemoveExpiredSeats", mock.Anything).Return([]string{}, nil).Once()

	svc := &service.SeatExpiry{Store: store, Jobs: jobs, Audit: audit.New()}
	err := svc.Run(context.Background())

	assert.NoError(t, err)
	jobs.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A seat freeing up re-triggers dequeue but never broadcasts to clients
// directly; clients only learn about it via the subsequent queue-positions
// snapshot or dequeued-channel event.
func TestSeatExpiry_FreesSeatsWithoutBroadcast(t *testing.T) {
	store := new(MockStore)
	jobs := new(MockJobBus)

	store.On("RemoveExpiredSeats", mock.Anything).Return([]string{"p9"}, nil).Once()
	jobs.On("Enqueue", mock.Anything, domain.QueueDequeue, mock.Anything, mock.Anything).Return(nil).Once()

	svc := &service.SeatExpiry{Store: store, Jobs: jobs, Audit: audit.New()}
	err := svc.Run(context.Background())

	assert.NoError(t, err)
	store.AssertExpectations(t)
	jobs.AssertExpectations(t)
}
