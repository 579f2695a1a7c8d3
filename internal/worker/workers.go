// Package worker binds each Job Bus queue to its service: thin adapters, no logic of their own.
package worker

import (
	"context"

	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/service"
)

func RunDequeueWorker(ctx context.Context, jobs domain.JobBus, svc *service.Dequeue) error {
	return jobs.StartWorker(ctx, domain.QueueDequeue, svc.Run)
}

func RunCheckinExpiryWorker(ctx context.Context, jobs domain.JobBus, svc *service.CheckinExpiry) error {
	return jobs.StartWorker(ctx, domain.QueueCheckinExpired, svc.Run)
}

func RunSeatExpiryWorker(ctx context.Context, jobs domain.JobBus, svc *service.SeatExpiry) error {
	return jobs.StartWorker(ctx, domain.QueueSeatExpired, svc.Run)
}
