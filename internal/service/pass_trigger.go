package service

import (
	"context"

	"github.com/uassett/Epsydev/pkg/distributed"
)

// CoordinatorTrigger publishes enqueue events so other instances run passes
// for the affected bucket too.
type CoordinatorTrigger struct {
	coordinator *distributed.Coordinator
}

func NewCoordinatorTrigger(coordinator *distributed.Coordinator) *CoordinatorTrigger {
	return &CoordinatorTrigger{coordinator: coordinator}
}

func (t *CoordinatorTrigger) TriggerPass(ctx context.Context, region, mode, playerID string) error {
	return t.coordinator.Publish(ctx, distributed.BucketEvent{
		Type:     distributed.EventPlayerEnqueued,
		Region:   region,
		Mode:     mode,
		PlayerID: playerID,
	})
}
