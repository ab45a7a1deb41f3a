package api

import (
	"context"

	"github.com/pushchain/pdurable/relayer/queue"
)

// QueueReader is the read side of the staging queue.
type QueueReader interface {
	Load(ctx context.Context) ([]queue.Record, error)
}

// HealthChecker reports whether the RPC endpoints are reachable.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}
