package sink

import (
	"context"

	"authwatch/internal/model"
)

// Sink consumes emitted alerts. Delivery is at-most-once from the core's
// perspective: a failed Deliver is logged by the dispatcher and the alert is
// not re-queued.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, alert model.Alert) error
}
