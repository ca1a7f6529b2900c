package sink

import (
	"context"

	"authwatch/internal/model"
	"authwatch/internal/storage"
)

// StoreSink persists alerts through the configured storage backend. Kept
// behind the dispatcher so database latency never stalls ingestion.
type StoreSink struct {
	store storage.Store
}

func NewStore(store storage.Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string {
	return "store"
}

func (s *StoreSink) Deliver(ctx context.Context, alert model.Alert) error {
	if s.store == nil {
		return nil
	}
	return s.store.SaveAlert(ctx, alert)
}
