package cacheinv

import (
	"context"
	"log/slog"

	"github.com/retailops/backoffice/internal/events"
)

// Invalidatable is the cache surface the invalidator drives.
type Invalidatable interface {
	Invalidate(key QueryKey)
}

// Invalidator maps received change events to cached queries.
type Invalidator struct {
	cache  Invalidatable
	table  Table
	logger *slog.Logger
}

// NewInvalidator constructs an Invalidator. A nil table selects DefaultTable.
func NewInvalidator(cache Invalidatable, table Table, logger *slog.Logger) *Invalidator {
	if table == nil {
		table = DefaultTable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{cache: cache, table: table, logger: logger}
}

// Handle invalidates every query mapped to the event's topic and returns the
// keys it touched. Topics this client does not know are ignored, so a newer
// server can introduce topics without breaking older clients.
func (i *Invalidator) Handle(_ context.Context, event events.Event) []QueryKey {
	keys := i.table.Keys(event.Type)
	if len(keys) == 0 {
		i.logger.Debug("cache invalidation ignored unknown topic", slog.String("topic", string(event.Type)))
		return nil
	}
	for _, key := range keys {
		i.cache.Invalidate(key)
	}
	return keys
}

// HandleMessage decodes a wire message and handles it. Malformed messages and
// control frames are ignored.
func (i *Invalidator) HandleMessage(ctx context.Context, payload []byte) []QueryKey {
	event, err := events.Decode(payload)
	if err != nil {
		i.logger.Debug("cache invalidation ignored malformed message", slog.Any("error", err))
		return nil
	}
	return i.Handle(ctx, event)
}
