// Package subscribers wires external NATS events into the core. Catalog
// mutation itself (admin CRUD) is out of scope for this module; the only
// inbound event handled here is the invalidation signal admin flows emit
// after writing to the catalog tables directly.
package subscribers

import (
	"context"
	"encoding/json"

	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/pkg/logger"
)

// NatsEventHandlers holds the dependencies needed to react to inbound
// NATS events.
type NatsEventHandlers struct {
	Catalog *catalog.Catalog
	Logger  *logger.Logger
}

func NewNatsEventHandlers(cat *catalog.Catalog, log *logger.Logger) *NatsEventHandlers {
	return &NatsEventHandlers{Catalog: cat, Logger: log}
}

// CatalogInvalidatedPayload matches the 'catalog.invalidated' event
// admin flows publish after writing to services, staff, working_windows,
// or breaks.
type CatalogInvalidatedPayload struct {
	Reason string `json:"reason"`
}

// HandleCatalogInvalidated drops the redis-backed catalog cache (shared
// by every replica, not held in process memory) so the next read observes
// the admin write. Idempotent: invalidating twice is harmless.
func (h *NatsEventHandlers) HandleCatalogInvalidated(data []byte) error {
	var payload CatalogInvalidatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.Logger.Error("failed to unmarshal CatalogInvalidatedPayload", "error", err, "rawData", string(data))
		return err
	}

	h.Logger.Info("processing catalog.invalidated event", "reason", payload.Reason)
	h.Catalog.Invalidate(context.Background())
	return nil
}
