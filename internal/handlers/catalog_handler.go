package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/pkg/logger"
)

// CatalogHandler serves the read-only service and staff catalog.
type CatalogHandler struct {
	catalog *catalog.Catalog
	logger  *logger.Logger
}

func NewCatalogHandler(cat *catalog.Catalog, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: cat, logger: log}
}

// ListServices handles GET /api/v1/services.
func (h *CatalogHandler) ListServices(c *gin.Context) {
	services, err := h.catalog.ListServices(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list services", "error", err)
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, services)
}

// ListStaff handles GET /api/v1/staff?service_ids=a,b,c. With no filter it
// returns every active staff member; with a filter it returns the
// intersection of staff qualified for every listed service.
func (h *CatalogHandler) ListStaff(c *gin.Context) {
	ctx := c.Request.Context()
	serviceIDs := splitCSV(c.Query("service_ids"))

	if len(serviceIDs) == 0 {
		staff, err := h.catalog.ListStaff(ctx)
		if err != nil {
			respondErr(c, err)
			return
		}
		ok(c, http.StatusOK, staff)
		return
	}

	staff, err := h.catalog.StaffForService(ctx, serviceIDs[0])
	if err != nil {
		respondErr(c, err)
		return
	}
	qualified := map[string]catalog.StaffView{}
	for _, s := range staff {
		qualified[s.ID] = s
	}
	for _, serviceID := range serviceIDs[1:] {
		next, err := h.catalog.StaffForService(ctx, serviceID)
		if err != nil {
			respondErr(c, err)
			return
		}
		nextSet := map[string]bool{}
		for _, s := range next {
			nextSet[s.ID] = true
		}
		for id := range qualified {
			if !nextSet[id] {
				delete(qualified, id)
			}
		}
	}
	result := make([]catalog.StaffView, 0, len(qualified))
	for _, s := range qualified {
		result = append(result, s)
	}
	ok(c, http.StatusOK, result)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
