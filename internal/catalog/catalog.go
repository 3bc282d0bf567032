// Package catalog exposes the read-only service and staff catalog as
// immutable snapshots, cached for a short TTL and invalidated on writes
// from admin flows.
package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saloncore/booking-core/internal/models"
	"github.com/saloncore/booking-core/internal/repository"
	"github.com/saloncore/booking-core/pkg/logger"
)

// ServiceView is an immutable snapshot of a bookable service.
type ServiceView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"durationMinutes"`
	PriceMinor      int64  `json:"priceMinor"`
	Currency        string `json:"currency"`
	RequiredSkill   string `json:"requiredSkill"`
}

// StaffView is an immutable snapshot of a bookable staff member.
type StaffView struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Speed       float64 `json:"speed,omitempty"`
}

// WorkingWindowView is a disjoint open/close interval in local time.
type WorkingWindowView struct {
	Weekday   models.Weekday `json:"weekday"`
	OpenTime  string         `json:"openTime"`
	CloseTime string         `json:"closeTime"`
}

// BreakView is an interval carved out of a working window.
type BreakView struct {
	Weekday   models.Weekday `json:"weekday"`
	StartTime string         `json:"startTime"`
	EndTime   string         `json:"endTime"`
}

const cacheKeyPrefix = "catalog:"

// Catalog answers read-only queries about services and staff, caching
// results in redis for up to ttl.
type Catalog struct {
	repo   *repository.CatalogRepository
	cache  *repository.CacheRepository
	ttl    time.Duration
	logger *logger.Logger
}

func New(repo *repository.CatalogRepository, cache *repository.CacheRepository, ttlSeconds int, log *logger.Logger) *Catalog {
	return &Catalog{repo: repo, cache: cache, ttl: time.Duration(ttlSeconds) * time.Second, logger: log}
}

// ListServices returns every visible service.
func (c *Catalog) ListServices(ctx context.Context) ([]ServiceView, error) {
	key := cacheKeyPrefix + "services"
	var views []ServiceView
	if c.readCached(ctx, key, &views) {
		return views, nil
	}

	services, err := c.repo.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	views = make([]ServiceView, 0, len(services))
	for _, s := range services {
		views = append(views, toServiceView(s))
	}
	c.writeCached(ctx, key, views)
	return views, nil
}

// GetService returns a single service by id, visible or not.
func (c *Catalog) GetService(ctx context.Context, serviceID string) (*ServiceView, error) {
	svc, err := c.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, nil
	}
	view := toServiceView(*svc)
	return &view, nil
}

// GetServices returns a bundle's worth of services keyed by id; missing
// ids are simply absent from the returned map.
func (c *Catalog) GetServices(ctx context.Context, serviceIDs []string) (map[string]ServiceView, error) {
	services, err := c.repo.GetServices(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ServiceView, len(services))
	for _, s := range services {
		out[s.ID] = toServiceView(s)
	}
	return out, nil
}

// ListStaff returns every active staff member.
func (c *Catalog) ListStaff(ctx context.Context) ([]StaffView, error) {
	staff, err := c.repo.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]StaffView, 0, len(staff))
	for _, s := range staff {
		views = append(views, StaffView{ID: s.ID, DisplayName: s.DisplayName})
	}
	return views, nil
}

// StaffForService returns every active staff member qualified to perform
// a service, with their per-service speed multiplier attached.
func (c *Catalog) StaffForService(ctx context.Context, serviceID string) ([]StaffView, error) {
	staff, speeds, err := c.repo.StaffForService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	views := make([]StaffView, 0, len(staff))
	for _, s := range staff {
		views = append(views, StaffView{ID: s.ID, DisplayName: s.DisplayName, Speed: speeds[s.ID]})
	}
	return views, nil
}

// StaffSkill reports whether staffID can perform serviceID and, if so,
// the speed multiplier to apply to the service's base duration.
func (c *Catalog) StaffSkill(ctx context.Context, staffID, serviceID string) (bool, float64, error) {
	return c.repo.StaffHasSkill(ctx, staffID, serviceID)
}

// WorkingStructure returns a staff member's working windows and breaks
// for a given weekday.
func (c *Catalog) WorkingStructure(ctx context.Context, staffID string, weekday models.Weekday) ([]WorkingWindowView, []BreakView, error) {
	windows, err := c.repo.WorkingWindows(ctx, staffID, weekday)
	if err != nil {
		return nil, nil, err
	}
	breaks, err := c.repo.Breaks(ctx, staffID, weekday)
	if err != nil {
		return nil, nil, err
	}

	windowViews := make([]WorkingWindowView, 0, len(windows))
	for _, w := range windows {
		windowViews = append(windowViews, WorkingWindowView{Weekday: w.Weekday, OpenTime: w.OpenTime, CloseTime: w.CloseTime})
	}
	breakViews := make([]BreakView, 0, len(breaks))
	for _, b := range breaks {
		breakViews = append(breakViews, BreakView{Weekday: b.Weekday, StartTime: b.StartTime, EndTime: b.EndTime})
	}
	return windowViews, breakViews, nil
}

// Invalidate drops every cached catalog entry; called by the
// CatalogInvalidated subscriber.
func (c *Catalog) Invalidate(ctx context.Context) {
	if err := c.cache.DeletePrefix(ctx, cacheKeyPrefix); err != nil {
		c.logger.Warn("failed to invalidate catalog cache", "error", err)
	}
}

func (c *Catalog) readCached(ctx context.Context, key string, out interface{}) bool {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("catalog cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.logger.Warn("catalog cache decode failed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Catalog) writeCached(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("catalog cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.cache.Set(ctx, key, string(raw), c.ttl); err != nil {
		c.logger.Warn("catalog cache write failed", "key", key, "error", err)
	}
}

func toServiceView(s models.Service) ServiceView {
	return ServiceView{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		DurationMinutes: s.DurationMinutes,
		PriceMinor:      s.PriceMinor,
		Currency:        s.Currency,
		RequiredSkill:   s.RequiredSkill,
	}
}
