package repository

import (
	"context"
	"fmt"

	"github.com/saloncore/booking-core/internal/models"
	"gorm.io/gorm"
)

// CatalogRepository handles read-only queries over services and staff.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListServices returns every visible service.
func (r *CatalogRepository) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	if err := r.db.WithContext(ctx).Where("is_visible = ?", true).Order("name asc").Find(&services).Error; err != nil {
		return nil, fmt.Errorf("error listing services: %w", err)
	}
	return services, nil
}

// GetService retrieves a single service by id, regardless of visibility.
func (r *CatalogRepository) GetService(ctx context.Context, serviceID string) (*models.Service, error) {
	var svc models.Service
	if err := r.db.WithContext(ctx).First(&svc, "id = ?", serviceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching service %s: %w", serviceID, err)
	}
	return &svc, nil
}

// GetServices retrieves multiple services by id, preserving no particular order.
func (r *CatalogRepository) GetServices(ctx context.Context, serviceIDs []string) ([]models.Service, error) {
	var services []models.Service
	if err := r.db.WithContext(ctx).Where("id IN (?)", serviceIDs).Find(&services).Error; err != nil {
		return nil, fmt.Errorf("error fetching services: %w", err)
	}
	return services, nil
}

// ListStaff returns every active staff member.
func (r *CatalogRepository) ListStaff(ctx context.Context) ([]models.Staff, error) {
	var staff []models.Staff
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("display_name asc").Find(&staff).Error; err != nil {
		return nil, fmt.Errorf("error listing staff: %w", err)
	}
	return staff, nil
}

// GetStaff retrieves a single staff member by id.
func (r *CatalogRepository) GetStaff(ctx context.Context, staffID string) (*models.Staff, error) {
	var staff models.Staff
	if err := r.db.WithContext(ctx).First(&staff, "id = ?", staffID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching staff %s: %w", staffID, err)
	}
	return &staff, nil
}

// StaffForService returns every active staff member whose skill set
// includes the given service, along with their per-service speed
// multiplier.
func (r *CatalogRepository) StaffForService(ctx context.Context, serviceID string) ([]models.Staff, map[string]float64, error) {
	var rows []models.StaffService
	if err := r.db.WithContext(ctx).Where("service_id = ?", serviceID).Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("error fetching staff_services for %s: %w", serviceID, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	staffIDs := make([]string, 0, len(rows))
	speeds := make(map[string]float64, len(rows))
	for _, row := range rows {
		staffIDs = append(staffIDs, row.StaffID)
		speeds[row.StaffID] = row.Speed
	}

	var staff []models.Staff
	if err := r.db.WithContext(ctx).Where("id IN (?) AND is_active = ?", staffIDs, true).Find(&staff).Error; err != nil {
		return nil, nil, fmt.Errorf("error fetching staff for service %s: %w", serviceID, err)
	}
	return staff, speeds, nil
}

// StaffHasSkill reports whether the given staff member can perform the
// given service.
func (r *CatalogRepository) StaffHasSkill(ctx context.Context, staffID, serviceID string) (bool, float64, error) {
	var row models.StaffService
	err := r.db.WithContext(ctx).Where("staff_id = ? AND service_id = ?", staffID, serviceID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("error checking staff skill: %w", err)
	}
	return true, row.Speed, nil
}

// WorkingWindows returns the disjoint open/close windows for a staff
// member on a given weekday, ordered by open time.
func (r *CatalogRepository) WorkingWindows(ctx context.Context, staffID string, weekday models.Weekday) ([]models.WorkingWindow, error) {
	var windows []models.WorkingWindow
	err := r.db.WithContext(ctx).
		Where("staff_id = ? AND weekday = ?", staffID, weekday).
		Order("open_time asc").
		Find(&windows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching working windows: %w", err)
	}
	return windows, nil
}

// Breaks returns the breaks carved out of a staff member's working
// windows on a given weekday.
func (r *CatalogRepository) Breaks(ctx context.Context, staffID string, weekday models.Weekday) ([]models.Break, error) {
	var breaks []models.Break
	err := r.db.WithContext(ctx).
		Where("staff_id = ? AND weekday = ?", staffID, weekday).
		Order("start_time asc").
		Find(&breaks).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching breaks: %w", err)
	}
	return breaks, nil
}
