package repository

import (
	"context"
	"fmt"

	"github.com/saloncore/booking-core/internal/models"
	"gorm.io/gorm"
)

// PolicyRepository reads and updates the singleton Policy row.
type PolicyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Get returns the singleton policy row.
func (r *PolicyRepository) Get(ctx context.Context) (*models.Policy, error) {
	var policy models.Policy
	if err := r.db.WithContext(ctx).First(&policy, "id = ?", models.SingletonPolicyID).Error; err != nil {
		return nil, fmt.Errorf("error fetching policy: %w", err)
	}
	return &policy, nil
}

// Update persists changes to the singleton policy row.
func (r *PolicyRepository) Update(ctx context.Context, policy *models.Policy) error {
	policy.ID = models.SingletonPolicyID
	if err := r.db.WithContext(ctx).Save(policy).Error; err != nil {
		return fmt.Errorf("error updating policy: %w", err)
	}
	return nil
}
