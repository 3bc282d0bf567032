package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is a bookable offering with a base duration and price.
type Service struct {
	ID              string `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string `gorm:"type:varchar(255);not null" json:"name"`
	Description     string `gorm:"type:text" json:"description"`
	DurationMinutes int    `gorm:"not null" json:"durationMinutes"`
	PriceMinor      int64  `gorm:"not null" json:"priceMinor"`
	Currency        string `gorm:"type:varchar(10);not null" json:"currency"`
	RequiredSkill   string `gorm:"type:varchar(255);index;not null" json:"requiredSkill"`
	IsVisible       bool   `gorm:"default:true" json:"isVisible"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Service) TableName() string { return "services" }

func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.DurationMinutes < 1 {
		return gorm.ErrInvalidData
	}
	return nil
}
