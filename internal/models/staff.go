package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Weekday mirrors time.Weekday but stores as an uppercase English name.
type Weekday string

const (
	Sunday    Weekday = "SUNDAY"
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
)

// WeekdayFromTime converts a time.Weekday to the stored enum representation.
func WeekdayFromTime(w time.Weekday) Weekday {
	return [...]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}[w]
}

// Staff is a bookable resource (a "master") with a weekly schedule.
type Staff struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName string `gorm:"type:varchar(255);not null" json:"displayName"`
	IsActive    bool   `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Staff) TableName() string { return "staff" }

func (s *Staff) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// StaffService joins a staff member to a service they can perform, carrying
// the per-staff speed multiplier (rational, stored as a float; default 1.0).
type StaffService struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	StaffID   string  `gorm:"index:idx_staff_service,priority:1;type:uuid;not null" json:"staffId"`
	ServiceID string  `gorm:"index:idx_staff_service,priority:2;type:uuid;not null" json:"serviceId"`
	Speed     float64 `gorm:"not null;default:1.0" json:"speed"`
}

func (StaffService) TableName() string { return "staff_services" }

// WorkingWindow is a disjoint [open, close) interval in local time on a
// given weekday.
type WorkingWindow struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	StaffID   string  `gorm:"index:idx_working_staff_day,priority:1;type:uuid;not null" json:"staffId"`
	Weekday   Weekday `gorm:"index:idx_working_staff_day,priority:2;type:varchar(10);not null" json:"weekday"`
	OpenTime  string  `gorm:"type:varchar(5);not null" json:"openTime"`  // "HH:MM"
	CloseTime string  `gorm:"type:varchar(5);not null" json:"closeTime"` // "HH:MM"
}

func (WorkingWindow) TableName() string { return "working_windows" }

// Break is a subset of a WorkingWindow carved out as unavailable.
type Break struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	StaffID   string  `gorm:"index:idx_break_staff_day,priority:1;type:uuid;not null" json:"staffId"`
	Weekday   Weekday `gorm:"index:idx_break_staff_day,priority:2;type:varchar(10);not null" json:"weekday"`
	StartTime string  `gorm:"type:varchar(5);not null" json:"startTime"`
	EndTime   string  `gorm:"type:varchar(5);not null" json:"endTime"`
}

func (Break) TableName() string { return "breaks" }
