package models

import "time"

// Policy is the singleton row of business-wide booking rules. The row is
// addressed by a fixed id so PolicyRepository.Get never needs a lookup
// key. Get reads the row from the database on every call; it is not
// cached.
type Policy struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	LeadTimeMinutes       int `gorm:"not null;default:0" json:"leadTimeMinutes"`
	FutureWindowDays      int `gorm:"not null;default:60" json:"futureWindowDays"`
	RescheduleLockHours   int `gorm:"not null;default:3" json:"rescheduleLockHours"`
	CancelLockHours       int `gorm:"not null;default:3" json:"cancelLockHours"`
	HoldTTLMinutes        int `gorm:"not null;default:15" json:"holdTtlMinutes"`
	PaymentGraceMinutes   int `gorm:"not null;default:30" json:"paymentGraceMinutes"`
	ReminderLeadMinutes   int `gorm:"not null;default:0" json:"reminderLeadMinutes"`
	SlotGridMinutes       int `gorm:"not null;default:15" json:"slotGridMinutes"`

	OnlineEnabled         bool `gorm:"not null;default:true" json:"onlineEnabled"`
	OnlineDiscountPercent int  `gorm:"not null;default:0" json:"onlineDiscountPercent"`

	Currency       string `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	BusinessTZ     string `gorm:"type:varchar(64);not null;default:'UTC'" json:"businessTimezone"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func (Policy) TableName() string { return "policies" }

// SingletonPolicyID is the fixed primary key of the one Policy row.
const SingletonPolicyID uint = 1
