package models

import (
	"time"

	"github.com/angelmondragon/chorepay-backend/pkg/enums"
)

// Task is a chore within a household. AssigneeID is nil for legacy rows that
// were never scoped to a profile.
type Task struct {
	HouseholdID string           `gorm:"column:household_id;type:text;primaryKey"`
	ID          string           `gorm:"column:id;type:text;primaryKey"`
	AssigneeID  *string          `gorm:"column:assignee_id;type:text"`
	Title       string           `gorm:"column:title;type:text;not null"`
	Description *string          `gorm:"column:description;type:text"`
	ValueCents  int64            `gorm:"column:value_cents;not null;default:0"`
	Status      enums.TaskStatus `gorm:"column:status;type:text;not null"`
	PaidAt      *time.Time       `gorm:"column:paid_at"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
