package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chorepay-backend/pkg/types"
)

// Profile is a child account within a household. BalanceCents is canonical;
// Balance is the legacy dollar column rewritten alongside it on every ledger write.
type Profile struct {
	HouseholdID  string           `gorm:"column:household_id;type:text;primaryKey"`
	ID           string           `gorm:"column:id;type:text;primaryKey"`
	DisplayName  string           `gorm:"column:display_name;type:text;not null"`
	BalanceCents *int64           `gorm:"column:balance_cents"`
	Balance      *decimal.Decimal `gorm:"column:balance;type:numeric(12,2)"`
	Goals        types.GoalList   `gorm:"column:goals;type:jsonb;not null"`
	Version      int64            `gorm:"column:version;not null;default:0"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
