package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chorepay-backend/pkg/enums"
)

// LedgerTransaction is an append-only ledger entry owned by a profile.
// AmountCents and Type never change after insert.
type LedgerTransaction struct {
	ID                string                  `gorm:"column:id;type:text;primaryKey"`
	HouseholdID       string                  `gorm:"column:household_id;type:text;not null"`
	ProfileID         string                  `gorm:"column:profile_id;type:text;not null"`
	AmountCents       int64                   `gorm:"column:amount_cents;not null"`
	Amount            decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Memo              string                  `gorm:"column:memo;type:text;not null"`
	Type              enums.TransactionType   `gorm:"column:type;type:text;not null"`
	Status            enums.TransactionStatus `gorm:"column:status;type:text;not null"`
	Category          *string                 `gorm:"column:category;type:text"`
	TaskID            *string                 `gorm:"column:task_id;type:text"`
	GoalID            *string                 `gorm:"column:goal_id;type:text"`
	BalanceAfterCents int64                   `gorm:"column:balance_after_cents;not null"`
	BalanceAfter      decimal.Decimal         `gorm:"column:balance_after;type:numeric(12,2);not null"`
	Date              time.Time               `gorm:"column:date;not null"`
	CreatedAt         time.Time               `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;not null"`
}
