package payloads

import "time"

// TaskPaidEvent is emitted after a task payment commits. Downstream
// notification fan-out targets TargetProfileID.
type TaskPaidEvent struct {
	HouseholdID     string    `json:"householdId"`
	TaskID          string    `json:"taskId"`
	TargetProfileID string    `json:"targetProfileId"`
	TransactionID   string    `json:"transactionId"`
	AmountCents     int64     `json:"amountCents"`
	PaidAt          time.Time `json:"paidAt"`
}

// WithdrawalRequestedEvent asks a parent to settle a pending withdrawal.
type WithdrawalRequestedEvent struct {
	HouseholdID   string `json:"householdId"`
	ProfileID     string `json:"profileId"`
	TransactionID string `json:"transactionId"`
	AmountCents   int64  `json:"amountCents"`
}

// WithdrawalFinalizedEvent reports the terminal status of a withdrawal.
type WithdrawalFinalizedEvent struct {
	HouseholdID       string `json:"householdId"`
	ProfileID         string `json:"profileId"`
	TransactionID     string `json:"transactionId"`
	Status            string `json:"status"`
	BalanceAfterCents int64  `json:"balanceAfterCents"`
}
