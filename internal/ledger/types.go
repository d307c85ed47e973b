package ledger

import (
	"time"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	"github.com/angelmondragon/chorepay-backend/pkg/types"
)

// Mutation is the input to Engine.Apply. DeltaCents is applied to the balance;
// LoggedAmountCents, when set, is recorded on the transaction instead of the delta.
type Mutation struct {
	HouseholdID       string
	ProfileID         string
	Memo              string
	DeltaCents        float64
	LoggedAmountCents *float64
	Type              enums.TransactionType
	Status            *enums.TransactionStatus
	Category          string
	TaskID            string
	GoalID            string
	LockTask          bool
}

// Result is returned by every balance-affecting operation.
type Result struct {
	TransactionID    string `json:"transactionId"`
	NextBalanceCents int64  `json:"nextBalanceCents"`
	// CommittedAt is the snapshot time stamped on every row of the write.
	CommittedAt time.Time `json:"-"`
}

// Snapshot holds everything read inside one transaction attempt. Planning only
// ever looks at a Snapshot, never at the store.
type Snapshot struct {
	Profile models.Profile
	Task    *models.Task
	Entry   *models.LedgerTransaction
	Now     time.Time
}

// WriteSet describes every write of one attempt. It is produced by a pure
// planning step and applied as a unit.
type WriteSet struct {
	HouseholdID     string
	ProfileID       string
	ExpectedVersion int64
	At              time.Time

	// UpdateBalance is false for writes that leave the profile untouched.
	UpdateBalance    bool
	NextBalanceCents int64
	// Goals is nil when the goal list is unchanged.
	Goals types.GoalList

	Insert  *models.LedgerTransaction
	PayTask *TaskPayment
	Settle  *Settlement
}

// TaskPayment locks a task as PAID.
type TaskPayment struct {
	TaskID string
	PaidAt time.Time
}

// Settlement moves a pending withdrawal to a terminal status.
type Settlement struct {
	TransactionID     string
	Status            enums.TransactionStatus
	BalanceAfterCents int64
	At                time.Time
}

// Result derives the caller-facing result from an applied write set.
func (w *WriteSet) Result() *Result {
	res := &Result{NextBalanceCents: w.NextBalanceCents, CommittedAt: w.At}
	switch {
	case w.Insert != nil:
		res.TransactionID = w.Insert.ID
	case w.Settle != nil:
		res.TransactionID = w.Settle.TransactionID
	}
	return res
}

// Balance is the read model served by GetBalance.
type Balance struct {
	HouseholdID  string `json:"householdId"`
	ProfileID    string `json:"profileId"`
	BalanceCents int64  `json:"balanceCents"`
	Balance      string `json:"balance"`
	Goals        []Goal `json:"goals"`
}

// Goal mirrors a profile goal in API responses.
type Goal = types.Goal

// TransactionDTO is the API shape of a ledger entry.
type TransactionDTO struct {
	ID                string                  `json:"id"`
	HouseholdID       string                  `json:"householdId"`
	ProfileID         string                  `json:"profileId"`
	AmountCents       int64                   `json:"amountCents"`
	Amount            string                  `json:"amount"`
	Memo              string                  `json:"memo"`
	Type              enums.TransactionType   `json:"type"`
	Status            enums.TransactionStatus `json:"status"`
	Category          *string                 `json:"category,omitempty"`
	TaskID            *string                 `json:"taskId,omitempty"`
	GoalID            *string                 `json:"goalId,omitempty"`
	BalanceAfterCents int64                   `json:"balanceAfterCents"`
	BalanceAfter      string                  `json:"balanceAfter"`
	Date              time.Time               `json:"date"`
	CreatedAt         time.Time               `json:"createdAt"`
}

// TransactionPage is a cursor-paginated slice of ledger entries, newest first.
type TransactionPage struct {
	Transactions []TransactionDTO `json:"transactions"`
	NextCursor   string           `json:"nextCursor,omitempty"`
}

func toTransactionDTO(m models.LedgerTransaction) TransactionDTO {
	return TransactionDTO{
		ID:                m.ID,
		HouseholdID:       m.HouseholdID,
		ProfileID:         m.ProfileID,
		AmountCents:       m.AmountCents,
		Amount:            m.Amount.StringFixed(2),
		Memo:              m.Memo,
		Type:              m.Type,
		Status:            m.Status,
		Category:          m.Category,
		TaskID:            m.TaskID,
		GoalID:            m.GoalID,
		BalanceAfterCents: m.BalanceAfterCents,
		BalanceAfter:      m.BalanceAfter.StringFixed(2),
		Date:              m.Date,
		CreatedAt:         m.CreatedAt,
	}
}
