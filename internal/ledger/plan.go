package ledger

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
)

// request is a validated Mutation with amounts rounded to whole cents.
type request struct {
	householdID string
	profileID   string
	memo        string
	deltaCents  int64
	loggedCents int64
	txType      enums.TransactionType
	status      enums.TransactionStatus
	category    string
	taskID      string
	goalID      string
	lockTask    bool
}

func (m Mutation) validate() (request, error) {
	req := request{
		householdID: strings.TrimSpace(m.HouseholdID),
		profileID:   strings.TrimSpace(m.ProfileID),
		memo:        strings.TrimSpace(m.Memo),
		txType:      m.Type,
		category:    strings.TrimSpace(m.Category),
		taskID:      strings.TrimSpace(m.TaskID),
		goalID:      strings.TrimSpace(m.GoalID),
		lockTask:    m.LockTask,
	}
	if req.householdID == "" {
		return request{}, pkgerrors.New(pkgerrors.CodeValidation, "householdId is required")
	}
	if req.profileID == "" {
		return request{}, pkgerrors.New(pkgerrors.CodeValidation, "profileId is required")
	}
	if req.memo == "" {
		return request{}, pkgerrors.New(pkgerrors.CodeValidation, "memo is required")
	}
	if !req.txType.IsValid() {
		return request{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}

	delta, err := roundCents(m.DeltaCents, "amountCents")
	if err != nil {
		return request{}, err
	}
	if delta == 0 && req.txType != enums.TransactionTypeWithdrawalRequest {
		return request{}, pkgerrors.New(pkgerrors.CodeValidation, "amountCents must be non-zero")
	}
	req.deltaCents = delta
	req.loggedCents = delta
	if m.LoggedAmountCents != nil {
		logged, err := roundCents(*m.LoggedAmountCents, "loggedAmountCents")
		if err != nil {
			return request{}, err
		}
		if logged == 0 {
			return request{}, pkgerrors.New(pkgerrors.CodeValidation, "loggedAmountCents must be non-zero")
		}
		req.loggedCents = logged
	}

	req.status = enums.TransactionStatusPaid
	if m.Status != nil {
		if !m.Status.IsValid() {
			return request{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction status")
		}
		req.status = *m.Status
	}
	if req.lockTask && req.taskID == "" {
		return request{}, pkgerrors.New(pkgerrors.CodeValidation, "taskId is required to lock a task")
	}
	if req.txType == enums.TransactionTypeGoalAllocation && req.goalID == "" {
		return request{}, pkgerrors.New(pkgerrors.CodeValidation, "goalId is required")
	}
	return req, nil
}

// maxAmountCents is the largest magnitude a NUMERIC(12,2) column holds.
const maxAmountCents int64 = 999_999_999_999

// roundCents rejects non-finite input and rounds half away from zero.
func roundCents(value float64, field string) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, field+" must be a finite number")
	}
	rounded := math.Round(value)
	if math.Abs(rounded) > float64(maxAmountCents) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, field+" is out of range")
	}
	return int64(rounded), nil
}

// checkBalanceRange rejects balances the store columns cannot represent.
func checkBalanceRange(cents int64) error {
	if cents > maxAmountCents || cents < -maxAmountCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "resulting balance is out of range")
	}
	return nil
}

// currentBalanceCents prefers the canonical cents column and falls back to
// the legacy dollar column for rows written before cents existed.
func currentBalanceCents(p models.Profile) int64 {
	if p.BalanceCents != nil {
		return *p.BalanceCents
	}
	if p.Balance != nil {
		return p.Balance.Shift(2).Round(0).IntPart()
	}
	return 0
}

func dollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// checkTaskPayable enforces that the task belongs to the profile and has not
// been paid yet. Any other status, DELETED and REJECTED included, is payable.
func checkTaskPayable(task *models.Task, profileID string) error {
	if task == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
	}
	if task.AssigneeID == nil || *task.AssigneeID != profileID {
		return pkgerrors.New(pkgerrors.CodeConflict, "task not assigned to this profile")
	}
	if task.Status == enums.TaskStatusPaid {
		return pkgerrors.New(pkgerrors.CodeConflict, "task already paid")
	}
	return nil
}

// planMutation computes the write set for a new ledger entry.
func planMutation(snap Snapshot, req request, transactionID string) (*WriteSet, error) {
	if req.lockTask {
		if err := checkTaskPayable(snap.Task, req.profileID); err != nil {
			return nil, err
		}
	}

	next := currentBalanceCents(snap.Profile) + req.deltaCents
	if err := checkBalanceRange(next); err != nil {
		return nil, err
	}

	ws := &WriteSet{
		HouseholdID:      req.householdID,
		ProfileID:        req.profileID,
		ExpectedVersion:  snap.Profile.Version,
		At:               snap.Now,
		UpdateBalance:    true,
		NextBalanceCents: next,
	}

	if req.txType == enums.TransactionTypeGoalAllocation {
		idx := snap.Profile.Goals.Find(req.goalID)
		if idx < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "goal not found")
		}
		goals := snap.Profile.Goals.Clone()
		goals[idx].CurrentAmountCents += absCents(req.deltaCents)
		ws.Goals = goals
	}

	entry := &models.LedgerTransaction{
		ID:                transactionID,
		HouseholdID:       req.householdID,
		ProfileID:         req.profileID,
		AmountCents:       req.loggedCents,
		Amount:            dollars(req.loggedCents),
		Memo:              req.memo,
		Type:              req.txType,
		Status:            req.status,
		BalanceAfterCents: next,
		BalanceAfter:      dollars(next),
		Date:              snap.Now,
		CreatedAt:         snap.Now,
		UpdatedAt:         snap.Now,
	}
	if req.category != "" {
		entry.Category = &req.category
	}
	if req.taskID != "" {
		entry.TaskID = &req.taskID
	}
	if req.goalID != "" {
		entry.GoalID = &req.goalID
	}
	ws.Insert = entry

	if req.lockTask {
		ws.PayTask = &TaskPayment{TaskID: snap.Task.ID, PaidAt: snap.Now}
	}
	return ws, nil
}

// planSettlement computes the write set that closes a pending withdrawal.
// Finalizing debits the balance; rejecting leaves it untouched.
func planSettlement(snap Snapshot, householdID, profileID string, status enums.TransactionStatus, debitCents int64) (*WriteSet, error) {
	entry := snap.Entry
	if entry == nil || entry.HouseholdID != householdID || entry.ProfileID != profileID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pending withdrawal not found")
	}
	if entry.Type != enums.TransactionTypeWithdrawalRequest {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not a withdrawal request")
	}
	if entry.Status != enums.TransactionStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawal is not pending")
	}

	current := currentBalanceCents(snap.Profile)
	ws := &WriteSet{
		HouseholdID:      householdID,
		ProfileID:        profileID,
		ExpectedVersion:  snap.Profile.Version,
		At:               snap.Now,
		NextBalanceCents: current,
	}
	// a rejected entry keeps the snapshot taken when it was requested
	snapshotCents := entry.BalanceAfterCents
	if status == enums.TransactionStatusPaid {
		ws.UpdateBalance = true
		ws.NextBalanceCents = current - debitCents
		if err := checkBalanceRange(ws.NextBalanceCents); err != nil {
			return nil, err
		}
		snapshotCents = ws.NextBalanceCents
	}
	ws.Settle = &Settlement{
		TransactionID:     entry.ID,
		Status:            status,
		BalanceAfterCents: snapshotCents,
		At:                snap.Now,
	}
	return ws, nil
}

func absCents(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
