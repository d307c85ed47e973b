package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/types"
)

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func TestMutationValidate(t *testing.T) {
	base := Mutation{HouseholdID: " house ", ProfileID: "kid", Memo: " chores ", DeltaCents: 99.5, Type: enums.TransactionTypeEarning}

	req, err := base.validate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.householdID != "house" || req.memo != "chores" {
		t.Fatalf("expected trimmed fields, got %+v", req)
	}
	if req.deltaCents != 100 || req.loggedCents != 100 {
		t.Fatalf("expected rounding to 100, got %d/%d", req.deltaCents, req.loggedCents)
	}
	if req.status != enums.TransactionStatusPaid {
		t.Fatalf("expected default PAID status, got %s", req.status)
	}

	cases := map[string]Mutation{
		"blank household": func() Mutation { m := base; m.HouseholdID = "  "; return m }(),
		"blank profile":   func() Mutation { m := base; m.ProfileID = ""; return m }(),
		"blank memo":      func() Mutation { m := base; m.Memo = "\t"; return m }(),
		"nan":             func() Mutation { m := base; m.DeltaCents = math.NaN(); return m }(),
		"inf":             func() Mutation { m := base; m.DeltaCents = math.Inf(-1); return m }(),
		"above column":    func() Mutation { m := base; m.DeltaCents = 1e12; return m }(),
		"below column":    func() Mutation { m := base; m.DeltaCents = -1e12; return m }(),
		"zero":            func() Mutation { m := base; m.DeltaCents = 0; return m }(),
		"rounds to zero":  func() Mutation { m := base; m.DeltaCents = 0.4; return m }(),
		"bad type":        func() Mutation { m := base; m.Type = "BONUS"; return m }(),
		"lock no task":    func() Mutation { m := base; m.LockTask = true; return m }(),
		"goal no id":      func() Mutation { m := base; m.Type = enums.TransactionTypeGoalAllocation; return m }(),
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.validate()
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestMutationValidateAllowsZeroDeltaForWithdrawalRequest(t *testing.T) {
	logged := 500.0
	pending := enums.TransactionStatusPending
	req, err := Mutation{
		HouseholdID:       "h",
		ProfileID:         "p",
		Memo:              "cash out",
		LoggedAmountCents: &logged,
		Type:              enums.TransactionTypeWithdrawalRequest,
		Status:            &pending,
	}.validate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.deltaCents != 0 || req.loggedCents != 500 || req.status != enums.TransactionStatusPending {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestCurrentBalanceCents(t *testing.T) {
	legacy := decimal.RequireFromString("12.345")
	cases := []struct {
		name    string
		profile models.Profile
		want    int64
	}{
		{"cents wins", models.Profile{BalanceCents: int64Ptr(700), Balance: &legacy}, 700},
		{"legacy dollars", models.Profile{Balance: &legacy}, 1235},
		{"empty", models.Profile{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := currentBalanceCents(tc.profile); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestPlanMutationGoalAllocationDoesNotAliasSnapshot(t *testing.T) {
	snap := Snapshot{
		Profile: models.Profile{
			HouseholdID:  "h",
			ID:           "p",
			BalanceCents: int64Ptr(1000),
			Goals:        types.GoalList{{ID: "bike", CurrentAmountCents: 100}},
			Version:      4,
		},
		Now: time.Unix(0, 0).UTC(),
	}
	req := request{householdID: "h", profileID: "p", memo: "save", deltaCents: -300, loggedCents: -300, txType: enums.TransactionTypeGoalAllocation, status: enums.TransactionStatusPaid, goalID: "bike"}

	ws, err := planMutation(snap, req, "txn-1")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if ws.NextBalanceCents != 700 || ws.ExpectedVersion != 4 {
		t.Fatalf("unexpected write set %+v", ws)
	}
	if ws.Goals[0].CurrentAmountCents != 400 {
		t.Fatalf("expected goal accumulator 400, got %d", ws.Goals[0].CurrentAmountCents)
	}
	if snap.Profile.Goals[0].CurrentAmountCents != 100 {
		t.Fatal("planning must not mutate the snapshot")
	}
	if ws.Insert.GoalID == nil || *ws.Insert.GoalID != "bike" || ws.Insert.TaskID != nil || ws.Insert.Category != nil {
		t.Fatalf("unexpected optional fields on entry %+v", ws.Insert)
	}
	if !ws.Insert.BalanceAfter.Equal(decimal.RequireFromString("7")) {
		t.Fatalf("unexpected dollars snapshot %s", ws.Insert.BalanceAfter)
	}
}

func TestPlanMutationTaskChecks(t *testing.T) {
	req := request{householdID: "h", profileID: "kid", memo: "m", deltaCents: 100, loggedCents: 100, txType: enums.TransactionTypeEarning, status: enums.TransactionStatusPaid, taskID: "t1", lockTask: true}
	profile := models.Profile{HouseholdID: "h", ID: "kid"}

	cases := []struct {
		name string
		task *models.Task
		code pkgerrors.Code
	}{
		{"missing", nil, pkgerrors.CodeNotFound},
		{"unassigned", &models.Task{ID: "t1", Status: enums.TaskStatusAssigned}, pkgerrors.CodeConflict},
		{"other kid", &models.Task{ID: "t1", AssigneeID: strPtr("sibling"), Status: enums.TaskStatusAssigned}, pkgerrors.CodeConflict},
		{"already paid", &models.Task{ID: "t1", AssigneeID: strPtr("kid"), Status: enums.TaskStatusPaid}, pkgerrors.CodeConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := planMutation(Snapshot{Profile: profile, Task: tc.task}, req, "x")
			if !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}

	ws, err := planMutation(Snapshot{Profile: profile, Task: &models.Task{ID: "t1", AssigneeID: strPtr("kid"), Status: enums.TaskStatusPendingApproval}}, req, "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ws.PayTask == nil || ws.PayTask.TaskID != "t1" {
		t.Fatalf("expected task payment in write set, got %+v", ws.PayTask)
	}
}

func TestPlanSettlement(t *testing.T) {
	entry := &models.LedgerTransaction{
		ID:                "w1",
		HouseholdID:       "h",
		ProfileID:         "kid",
		Type:              enums.TransactionTypeWithdrawalRequest,
		Status:            enums.TransactionStatusPending,
		BalanceAfterCents: 1000,
	}
	snap := Snapshot{Profile: models.Profile{HouseholdID: "h", ID: "kid", BalanceCents: int64Ptr(1200), Version: 2}, Entry: entry}

	ws, err := planSettlement(snap, "h", "kid", enums.TransactionStatusPaid, 500)
	if err != nil {
		t.Fatalf("finalize plan: %v", err)
	}
	if !ws.UpdateBalance || ws.NextBalanceCents != 700 || ws.Settle.BalanceAfterCents != 700 || ws.Insert != nil {
		t.Fatalf("unexpected finalize write set %+v", ws)
	}

	ws, err = planSettlement(snap, "h", "kid", enums.TransactionStatusRejected, 0)
	if err != nil {
		t.Fatalf("reject plan: %v", err)
	}
	if ws.UpdateBalance || ws.NextBalanceCents != 1200 || ws.Settle.BalanceAfterCents != 1000 {
		t.Fatalf("unexpected reject write set %+v", ws)
	}

	if _, err := planSettlement(snap, "h", "sibling", enums.TransactionStatusPaid, 500); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign profile, got %v", err)
	}
	if _, err := planSettlement(Snapshot{Profile: snap.Profile}, "h", "kid", enums.TransactionStatusPaid, 500); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for missing entry, got %v", err)
	}

	paid := *entry
	paid.Status = enums.TransactionStatusPaid
	if _, err := planSettlement(Snapshot{Profile: snap.Profile, Entry: &paid}, "h", "kid", enums.TransactionStatusPaid, 500); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	earning := *entry
	earning.Type = enums.TransactionTypeEarning
	if _, err := planSettlement(Snapshot{Profile: snap.Profile, Entry: &earning}, "h", "kid", enums.TransactionStatusPaid, 500); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for non-withdrawal, got %v", err)
	}
}

func TestRoundCentsColumnLimit(t *testing.T) {
	got, err := roundCents(999_999_999_999, "amountCents")
	if err != nil || got != maxAmountCents {
		t.Fatalf("expected the column maximum to be accepted, got %d, %v", got, err)
	}
	got, err = roundCents(-999_999_999_999.4, "amountCents")
	if err != nil || got != -maxAmountCents {
		t.Fatalf("expected the column minimum to be accepted, got %d, %v", got, err)
	}
	for _, v := range []float64{999_999_999_999.5, -1_000_000_000_000, math.MaxInt64 / 2} {
		if _, err := roundCents(v, "amountCents"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %v, got %v", v, err)
		}
	}
}

func TestPlanMutationRejectsBalanceOutsideColumnRange(t *testing.T) {
	req := request{householdID: "h", profileID: "kid", memo: "m", deltaCents: 2, loggedCents: 2, txType: enums.TransactionTypeAdjustment, status: enums.TransactionStatusPaid}
	snap := Snapshot{Profile: models.Profile{HouseholdID: "h", ID: "kid", BalanceCents: int64Ptr(maxAmountCents - 1)}}

	if _, err := planMutation(snap, req, "x"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error above the limit, got %v", err)
	}

	req.deltaCents, req.loggedCents = 1, 1
	ws, err := planMutation(snap, req, "x")
	if err != nil {
		t.Fatalf("unexpected error at the limit: %v", err)
	}
	if ws.NextBalanceCents != maxAmountCents {
		t.Fatalf("expected %d, got %d", maxAmountCents, ws.NextBalanceCents)
	}

	req.deltaCents, req.loggedCents = -2, -2
	snap.Profile.BalanceCents = int64Ptr(-maxAmountCents + 1)
	if _, err := planMutation(snap, req, "x"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error below the limit, got %v", err)
	}
}

func TestPlanSettlementRejectsBalanceOutsideColumnRange(t *testing.T) {
	entry := &models.LedgerTransaction{
		ID:          "w1",
		HouseholdID: "h",
		ProfileID:   "kid",
		Type:        enums.TransactionTypeWithdrawalRequest,
		Status:      enums.TransactionStatusPending,
	}
	snap := Snapshot{Profile: models.Profile{HouseholdID: "h", ID: "kid", BalanceCents: int64Ptr(-maxAmountCents + 10)}, Entry: entry}

	if _, err := planSettlement(snap, "h", "kid", enums.TransactionStatusPaid, 11); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	ws, err := planSettlement(snap, "h", "kid", enums.TransactionStatusPaid, 10)
	if err != nil {
		t.Fatalf("unexpected error at the limit: %v", err)
	}
	if ws.NextBalanceCents != -maxAmountCents {
		t.Fatalf("expected %d, got %d", -maxAmountCents, ws.NextBalanceCents)
	}
	if _, err := planSettlement(snap, "h", "kid", enums.TransactionStatusRejected, 0); err != nil {
		t.Fatalf("reject must not range-check an unchanged balance: %v", err)
	}
}
