package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chorepay-backend/pkg/db"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
)

type txRunner interface {
	WithRetryTx(ctx context.Context, opts db.RetryOptions, fn func(tx *gorm.DB) error) error
}

// EngineParams wires an Engine. Clock and IDGenerator default to the wall
// clock and random UUIDs.
type EngineParams struct {
	Tx          txRunner
	Repository  Repository
	Retry       db.RetryOptions
	Clock       func() time.Time
	IDGenerator func() string
}

// Engine applies balance mutations. Every attempt reads a Snapshot, plans a
// WriteSet from it without touching the store, then applies the WriteSet
// inside the same transaction.
type Engine struct {
	tx    txRunner
	repo  Repository
	retry db.RetryOptions
	now   func() time.Time
	newID func() string
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("ledger repository required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := params.IDGenerator
	if ids == nil {
		ids = uuid.NewString
	}
	return &Engine{
		tx:    params.Tx,
		repo:  params.Repository,
		retry: params.Retry,
		now:   clock,
		newID: ids,
	}, nil
}

// Apply validates m and commits the balance update, the new ledger entry and,
// when requested, the task payment as one unit.
func (e *Engine) Apply(ctx context.Context, m Mutation) (*Result, error) {
	req, err := m.validate()
	if err != nil {
		return nil, err
	}

	read := func(ctx context.Context, repo Repository, snap *Snapshot) error {
		profile, err := repo.FindProfile(ctx, req.householdID, req.profileID)
		if err != nil {
			return err
		}
		if profile == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		snap.Profile = *profile

		if req.lockTask {
			task, err := repo.FindTask(ctx, req.householdID, req.profileID, req.taskID)
			if err != nil {
				return err
			}
			if task == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
			}
			snap.Task = task
		}
		return nil
	}
	plan := func(snap Snapshot) (*WriteSet, error) {
		return planMutation(snap, req, e.newID())
	}
	return e.run(ctx, read, plan)
}

// Finalize settles a pending withdrawal, debiting amountCents now. It creates
// no new ledger entry.
func (e *Engine) Finalize(ctx context.Context, householdID, profileID, transactionID string, amountCents float64) (*Result, error) {
	householdID, profileID, transactionID, err := validateSettlementIDs(householdID, profileID, transactionID)
	if err != nil {
		return nil, err
	}
	debit, err := roundCents(amountCents, "amountCents")
	if err != nil {
		return nil, err
	}
	if debit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amountCents must be greater than zero")
	}
	return e.settle(ctx, householdID, profileID, transactionID, enums.TransactionStatusPaid, debit)
}

// Reject closes a pending withdrawal without moving the balance.
func (e *Engine) Reject(ctx context.Context, householdID, profileID, transactionID string) (*Result, error) {
	householdID, profileID, transactionID, err := validateSettlementIDs(householdID, profileID, transactionID)
	if err != nil {
		return nil, err
	}
	return e.settle(ctx, householdID, profileID, transactionID, enums.TransactionStatusRejected, 0)
}

func (e *Engine) settle(ctx context.Context, householdID, profileID, transactionID string, status enums.TransactionStatus, debit int64) (*Result, error) {
	read := func(ctx context.Context, repo Repository, snap *Snapshot) error {
		profile, err := repo.FindProfile(ctx, householdID, profileID)
		if err != nil {
			return err
		}
		if profile == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		snap.Profile = *profile

		entry, err := repo.FindTransaction(ctx, householdID, transactionID)
		if err != nil {
			return err
		}
		snap.Entry = entry
		return nil
	}
	plan := func(snap Snapshot) (*WriteSet, error) {
		return planSettlement(snap, householdID, profileID, status, debit)
	}
	return e.run(ctx, read, plan)
}

func (e *Engine) run(ctx context.Context, read func(context.Context, Repository, *Snapshot) error, plan func(Snapshot) (*WriteSet, error)) (*Result, error) {
	var applied *WriteSet
	err := e.tx.WithRetryTx(ctx, e.retry, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)

		// postgres keeps microseconds; truncating keeps cursor equality exact
		snap := Snapshot{Now: e.now().UTC().Truncate(time.Microsecond)}
		if err := read(ctx, repo, &snap); err != nil {
			return err
		}

		ws, err := plan(snap)
		if err != nil {
			return err
		}

		if err := applyWriteSet(ctx, repo, ws); err != nil {
			return err
		}
		applied = ws
		return nil
	})
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return applied.Result(), nil
}

func applyWriteSet(ctx context.Context, repo Repository, ws *WriteSet) error {
	if ws.UpdateBalance {
		if err := repo.UpdateBalance(ctx, ws.HouseholdID, ws.ProfileID, ws.ExpectedVersion, ws.NextBalanceCents, ws.Goals, ws.At); err != nil {
			return err
		}
	}
	if ws.Insert != nil {
		if err := repo.InsertTransaction(ctx, ws.Insert); err != nil {
			return err
		}
	}
	if ws.PayTask != nil {
		if err := repo.MarkTaskPaid(ctx, ws.HouseholdID, ws.PayTask.TaskID, ws.PayTask.PaidAt); err != nil {
			return err
		}
	}
	if ws.Settle != nil {
		if err := repo.SettleTransaction(ctx, ws.HouseholdID, *ws.Settle); err != nil {
			return err
		}
	}
	return nil
}

// classifyStoreError passes typed errors through and maps store failures onto
// the public taxonomy.
func classifyStoreError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, db.ErrRetriesExhausted) {
		return pkgerrors.Wrap(pkgerrors.CodeStoreConflict, err, "ledger update conflicted with a concurrent writer")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ledger store failure")
}

func validateSettlementIDs(householdID, profileID, transactionID string) (string, string, string, error) {
	householdID = strings.TrimSpace(householdID)
	profileID = strings.TrimSpace(profileID)
	transactionID = strings.TrimSpace(transactionID)
	if householdID == "" {
		return "", "", "", pkgerrors.New(pkgerrors.CodeValidation, "householdId is required")
	}
	if profileID == "" {
		return "", "", "", pkgerrors.New(pkgerrors.CodeValidation, "profileId is required")
	}
	if transactionID == "" {
		return "", "", "", pkgerrors.New(pkgerrors.CodeValidation, "transactionId is required")
	}
	return householdID, profileID, transactionID, nil
}
