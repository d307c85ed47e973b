package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
	"github.com/angelmondragon/chorepay-backend/pkg/metrics"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/chorepay-backend/pkg/pagination"
)

const (
	opTaskPayment       = "record_task_payment"
	opAdvance           = "record_advance"
	opAdjustment        = "record_manual_adjustment"
	opWithdrawalRequest = "record_withdrawal_request"
	opFinalize          = "finalize_withdrawal"
	opReject            = "reject_withdrawal"
	opGoalAllocation    = "record_goal_allocation"
)

// Service exposes the ledger operations. Every balance change in the system
// goes through one of these methods.
type Service interface {
	RecordTaskPayment(ctx context.Context, input TaskPaymentInput) (*Result, error)
	RecordAdvance(ctx context.Context, input AdvanceInput) (*Result, error)
	RecordManualAdjustment(ctx context.Context, input AdjustmentInput) (*Result, error)
	RecordWithdrawalRequest(ctx context.Context, input WithdrawalRequestInput) (*Result, error)
	FinalizeWithdrawal(ctx context.Context, input FinalizeWithdrawalInput) (*Result, error)
	RejectWithdrawal(ctx context.Context, input RejectWithdrawalInput) (*Result, error)
	RecordGoalAllocation(ctx context.Context, input GoalAllocationInput) (*Result, error)
	GetBalance(ctx context.Context, householdID, profileID string) (*Balance, error)
	ListTransactions(ctx context.Context, params ListTransactionsParams) (*TransactionPage, error)
}

type TaskPaymentInput struct {
	HouseholdID string
	ProfileID   string
	TaskID      string
	Memo        string
	AmountCents float64
}

type AdvanceInput struct {
	HouseholdID string
	ProfileID   string
	Memo        string
	Category    string
	AmountCents float64
}

// AdjustmentInput carries a signed correction; negative amounts debit.
type AdjustmentInput struct {
	HouseholdID string
	ProfileID   string
	Memo        string
	AmountCents float64
}

type WithdrawalRequestInput struct {
	HouseholdID string
	ProfileID   string
	Memo        string
	AmountCents float64
}

type FinalizeWithdrawalInput struct {
	HouseholdID   string
	ProfileID     string
	TransactionID string
	AmountCents   float64
}

type RejectWithdrawalInput struct {
	HouseholdID   string
	ProfileID     string
	TransactionID string
}

type GoalAllocationInput struct {
	HouseholdID string
	ProfileID   string
	GoalID      string
	Memo        string
	AmountCents float64
}

type ListTransactionsParams struct {
	HouseholdID string
	ProfileID   string
	Limit       int
	Cursor      string
}

type mutator interface {
	Apply(ctx context.Context, m Mutation) (*Result, error)
	Finalize(ctx context.Context, householdID, profileID, transactionID string, amountCents float64) (*Result, error)
	Reject(ctx context.Context, householdID, profileID, transactionID string) (*Result, error)
}

// Notifier receives post-commit events. Failures never fail the mutation.
type Notifier interface {
	TaskPaid(ctx context.Context, event payloads.TaskPaidEvent) error
	WithdrawalRequested(ctx context.Context, event payloads.WithdrawalRequestedEvent) error
	WithdrawalSettled(ctx context.Context, event payloads.WithdrawalFinalizedEvent) error
}

// ServiceParams wires the ledger service. Notifier and Metrics are optional.
type ServiceParams struct {
	Engine     mutator
	Repository Repository
	Notifier   Notifier
	Metrics    *metrics.LedgerMetrics
	Logger     *logger.Logger
}

type service struct {
	engine   mutator
	repo     Repository
	notifier Notifier
	metrics  *metrics.LedgerMetrics
	logg     *logger.Logger
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Engine == nil {
		return nil, fmt.Errorf("ledger engine required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		engine:   params.Engine,
		repo:     params.Repository,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *service) RecordTaskPayment(ctx context.Context, input TaskPaymentInput) (res *Result, err error) {
	defer s.observe(ctx, opTaskPayment, input.HouseholdID, input.ProfileID, time.Now(), &res, &err)

	if !(input.AmountCents > 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amountCents must be greater than zero")
	}
	if strings.TrimSpace(input.TaskID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "taskId is required")
	}

	res, err = s.engine.Apply(ctx, Mutation{
		HouseholdID: input.HouseholdID,
		ProfileID:   input.ProfileID,
		Memo:        input.Memo,
		DeltaCents:  input.AmountCents,
		Type:        enums.TransactionTypeEarning,
		TaskID:      input.TaskID,
		LockTask:    true,
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, "task_paid", func(ctx context.Context) error {
		return s.notifier.TaskPaid(ctx, payloads.TaskPaidEvent{
			HouseholdID:     strings.TrimSpace(input.HouseholdID),
			TaskID:          strings.TrimSpace(input.TaskID),
			TargetProfileID: strings.TrimSpace(input.ProfileID),
			TransactionID:   res.TransactionID,
			AmountCents:     roundedCents(input.AmountCents),
			PaidAt:          res.CommittedAt,
		})
	})
	return res, nil
}

func (s *service) RecordAdvance(ctx context.Context, input AdvanceInput) (res *Result, err error) {
	defer s.observe(ctx, opAdvance, input.HouseholdID, input.ProfileID, time.Now(), &res, &err)

	if !(input.AmountCents > 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amountCents must be greater than zero")
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}

	return s.engine.Apply(ctx, Mutation{
		HouseholdID: input.HouseholdID,
		ProfileID:   input.ProfileID,
		Memo:        input.Memo,
		DeltaCents:  -input.AmountCents,
		Type:        enums.TransactionTypeAdvance,
		Category:    input.Category,
	})
}

func (s *service) RecordManualAdjustment(ctx context.Context, input AdjustmentInput) (res *Result, err error) {
	defer s.observe(ctx, opAdjustment, input.HouseholdID, input.ProfileID, time.Now(), &res, &err)

	return s.engine.Apply(ctx, Mutation{
		HouseholdID: input.HouseholdID,
		ProfileID:   input.ProfileID,
		Memo:        input.Memo,
		DeltaCents:  input.AmountCents,
		Type:        enums.TransactionTypeAdjustment,
	})
}

func (s *service) RecordWithdrawalRequest(ctx context.Context, input WithdrawalRequestInput) (res *Result, err error) {
	defer s.observe(ctx, opWithdrawalRequest, input.HouseholdID, input.ProfileID, time.Now(), &res, &err)

	if !(input.AmountCents > 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amountCents must be greater than zero")
	}

	requested := input.AmountCents
	pending := enums.TransactionStatusPending
	res, err = s.engine.Apply(ctx, Mutation{
		HouseholdID:       input.HouseholdID,
		ProfileID:         input.ProfileID,
		Memo:              input.Memo,
		DeltaCents:        0,
		LoggedAmountCents: &requested,
		Type:              enums.TransactionTypeWithdrawalRequest,
		Status:            &pending,
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, "withdrawal_requested", func(ctx context.Context) error {
		return s.notifier.WithdrawalRequested(ctx, payloads.WithdrawalRequestedEvent{
			HouseholdID:   strings.TrimSpace(input.HouseholdID),
			ProfileID:     strings.TrimSpace(input.ProfileID),
			TransactionID: res.TransactionID,
			AmountCents:   roundedCents(requested),
		})
	})
	return res, nil
}

func (s *service) FinalizeWithdrawal(ctx context.Context, input FinalizeWithdrawalInput) (res *Result, err error) {
	defer s.observe(ctx, opFinalize, input.HouseholdID, input.ProfileID, time.Now(), &res, &err)

	if !(input.AmountCents > 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amountCents must be greater than zero")
	}

	res, err = s.engine.Finalize(ctx, input.HouseholdID, input.ProfileID, input.TransactionID, input.AmountCents)
	if err != nil {
		return nil, err
	}
	s.notifySettled(ctx, input.HouseholdID, input.ProfileID, enums.TransactionStatusPaid, res)
	return res, nil
}

func (s *service) RejectWithdrawal(ctx context.Context, input RejectWithdrawalInput) (res *Result, err error) {
	defer s.observe(ctx, opReject, input.HouseholdID, input.ProfileID, time.Now(), &res, &err)

	res, err = s.engine.Reject(ctx, input.HouseholdID, input.ProfileID, input.TransactionID)
	if err != nil {
		return nil, err
	}
	s.notifySettled(ctx, input.HouseholdID, input.ProfileID, enums.TransactionStatusRejected, res)
	return res, nil
}

func (s *service) RecordGoalAllocation(ctx context.Context, input GoalAllocationInput) (res *Result, err error) {
	defer s.observe(ctx, opGoalAllocation, input.HouseholdID, input.ProfileID, time.Now(), &res, &err)

	if !(input.AmountCents > 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amountCents must be greater than zero")
	}
	if strings.TrimSpace(input.GoalID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "goalId is required")
	}

	return s.engine.Apply(ctx, Mutation{
		HouseholdID: input.HouseholdID,
		ProfileID:   input.ProfileID,
		Memo:        input.Memo,
		DeltaCents:  -input.AmountCents,
		Type:        enums.TransactionTypeGoalAllocation,
		GoalID:      input.GoalID,
	})
}

func (s *service) GetBalance(ctx context.Context, householdID, profileID string) (*Balance, error) {
	householdID = strings.TrimSpace(householdID)
	profileID = strings.TrimSpace(profileID)
	if householdID == "" || profileID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "householdId and profileId are required")
	}

	profile, err := s.repo.FindProfile(ctx, householdID, profileID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	if profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}

	cents := currentBalanceCents(*profile)
	goals := []Goal(profile.Goals)
	if goals == nil {
		goals = []Goal{}
	}
	return &Balance{
		HouseholdID:  householdID,
		ProfileID:    profileID,
		BalanceCents: cents,
		Balance:      dollars(cents).StringFixed(2),
		Goals:        goals,
	}, nil
}

func (s *service) ListTransactions(ctx context.Context, params ListTransactionsParams) (*TransactionPage, error) {
	householdID := strings.TrimSpace(params.HouseholdID)
	profileID := strings.TrimSpace(params.ProfileID)
	if householdID == "" || profileID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "householdId and profileId are required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListTransactions(ctx, householdID, profileID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	page := &TransactionPage{Transactions: make([]TransactionDTO, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for _, row := range rows {
		page.Transactions = append(page.Transactions, toTransactionDTO(row))
	}
	return page, nil
}

func (s *service) notifySettled(ctx context.Context, householdID, profileID string, status enums.TransactionStatus, res *Result) {
	s.notify(ctx, "withdrawal_finalized", func(ctx context.Context) error {
		return s.notifier.WithdrawalSettled(ctx, payloads.WithdrawalFinalizedEvent{
			HouseholdID:       strings.TrimSpace(householdID),
			ProfileID:         strings.TrimSpace(profileID),
			TransactionID:     res.TransactionID,
			Status:            status.String(),
			BalanceAfterCents: res.NextBalanceCents,
		})
	})
}

// notify runs after commit; its failure is logged and swallowed.
func (s *service) notify(ctx context.Context, event string, fn func(context.Context) error) {
	if s.notifier == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "event", event), "ledger notification failed", err)
	}
}

func (s *service) observe(ctx context.Context, operation, householdID, profileID string, start time.Time, res **Result, err *error) {
	s.metrics.ObserveDuration(operation, time.Since(start))

	ctx = s.logg.WithFields(ctx, map[string]any{
		"operation":    operation,
		"household_id": strings.TrimSpace(householdID),
		"profile_id":   strings.TrimSpace(profileID),
	})

	if *err != nil {
		code := pkgerrors.CodeOf(*err)
		s.metrics.IncFailure(operation, string(code))
		if pkgerrors.MetadataFor(code).HTTPStatus >= 500 {
			s.logg.Error(ctx, "ledger.mutation.failed", *err)
		}
		return
	}

	s.metrics.IncSuccess(operation)
	if *res != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"transaction_id":     (*res).TransactionID,
			"next_balance_cents": (*res).NextBalanceCents,
		})
	}
	s.logg.Info(ctx, "ledger.mutation.committed")
}

func roundedCents(v float64) int64 {
	cents, err := roundCents(v, "amountCents")
	if err != nil {
		return 0
	}
	return cents
}
