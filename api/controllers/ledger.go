package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/chorepay-backend/api/middleware"
	"github.com/angelmondragon/chorepay-backend/api/responses"
	"github.com/angelmondragon/chorepay-backend/api/validators"
	"github.com/angelmondragon/chorepay-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
	"github.com/angelmondragon/chorepay-backend/pkg/pagination"
)

const maxMemoLength = 280

type taskPaymentRequest struct {
	TaskID      string   `json:"taskId" validate:"required"`
	Memo        string   `json:"memo"`
	AmountCents *float64 `json:"amountCents" validate:"required"`
}

type advanceRequest struct {
	Memo        string   `json:"memo"`
	Category    string   `json:"category" validate:"required"`
	AmountCents *float64 `json:"amountCents" validate:"required"`
}

type amountRequest struct {
	Memo        string   `json:"memo"`
	AmountCents *float64 `json:"amountCents" validate:"required"`
}

type finalizeWithdrawalRequest struct {
	AmountCents *float64 `json:"amountCents" validate:"required"`
}

type goalAllocationRequest struct {
	GoalID      string   `json:"goalId" validate:"required"`
	Memo        string   `json:"memo"`
	AmountCents *float64 `json:"amountCents" validate:"required"`
}

// ledgerScope resolves the household from the token and the profile from the route.
func ledgerScope(r *http.Request) (string, string, error) {
	householdID := middleware.HouseholdIDFromContext(r.Context())
	if householdID == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeForbidden, "household context missing")
	}
	profileID := strings.TrimSpace(chi.URLParam(r, "profileId"))
	if profileID == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "profile id required")
	}
	return householdID, profileID, nil
}

func ledgerUnavailable(svc ledger.Service, logg *logger.Logger, w http.ResponseWriter, r *http.Request) bool {
	if svc != nil {
		return false
	}
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
	return true
}

// LedgerBalance returns the profile's balance and goals.
func LedgerBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledgerUnavailable(svc, logg, w, r) {
			return
		}
		householdID, profileID, err := ledgerScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.GetBalance(r.Context(), householdID, profileID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// LedgerTransactions pages through the profile's ledger, newest first.
func LedgerTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledgerUnavailable(svc, logg, w, r) {
			return
		}
		householdID, profileID, err := ledgerScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListTransactions(r.Context(), ledger.ListTransactionsParams{
			HouseholdID: householdID,
			ProfileID:   profileID,
			Limit:       limit,
			Cursor:      strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// LedgerTaskPayment pays an assigned task into the kid's balance.
func LedgerTaskPayment(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledgerUnavailable(svc, logg, w, r) {
			return
		}
		householdID, profileID, err := ledgerScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body taskPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.RecordTaskPayment(r.Context(), ledger.TaskPaymentInput{
			HouseholdID: householdID,
			ProfileID:   profileID,
			TaskID:      strings.TrimSpace(body.TaskID),
			Memo:        validators.SanitizeString(body.Memo, maxMemoLength),
			AmountCents: *body.AmountCents,
		})
		writeLedgerResult(w, r, logg, res, err)
	}
}

func LedgerAdvance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledgerUnavailable(svc, logg, w, r) {
			return
		}
		householdID, profileID, err := ledgerScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body advanceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.RecordAdvance(r.Context(), ledger.AdvanceInput{
			HouseholdID: householdID,
			ProfileID:   profileID,
			Memo:        validators.SanitizeString(body.Memo, maxMemoLength),
			Category:    validators.SanitizeString(body.Category, 64),
			AmountCents: *body.AmountCents,
		})
		writeLedgerResult(w, r, logg, res, err)
	}
}

// LedgerAdjustment records a signed manual correction.
func LedgerAdjustment(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledgerUnavailable(svc, logg, w, r) {
			return
		}
		householdID, profileID, err := ledgerScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body amountRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.RecordManualAdjustment(r.Context(), ledger.AdjustmentInput{
			HouseholdID: householdID,
			ProfileID:   profileID,
			Memo:        validators.SanitizeString(body.Memo, maxMemoLength),
			AmountCents: *body.AmountCents,
		})
		writeLedgerResult(w, r, logg, res, err)
	}
}

// LedgerWithdrawalRequest opens a pending withdrawal. The balance is untouched
// until a parent finalizes it.
func LedgerWithdrawalRequest(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledgerUnavailable(svc, logg, w, r) {
			return
		}
		householdID, profileID, err := ledgerScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body amountRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.RecordWithdrawalRequest(r.Context(), ledger.WithdrawalRequestInput{
			HouseholdID: householdID,
			ProfileID:   profileID,
			Memo:        validators.SanitizeString(body.Memo, maxMemoLength),
			AmountCents: *body.AmountCents,
		})
		writeLedgerResult(w, r, logg, res, err)
	}
}

func LedgerFinalizeWithdrawal(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledgerUnavailable(svc, logg, w, r) {
			return
		}
		householdID, profileID, err := ledgerScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transactionID := strings.TrimSpace(chi.URLParam(r, "transactionId"))
		var body finalizeWithdrawalRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.FinalizeWithdrawal(r.Context(), ledger.FinalizeWithdrawalInput{
			HouseholdID:   householdID,
			ProfileID:     profileID,
			TransactionID: transactionID,
			AmountCents:   *body.AmountCents,
		})
		writeLedgerResult(w, r, logg, res, err)
	}
}

func LedgerRejectWithdrawal(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledgerUnavailable(svc, logg, w, r) {
			return
		}
		householdID, profileID, err := ledgerScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.RejectWithdrawal(r.Context(), ledger.RejectWithdrawalInput{
			HouseholdID:   householdID,
			ProfileID:     profileID,
			TransactionID: strings.TrimSpace(chi.URLParam(r, "transactionId")),
		})
		writeLedgerResult(w, r, logg, res, err)
	}
}

// LedgerGoalAllocation moves part of the balance toward a savings goal.
func LedgerGoalAllocation(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledgerUnavailable(svc, logg, w, r) {
			return
		}
		householdID, profileID, err := ledgerScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body goalAllocationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.RecordGoalAllocation(r.Context(), ledger.GoalAllocationInput{
			HouseholdID: householdID,
			ProfileID:   profileID,
			GoalID:      strings.TrimSpace(body.GoalID),
			Memo:        validators.SanitizeString(body.Memo, maxMemoLength),
			AmountCents: *body.AmountCents,
		})
		writeLedgerResult(w, r, logg, res, err)
	}
}

func writeLedgerResult(w http.ResponseWriter, r *http.Request, logg *logger.Logger, res *ledger.Result, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, res)
}
