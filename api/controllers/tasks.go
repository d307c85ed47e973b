package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/chorepay-backend/api/middleware"
	"github.com/angelmondragon/chorepay-backend/api/responses"
	"github.com/angelmondragon/chorepay-backend/api/validators"
	"github.com/angelmondragon/chorepay-backend/internal/tasks"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
	"github.com/angelmondragon/chorepay-backend/pkg/pagination"
)

type createTaskRequest struct {
	AssigneeID  *string `json:"assigneeId,omitempty"`
	Title       string  `json:"title" validate:"required,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	ValueCents  int64   `json:"valueCents" validate:"gte=0"`
}

func taskServiceUnavailable(svc tasks.Service, logg *logger.Logger, w http.ResponseWriter, r *http.Request) bool {
	if svc != nil {
		return false
	}
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "task service unavailable"))
	return true
}

func TaskCreate(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if taskServiceUnavailable(svc, logg, w, r) {
			return
		}
		householdID, err := householdFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createTaskRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := tasks.CreateTaskInput{
			HouseholdID: householdID,
			Title:       validators.SanitizeString(body.Title, 120),
			Description: body.Description,
			ValueCents:  body.ValueCents,
		}
		if body.AssigneeID != nil {
			input.AssigneeID = strings.TrimSpace(*body.AssigneeID)
		}

		task, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, task)
	}
}

// TaskList lists live tasks, newest first. Children only see their own.
func TaskList(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if taskServiceUnavailable(svc, logg, w, r) {
			return
		}
		householdID, err := householdFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assigneeID := strings.TrimSpace(r.URL.Query().Get("assigneeId"))
		if middleware.RoleFromContext(r.Context()) == string(enums.MemberRoleChild) {
			assigneeID = middleware.ProfileIDFromContext(r.Context())
		}

		page, err := svc.List(r.Context(), tasks.ListTasksParams{
			HouseholdID: householdID,
			AssigneeID:  assigneeID,
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

func TaskGet(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if taskServiceUnavailable(svc, logg, w, r) {
			return
		}
		householdID, err := householdFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.Get(r.Context(), householdID, strings.TrimSpace(chi.URLParam(r, "taskId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

// TaskSubmit moves a task to PENDING_APPROVAL. A child may only submit its own.
func TaskSubmit(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if taskServiceUnavailable(svc, logg, w, r) {
			return
		}
		householdID, err := householdFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := tasks.SubmitTaskInput{
			HouseholdID: householdID,
			TaskID:      strings.TrimSpace(chi.URLParam(r, "taskId")),
		}
		if middleware.RoleFromContext(r.Context()) == string(enums.MemberRoleChild) {
			input.ActorProfileID = middleware.ProfileIDFromContext(r.Context())
			if input.ActorProfileID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "profile context missing"))
				return
			}
		}

		task, err := svc.Submit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

func TaskReject(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if taskServiceUnavailable(svc, logg, w, r) {
			return
		}
		householdID, err := householdFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		task, err := svc.Reject(r.Context(), householdID, strings.TrimSpace(chi.URLParam(r, "taskId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, task)
	}
}

func TaskDelete(svc tasks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if taskServiceUnavailable(svc, logg, w, r) {
			return
		}
		householdID, err := householdFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), householdID, strings.TrimSpace(chi.URLParam(r, "taskId"))); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
