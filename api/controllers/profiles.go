package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/chorepay-backend/api/middleware"
	"github.com/angelmondragon/chorepay-backend/api/responses"
	"github.com/angelmondragon/chorepay-backend/api/validators"
	"github.com/angelmondragon/chorepay-backend/internal/profiles"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
)

type createProfileRequest struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName" validate:"required,max=64"`
}

type addGoalRequest struct {
	Name              string `json:"name" validate:"required,max=64"`
	TargetAmountCents int64  `json:"targetAmountCents" validate:"required,gt=0"`
}

func householdFromRequest(r *http.Request) (string, error) {
	householdID := middleware.HouseholdIDFromContext(r.Context())
	if householdID == "" {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "household context missing")
	}
	return householdID, nil
}

// ProfileCreate adds a kid profile with a zero balance.
func ProfileCreate(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}
		householdID, err := householdFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Create(r.Context(), profiles.CreateProfileInput{
			HouseholdID: householdID,
			ID:          strings.TrimSpace(body.ID),
			DisplayName: validators.SanitizeString(body.DisplayName, 64),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, profile)
	}
}

func ProfileList(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}
		householdID, err := householdFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), householdID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func ProfileGet(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}
		householdID, err := householdFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Get(r.Context(), householdID, strings.TrimSpace(chi.URLParam(r, "profileId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// ProfileAddGoal appends a savings goal to the profile.
func ProfileAddGoal(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}
		householdID, err := householdFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body addGoalRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.AddGoal(r.Context(), profiles.AddGoalInput{
			HouseholdID:       householdID,
			ProfileID:         strings.TrimSpace(chi.URLParam(r, "profileId")),
			Name:              validators.SanitizeString(body.Name, 64),
			TargetAmountCents: body.TargetAmountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, profile)
	}
}
