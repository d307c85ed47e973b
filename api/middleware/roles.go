package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/chorepay-backend/api/responses"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
)

func RequireRole(role string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireParent(logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireRole(string(enums.MemberRoleParent), logg)
}

// RequireParentOrSelf lets parents through and limits children to the
// profile named by the {profileId} route parameter.
func RequireParentOrSelf(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			switch enums.MemberRole(RoleFromContext(ctx)) {
			case enums.MemberRoleParent:
				next.ServeHTTP(w, r)
				return
			case enums.MemberRoleChild:
				own := ProfileIDFromContext(ctx)
				if own != "" && own == chi.URLParam(r, "profileId") {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "profile access denied"))
		})
	}
}
