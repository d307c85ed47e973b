package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/chorepay-backend/api/responses"
	pkgAuth "github.com/angelmondragon/chorepay-backend/pkg/auth"
	"github.com/angelmondragon/chorepay-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			ctx = WithRole(ctx, string(claims.Role))
			ctx = WithHouseholdID(ctx, claims.HouseholdID)
			if claims.ProfileID != nil {
				ctx = WithProfileID(ctx, *claims.ProfileID)
			}

			if logg != nil {
				fields := map[string]any{
					"user_id":      claims.UserID,
					"actor_role":   string(claims.Role),
					"household_id": claims.HouseholdID,
				}
				if claims.ProfileID != nil {
					fields["profile_id"] = *claims.ProfileID
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
