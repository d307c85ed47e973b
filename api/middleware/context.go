package middleware

import "context"

type contextKey string

const (
	ctxUserID      contextKey = "user_id"
	ctxRole        contextKey = "actor_role"
	ctxHouseholdID contextKey = "household_id"
	ctxProfileID   contextKey = "profile_id"
)

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxUserID)
}

func RoleFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxRole)
}

// HouseholdIDFromContext returns the household every request is scoped to.
func HouseholdIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxHouseholdID)
}

// ProfileIDFromContext returns the kid profile bound to a child token, or "".
func ProfileIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxProfileID)
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withValue(ctx, ctxRole, role)
}

// WithHouseholdID injects the household identifier for downstream handlers.
func WithHouseholdID(ctx context.Context, householdID string) context.Context {
	return withValue(ctx, ctxHouseholdID, householdID)
}

func WithProfileID(ctx context.Context, profileID string) context.Context {
	return withValue(ctx, ctxProfileID, profileID)
}
