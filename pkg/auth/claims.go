package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/chorepay-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID      string
	HouseholdID string
	Role        enums.MemberRole
	// ProfileID binds a child token to its own profile.
	ProfileID *string
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID      string           `json:"user_id"`
	HouseholdID string           `json:"household_id"`
	Role        enums.MemberRole `json:"role"`
	ProfileID   *string          `json:"profile_id,omitempty"`
	jwt.RegisteredClaims
}
