package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stagetrak/stagetrak-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	DisplayName string
	Role        enums.UserRole
	JTI         string
}

// AccessTokenClaims represents the typed JWT the identity provider issues.
// Every gating decision downstream keys off (user_id, display_name, role).
type AccessTokenClaims struct {
	UserID      uuid.UUID      `json:"user_id"`
	DisplayName string         `json:"display_name"`
	Role        enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
