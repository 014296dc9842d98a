package auth

import (
	"fmt"

	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims is the token shape issued by the identity provider. The
// subject carries the user id.
type AccessTokenClaims struct {
	Role  enums.Role `json:"role"`
	Email string     `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Actor is the verified caller identity passed into every core operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

func (a Actor) IsZero() bool {
	return a.UserID == uuid.Nil
}

// ActorFromClaims validates the identity fields of verified claims.
func ActorFromClaims(claims *AccessTokenClaims) (Actor, error) {
	if claims == nil {
		return Actor{}, fmt.Errorf("claims required")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, fmt.Errorf("invalid subject: %w", err)
	}
	if !claims.Role.IsValid() {
		return Actor{}, fmt.Errorf("invalid role %q", claims.Role)
	}
	return Actor{UserID: userID, Role: claims.Role}, nil
}
