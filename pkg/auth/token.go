package auth

import (
	"fmt"
	"time"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// AccessTokenPayload is the input for MintAccessToken. Production tokens come
// from the identity provider; minting exists for local tooling and tests.
type AccessTokenPayload struct {
	Actor Actor
	Email string
	TTL   time.Duration
}

// MintAccessToken signs a token the API edge will accept.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if payload.TTL <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}
	if payload.Actor.UserID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	if !payload.Actor.Role.IsValid() {
		return "", fmt.Errorf("invalid role %q", payload.Actor.Role)
	}

	registered := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   payload.Actor.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(payload.TTL)),
		ID:        uuid.NewString(),
	}
	if cfg.Audience != "" {
		registered.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	claims := AccessTokenClaims{
		Role:             payload.Actor.Role,
		Email:            payload.Email,
		RegisteredClaims: registered,
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates signature, issuer, audience and expiry and returns typed claims.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyActor parses the token and resolves the caller identity.
func VerifyActor(cfg config.JWTConfig, tokenString string) (Actor, error) {
	claims, err := ParseAccessToken(cfg, tokenString)
	if err != nil {
		return Actor{}, err
	}
	return ActorFromClaims(claims)
}
