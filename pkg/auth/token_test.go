package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:   "secret",
		Issuer:   "clubsphere-idp",
		Audience: "clubsphere-api",
		Leeway:   time.Second,
	}
}

func TestMintAndVerifyActor(t *testing.T) {
	cfg := testConfig()
	actor := Actor{UserID: uuid.New(), Role: enums.RoleManager}

	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{Actor: actor, Email: "m@example.com", TTL: 30 * time.Minute})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	got, err := VerifyActor(cfg, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != actor {
		t.Fatalf("expected %+v, got %+v", actor, got)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Issuer != cfg.Issuer || claims.Email != "m@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		Actor: Actor{UserID: uuid.New(), Role: enums.RoleMember},
		TTL:   10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}
	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected key mismatch error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		Actor: Actor{UserID: uuid.New(), Role: enums.RoleAdmin},
		TTL:   15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	_, err = ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseAccessTokenWrongAudience(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		Actor: Actor{UserID: uuid.New(), Role: enums.RoleMember},
		TTL:   time.Minute,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := cfg
	other.Audience = "another-api"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected audience error")
	}
}

func TestVerifyActorRejectsUnknownRole(t *testing.T) {
	cfg := testConfig()
	claims := AccessTokenClaims{
		Role: enums.Role("owner"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   uuid.NewString(),
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyActor(cfg, token); err == nil {
		t.Fatal("expected invalid role error")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testConfig()
	now := time.Now()
	cases := []AccessTokenPayload{
		{Actor: Actor{UserID: uuid.New(), Role: ""}, TTL: time.Minute},
		{Actor: Actor{Role: enums.RoleMember}, TTL: time.Minute},
		{Actor: Actor{UserID: uuid.New(), Role: enums.RoleMember}},
	}
	for _, payload := range cases {
		if _, err := MintAccessToken(cfg, now, payload); err == nil {
			t.Fatalf("expected error for %+v", payload)
		}
	}
}

func TestActorHelpers(t *testing.T) {
	if !(Actor{Role: enums.RoleAdmin}).IsAdmin() {
		t.Fatal("admin not detected")
	}
	if !(Actor{}).IsZero() {
		t.Fatal("zero actor not detected")
	}
}
