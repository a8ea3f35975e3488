package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/upb/governance-engine/models"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience is invalid
	ErrInvalidAudience = errors.New("invalid audience")
)

// Claims represents the governance claims carried in platform-issued tokens
type Claims struct {
	jwt.RegisteredClaims
	Email          string   `json:"email"`
	TeamID         string   `json:"team_id"`
	Department     string   `json:"department"`
	AccessLevel    string   `json:"access_level"`
	GovernanceTier string   `json:"governance_tier"`
	Permissions    []string `json:"permissions"`
	Active         bool     `json:"active"`
	MFAVerified    bool     `json:"mfa_verified"`
}

// Validator validates platform-issued HS256 tokens and resolves them into
// actors. The engine never mints tokens.
type Validator struct {
	secret   []byte
	issuer   string
	audience string
}

// Config holds configuration for Validator
type Config struct {
	Secret   string
	Issuer   string
	Audience string
}

// NewValidator creates a new token validator
func NewValidator(config Config) *Validator {
	return &Validator{
		secret:   []byte(config.Secret),
		issuer:   config.Issuer,
		audience: config.Audience,
	}
}

// ValidateToken validates a token and returns the resolved actor
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*models.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidIssuer, v.issuer, claims.Issuer)
	}

	if v.audience != "" && !containsAudience(claims.Audience, v.audience) {
		return nil, ErrInvalidAudience
	}

	return v.actorFromClaims(claims)
}

// actorFromClaims maps validated claims into an actor. Unknown access levels
// and tiers are rejected rather than defaulted; a token with garbage
// governance attributes must not resolve to an actor.
func (v *Validator) actorFromClaims(claims *Claims) (*models.Actor, error) {
	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid sub UUID: %w", err)
	}

	level := models.AccessLevel(claims.AccessLevel)
	if !level.IsValid() {
		return nil, fmt.Errorf("%w: unknown access level %q", ErrInvalidToken, claims.AccessLevel)
	}

	tier := models.GovernanceTier(claims.GovernanceTier)
	if !tier.IsValid() {
		return nil, fmt.Errorf("%w: unknown governance tier %q", ErrInvalidToken, claims.GovernanceTier)
	}

	return &models.Actor{
		ID:             sub,
		Email:          claims.Email,
		TeamID:         claims.TeamID,
		Department:     claims.Department,
		AccessLevel:    level,
		GovernanceTier: tier,
		Permissions:    claims.Permissions,
		MFAVerified:    claims.MFAVerified,
		Active:         claims.Active,
		ResolvedAt:     time.Now().UTC(),
	}, nil
}

// containsAudience checks if the audience list contains the expected audience
func containsAudience(audiences jwt.ClaimStrings, audience string) bool {
	for _, aud := range audiences {
		if aud == audience {
			return true
		}
	}
	return false
}
