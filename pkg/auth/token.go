// Package auth verifies the HS256 access tokens minted by the identity
// service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/enums"
)

const clockSkew = 30 * time.Second

var ErrInvalidToken = errors.New("invalid access token")

// Identity is the caller a verified token speaks for.
type Identity struct {
	UserID     uuid.UUID       `json:"user_id"`
	Role       enums.ActorRole `json:"role"`
	BusinessID *uuid.UUID      `json:"business_id,omitempty"`
}

// Validate is invoked by the jwt parser after the registered claims pass.
func (id Identity) Validate() error {
	switch {
	case id.UserID == uuid.Nil:
		return errors.New("user id is required")
	case !id.Role.IsValid() || id.Role == enums.ActorRoleSystem:
		return fmt.Errorf("invalid role %q", id.Role)
	case id.Role == enums.ActorRoleBusiness && (id.BusinessID == nil || *id.BusinessID == uuid.Nil):
		return errors.New("business role requires business id")
	}
	return nil
}

type claims struct {
	Identity
	jwt.RegisteredClaims
}

type Tokens struct {
	key    []byte
	issuer string
	parser *jwt.Parser
}

func NewTokens(cfg config.JWTConfig) (*Tokens, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("jwt issuer is required")
	}
	return &Tokens{
		key:    []byte(cfg.Secret),
		issuer: cfg.Issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
	}, nil
}

// Issue signs a token for id. Only local tooling and tests mint tokens here.
func (t *Tokens) Issue(id Identity, issuedAt time.Time, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("jwt ttl must be positive")
	}
	if err := id.Validate(); err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, expiry and identity shape. Every failure
// wraps ErrInvalidToken.
func (t *Tokens) Verify(raw string) (Identity, error) {
	var c claims
	_, err := t.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return t.key, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return c.Identity, nil
}
