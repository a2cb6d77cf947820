package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/enums"
)

func newTokens(t *testing.T, secret, issuer string) *Tokens {
	t.Helper()
	tokens, err := NewTokens(config.JWTConfig{Secret: secret, Issuer: issuer})
	require.NoError(t, err)
	return tokens
}

func TestIssueAndVerify(t *testing.T) {
	tokens := newTokens(t, "secret", "foodrescue")
	businessID := uuid.New()
	id := Identity{UserID: uuid.New(), Role: enums.ActorRoleBusiness, BusinessID: &businessID}

	raw, err := tokens.Issue(id, time.Now(), 30*time.Minute)
	require.NoError(t, err)

	got, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, id.UserID, got.UserID)
	assert.Equal(t, enums.ActorRoleBusiness, got.Role)
	require.NotNil(t, got.BusinessID)
	assert.Equal(t, businessID, *got.BusinessID)
}

func TestVerifyRejects(t *testing.T) {
	tokens := newTokens(t, "secret", "foodrescue")
	user := Identity{UserID: uuid.New(), Role: enums.ActorRoleUser}
	valid, err := tokens.Issue(user, time.Now(), time.Minute)
	require.NoError(t, err)
	expired, err := tokens.Issue(user, time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	cases := map[string]struct {
		tokens *Tokens
		raw    string
	}{
		"wrong secret": {tokens: newTokens(t, "other", "foodrescue"), raw: valid},
		"wrong issuer": {tokens: newTokens(t, "secret", "someone-else"), raw: valid},
		"truncated":    {tokens: tokens, raw: strings.TrimSuffix(valid, valid[len(valid)-2:])},
		"expired":      {tokens: tokens, raw: expired},
		"garbage":      {tokens: tokens, raw: "invalid"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.tokens.Verify(tc.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssueValidatesIdentity(t *testing.T) {
	tokens := newTokens(t, "secret", "foodrescue")
	cases := map[string]Identity{
		"missing user":        {Role: enums.ActorRoleUser},
		"unknown role":        {UserID: uuid.New(), Role: "owner"},
		"system role":         {UserID: uuid.New(), Role: enums.ActorRoleSystem},
		"business without id": {UserID: uuid.New(), Role: enums.ActorRoleBusiness},
	}
	for name, id := range cases {
		_, err := tokens.Issue(id, time.Now(), time.Minute)
		assert.Error(t, err, name)
	}

	_, err := tokens.Issue(Identity{UserID: uuid.New(), Role: enums.ActorRoleUser}, time.Now(), 0)
	assert.Error(t, err)
}

func TestNewTokensRequiresConfig(t *testing.T) {
	_, err := NewTokens(config.JWTConfig{Issuer: "foodrescue"})
	assert.Error(t, err)
	_, err = NewTokens(config.JWTConfig{Secret: "secret"})
	assert.Error(t, err)
}
