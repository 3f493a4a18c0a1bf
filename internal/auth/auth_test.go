package auth

import (
	"context"
	"testing"
	"time"

	"madrasah/internal/cache"

	"github.com/stretchr/testify/require"
)

func TestPassword_HashAndValidate(t *testing.T) {
	encoded, err := HashPassword("Bismillah2025")
	require.NoError(t, err)
	require.Contains(t, encoded, "$argon2id$")
	require.True(t, ValidatePassword("Bismillah2025", encoded))
	require.False(t, ValidatePassword("bismillah2025", encoded))
	require.False(t, ValidatePassword("Bismillah2025", "$bcrypt$garbage"))

	again, err := HashPassword("Bismillah2025")
	require.NoError(t, err)
	require.NotEqual(t, encoded, again)
}

func TestJwt(t *testing.T) {
	now := time.Now()
	token, err := GenerateJwt(GenerateJwtOpts{SessionId: "s-1", UserId: "u-1", Secret: "secret", Ttl: time.Hour, Now: now})
	require.NoError(t, err)

	claims, err := ValidateJwt("secret", token)
	require.NoError(t, err)
	require.Equal(t, "s-1", claims.ID)
	require.Equal(t, "u-1", claims.UserId)

	_, err = ValidateJwt("other", token)
	require.ErrorIs(t, err, ErrorJwtTokenSignature)

	expired, err := GenerateJwt(GenerateJwtOpts{SessionId: "s-1", UserId: "u-1", Secret: "secret", Ttl: time.Minute, Now: now.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = ValidateJwt("secret", expired)
	require.ErrorIs(t, err, ErrorJwtTokenExpired)

	_, err = ValidateJwt("secret", "not-a-token")
	require.ErrorIs(t, err, ErrorJwtClaimsInvalid)
}

func TestSessions_Lifecycle(t *testing.T) {
	ctx := context.Background()
	sessions := &Sessions{Cache: cache.NewMemory(), Secret: "secret", Ttl: time.Hour}

	token, session, err := sessions.Create(ctx, "u-1", nil)
	require.NoError(t, err)
	require.Nil(t, session.ActiveOrgId)

	resolved, err := sessions.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, session.Id, resolved.Id)

	require.NoError(t, sessions.SetActiveOrg(ctx, resolved, "org-1"))
	resolved, err = sessions.Resolve(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, resolved.ActiveOrgId)
	require.Equal(t, "org-1", *resolved.ActiveOrgId)

	require.NoError(t, sessions.Revoke(ctx, session.Id))
	_, err = sessions.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrorSessionNotFound)
}
