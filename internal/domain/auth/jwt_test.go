package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, expiresAt, err := svc.IssueToken("pharmacist-7", "hosp-1", []string{"pharmacist"}, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	actor, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "pharmacist-7", actor.ActorID)
	assert.Equal(t, "hosp-1", actor.TenantID)
	assert.Equal(t, []string{"pharmacist"}, actor.Roles)
	assert.False(t, actor.Service)
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTService(DefaultJWTConfig("a")).IssueToken("u", "t", nil, 0)
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("b")).ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.IssueToken("u", "t", nil, time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsOtherIssuer(t *testing.T) {
	other := DefaultJWTConfig("secret")
	other.Issuer = "someone-else"
	token, _, err := NewJWTService(other).IssueToken("u", "t", nil, 0)
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("secret")).ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_IssueRequiresTenant(t *testing.T) {
	_, _, err := NewJWTService(DefaultJWTConfig("secret")).IssueToken("u", "", nil, 0)
	assert.Error(t, err)
}
