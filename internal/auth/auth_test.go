package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager() *Manager {
	return &Manager{Secret: []byte("test-secret"), AccessTTL: time.Minute, RefreshTTL: time.Hour, Issuer: "junks-backend"}
}

func TestAccessAndRefreshTokens(t *testing.T) {
	m := newManager()
	access, err := m.NewAccessToken("admin", RoleAdmin)
	require.NoError(t, err)
	refresh, err := m.NewRefreshToken("admin", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "admin", claims.Subject)

	_, err = m.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
	_, err = m.ParseRefresh(refresh)
	assert.NoError(t, err)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	m := newManager()
	other := &Manager{Secret: []byte("other"), AccessTTL: time.Minute, Issuer: "junks-backend"}
	token, err := other.NewAccessToken("admin", RoleAdmin)
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.Error(t, err)

	expired := &Manager{Secret: m.Secret, AccessTTL: -time.Minute, Issuer: m.Issuer}
	token, err = expired.NewAccessToken("admin", RoleAdmin)
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.Error(t, err)
}

func TestCredentialsCheck(t *testing.T) {
	plain := Credentials{User: "admin", Password: "s3cret"}
	assert.NoError(t, plain.Check("admin", "s3cret"))
	assert.ErrorIs(t, plain.Check("admin", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, plain.Check("root", "s3cret"), ErrInvalidCredentials)

	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	hashed := Credentials{User: "admin", PasswordHash: hash, Password: "ignored"}
	assert.NoError(t, hashed.Check("admin", "s3cret"))
	assert.ErrorIs(t, hashed.Check("admin", "ignored"), ErrInvalidCredentials)

	assert.ErrorIs(t, Credentials{}.Check("", ""), ErrInvalidCredentials)
}
