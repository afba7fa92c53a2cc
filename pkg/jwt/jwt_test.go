package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GenerateAndValidate(t *testing.T) {
	mgr, err := NewManager("test-secret", time.Hour, "pingwave")
	require.NoError(t, err)

	token, err := mgr.Generate("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "pingwave", claims.Issuer)
}

func TestManager_RejectsEmptySecret(t *testing.T) {
	_, err := NewManager("", time.Hour, "pingwave")
	assert.Error(t, err)
}

func TestManager_RejectsExpiredToken(t *testing.T) {
	mgr, err := NewManager("test-secret", -time.Minute, "pingwave")
	require.NoError(t, err)

	token, err := mgr.Generate("user-1")
	require.NoError(t, err)

	_, err = mgr.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_RejectsWrongSecret(t *testing.T) {
	mgr, err := NewManager("secret-a", time.Hour, "pingwave")
	require.NoError(t, err)
	other, err := NewManager("secret-b", time.Hour, "pingwave")
	require.NoError(t, err)

	token, err := mgr.Generate("user-1")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_RejectsGarbage(t *testing.T) {
	mgr, err := NewManager("test-secret", time.Hour, "pingwave")
	require.NoError(t, err)

	_, err = mgr.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
