package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	m := New("secret")

	token, err := m.Generate("u1", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParseDefaultsRole(t *testing.T) {
	m := New("secret")

	token, err := m.Generate("u1", "")
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, claims.Role)
}

func TestParseRejects(t *testing.T) {
	m := New("secret")

	foreign, err := New("other").Generate("u1", RoleUser)
	require.NoError(t, err)

	anonymous, err := m.Generate("", RoleUser)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		UserID:           "u1",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"no user":      anonymous,
		"expired":      expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Parse(token)
			assert.Error(t, err)
		})
	}
}
