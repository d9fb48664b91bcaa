package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("operator123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := CheckPassword("operator123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"wrong variant", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"too few parts", "$argon2id$v=19$m=65536,t=1,p=4"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=1,p=4$***$aGFzaA"},
		{"bad version", "$argon2id$v=12$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CheckPassword("x", tc.hash)
			assert.ErrorIs(t, err, ErrMalformedHash)
		})
	}
}
