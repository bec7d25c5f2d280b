package access

import (
	"strings"
	"testing"

	"github.com/poiesic/clearance/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func TestAuthenticator_Authenticate(t *testing.T) {
	auth, err := NewAuthenticator(DefaultRegistry(), map[string]string{
		"alice": mustHash(t, "ledger"),
		"eve":   mustHash(t, "welcome"),
	})
	require.NoError(t, err)
	assert.True(t, auth.HasCredentials())

	role, err := auth.Authenticate(" Alice ", "ledger")
	require.NoError(t, err)
	assert.Equal(t, RoleFinance, role)

	tests := []struct {
		name     string
		identity string
		password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "mallory", "ledger"},
		{"known user without credential", "bob", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(tt.identity, tt.password)
			assert.ErrorIs(t, err, ErrAuthFailed)
			assert.ErrorIs(t, err, core.ErrAccessDenied)
			assert.NotContains(t, err.Error(), tt.identity)
		})
	}
}

func TestAuthenticator_HashNotInRegistry(t *testing.T) {
	auth, err := NewAuthenticator(DefaultRegistry(), map[string]string{"ghost": mustHash(t, "boo")})
	require.NoError(t, err)

	_, err = auth.Authenticate("ghost", "boo")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestNewAuthenticator_Validation(t *testing.T) {
	_, err := NewAuthenticator(nil, nil)
	assert.ErrorIs(t, err, ErrRegistryRequired)

	_, err = NewAuthenticator(DefaultRegistry(), map[string]string{"alice": "plaintext"})
	assert.ErrorIs(t, err, ErrInvalidAccessFile)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestAuthenticator_UnknownUserCostMatchesStoredHashes(t *testing.T) {
	cost := bcrypt.MinCost + 1
	hash, err := HashPassword("ledger", cost)
	require.NoError(t, err)

	auth, err := NewAuthenticator(DefaultRegistry(), map[string]string{
		"alice": hash,
		"eve":   mustHash(t, "welcome"),
	})
	require.NoError(t, err)

	got, err := bcrypt.Cost(auth.dummy)
	require.NoError(t, err)
	assert.Equal(t, cost, got)

	_, err = auth.Authenticate("mallory", "ledger")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestAuthenticator_DefaultCostHashes(t *testing.T) {
	if testing.Short() {
		t.Skip("bcrypt at the default cost is slow")
	}
	hash, err := HashPassword("ledger", 0)
	require.NoError(t, err)

	auth, err := NewAuthenticator(DefaultRegistry(), map[string]string{"alice": hash})
	require.NoError(t, err)

	got, err := bcrypt.Cost(auth.dummy)
	require.NoError(t, err)
	assert.Equal(t, DefaultHashCost, got)
}
