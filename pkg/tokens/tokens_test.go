package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndVerifyRoundTrip(t *testing.T) {
	m := NewMinter("test-secret")
	signed, err := m.Mint("user-1", ScopeAccess, "sig-abc", time.Hour)
	require.NoError(t, err)

	claims, err := m.Verify(signed, ScopeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, ScopeAccess, claims.Scope)
	assert.Equal(t, "sig-abc", claims.BehaviorSignature)
}

func TestVerifyRejectsWrongScope(t *testing.T) {
	m := NewMinter("test-secret")
	signed, err := m.Mint("user-1", ScopeRefresh, "", time.Hour)
	require.NoError(t, err)

	_, err = m.Verify(signed, ScopeAccess)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewMinter("test-secret")
	signed, err := m.Mint("user-1", ScopeMagic, "", -time.Minute)
	require.NoError(t, err)

	_, err = m.Verify(signed, ScopeMagic)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m1 := NewMinter("secret-1")
	m2 := NewMinter("secret-2")
	signed, err := m1.Mint("user-1", ScopeAccess, "", time.Hour)
	require.NoError(t, err)

	_, err = m2.Verify(signed, ScopeAccess)
	assert.Error(t, err)
}
