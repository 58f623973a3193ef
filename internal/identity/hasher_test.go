package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	hasher := NewPasswordHasher(10)

	hash, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, hasher.Verify("correct horse battery staple", hash))
	assert.False(t, hasher.Verify("wrong password", hash))
	assert.False(t, hasher.Verify("", hash))
}

func TestPasswordHasher_SentinelNeverVerifies(t *testing.T) {
	hasher := NewPasswordHasher(10)

	// Tool users store a sentinel instead of a hash; no password may ever
	// match it, not even the sentinel string itself.
	assert.False(t, hasher.Verify(SentinelNoPassword, SentinelNoPassword))
	assert.False(t, hasher.Verify("", SentinelNoPassword))
	assert.False(t, hasher.Verify("password", SentinelNoPassword))
}

func TestPasswordHasher_CostClamped(t *testing.T) {
	hasher := NewPasswordHasher(1)

	hash, err := hasher.Hash("pw")
	require.NoError(t, err)
	assert.True(t, hasher.Verify("pw", hash))
}
