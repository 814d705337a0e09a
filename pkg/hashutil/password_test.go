package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	digest, err := Hash("rahasia123")
	require.NoError(t, err)
	assert.NotEqual(t, "rahasia123", digest)

	assert.True(t, Verify("rahasia123", digest))
	assert.False(t, Verify("rahasia124", digest))
	assert.False(t, Verify("", digest))
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("sama")
	require.NoError(t, err)
	second, err := Hash("sama")
	require.NoError(t, err)

	// Two digests of the same password must differ.
	assert.NotEqual(t, first, second)
	assert.True(t, Verify("sama", first))
	assert.True(t, Verify("sama", second))
}

func TestVerifyGarbageDigest(t *testing.T) {
	assert.False(t, Verify("apapun", "not-a-bcrypt-digest"))
}
