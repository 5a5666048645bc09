package hash

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_DeterministicAndHex(t *testing.T) {
	h := New()

	d1 := h.Hash("secret", "salt")
	d2 := h.Hash("secret", "salt")
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)
	assert.Equal(t, d1, strings.ToLower(d1))

	_, err := hex.DecodeString(d1)
	require.NoError(t, err)
}

func TestHash_SaltChangesDigest(t *testing.T) {
	h := New()

	assert.NotEqual(t, h.Hash("secret", "salt-a"), h.Hash("secret", "salt-b"))
	assert.NotEqual(t, h.Hash("secret-a", "salt"), h.Hash("secret-b", "salt"))
}

func TestHashIterations_CountMatters(t *testing.T) {
	h := New()

	assert.NotEqual(t, h.HashIterations("secret", "salt", 1000), h.HashIterations("secret", "salt", 2000))
}

func TestGenerateSalt_NoZeroBytes(t *testing.T) {
	h := New()

	for i := 0; i < 100; i++ {
		salt := h.GenerateSalt()
		require.Len(t, salt, 16)
		assert.NotContains(t, []byte(salt), byte(0))
	}
}

func TestGenerateSalt_Distinct(t *testing.T) {
	h := New()

	assert.NotEqual(t, h.GenerateSalt(), h.GenerateSalt())
}
