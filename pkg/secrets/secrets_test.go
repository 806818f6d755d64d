package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "miriesgo/pkg/domain-errors"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("Admin123!")
	require.NoError(t, err)
	assert.NotEqual(t, "Admin123!", hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, Cost, cost)

	require.NoError(t, Verify("Admin123!", hash))

	err = Verify("wrong", hash)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestHashRejects(t *testing.T) {
	_, err := Hash("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = Hash(strings.Repeat("x", 73))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestVerifyMalformedHash(t *testing.T) {
	err := Verify("Admin123!", "not-a-bcrypt-hash")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, GeneratedLength)
	for _, r := range a {
		assert.Contains(t, alphabet, string(r))
	}
}

func TestBurnDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { Burn("anything") })
}
