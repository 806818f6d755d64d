package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "miriesgo/pkg/domain-errors"
)

func TestParseSerialIDs(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseClientID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-numeric", func(t *testing.T) {
		_, err := ParseLoanID("abc")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects zero and negatives", func(t *testing.T) {
		_, err := ParseCompanyID("0")
		require.Error(t, err)
		_, err = ParseUserID("-4")
		require.Error(t, err)
	})

	t.Run("accepts positive serials", func(t *testing.T) {
		id, err := ParseClientID("42")
		require.NoError(t, err)
		assert.Equal(t, ClientID(42), id)
		assert.Equal(t, "42", id.String())
		assert.False(t, id.IsNil())
	})
}

func TestIsNil(t *testing.T) {
	assert.True(t, ClientID(0).IsNil())
	assert.True(t, LoanID(0).IsNil())
	assert.False(t, UserID(7).IsNil())
}
