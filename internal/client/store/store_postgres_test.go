package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miriesgo/internal/client/models"
)

func TestHistoryEntryRejectsUnknownKind(t *testing.T) {
	at := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)

	e, err := historyEntry(11, 4, "phone", "3001234567", at)
	require.NoError(t, err)
	assert.Equal(t, models.KindPhone, e.Kind)
	assert.EqualValues(t, 4, e.ClientID)

	_, err = historyEntry(12, 4, "fax", "555", at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client history 12")
}
