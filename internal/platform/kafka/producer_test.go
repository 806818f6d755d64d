package kafka

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutBrokers(t *testing.T) {
	p, err := New(DefaultConfig("  "), slog.Default())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, splitBrokers(" kafka-1:9092, ,kafka-2:9092 "))
	assert.Empty(t, splitBrokers(""))
}
