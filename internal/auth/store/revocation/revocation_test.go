package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryList(t *testing.T) {
	ctx := context.Background()
	l := NewInMemoryList()

	revoked, err := l.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, l.RevokeToken(ctx, "jti-1", time.Hour))
	revoked, err = l.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, l.RevokeToken(ctx, "jti-2", 20*time.Millisecond))
	assert.Eventually(t, func() bool {
		r, _ := l.IsRevoked(ctx, "jti-2")
		return !r
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, l.RevokeToken(ctx, "jti-3", 0))
	revoked, _ = l.IsRevoked(ctx, "jti-3")
	assert.False(t, revoked, "already expired tokens need no entry")
}
