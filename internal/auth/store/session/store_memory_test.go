package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"miriesgo/internal/auth/models"
	id "miriesgo/pkg/domain"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) open(userID id.UserID, jti string) *models.Session {
	sess, err := s.store.Create(context.Background(), models.NewSession{
		UserID:    userID,
		JTI:       jti,
		IPAddress: "10.0.0.1",
		UserAgent: "Firefox on Linux",
		CreatedAt: s.now,
		ExpiresAt: s.now.Add(time.Hour),
	})
	s.Require().NoError(err)
	return sess
}

func (s *InMemoryStoreSuite) TestCreateStartsActive() {
	sess := s.open(1, "jti-a")
	assert.True(s.T(), sess.IsActive)
	assert.Equal(s.T(), s.now, sess.LastActivity)
	assert.NotZero(s.T(), sess.ID)
}

func (s *InMemoryStoreSuite) TestListByUserNewestFirst() {
	first := s.open(1, "jti-a")
	second := s.open(1, "jti-b")
	s.open(2, "jti-c")

	got, err := s.store.ListByUser(context.Background(), 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 2)
	assert.Equal(s.T(), second.ID, got[0].ID)
	assert.Equal(s.T(), first.ID, got[1].ID)
}

func (s *InMemoryStoreSuite) TestCloseByUserReturnsOnlyActive() {
	s.open(1, "jti-a")
	s.open(1, "jti-b")
	s.open(2, "jti-c")
	require.NoError(s.T(), s.store.CloseByJTI(context.Background(), "jti-a"))

	closed, err := s.store.CloseByUser(context.Background(), 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), closed, 1)
	assert.Equal(s.T(), "jti-b", closed[0].JTI)

	again, err := s.store.CloseByUser(context.Background(), 1)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), again)

	other, err := s.store.ListByUser(context.Background(), 2)
	require.NoError(s.T(), err)
	assert.True(s.T(), other[0].IsActive)
}

func (s *InMemoryStoreSuite) TestCloseUnknownJTI() {
	assert.NoError(s.T(), s.store.CloseByJTI(context.Background(), "missing"))
}
