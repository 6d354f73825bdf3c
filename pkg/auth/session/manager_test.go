package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medmarket/medmarket-backend/pkg/config"
	"github.com/medmarket/medmarket-backend/pkg/redis"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m, err := NewManager(redis.Wrap(rdb), config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60})
	require.NoError(t, err)
	return m, mr
}

func TestNewManagerRequiresLongerRefreshTTL(t *testing.T) {
	_, err := NewManager(redis.Wrap(goredis.NewClient(&goredis.Options{})), config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 60})
	assert.Error(t, err)
	_, err = NewManager(nil, config.JWTConfig{})
	assert.Error(t, err)
}

func TestGenerateStoresOnlyHash(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	token, err := m.Generate(ctx, userID, "jti-1")
	require.NoError(t, err)

	stored, err := mr.Get("mm:session:access:jti-1")
	require.NoError(t, err)
	assert.NotEqual(t, token, stored)
	assert.Equal(t, digest(token), stored)

	ok, err := m.HasSession(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := mr.Members("mm:session:user:" + userID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"jti-1"}, members)
}

func TestRotateIssuesNewPairAndConsumesOld(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	token, err := m.Generate(ctx, userID, "jti-old")
	require.NoError(t, err)

	newID, newToken, err := m.Rotate(ctx, userID, "jti-old", token)
	require.NoError(t, err)
	assert.NotEqual(t, "jti-old", newID)
	assert.NotEqual(t, token, newToken)

	assert.False(t, mr.Exists("mm:session:access:jti-old"))
	members, _ := mr.Members("mm:session:user:" + userID.String())
	assert.Equal(t, []string{newID}, members)

	_, _, err = m.Rotate(ctx, userID, "jti-old", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "replayed refresh token must fail")
}

func TestRotateRejectsWrongToken(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := m.Generate(ctx, userID, "jti-1")
	require.NoError(t, err)

	_, _, err = m.Rotate(ctx, userID, "jti-1", "guess")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.True(t, mr.Exists("mm:session:access:jti-1"), "a wrong guess must not burn the session")

	_, _, err = m.Rotate(ctx, userID, "unknown", "guess")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestConcurrentRotateSucceedsOnce(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()
	token, err := m.Generate(ctx, userID, "jti-race")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := m.Rotate(ctx, userID, "jti-race", token); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRevokeUserEndsAllSessions(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()
	other := uuid.New()

	for _, id := range []string{"a", "b"} {
		_, err := m.Generate(ctx, userID, id)
		require.NoError(t, err)
	}
	_, err := m.Generate(ctx, other, "c")
	require.NoError(t, err)

	require.NoError(t, m.RevokeUser(ctx, userID))

	for _, id := range []string{"a", "b"} {
		ok, err := m.HasSession(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, "session %s should be revoked", id)
	}
	assert.False(t, mr.Exists("mm:session:user:"+userID.String()))

	ok, err := m.HasSession(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok, "other users keep their sessions")
}

func TestRevokeSingleSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := m.Generate(ctx, userID, "keep")
	require.NoError(t, err)
	_, err = m.Generate(ctx, userID, "drop")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, userID, "drop"))

	ok, _ := m.HasSession(ctx, "drop")
	assert.False(t, ok)
	ok, _ = m.HasSession(ctx, "keep")
	assert.True(t, ok)
	assert.Error(t, m.Revoke(ctx, userID, ""))
}
