package repository

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tour-auth/internal/database"
	"go-tour-auth/internal/model"
)

func newSessionRepoTest(t *testing.T) (*SessionRepository, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(database.BoundRedisOptions(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}, 500*time.Millisecond))
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return NewSessionRepository(client, "refresh:", 500*time.Millisecond), mr
}

func TestSessionRepository_SetGetDelete(t *testing.T) {
	repo, mr := newSessionRepoTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "user-1", "token-a", time.Hour))
	assert.True(t, mr.Exists("refresh:user-1"))

	got, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "token-a", got)

	assert.Equal(t, time.Hour, mr.TTL("refresh:user-1"))

	require.NoError(t, repo.Delete(ctx, "user-1"))
	_, err = repo.Get(ctx, "user-1")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)

	require.NoError(t, repo.Delete(ctx, "user-1"), "delete must be idempotent")
}

func TestSessionRepository_SetOverwrites(t *testing.T) {
	repo, _ := newSessionRepoTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "user-1", "token-a", time.Hour))
	require.NoError(t, repo.Set(ctx, "user-1", "token-b", time.Hour))

	got, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "token-b", got)
}

func TestSessionRepository_Expiry(t *testing.T) {
	repo, mr := newSessionRepoTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "user-1", "token-a", time.Minute))
	mr.FastForward(time.Minute + time.Second)

	_, err := repo.Get(ctx, "user-1")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.False(t, mr.Exists("refresh:user-1"))
}

func TestSessionRepository_RejectsNonPositiveTTL(t *testing.T) {
	repo, _ := newSessionRepoTest(t)

	err := repo.Set(context.Background(), "user-1", "token-a", 0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}

func TestSessionRepository_StoreDown(t *testing.T) {
	repo, mr := newSessionRepoTest(t)
	ctx := context.Background()
	mr.Close()

	_, err := repo.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, model.ErrSessionNotFound)

	assert.ErrorIs(t, repo.Set(ctx, "user-1", "token-a", time.Hour), ErrStoreUnavailable)
	assert.ErrorIs(t, repo.Delete(ctx, "user-1"), ErrStoreUnavailable)
	assert.ErrorIs(t, repo.Ping(ctx), ErrStoreUnavailable)
}

// A server that accepts connections but never answers must not stall callers past the
// operation timeout.
func TestSessionRepository_HungStoreTimesOut(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var conns []net.Conn
	accepted := make(chan struct{})
	go func() {
		defer close(accepted)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
		}
	}()
	t.Cleanup(func() {
		_ = listener.Close()
		<-accepted
		for _, conn := range conns {
			_ = conn.Close()
		}
	})

	const opTimeout = 200 * time.Millisecond
	client := redis.NewClient(database.BoundRedisOptions(&redis.Options{Addr: listener.Addr().String(), MaxRetries: -1}, opTimeout))
	t.Cleanup(func() { _ = client.Close() })
	repo := NewSessionRepository(client, "refresh:", opTimeout)
	ctx := context.Background()

	calls := map[string]func() error{
		"set":    func() error { return repo.Set(ctx, "user-1", "token-a", time.Hour) },
		"delete": func() error { return repo.Delete(ctx, "user-1") },
		"get": func() error {
			_, err := repo.Get(ctx, "user-1")
			return err
		},
	}
	for name, call := range calls {
		started := time.Now()
		err := call()
		elapsed := time.Since(started)

		assert.ErrorIs(t, err, ErrStoreUnavailable, name)
		assert.Less(t, elapsed, opTimeout+time.Second, name)
	}
}
