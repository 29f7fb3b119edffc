package postgres

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
)

func TestIntegration_CreateRefreshToken_AndLookups(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	ctx := context.Background()

	a := seedAccount(t, st, "alice", "alice@example.com")
	now := time.Now().UTC()
	rt := newRefresh(a.ID, "plain-1", now, now.Add(time.Hour))
	require.NoError(t, st.CreateRefreshToken(ctx, rt))

	got, err := st.RefreshTokenByHash(ctx, token.Hash("plain-1"))
	require.NoError(t, err)
	require.Equal(t, rt.ID, got.ID)
	require.Equal(t, a.ID, got.UserID)
	require.False(t, got.Revoked)
	require.Nil(t, got.RevokedAt)
	require.Equal(t, "curl/8.0", got.DeviceInfo)
	require.Equal(t, "10.0.0.1", got.IPAddress)
	require.WithinDuration(t, now.Add(time.Hour), got.ExpiresAt, time.Second)

	got, err = st.RefreshTokenByHashAndUser(ctx, token.Hash("plain-1"), a.ID)
	require.NoError(t, err)
	require.Equal(t, rt.ID, got.ID)

	// Чужой пользователь не видит запись.
	_, err = st.RefreshTokenByHashAndUser(ctx, token.Hash("plain-1"), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.ErrorIs(t, st.CreateRefreshToken(ctx, newRefresh(a.ID, "plain-1", now, now.Add(time.Hour))), storage.ErrAlreadyExists)
}

func TestIntegration_RevokeRefreshToken_Flow(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	ctx := context.Background()

	a := seedAccount(t, st, "alice", "alice@example.com")
	now := time.Now().UTC()
	require.NoError(t, st.CreateRefreshToken(ctx, newRefresh(a.ID, "r1", now, now.Add(time.Hour))))

	ok, err := st.RevokeRefreshToken(ctx, token.Hash("r1"), a.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = st.RevokeRefreshToken(ctx, token.Hash("r1"), a.ID)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := st.RefreshTokenByHash(ctx, token.Hash("r1"))
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.NotNil(t, got.RevokedAt)

	_, err = st.RevokeRefreshToken(ctx, token.Hash("missing"), a.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestIntegration_RevokeAll_RevokesEverySession — после глобального отзыва
// ни одна из сессий пользователя не активна, чужие сессии не затронуты.
func TestIntegration_RevokeAll_RevokesEverySession(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	ctx := context.Background()

	a := seedAccount(t, st, "alice", "alice@example.com")
	b := seedAccount(t, st, "bob", "bob@example.com")
	now := time.Now().UTC()

	require.NoError(t, st.CreateRefreshToken(ctx, newRefresh(a.ID, "r1", now, now.Add(time.Hour))))
	require.NoError(t, st.CreateRefreshToken(ctx, newRefresh(a.ID, "r2", now.Add(time.Second), now.Add(time.Hour))))
	require.NoError(t, st.CreateRefreshToken(ctx, newRefresh(b.ID, "rb", now, now.Add(time.Hour))))

	active, err := st.ActiveRefreshTokens(ctx, a.ID, now)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, token.Hash("r2"), active[0].TokenHash)

	n, err := st.RevokeAllRefreshTokens(ctx, a.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	for _, plain := range []string{"r1", "r2"} {
		got, err := st.RefreshTokenByHash(ctx, token.Hash(plain))
		require.NoError(t, err)
		require.True(t, got.Revoked, plain)
	}

	active, err = st.ActiveRefreshTokens(ctx, a.ID, now)
	require.NoError(t, err)
	require.Empty(t, active)

	other, err := st.RefreshTokenByHash(ctx, token.Hash("rb"))
	require.NoError(t, err)
	require.False(t, other.Revoked)

	n, err = st.RevokeAllRefreshTokens(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestIntegration_RotateRefreshToken(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	ctx := context.Background()

	a := seedAccount(t, st, "alice", "alice@example.com")
	now := time.Now().UTC()
	require.NoError(t, st.CreateRefreshToken(ctx, newRefresh(a.ID, "old", now, now.Add(time.Hour))))

	next := newRefresh(a.ID, "new", now.Add(time.Minute), now.Add(2*time.Hour))
	require.NoError(t, st.RotateRefreshToken(ctx, token.Hash("old"), a.ID, next))

	old, err := st.RefreshTokenByHash(ctx, token.Hash("old"))
	require.NoError(t, err)
	require.True(t, old.Revoked)

	fresh, err := st.RefreshTokenByHash(ctx, token.Hash("new"))
	require.NoError(t, err)
	require.False(t, fresh.Revoked)

	// Повторная ротация того же токена не проходит и ничего не вставляет.
	again := newRefresh(a.ID, "new-2", now.Add(2*time.Minute), now.Add(2*time.Hour))
	require.ErrorIs(t, st.RotateRefreshToken(ctx, token.Hash("old"), a.ID, again), storage.ErrRevoked)
	_, err = st.RefreshTokenByHash(ctx, token.Hash("new-2"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	missing := newRefresh(a.ID, "new-3", now, now.Add(time.Hour))
	require.ErrorIs(t, st.RotateRefreshToken(ctx, token.Hash("nope"), a.ID, missing), storage.ErrNotFound)
}

func TestIntegration_RotateRefreshToken_ExpiredIsRejected(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	ctx := context.Background()

	a := seedAccount(t, st, "alice", "alice@example.com")
	now := time.Now().UTC()
	require.NoError(t, st.CreateRefreshToken(ctx, newRefresh(a.ID, "old", now.Add(-2*time.Hour), now.Add(-time.Hour))))

	next := newRefresh(a.ID, "new", now, now.Add(time.Hour))
	require.ErrorIs(t, st.RotateRefreshToken(ctx, token.Hash("old"), a.ID, next), storage.ErrRevoked)
}

// TestIntegration_RotateRefreshToken_Concurrent — из N параллельных ротаций
// одного токена успешна ровно одна.
func TestIntegration_RotateRefreshToken_Concurrent(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	ctx := context.Background()

	a := seedAccount(t, st, "alice", "alice@example.com")
	now := time.Now().UTC()
	require.NoError(t, st.CreateRefreshToken(ctx, newRefresh(a.ID, "old", now, now.Add(time.Hour))))

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := newRefresh(a.ID, "next-"+uuid.NewString(), now.Add(time.Second), now.Add(time.Hour))
			if err := st.RotateRefreshToken(ctx, token.Hash("old"), a.ID, next); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, success)

	active, err := st.ActiveRefreshTokens(ctx, a.ID, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

// TestIntegration_DeleteExpiredRefreshTokens_Boundaries — удаляются записи
// с expires_at <= now независимо от revoked; будущие остаются.
func TestIntegration_DeleteExpiredRefreshTokens_Boundaries(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()
	ctx := context.Background()

	a := seedAccount(t, st, "alice", "alice@example.com")
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, st.CreateRefreshToken(ctx, newRefresh(a.ID, "past", now.Add(-2*time.Hour), now.Add(-time.Hour))))
	require.NoError(t, st.CreateRefreshToken(ctx, newRefresh(a.ID, "exact", now.Add(-time.Hour), now)))
	require.NoError(t, st.CreateRefreshToken(ctx, newRefresh(a.ID, "future", now, now.Add(time.Hour))))

	revokedPast := newRefresh(a.ID, "revoked-past", now.Add(-2*time.Hour), now.Add(-time.Minute))
	require.NoError(t, st.CreateRefreshToken(ctx, revokedPast))
	_, err := st.RevokeRefreshToken(ctx, revokedPast.TokenHash, a.ID)
	require.NoError(t, err)

	n, err := st.DeleteExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	for _, plain := range []string{"past", "exact", "revoked-past"} {
		_, err := st.RefreshTokenByHash(ctx, token.Hash(plain))
		require.ErrorIs(t, err, storage.ErrNotFound, plain)
	}

	_, err = st.RefreshTokenByHash(ctx, token.Hash("future"))
	require.NoError(t, err)
}

func TestIntegration_ContextDeadline(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	_, err := st.RefreshTokenByHash(ctx, token.Hash("any"))
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), context.DeadlineExceeded.Error()))
}
