package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
)

// TestLogout_RevokesAllAndBlacklistsAccess — глобальный выход: отзыв всех
// refresh-токенов пользователя и blacklist access-токена до его собственного exp.
func TestLogout_RevokesAllAndBlacklistsAccess(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")
	access := f.issueAccess(t, acc)

	f.clk.Advance(5 * time.Minute)

	var entry *models.BlacklistEntry
	gomock.InOrder(
		f.st.EXPECT().RevokeAllRefreshTokens(gomock.Any(), acc.ID).Return(int64(2), nil),
		f.st.EXPECT().AddToBlacklist(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *models.BlacklistEntry) error {
				entry = e
				return nil
			}),
	)

	require.NoError(t, f.svc.Logout(context.Background(), acc.ID, access.Token))

	require.Equal(t, token.Hash(access.Token), entry.TokenHash)
	require.Equal(t, models.TokenTypeAccess, entry.TokenType)
	require.Equal(t, models.ReasonLogout, entry.Reason)
	require.True(t, access.ExpiresAt.Equal(entry.ExpiresAt))
	require.NotNil(t, entry.UserID)
	require.Equal(t, acc.ID, *entry.UserID)
}

// TestLogout_TwoDevices_RevokesBothSessions — вход с двух устройств, выход с одного:
// refresh-токены обоих устройств после этого не принимаются.
func TestLogout_TwoDevices_RevokesBothSessions(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")

	records := map[string]*models.RefreshToken{}

	f.st.EXPECT().AccountByEmail(gomock.Any(), acc.Email).Return(acc, nil).Times(2)
	f.st.EXPECT().CreateRefreshToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rt *models.RefreshToken) error {
			cp := *rt
			records[rt.TokenHash] = &cp
			return nil
		}).Times(2)
	f.st.EXPECT().RevokeAllRefreshTokens(gomock.Any(), acc.ID).
		DoAndReturn(func(_ context.Context, uid uuid.UUID) (int64, error) {
			var n int64
			for _, rt := range records {
				if rt.UserID == uid && !rt.Revoked {
					rt.Revoked = true
					n++
				}
			}
			return n, nil
		})
	f.st.EXPECT().AddToBlacklist(gomock.Any(), gomock.Any()).Return(nil)
	f.st.EXPECT().RefreshTokenByHashAndUser(gomock.Any(), gomock.Any(), acc.ID).
		DoAndReturn(func(_ context.Context, hash string, _ uuid.UUID) (*models.RefreshToken, error) {
			rt, ok := records[hash]
			if !ok {
				return nil, storage.ErrNotFound
			}
			cp := *rt
			return &cp, nil
		}).Times(2)

	laptop, err := f.svc.Login(context.Background(), acc.Email, "Secret1!",
		models.ClientMeta{DeviceInfo: "Firefox/128", IPAddress: "192.0.2.10"})
	require.NoError(t, err)
	phone, err := f.svc.Login(context.Background(), acc.Email, "Secret1!",
		models.ClientMeta{DeviceInfo: "Safari/17", IPAddress: "198.51.100.7"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, f.svc.Logout(context.Background(), acc.ID, laptop.Tokens.AccessToken))

	for _, rt := range records {
		require.True(t, rt.Revoked)
	}

	_, err = f.svc.Refresh(context.Background(), laptop.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
	_, err = f.svc.Refresh(context.Background(), phone.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

// TestLogout_ExpiredAccessStillBlacklistedWithOwnExpiry — токен не перепроверяется.
func TestLogout_ExpiredAccessStillBlacklistedWithOwnExpiry(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")
	access := f.issueAccess(t, acc)

	f.clk.Advance(time.Hour)

	f.st.EXPECT().RevokeAllRefreshTokens(gomock.Any(), acc.ID).Return(int64(0), nil)
	f.st.EXPECT().AddToBlacklist(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *models.BlacklistEntry) error {
			require.True(t, access.ExpiresAt.Equal(e.ExpiresAt))
			return nil
		})

	require.NoError(t, f.svc.Logout(context.Background(), acc.ID, access.Token))
}

func TestLogout_UndecodableAccess_FallsBackToAccessTTL(t *testing.T) {
	f := newSvc(t)
	uid := uuid.New()

	f.st.EXPECT().RevokeAllRefreshTokens(gomock.Any(), uid).Return(int64(1), nil)
	f.st.EXPECT().AddToBlacklist(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *models.BlacklistEntry) error {
			require.True(t, t0.Add(15*time.Minute).Equal(e.ExpiresAt))
			return nil
		})

	require.NoError(t, f.svc.Logout(context.Background(), uid, "opaque"))
}

func TestLogout_WithoutAccessToken(t *testing.T) {
	f := newSvc(t)
	uid := uuid.New()

	f.st.EXPECT().RevokeAllRefreshTokens(gomock.Any(), uid).Return(int64(3), nil)

	require.NoError(t, f.svc.Logout(context.Background(), uid, ""))
}

func TestLogout_RevokeFails(t *testing.T) {
	f := newSvc(t)
	uid := uuid.New()

	f.st.EXPECT().RevokeAllRefreshTokens(gomock.Any(), uid).Return(int64(0), errors.New("db down"))

	require.Error(t, f.svc.Logout(context.Background(), uid, "whatever"))
}

func TestLogout_CacheWriteThrough_FailureIsNotFatal(t *testing.T) {
	f := newSvc(t)
	c := f.withCache(t)
	acc := testAccount(t, "Secret1!")
	access := f.issueAccess(t, acc)

	f.st.EXPECT().RevokeAllRefreshTokens(gomock.Any(), acc.ID).Return(int64(1), nil)
	f.st.EXPECT().AddToBlacklist(gomock.Any(), gomock.Any()).Return(nil)
	c.EXPECT().Add(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	require.NoError(t, f.svc.Logout(context.Background(), acc.ID, access.Token))
}

func TestRevokeSession_OK(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")
	rt := f.issueRefresh(t, acc)

	f.st.EXPECT().RevokeRefreshToken(gomock.Any(), token.Hash(rt.Token), acc.ID).Return(false, nil)
	f.st.EXPECT().AddToBlacklist(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *models.BlacklistEntry) error {
			require.Equal(t, models.TokenTypeRefresh, e.TokenType)
			require.Equal(t, models.ReasonRevoked, e.Reason)
			require.True(t, rt.ExpiresAt.Equal(e.ExpiresAt))
			return nil
		})

	require.NoError(t, f.svc.RevokeSession(context.Background(), acc.ID, rt.Token))
}

func TestRevokeSession_Rejections(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")

	rt := f.issueRefresh(t, acc)
	require.ErrorIs(t, f.svc.RevokeSession(context.Background(), uuid.New(), rt.Token), ErrForbidden)

	access := f.issueAccess(t, acc)
	require.ErrorIs(t, f.svc.RevokeSession(context.Background(), acc.ID, access.Token), ErrInvalidToken)

	f.st.EXPECT().RevokeRefreshToken(gomock.Any(), token.Hash(rt.Token), acc.ID).Return(false, storage.ErrNotFound)
	require.ErrorIs(t, f.svc.RevokeSession(context.Background(), acc.ID, rt.Token), ErrInvalidToken)
}

func TestSessions(t *testing.T) {
	f := newSvc(t)
	uid := uuid.New()
	recs := []models.RefreshToken{{ID: uuid.New(), UserID: uid}}

	f.st.EXPECT().ActiveRefreshTokens(gomock.Any(), uid, t0).Return(recs, nil)

	got, err := f.svc.Sessions(context.Background(), uid)
	require.NoError(t, err)
	require.Equal(t, recs, got)
}

func TestIsTokenBlacklisted_StoreOnly(t *testing.T) {
	f := newSvc(t)

	f.st.EXPECT().IsBlacklisted(gomock.Any(), token.Hash("tok"), t0).Return(true, nil)

	found, err := f.svc.IsTokenBlacklisted(context.Background(), "tok")
	require.NoError(t, err)
	require.True(t, found)
}

func TestIsTokenBlacklisted_CacheHitSkipsStore(t *testing.T) {
	f := newSvc(t)
	c := f.withCache(t)

	c.EXPECT().Contains(gomock.Any(), token.Hash("tok")).Return(true, nil)

	found, err := f.svc.IsTokenBlacklisted(context.Background(), "tok")
	require.NoError(t, err)
	require.True(t, found)
}

// TestIsTokenBlacklisted_CacheMissOrErrorFallsBackToStore — кэш хранит только
// положительные ответы, поэтому промах и ошибка кэша проверяются по БД.
func TestIsTokenBlacklisted_CacheMissOrErrorFallsBackToStore(t *testing.T) {
	f := newSvc(t)
	c := f.withCache(t)

	c.EXPECT().Contains(gomock.Any(), gomock.Any()).Return(false, nil)
	f.st.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any(), t0).Return(false, nil)
	found, err := f.svc.IsTokenBlacklisted(context.Background(), "a")
	require.NoError(t, err)
	require.False(t, found)

	c.EXPECT().Contains(gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
	f.st.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any(), t0).Return(true, nil)
	found, err = f.svc.IsTokenBlacklisted(context.Background(), "b")
	require.NoError(t, err)
	require.True(t, found)
}

func TestIsTokenBlacklisted_StoreError(t *testing.T) {
	f := newSvc(t)

	f.st.EXPECT().IsBlacklisted(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))

	_, err := f.svc.IsTokenBlacklisted(context.Background(), "tok")
	require.Error(t, err)
}

func TestIntrospect(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")
	access := f.issueAccess(t, acc)

	f.st.EXPECT().IsBlacklisted(gomock.Any(), token.Hash(access.Token), gomock.Any()).Return(false, nil)
	claims, err := f.svc.Introspect(context.Background(), access.Token)
	require.NoError(t, err)
	require.Equal(t, acc.ID.String(), claims.Subject)

	f.st.EXPECT().IsBlacklisted(gomock.Any(), token.Hash(access.Token), gomock.Any()).Return(true, nil)
	_, err = f.svc.Introspect(context.Background(), access.Token)
	require.ErrorIs(t, err, ErrTokenRevoked)

	_, err = f.svc.Introspect(context.Background(), f.issueRefresh(t, acc).Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	f.clk.Advance(16 * time.Minute)
	_, err = f.svc.Introspect(context.Background(), access.Token)
	require.ErrorIs(t, err, ErrTokenExpired)
}
