package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-invoicing-auth/internal/metrics"
	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
)

var meta = models.ClientMeta{DeviceInfo: "Firefox/128", IPAddress: "192.0.2.10"}

// TestLogin_ByEmail_PersistsRefreshRecord — успешный вход: пара токенов,
// запись refresh-токена с hash(refresh), expiresAt = now + 7d и метаданными клиента.
func TestLogin_ByEmail_PersistsRefreshRecord(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")

	var saved *models.RefreshToken
	f.st.EXPECT().AccountByEmail(gomock.Any(), "alice@example.com").Return(acc, nil)
	f.st.EXPECT().CreateRefreshToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rt *models.RefreshToken) error {
			saved = rt
			return nil
		})

	res, err := f.svc.Login(context.Background(), "  Alice@Example.com ", "Secret1!", meta)
	require.NoError(t, err)
	require.NotEmpty(t, res.Tokens.AccessToken)
	require.NotEmpty(t, res.Tokens.RefreshToken)
	require.True(t, t0.Add(15*time.Minute).Equal(res.Tokens.AccessExpiresAt))
	require.True(t, t0.Add(token.RefreshTokenTTL).Equal(res.Tokens.RefreshExpiresAt))

	require.NotNil(t, saved)
	require.Equal(t, token.Hash(res.Tokens.RefreshToken), saved.TokenHash)
	require.Equal(t, acc.ID, saved.UserID)
	require.True(t, t0.Add(7*24*time.Hour).Equal(saved.ExpiresAt))
	require.False(t, saved.Revoked)
	require.Equal(t, meta.DeviceInfo, saved.DeviceInfo)
	require.Equal(t, meta.IPAddress, saved.IPAddress)

	require.Equal(t, models.UserInfo{
		ID:          acc.ID,
		Username:    "alice",
		DisplayName: "Alice Liddell",
		RoleName:    "user",
	}, res.User)

	claims, ok := f.codec.Validate(res.Tokens.AccessToken).Claims()
	require.True(t, ok)
	require.Equal(t, acc.ID.String(), claims.Subject)
	require.Equal(t, models.DefaultRoleID, claims.RoleID)
}

func TestLogin_ByUsername(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")

	f.st.EXPECT().AccountByUsername(gomock.Any(), "alice").Return(acc, nil)
	f.st.EXPECT().CreateRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	res, err := f.svc.Login(context.Background(), "alice", "Secret1!", meta)
	require.NoError(t, err)
	require.Equal(t, acc.ID, res.User.ID)
}

// TestLogin_GenericFailure — неизвестный аккаунт и неверный пароль
// неотличимы для вызывающего.
func TestLogin_GenericFailure(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")

	f.st.EXPECT().AccountByEmail(gomock.Any(), "ghost@example.com").Return(nil, storage.ErrNotFound)
	_, errUnknown := f.svc.Login(context.Background(), "ghost@example.com", "Secret1!", meta)
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)

	f.st.EXPECT().AccountByEmail(gomock.Any(), "alice@example.com").Return(acc, nil)
	_, errBadPW := f.svc.Login(context.Background(), "alice@example.com", "Wrong1!!", meta)
	require.ErrorIs(t, errBadPW, ErrInvalidCredentials)

	require.Equal(t, errors.Unwrap(errUnknown).Error(), errors.Unwrap(errBadPW).Error())
}

func TestLogin_EmptyInput_NoStorageCalls(t *testing.T) {
	f := newSvc(t)

	_, err := f.svc.Login(context.Background(), "alice", "", meta)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "   ", "Secret1!", meta)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_StorageError_IsNotCredentialsFailure(t *testing.T) {
	f := newSvc(t)

	f.st.EXPECT().AccountByUsername(gomock.Any(), "alice").Return(nil, errors.New("db down"))

	_, err := f.svc.Login(context.Background(), "alice", "Secret1!", meta)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_Metrics(t *testing.T) {
	f := newSvc(t)
	reg := prometheus.NewRegistry()
	f.svc.SetMetrics(metrics.New(reg))

	f.st.EXPECT().AccountByUsername(gomock.Any(), "ghost").Return(nil, storage.ErrNotFound)
	_, _ = f.svc.Login(context.Background(), "ghost", "Secret1!", meta)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	var rejected float64
	for _, mf := range mfs {
		if mf.GetName() != "auth_logins_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == metrics.ResultRejected {
					rejected = m.GetCounter().GetValue()
				}
			}
		}
	}
	require.Equal(t, 1.0, rejected)
}

func validRegister() RegisterInput {
	return RegisterInput{
		Email:    "Bob@Example.com",
		Password: "Abcdef1!",
		Username: "bob",
		FullName: "Bob Builder",
		Company:  "ACME",
		Meta:     meta,
	}
}

// TestRegister_OK_ProfileFailureIsNotFatal — профиль вторичен:
// его ошибка не откатывает регистрацию.
func TestRegister_OK_ProfileFailureIsNotFatal(t *testing.T) {
	f := newSvc(t)

	var created *models.Account
	gomock.InOrder(
		f.st.EXPECT().AccountByEmail(gomock.Any(), "bob@example.com").Return(nil, storage.ErrNotFound),
		f.st.EXPECT().AccountByUsername(gomock.Any(), "bob").Return(nil, storage.ErrNotFound),
		f.st.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, a *models.Account) error {
				created = a
				return nil
			}),
		f.st.EXPECT().CreateProfile(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p *models.Profile) error {
				require.Equal(t, created.ID, p.UserID)
				require.Equal(t, "ACME", p.Company)
				return errors.New("profiles table locked")
			}),
		f.st.EXPECT().CreateRefreshToken(gomock.Any(), gomock.Any()).Return(nil),
	)

	res, err := f.svc.Register(context.Background(), validRegister())
	require.NoError(t, err)
	require.NotEmpty(t, res.Tokens.RefreshToken)

	require.Equal(t, "bob@example.com", created.Email)
	require.Equal(t, models.DefaultRoleID, created.RoleID)
	require.True(t, checkPassword(created.PasswordHash, "Abcdef1!"))
	require.Equal(t, "Bob Builder", res.User.DisplayName)
	require.Equal(t, "user", res.User.RoleName)
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newSvc(t)

	f.st.EXPECT().AccountByEmail(gomock.Any(), "bob@example.com").Return(&models.Account{ID: uuid.New()}, nil)

	_, err := f.svc.Register(context.Background(), validRegister())
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_UsernameTaken(t *testing.T) {
	f := newSvc(t)

	f.st.EXPECT().AccountByEmail(gomock.Any(), "bob@example.com").Return(nil, storage.ErrNotFound)
	f.st.EXPECT().AccountByUsername(gomock.Any(), "bob").Return(&models.Account{ID: uuid.New()}, nil)

	_, err := f.svc.Register(context.Background(), validRegister())
	require.ErrorIs(t, err, ErrUsernameTaken)
}

// TestRegister_RaceOnInsert — уникальность, нарушенная между проверкой и вставкой.
func TestRegister_RaceOnInsert(t *testing.T) {
	f := newSvc(t)

	f.st.EXPECT().AccountByEmail(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)
	f.st.EXPECT().AccountByUsername(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)
	f.st.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)

	_, err := f.svc.Register(context.Background(), validRegister())
	require.ErrorIs(t, err, ErrAccountExists)
}

func TestRegister_InputValidation(t *testing.T) {
	f := newSvc(t)

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		want   error
	}{
		{"bad_email", func(in *RegisterInput) { in.Email = "not-an-email" }, ErrInvalidEmail},
		{"display_name_email", func(in *RegisterInput) { in.Email = "Bob <bob@example.com>" }, ErrInvalidEmail},
		{"short_username", func(in *RegisterInput) { in.Username = "bo" }, ErrInvalidUsername},
		{"bad_username_chars", func(in *RegisterInput) { in.Username = "bob smith" }, ErrInvalidUsername},
		{"empty_password", func(in *RegisterInput) { in.Password = "" }, ErrEmptyPassword},
		{"weak_password", func(in *RegisterInput) { in.Password = "abcdefgh" }, ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegister()
			tt.mutate(&in)
			_, err := f.svc.Register(context.Background(), in)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func activeRecord(a *models.Account, raw string) *models.RefreshToken {
	return &models.RefreshToken{
		ID:         uuid.New(),
		UserID:     a.ID,
		TokenHash:  token.Hash(raw),
		ExpiresAt:  t0.Add(token.RefreshTokenTTL),
		DeviceInfo: "Safari/17",
		IPAddress:  "198.51.100.7",
		CreatedAt:  t0,
	}
}

// TestRefresh_RotatesAndCarriesClientMeta — ротация отзывает старую запись
// и сохраняет новую с теми же device/IP.
func TestRefresh_RotatesAndCarriesClientMeta(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")
	old := f.issueRefresh(t, acc)
	rec := activeRecord(acc, old.Token)

	f.clk.Advance(time.Hour)

	var next *models.RefreshToken
	f.st.EXPECT().RefreshTokenByHashAndUser(gomock.Any(), token.Hash(old.Token), acc.ID).Return(rec, nil)
	f.st.EXPECT().AccountByID(gomock.Any(), acc.ID).Return(acc, nil)
	f.st.EXPECT().RotateRefreshToken(gomock.Any(), token.Hash(old.Token), acc.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ uuid.UUID, n *models.RefreshToken) error {
			next = n
			return nil
		})

	res, err := f.svc.Refresh(context.Background(), old.Token)
	require.NoError(t, err)
	require.NotEqual(t, old.Token, res.Tokens.RefreshToken)

	require.Equal(t, token.Hash(res.Tokens.RefreshToken), next.TokenHash)
	require.Equal(t, "Safari/17", next.DeviceInfo)
	require.Equal(t, "198.51.100.7", next.IPAddress)
	require.True(t, t0.Add(time.Hour).Add(token.RefreshTokenTTL).Equal(next.ExpiresAt))
}

// TestRefresh_SecondUseFails — тот же сырой refresh-токен второй раз не принимается.
func TestRefresh_SecondUseFails(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")
	old := f.issueRefresh(t, acc)
	rec := activeRecord(acc, old.Token)

	f.st.EXPECT().RefreshTokenByHashAndUser(gomock.Any(), rec.TokenHash, acc.ID).
		DoAndReturn(func(context.Context, string, uuid.UUID) (*models.RefreshToken, error) {
			cp := *rec
			return &cp, nil
		}).Times(2)
	f.st.EXPECT().AccountByID(gomock.Any(), acc.ID).Return(acc, nil)
	f.st.EXPECT().RotateRefreshToken(gomock.Any(), rec.TokenHash, acc.ID, gomock.Any()).
		DoAndReturn(func(context.Context, string, uuid.UUID, *models.RefreshToken) error {
			rec.Revoked = true
			return nil
		})

	_, err := f.svc.Refresh(context.Background(), old.Token)
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), old.Token)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

// TestRefresh_LostRotationRace — конкурент успел отозвать запись между чтением и CAS.
func TestRefresh_LostRotationRace(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")
	old := f.issueRefresh(t, acc)

	f.st.EXPECT().RefreshTokenByHashAndUser(gomock.Any(), gomock.Any(), acc.ID).Return(activeRecord(acc, old.Token), nil)
	f.st.EXPECT().AccountByID(gomock.Any(), acc.ID).Return(acc, nil)
	f.st.EXPECT().RotateRefreshToken(gomock.Any(), gomock.Any(), acc.ID, gomock.Any()).
		Return(storage.ErrRevoked)

	_, err := f.svc.Refresh(context.Background(), old.Token)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefresh_Rejections_NoMutation(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")

	t.Run("access_token_presented", func(t *testing.T) {
		access := f.issueAccess(t, acc)
		_, err := f.svc.Refresh(context.Background(), access.Token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := f.svc.Refresh(context.Background(), "garbage")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown_record", func(t *testing.T) {
		rt := f.issueRefresh(t, acc)
		f.st.EXPECT().RefreshTokenByHashAndUser(gomock.Any(), token.Hash(rt.Token), acc.ID).Return(nil, storage.ErrNotFound)
		_, err := f.svc.Refresh(context.Background(), rt.Token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("revoked_record", func(t *testing.T) {
		rt := f.issueRefresh(t, acc)
		rec := activeRecord(acc, rt.Token)
		rec.Revoked = true
		f.st.EXPECT().RefreshTokenByHashAndUser(gomock.Any(), rec.TokenHash, acc.ID).Return(rec, nil)
		_, err := f.svc.Refresh(context.Background(), rt.Token)
		require.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("store_level_expired", func(t *testing.T) {
		rt := f.issueRefresh(t, acc)
		rec := activeRecord(acc, rt.Token)
		rec.ExpiresAt = t0
		f.st.EXPECT().RefreshTokenByHashAndUser(gomock.Any(), rec.TokenHash, acc.ID).Return(rec, nil)
		_, err := f.svc.Refresh(context.Background(), rt.Token)
		require.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestRefresh_JWTExpired(t *testing.T) {
	f := newSvc(t)
	acc := testAccount(t, "Secret1!")
	rt := f.issueRefresh(t, acc)

	f.clk.Advance(token.RefreshTokenTTL)

	_, err := f.svc.Refresh(context.Background(), rt.Token)
	require.ErrorIs(t, err, ErrTokenExpired)
}
