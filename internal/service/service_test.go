package service

// Unit-тесты бизнес-логики на gomock-моках хранилища и кэша.
//
// Моки сгенерированы командой:
//   mockgen -destination=./mocks/storage.go -package=mocks github.com/pribylovaa/go-invoicing-auth/internal/storage Storage
//   mockgen -destination=./mocks/cache.go -package=mocks github.com/pribylovaa/go-invoicing-auth/internal/cache BlacklistCache

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-invoicing-auth/internal/config"
	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
	"github.com/pribylovaa/go-invoicing-auth/mocks"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeClock — управляемые часы, общие для Service и Codec.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:          "unit-secret",
		Issuer:             "invoicing-auth",
		Audience:           "invoicing-api",
		AccessTokenMinutes: 15,
	}
}

type fixture struct {
	svc   *Service
	st    *mocks.MockStorage
	clk   *fakeClock
	codec *token.Codec
}

func newSvc(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	clk := &fakeClock{t: t0}
	codec := token.New(testCfg(), token.WithClock(clk.Now))

	svc := New(st, codec)
	svc.now = clk.Now

	return &fixture{svc: svc, st: st, clk: clk, codec: codec}
}

func (f *fixture) withCache(t *testing.T) *mocks.MockBlacklistCache {
	t.Helper()
	c := mocks.NewMockBlacklistCache(gomock.NewController(t))
	f.svc.SetBlacklistCache(c)
	return c
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func testAccount(t *testing.T, pw string) *models.Account {
	t.Helper()
	return &models.Account{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice Liddell",
		PasswordHash: mustHashPW(t, pw),
		RoleID:       models.DefaultRoleID,
		RoleName:     models.DefaultRoleName,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
}

// issueRefresh выпускает refresh-токен для аккаунта тем же кодеком, что и сервис.
func (f *fixture) issueRefresh(t *testing.T, a *models.Account) token.Issued {
	t.Helper()
	iss, err := f.codec.IssueRefreshToken(token.Subject{UserID: a.ID, Username: a.Username, Email: a.Email})
	require.NoError(t, err)
	return iss
}

func (f *fixture) issueAccess(t *testing.T, a *models.Account) token.Issued {
	t.Helper()
	iss, err := f.codec.IssueAccessToken(token.Subject{UserID: a.ID, Username: a.Username, Email: a.Email, RoleID: a.RoleID})
	require.NoError(t, err)
	return iss
}
