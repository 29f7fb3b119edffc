// token выпускает и проверяет подписанные bearer-токены (JWT, HS256).
//
// Пакет не выполняет I/O: Codec — чистая функция от секрета, конфигурации
// и часов. Проверка (Validate) никогда не возвращает ошибку вызывающему коду,
// а отдаёт явный Result: либо Claims, либо Invalid с причиной. Что делать
// с невалидным токеном, решает вызывающий (отказ в refresh или анонимный запрос
// в middleware).
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-invoicing-auth/internal/config"
)

// RefreshTokenTTL — фиксированный срок жизни refresh-токена.
const RefreshTokenTTL = 7 * 24 * time.Hour

// TypeRefresh — значение claim token_type у refresh-токенов.
const TypeRefresh = "refresh"

var (
	// ErrMalformed — пустой или синтаксически некорректный токен.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalid — подпись, алгоритм, issuer или audience не прошли проверку.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired — срок действия токена истёк.
	ErrExpired = errors.New("token expired")
	// ErrNoSecret — Codec создан без ключа подписи.
	ErrNoSecret = errors.New("signing secret is empty")
)

// Subject — данные владельца, которые кладутся в токен.
type Subject struct {
	UserID   uuid.UUID
	Username string
	Email    string
	RoleID   int32
}

// Claims — восстановленный при проверке набор claim'ов.
type Claims struct {
	Subject   string
	Username  string
	Email     string
	RoleID    int32
	TokenID   string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// UserID разбирает subject как UUID.
func (c *Claims) UserID() (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}

	return id, true
}

// IsRefresh сообщает, что токен выпущен как refresh.
func (c *Claims) IsRefresh() bool {
	return c.TokenType == TypeRefresh
}

// Issued — выпущенный токен и его метаданные.
type Issued struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

type jwtClaims struct {
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	RoleID    int32  `json:"role_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

func (jc *jwtClaims) claims() *Claims {
	c := &Claims{
		Subject:   jc.Subject,
		Username:  jc.Username,
		Email:     jc.Email,
		RoleID:    jc.RoleID,
		TokenID:   jc.ID,
		TokenType: jc.TokenType,
	}
	if jc.IssuedAt != nil {
		c.IssuedAt = jc.IssuedAt.Time
	}
	if jc.ExpiresAt != nil {
		c.ExpiresAt = jc.ExpiresAt.Time
	}

	return c
}

// Codec подписывает и проверяет токены.
type Codec struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
	now       func() time.Time
}

// Option настраивает Codec.
type Option func(*Codec)

// WithClock подменяет источник текущего времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// New создаёт Codec по конфигурации auth.
func New(cfg config.AuthConfig, opts ...Option) *Codec {
	c := &Codec{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		accessTTL: cfg.AccessTokenTTL(),
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// AccessTTL возвращает настроенный срок жизни access-токена.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccessToken выпускает access-токен со сроком now + AccessTTL.
func (c *Codec) IssueAccessToken(sub Subject) (Issued, error) {
	const op = "token.codec.IssueAccessToken"

	issued, err := c.issue(jwtClaims{
		Username: sub.Username,
		Email:    sub.Email,
		RoleID:   sub.RoleID,
	}, sub.UserID, c.accessTTL)
	if err != nil {
		return Issued{}, fmt.Errorf("%s: %w", op, err)
	}

	return issued, nil
}

// IssueRefreshToken выпускает refresh-токен (token_type=refresh) сроком на 7 суток.
func (c *Codec) IssueRefreshToken(sub Subject) (Issued, error) {
	const op = "token.codec.IssueRefreshToken"

	issued, err := c.issue(jwtClaims{
		Username:  sub.Username,
		Email:     sub.Email,
		TokenType: TypeRefresh,
	}, sub.UserID, RefreshTokenTTL)
	if err != nil {
		return Issued{}, fmt.Errorf("%s: %w", op, err)
	}

	return issued, nil
}

func (c *Codec) issue(jc jwtClaims, userID uuid.UUID, ttl time.Duration) (Issued, error) {
	if len(c.secret) == 0 {
		return Issued{}, ErrNoSecret
	}

	now := c.now()
	exp := jwt.NewNumericDate(now.Add(ttl))

	jc.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID.String(),
		Issuer:    c.issuer,
		Audience:  jwt.ClaimStrings{c.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: exp,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jc).SignedString(c.secret)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		Token:     signed,
		TokenID:   jc.ID,
		ExpiresAt: exp.Time.UTC(),
	}, nil
}

// Validate проверяет подпись, алгоритм, issuer, audience и срок действия
// без допуска на рассинхронизацию часов.
func (c *Codec) Validate(raw string) Result {
	if raw == "" {
		return Invalid(ErrMalformed)
	}

	// С пустым ключом подпись подделывается тривиально.
	if len(c.secret) == 0 {
		return Invalid(ErrNoSecret)
	}

	var jc jwtClaims
	_, err := jwt.ParseWithClaims(raw, &jc,
		func(t *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	switch {
	case err == nil:
		return Valid(jc.claims())
	case errors.Is(err, jwt.ErrTokenExpired):
		return Invalid(ErrExpired)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Invalid(ErrMalformed)
	default:
		return Invalid(fmt.Errorf("%w: %v", ErrInvalid, err))
	}
}

// Decode разбирает токен без проверки подписи и срока.
// Используется только там, где токен уже считается своим (logout).
func (c *Codec) Decode(raw string) (*Claims, error) {
	const op = "token.codec.Decode"

	var jc jwtClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &jc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformed)
	}

	if jc.ExpiresAt == nil {
		return nil, fmt.Errorf("%s: %w: exp is missing", op, ErrMalformed)
	}

	return jc.claims(), nil
}
