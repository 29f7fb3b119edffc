// service содержит бизнес-логику auth-сервиса: вход, регистрацию,
// ротацию refresh-токенов, выход и отзыв сессий, а также проверку blacklist
// для middleware и gRPC-интроспекции.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования при потокобезопасном storage.Storage.
//   - Ошибки возвращаются обёрнутыми доменными sentinel-ошибками и далее
//     маппятся транспортом (HTTP/gRPC).
//   - Сообщения для пользователя намеренно общие: по ошибке нельзя понять,
//     какая часть учётных данных неверна и существует ли аккаунт.
package service

import (
	"errors"
	"time"

	"github.com/pribylovaa/go-invoicing-auth/internal/cache"
	"github.com/pribylovaa/go-invoicing-auth/internal/metrics"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
)

// AuthenticationFailure.
var (
	// ErrInvalidCredentials — пара логин/пароль неверна или аккаунт не найден.
	// Транспорт: HTTP 401 / codes.Unauthenticated.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken — e-mail уже занят. Транспорт: HTTP 409 / codes.AlreadyExists.
	ErrEmailTaken = errors.New("email already taken")

	// ErrUsernameTaken — username уже занят. Транспорт: HTTP 409 / codes.AlreadyExists.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrAccountExists — конфликт уникальности при вставке (гонка двух регистраций).
	// Транспорт: HTTP 409 / codes.AlreadyExists.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidEmail — e-mail имеет некорректный формат. Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidUsername — username пустой, слишком короткий/длинный или содержит
	// недопустимые символы. Транспорт: HTTP 400.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. Транспорт: HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// TokenInvalid / TokenRevokedOrBlacklisted.
var (
	// ErrInvalidToken — токен некорректен (формат, подпись, issuer/audience, тип)
	// или отсутствует в хранилище. Транспорт: HTTP 401 / codes.Unauthenticated.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. Транспорт: HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — токен отозван или в blacklist. Транспорт: HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrForbidden — токен принадлежит другому пользователю. Транспорт: HTTP 403.
	ErrForbidden = errors.New("forbidden")
)

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage storage.Storage
	codec   *token.Codec
	bcache  cache.BlacklistCache // может быть nil, если кэш не сконфигурирован
	metrics *metrics.Metrics     // может быть nil
	now     func() time.Time
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, codec *token.Codec) *Service {
	return &Service{
		storage: storage,
		codec:   codec,
		now:     time.Now,
	}
}

// SetBlacklistCache устанавливает кэш blacklist (опционально).
func (s *Service) SetBlacklistCache(c cache.BlacklistCache) {
	s.bcache = c
}

// SetMetrics устанавливает прикладные метрики (опционально).
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}
