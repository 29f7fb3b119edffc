// storage описывает контракты хранилищ auth-сервиса: справочник аккаунтов
// (внешний коллаборатор), профили, refresh-токены и blacklist.
//
// Таблицы токенов используют физическое удаление: просроченные записи
// удаляются фоновой очисткой и не остаются доступными для запросов.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-invoicing-auth/internal/models"
)

var (
	// ErrNotFound — запись не найдена (аккаунт/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/username/token_hash).
	ErrAlreadyExists = errors.New("already exists")
	// ErrRevoked — условное обновление не прошло: токен уже отозван или истёк.
	ErrRevoked = errors.New("revoked")
)

// AccountStorage — справочник аккаунтов.
type AccountStorage interface {
	// CreateAccount создаёт аккаунт; ErrAlreadyExists при конфликте email/username.
	CreateAccount(ctx context.Context, account *models.Account) error
	// AccountByEmail ищет аккаунт по email (без учёта регистра).
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	// AccountByUsername ищет аккаунт по username (без учёта регистра).
	AccountByUsername(ctx context.Context, username string) (*models.Account, error)
	// AccountByID ищет аккаунт по ID.
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// ProfileStorage — вторичные профили аккаунтов.
type ProfileStorage interface {
	// CreateProfile создаёт профиль; ErrAlreadyExists, если он уже есть.
	CreateProfile(ctx context.Context, profile *models.Profile) error
}

// RefreshTokenStorage — записи о выданных refresh-токенах.
type RefreshTokenStorage interface {
	// CreateRefreshToken сохраняет новую запись; ErrAlreadyExists при совпадении хэша.
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash ищет запись по хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RefreshTokenByHashAndUser ищет запись по хэшу в пределах одного пользователя.
	RefreshTokenByHashAndUser(ctx context.Context, hash string, userID uuid.UUID) (*models.RefreshToken, error)
	// ActiveRefreshTokens возвращает неотозванные и неистёкшие записи пользователя.
	ActiveRefreshTokens(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RefreshToken, error)
	// RevokeRefreshToken отзывает запись пользователя. Идемпотентна:
	//
	//	(true, nil)          — запись была активна и отозвана сейчас;
	//	(false, nil)         — запись уже была отозвана;
	//	(false, ErrNotFound) — записи нет.
	RevokeRefreshToken(ctx context.Context, hash string, userID uuid.UUID) (bool, error)
	// RevokeAllRefreshTokens отзывает все неотозванные записи пользователя и возвращает их число.
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) (int64, error)
	// RotateRefreshToken в одной транзакции отзывает активную запись oldHash
	// (compare-and-swap по revoked) и сохраняет next. ErrRevoked, если запись
	// уже отозвана или истекла; ErrNotFound, если её нет.
	RotateRefreshToken(ctx context.Context, oldHash string, userID uuid.UUID, next *models.RefreshToken) error
	// DeleteExpiredRefreshTokens удаляет записи с expires_at <= now.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// BlacklistStorage — явно инвалидированные токены.
type BlacklistStorage interface {
	// AddToBlacklist добавляет запись; повтор по тому же хэшу не ошибка.
	AddToBlacklist(ctx context.Context, entry *models.BlacklistEntry) error
	// IsBlacklisted — true, только если запись есть и expires_at > now.
	IsBlacklisted(ctx context.Context, hash string, now time.Time) (bool, error)
	// DeleteExpiredBlacklist удаляет записи с expires_at <= now.
	DeleteExpiredBlacklist(ctx context.Context, now time.Time) (int64, error)
}

// PurgeResult — итог одного цикла очистки.
type PurgeResult struct {
	RefreshTokens int64
	Blacklist     int64
}

// Purger удаляет просроченные записи обеих таблиц токенов одной единицей работы.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (PurgeResult, error)
}

// Storage задаёт полный контракт работы с БД.
type Storage interface {
	AccountStorage
	ProfileStorage
	RefreshTokenStorage
	BlacklistStorage
	Purger
	Close()
}
