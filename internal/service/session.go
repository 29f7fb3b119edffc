package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/pkg/log"
	"github.com/pribylovaa/go-invoicing-auth/internal/pkg/redact"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
)

// Logout отзывает все refresh-токены пользователя (на всех устройствах)
// и, если передан access-токен, заносит его в blacklist до его собственного exp.
//
// Access-токен не перепроверяется: срок читается из payload без проверки подписи.
// Если payload не читается, используется now + срок жизни access-токена.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, rawAccess string) error {
	const op = "service.session.Logout"

	lg := log.From(ctx)

	revoked, err := s.storage.RevokeAllRefreshTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rawAccess != "" {
		now := s.clock()
		expiresAt := now.Add(s.codec.AccessTTL())
		if claims, err := s.codec.Decode(rawAccess); err == nil {
			expiresAt = claims.ExpiresAt
		}

		entry := &models.BlacklistEntry{
			TokenHash: token.Hash(rawAccess),
			TokenType: models.TokenTypeAccess,
			ExpiresAt: expiresAt,
			UserID:    &userID,
			Reason:    models.ReasonLogout,
			CreatedAt: now,
		}
		if err := s.blacklist(ctx, entry); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	s.metrics.Logout()
	lg.Info("logout_completed",
		slog.String("user_id", userID.String()),
		slog.Int64("sessions_revoked", revoked),
	)

	return nil
}

// RevokeSession отзывает один refresh-токен пользователя и заносит его в blacklist.
// Повторный отзыв уже отозванного токена не ошибка.
func (s *Service) RevokeSession(ctx context.Context, userID uuid.UUID, rawRefresh string) error {
	const op = "service.session.RevokeSession"

	claims, err := s.validate(rawRefresh)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !claims.IsRefresh() {
		return fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	owner, ok := claims.UserID()
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if owner != userID {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	hash := token.Hash(rawRefresh)
	if _, err := s.storage.RevokeRefreshToken(ctx, hash, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	entry := &models.BlacklistEntry{
		TokenHash: hash,
		TokenType: models.TokenTypeRefresh,
		ExpiresAt: claims.ExpiresAt,
		UserID:    &userID,
		Reason:    models.ReasonRevoked,
		CreatedAt: s.clock(),
	}
	if err := s.blacklist(ctx, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("session_revoked",
		slog.String("user_id", userID.String()),
		slog.String("token", redact.Fingerprint(hash)),
	)

	return nil
}

// Sessions возвращает активные сессии (записи refresh-токенов) пользователя.
func (s *Service) Sessions(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	const op = "service.session.Sessions"

	tokens, err := s.storage.ActiveRefreshTokens(ctx, userID, s.clock())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

// IsTokenBlacklisted проверяет сырой токен по blacklist: сначала кэш, затем БД.
// Ошибка кэша не фатальна и только логируется.
func (s *Service) IsTokenBlacklisted(ctx context.Context, raw string) (bool, error) {
	const op = "service.session.IsTokenBlacklisted"

	hash := token.Hash(raw)

	if s.bcache != nil {
		hit, err := s.bcache.Contains(ctx, hash)
		if err != nil {
			log.From(ctx).Warn("blacklist_cache_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if hit {
			s.metrics.BlacklistHit()
			return true, nil
		}
	}

	found, err := s.storage.IsBlacklisted(ctx, hash, s.clock())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if found {
		s.metrics.BlacklistHit()
	}

	return found, nil
}

// Introspect проверяет access-токен для других сервисов: подпись, срок, тип и blacklist.
func (s *Service) Introspect(ctx context.Context, rawAccess string) (*token.Claims, error) {
	const op = "service.session.Introspect"

	claims, err := s.validate(rawAccess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if claims.IsRefresh() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if _, ok := claims.UserID(); !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	blacklisted, err := s.IsTokenBlacklisted(ctx, rawAccess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if blacklisted {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	return claims, nil
}

// validate переводит результат кодека в доменные ошибки.
func (s *Service) validate(raw string) (*token.Claims, error) {
	res := s.codec.Validate(raw)
	claims, ok := res.Claims()
	if ok {
		return claims, nil
	}

	if errors.Is(res.Reason(), token.ErrExpired) {
		return nil, ErrTokenExpired
	}

	return nil, ErrInvalidToken
}

// blacklist сохраняет запись в БД и, если есть кэш, дублирует её туда.
func (s *Service) blacklist(ctx context.Context, entry *models.BlacklistEntry) error {
	if err := s.storage.AddToBlacklist(ctx, entry); err != nil {
		return err
	}

	if s.bcache != nil {
		if err := s.bcache.Add(ctx, entry); err != nil {
			log.From(ctx).Warn("blacklist_cache_write_failed",
				slog.String("err", err.Error()),
			)
		}
	}

	return nil
}
