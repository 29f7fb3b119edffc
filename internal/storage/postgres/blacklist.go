package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
)

// AddToBlacklist добавляет токен в blacklist. Повторное добавление не меняет запись.
func (s *Storage) AddToBlacklist(ctx context.Context, entry *models.BlacklistEntry) error {
	const op = "storage.postgres.AddToBlacklist"

	query := `
		INSERT INTO token_blacklist(token_hash, token_type, expires_at, user_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token_hash) DO NOTHING
	`

	_, err := s.db.Exec(ctx, query,
		entry.TokenHash,
		string(entry.TokenType),
		entry.ExpiresAt,
		entry.UserID,
		entry.Reason,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// IsBlacklisted сообщает, есть ли для хэша действующая (expires_at > now) запись.
func (s *Storage) IsBlacklisted(ctx context.Context, hash string, now time.Time) (bool, error) {
	const op = "storage.postgres.IsBlacklisted"

	query := `
		SELECT EXISTS(
			SELECT 1 FROM token_blacklist
			WHERE token_hash = $1 AND expires_at > $2
		)
	`

	var found bool
	if err := s.db.QueryRow(ctx, query, hash, now).Scan(&found); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return found, nil
}

// DeleteExpiredBlacklist удаляет записи с expires_at <= now.
func (s *Storage) DeleteExpiredBlacklist(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredBlacklist"

	n, err := deleteExpiredBlacklist(ctx, s.db, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func deleteExpiredBlacklist(ctx context.Context, q querier, now time.Time) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM token_blacklist WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// PurgeExpired удаляет просроченные записи обеих таблиц в одной транзакции.
func (s *Storage) PurgeExpired(ctx context.Context, now time.Time) (storage.PurgeResult, error) {
	const op = "storage.postgres.PurgeExpired"

	var res storage.PurgeResult
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		if res.RefreshTokens, err = deleteExpiredRefreshTokens(ctx, tx, now); err != nil {
			return err
		}

		res.Blacklist, err = deleteExpiredBlacklist(ctx, tx, now)
		return err
	})
	if err != nil {
		return storage.PurgeResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}
