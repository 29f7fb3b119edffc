package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
)

// refreshColumns — единый порядок колонок для SELECT/RETURNING.
const refreshColumns = `
	id, user_id, token_hash, expires_at, revoked, revoked_at, device_info, ip_address, created_at
`

func scanRefreshToken(row pgx.Row) (*models.RefreshToken, error) {
	var t models.RefreshToken

	if err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.Revoked,
		&t.RevokedAt,
		&t.DeviceInfo,
		&t.IPAddress,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}

	return &t, nil
}

func insertRefreshToken(ctx context.Context, q querier, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens(id, user_id, token_hash, expires_at, revoked, device_info, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := q.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.Revoked,
		token.DeviceInfo,
		token.IPAddress,
		token.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return storage.ErrAlreadyExists
		}

		return err
	}

	return nil
}

// CreateRefreshToken сохраняет новый refresh-токен.
func (s *Storage) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.CreateRefreshToken"

	if err := insertRefreshToken(ctx, s.db, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenByHash находит refresh-токен по его хэшу.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	query := `SELECT ` + refreshColumns + ` FROM refresh_tokens WHERE token_hash = $1`

	token, err := scanRefreshToken(s.db.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// RefreshTokenByHashAndUser находит refresh-токен по хэшу в пределах пользователя.
func (s *Storage) RefreshTokenByHashAndUser(ctx context.Context, hash string, userID uuid.UUID) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHashAndUser"

	query := `SELECT ` + refreshColumns + ` FROM refresh_tokens WHERE token_hash = $1 AND user_id = $2`

	token, err := scanRefreshToken(s.db.QueryRow(ctx, query, hash, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// ActiveRefreshTokens возвращает активные сессии пользователя, новые первыми.
func (s *Storage) ActiveRefreshTokens(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RefreshToken, error) {
	const op = "storage.postgres.ActiveRefreshTokens"

	query := `
		SELECT ` + refreshColumns + `
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var tokens []models.RefreshToken
	for rows.Next() {
		token, err := scanRefreshToken(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tokens = append(tokens, *token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

// RevokeRefreshToken пытается отозвать refresh-токен пользователя, если он ещё не был отозван.
// Возвращает:
//
//	(true, nil)  — токен был активен и успешно отозван сейчас;
//	(false, nil) — токен существует, но уже был отозван;
//	(false, ErrNotFound) — токен не найден.
func (s *Storage) RevokeRefreshToken(ctx context.Context, hash string, userID uuid.UUID) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	const upd = `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = now()
		WHERE token_hash = $1 AND user_id = $2 AND revoked = FALSE
		RETURNING id
	`

	var id uuid.UUID
	err := s.db.QueryRow(ctx, upd, hash, userID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	const sel = `
		SELECT revoked
		FROM refresh_tokens
		WHERE token_hash = $1 AND user_id = $2
	`

	var revoked bool
	err = s.db.QueryRow(ctx, sel, hash, userID).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// RevokeAllRefreshTokens отзывает все неотозванные refresh-токены пользователя.
func (s *Storage) RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "storage.postgres.RevokeAllRefreshTokens"

	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = now()
		WHERE user_id = $1 AND revoked = FALSE
	`

	tag, err := s.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

// RotateRefreshToken атомарно отзывает старый токен и сохраняет новый.
// Отзыв условный (revoked = FALSE и не истёк к next.CreatedAt): из двух
// конкурентных ротаций одного токена успешно завершится только одна.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldHash string, userID uuid.UUID, next *models.RefreshToken) error {
	const op = "storage.postgres.RotateRefreshToken"

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		const upd = `
			UPDATE refresh_tokens
			SET revoked = TRUE, revoked_at = $3
			WHERE token_hash = $1 AND user_id = $2 AND revoked = FALSE AND expires_at > $3
			RETURNING id
		`

		var id uuid.UUID
		err := tx.QueryRow(ctx, upd, oldHash, userID, next.CreatedAt).Scan(&id)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}

			var exists bool
			const sel = `SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE token_hash = $1 AND user_id = $2)`
			if err := tx.QueryRow(ctx, sel, oldHash, userID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return storage.ErrNotFound
			}

			return storage.ErrRevoked
		}

		return insertRefreshToken(ctx, tx, next)
	})

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredRefreshTokens удаляет все просроченные refresh-токены, отозванные или нет.
func (s *Storage) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredRefreshTokens"

	n, err := deleteExpiredRefreshTokens(ctx, s.db, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func deleteExpiredRefreshTokens(ctx context.Context, q querier, now time.Time) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}
