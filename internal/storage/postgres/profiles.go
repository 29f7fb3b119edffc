package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
)

// CreateProfile создаёт профиль аккаунта. Пустые поля сохраняются как ''.
func (s *Storage) CreateProfile(ctx context.Context, profile *models.Profile) error {
	const op = "storage.postgres.CreateProfile"

	query := `
		INSERT INTO profiles(user_id, phone, company, address, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		profile.UserID,
		profile.Phone,
		profile.Company,
		profile.Address,
		profile.Country,
		profile.CreatedAt,
		profile.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
			case pgerrcode.ForeignKeyViolation:
				return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
			}
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
