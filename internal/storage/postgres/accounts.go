package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
)

// accountSelect — выборка аккаунта вместе с названием роли.
const accountSelect = `
	SELECT a.id, a.username, a.email, a.full_name, a.password_hash,
	       a.role_id, r.name, a.created_at, a.updated_at
	FROM accounts a
	JOIN roles r ON r.id = a.role_id
`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	var roleID int16

	if err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.FullName,
		&a.PasswordHash,
		&roleID,
		&a.RoleName,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	a.RoleID = int32(roleID)
	return &a, nil
}

// CreateAccount создаёт аккаунт. RoleName заполняется по справочнику ролей.
func (s *Storage) CreateAccount(ctx context.Context, account *models.Account) error {
	const op = "storage.postgres.CreateAccount"

	query := `
		WITH ins AS (
			INSERT INTO accounts(id, username, email, full_name, password_hash, role_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING role_id
		)
		SELECT r.name FROM ins JOIN roles r ON r.id = ins.role_id
	`

	err := s.db.QueryRow(ctx, query,
		account.ID,
		account.Username,
		account.Email,
		account.FullName,
		account.PasswordHash,
		int16(account.RoleID),
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.RoleName)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// AccountByEmail находит аккаунт по email.
func (s *Storage) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.postgres.AccountByEmail"

	return s.accountBy(ctx, op, accountSelect+` WHERE a.email = $1`, email)
}

// AccountByUsername находит аккаунт по username.
func (s *Storage) AccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	const op = "storage.postgres.AccountByUsername"

	return s.accountBy(ctx, op, accountSelect+` WHERE a.username = $1`, username)
}

// AccountByID находит аккаунт по ID.
func (s *Storage) AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	const op = "storage.postgres.AccountByID"

	return s.accountBy(ctx, op, accountSelect+` WHERE a.id = $1`, id)
}

func (s *Storage) accountBy(ctx context.Context, op, query string, arg any) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}
