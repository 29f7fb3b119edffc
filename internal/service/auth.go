package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-invoicing-auth/internal/metrics"
	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/pkg/log"
	"github.com/pribylovaa/go-invoicing-auth/internal/pkg/redact"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
)

// RegisterInput — данные регистрации. Поля профиля необязательны.
type RegisterInput struct {
	Email    string
	Password string
	Username string
	FullName string

	Phone   string
	Company string
	Address string
	Country string

	Meta models.ClientMeta
}

// Login выполняет вход по email или username и паролю.
// Любая ошибка учётных данных возвращается как ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, login, password string, meta models.ClientMeta) (*models.AuthResult, error) {
	const op = "service.auth.Login"

	res, err := s.login(ctx, login, password, meta)
	switch {
	case err == nil:
		s.metrics.Login(metrics.ResultOK)
	case errors.Is(err, ErrInvalidCredentials):
		s.metrics.Login(metrics.ResultRejected)
	default:
		s.metrics.Login(metrics.ResultError)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (s *Service) login(ctx context.Context, login, password string, meta models.ClientMeta) (*models.AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var (
		account *models.Account
		err     error
	)
	if email, emailErr := validateEmail(login); emailErr == nil {
		account, err = s.storage.AccountByEmail(ctx, email)
	} else {
		account, err = s.storage.AccountByUsername(ctx, login)
	}

	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			burnPasswordCheck(password)
			log.From(ctx).Info("login_rejected", slog.String("login", redact.Login(login)))
			return nil, ErrInvalidCredentials
		}

		return nil, err
	}

	if !checkPassword(account.PasswordHash, password) {
		log.From(ctx).Info("login_rejected", slog.String("login", redact.Login(login)))
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issueSession(ctx, account, meta)
	if err != nil {
		return nil, err
	}

	return &models.AuthResult{Tokens: *pair, User: account.Info()}, nil
}

// Register создаёт аккаунт с ролью по умолчанию, затем профиль, и выдаёт пару токенов.
// Ошибка создания профиля только логируется: регистрация при этом успешна.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.AuthResult, error) {
	const op = "service.auth.Register"

	res, err := s.register(ctx, in)
	if err != nil {
		if isAuthFailure(err) {
			s.metrics.Registration(metrics.ResultRejected)
		} else {
			s.metrics.Registration(metrics.ResultError)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Registration(metrics.ResultOK)
	return res, nil
}

func (s *Service) register(ctx context.Context, in RegisterInput) (*models.AuthResult, error) {
	lg := log.From(ctx)

	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}

	username, err := validateUsername(in.Username)
	if err != nil {
		return nil, err
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	_, err = s.storage.AccountByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	_, err = s.storage.AccountByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	account := &models.Account{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hashed,
		RoleID:       models.DefaultRoleID,
		RoleName:     models.DefaultRoleName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrAccountExists
		}

		return nil, err
	}

	profile := &models.Profile{
		UserID:    account.ID,
		Phone:     strings.TrimSpace(in.Phone),
		Company:   strings.TrimSpace(in.Company),
		Address:   strings.TrimSpace(in.Address),
		Country:   strings.TrimSpace(in.Country),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.CreateProfile(ctx, profile); err != nil {
		lg.Warn("profile_create_failed",
			slog.String("user_id", account.ID.String()),
			slog.String("err", err.Error()),
		)
	}

	lg.Info("account_registered",
		slog.String("user_id", account.ID.String()),
		slog.String("email", redact.Email(email)),
	)

	pair, err := s.issueSession(ctx, account, in.Meta)
	if err != nil {
		return nil, err
	}

	return &models.AuthResult{Tokens: *pair, User: account.Info()}, nil
}

// Refresh обменивает refresh-токен на новую пару (ротация).
// Старая запись отзывается условно в одной транзакции с сохранением новой:
// из двух конкурентных вызовов с одним токеном успешен ровно один.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*models.AuthResult, error) {
	const op = "service.auth.Refresh"

	res, err := s.refresh(ctx, rawRefresh)
	if err != nil {
		if isTokenFailure(err) {
			s.metrics.Refresh(metrics.ResultRejected)
		} else {
			s.metrics.Refresh(metrics.ResultError)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Refresh(metrics.ResultOK)
	return res, nil
}

func (s *Service) refresh(ctx context.Context, rawRefresh string) (*models.AuthResult, error) {
	lg := log.From(ctx)

	claims, err := s.validate(rawRefresh)
	if err != nil {
		return nil, err
	}
	if !claims.IsRefresh() {
		return nil, ErrInvalidToken
	}

	userID, ok := claims.UserID()
	if !ok {
		return nil, ErrInvalidToken
	}

	hash := token.Hash(rawRefresh)
	record, err := s.storage.RefreshTokenByHashAndUser(ctx, hash, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, err
	}

	now := s.clock()
	if record.Revoked {
		lg.Warn("refresh_token_reused",
			slog.String("user_id", userID.String()),
			slog.String("token", redact.Fingerprint(hash)),
		)
		return nil, ErrTokenRevoked
	}
	if record.IsExpired(now) {
		return nil, ErrTokenExpired
	}

	account, err := s.storage.AccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, err
	}

	pair, next, err := s.issuePair(account, models.ClientMeta{
		DeviceInfo: record.DeviceInfo,
		IPAddress:  record.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	if err := s.storage.RotateRefreshToken(ctx, hash, userID, next); err != nil {
		switch {
		case errors.Is(err, storage.ErrRevoked):
			lg.Warn("refresh_rotation_lost",
				slog.String("user_id", userID.String()),
				slog.String("token", redact.Fingerprint(hash)),
			)
			return nil, ErrTokenRevoked
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrInvalidToken
		}

		lg.Error("refresh_rotation_failed",
			slog.String("user_id", userID.String()),
			slog.String("err", err.Error()),
		)
		return nil, err
	}

	return &models.AuthResult{Tokens: *pair, User: account.Info()}, nil
}

// issueSession выпускает пару токенов и сохраняет запись refresh-токена.
func (s *Service) issueSession(ctx context.Context, account *models.Account, meta models.ClientMeta) (*models.TokenPair, error) {
	const op = "service.auth.issueSession"

	pair, record, err := s.issuePair(account, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.CreateRefreshToken(ctx, record); err != nil {
		log.From(ctx).Error("refresh_token_save_failed",
			slog.String("op", op),
			slog.String("user_id", account.ID.String()),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// issuePair выпускает access+refresh и готовит запись для хранилища (без сохранения).
func (s *Service) issuePair(account *models.Account, meta models.ClientMeta) (*models.TokenPair, *models.RefreshToken, error) {
	const op = "service.auth.issuePair"

	sub := token.Subject{
		UserID:   account.ID,
		Username: account.Username,
		Email:    account.Email,
		RoleID:   account.RoleID,
	}

	access, err := s.codec.IssueAccessToken(sub)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.codec.IssueRefreshToken(sub)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	record := &models.RefreshToken{
		ID:         uuid.New(),
		UserID:     account.ID,
		TokenHash:  token.Hash(refresh.Token),
		ExpiresAt:  refresh.ExpiresAt,
		DeviceInfo: meta.DeviceInfo,
		IPAddress:  meta.IPAddress,
		CreatedAt:  s.clock(),
	}

	return &models.TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, record, nil
}

func isAuthFailure(err error) bool {
	for _, target := range []error{
		ErrInvalidCredentials, ErrEmailTaken, ErrUsernameTaken, ErrAccountExists,
		ErrInvalidEmail, ErrInvalidUsername, ErrWeakPassword, ErrEmptyPassword,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func isTokenFailure(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrForbidden)
}
