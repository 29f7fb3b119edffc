// Входные/выходные модели REST-слоя.
package handlers

import (
	"time"

	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
)

type registerRequest struct {
	Email      string `json:"email" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=72"`
	Username   string `json:"username" validate:"required,max=32"`
	FullName   string `json:"full_name" validate:"max=200"`
	Phone      string `json:"phone" validate:"max=32"`
	Company    string `json:"company" validate:"max=200"`
	Address    string `json:"address" validate:"max=500"`
	Country    string `json:"country" validate:"max=100"`
	DeviceInfo string `json:"device_info" validate:"max=255"`
}

type loginRequest struct {
	// Login — e-mail или username.
	Login      string `json:"login" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=72"`
	DeviceInfo string `json:"device_info" validate:"max=255"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type revokeSessionRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type userResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type authResponse struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token"`
	TokenType        string       `json:"token_type"`
	AccessExpiresAt  int64        `json:"access_expires_at"`  // Unix UTC
	RefreshExpiresAt int64        `json:"refresh_expires_at"` // Unix UTC
	User             userResponse `json:"user"`
}

type sessionResponse struct {
	ID         string    `json:"id"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type sessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type meResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	RoleID    int32  `json:"role_id"`
	ExpiresAt int64  `json:"expires_at"` // Unix UTC
}

func authFromModel(res *models.AuthResult) authResponse {
	return authResponse{
		AccessToken:      res.Tokens.AccessToken,
		RefreshToken:     res.Tokens.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  res.Tokens.AccessExpiresAt.Unix(),
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt.Unix(),
		User: userResponse{
			ID:          res.User.ID.String(),
			Username:    res.User.Username,
			DisplayName: res.User.DisplayName,
			Role:        res.User.RoleName,
		},
	}
}

// sessionsFromModel отдаёт только метаданные: ни токена, ни хэша.
func sessionsFromModel(recs []models.RefreshToken) sessionsResponse {
	out := sessionsResponse{Sessions: make([]sessionResponse, 0, len(recs))}
	for _, rec := range recs {
		out.Sessions = append(out.Sessions, sessionResponse{
			ID:         rec.ID.String(),
			DeviceInfo: rec.DeviceInfo,
			IPAddress:  rec.IPAddress,
			CreatedAt:  rec.CreatedAt.UTC(),
			ExpiresAt:  rec.ExpiresAt.UTC(),
		})
	}
	return out
}

func meFromClaims(c *token.Claims) meResponse {
	return meResponse{
		UserID:    c.Subject,
		Username:  c.Username,
		Email:     c.Email,
		RoleID:    c.RoleID,
		ExpiresAt: c.ExpiresAt.Unix(),
	}
}
