package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — запись о выданном refresh-токене.
// Сам токен не хранится: только его хэш (sha256 → base64url).
type RefreshToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  *time.Time
	DeviceInfo string
	IPAddress  string
	CreatedAt  time.Time
}

// IsExpired сообщает, истёк ли срок записи к моменту now (now >= expires_at).
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsActive — не отозван и не истёк.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
