package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenType — тип токена в blacklist.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Причины попадания в blacklist.
const (
	ReasonLogout  = "logout"
	ReasonRevoked = "revoked"
)

// BlacklistEntry — явно инвалидированный токен.
// ExpiresAt копируется из самого токена; после него запись ни на что не влияет.
type BlacklistEntry struct {
	TokenHash string
	TokenType TokenType
	ExpiresAt time.Time
	UserID    *uuid.UUID
	Reason    string
	CreatedAt time.Time
}
