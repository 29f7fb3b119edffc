package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile — вторичная запись с необязательными полями, создаётся при регистрации.
type Profile struct {
	UserID    uuid.UUID
	Phone     string
	Company   string
	Address   string
	Country   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
