// models содержит доменные сущности auth-сервиса.
// Типы используются слоями бизнес-логики, хранилища и транспорта.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли из справочника roles (см. миграцию 00001).
const (
	RoleAdminID int32 = 1
	RoleUserID  int32 = 2

	// DefaultRoleID назначается каждому зарегистрированному аккаунту.
	DefaultRoleID   = RoleUserID
	DefaultRoleName = "user"
)

// Account — учётная запись из справочника аккаунтов.
type Account struct {
	ID           uuid.UUID
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	RoleID       int32
	RoleName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserInfo — минимальные данные пользователя для отображения после входа.
type UserInfo struct {
	ID          uuid.UUID
	Username    string
	DisplayName string
	RoleName    string
}

// Info возвращает отображаемые данные аккаунта.
func (a *Account) Info() UserInfo {
	display := a.FullName
	if display == "" {
		display = a.Username
	}

	return UserInfo{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: display,
		RoleName:    a.RoleName,
	}
}
