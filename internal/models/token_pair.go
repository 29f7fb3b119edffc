package models

import "time"

// TokenPair — пара токенов, выдаваемая при входе, регистрации и ротации.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult — результат Login/Register/Refresh.
type AuthResult struct {
	Tokens TokenPair
	User   UserInfo
}

// ClientMeta — метаданные клиента, сохраняемые вместе с refresh-токеном.
type ClientMeta struct {
	DeviceInfo string
	IPAddress  string
}
