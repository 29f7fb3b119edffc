package token

import (
	"crypto/sha256"
	"encoding/base64"
)

// Hash — односторонний хэш сырого токена (sha256 → base64url без padding).
// В хранилищах и логах фигурирует только он.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
