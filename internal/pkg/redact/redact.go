// redact маскирует чувствительные значения перед записью в лог.
package redact

import (
	"strings"
	"unicode/utf8"
)

// Email оставляет первые две руны локальной части и домен.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}

	if utf8.RuneCountInString(local) > 2 {
		_, n1 := utf8.DecodeRuneInString(local)
		_, n2 := utf8.DecodeRuneInString(local[n1:])
		local = local[:n1+n2] + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Login маскирует идентификатор входа: email как в Email, username целиком не пишется.
func Login(s string) string {
	if strings.Contains(s, "@") {
		return Email(s)
	}

	if r, _ := utf8.DecodeRuneInString(s); r != utf8.RuneError {
		return string(r) + "***"
	}

	return "***"
}

// Fingerprint возвращает короткий префикс хэша токена для корреляции записей лога.
func Fingerprint(hash string) string {
	const n = 8
	if len(hash) <= n {
		return hash
	}

	return hash[:n]
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
