// errors стандартизирует ответы об ошибках HTTP-слоя auth-сервиса.
// На вход он принимает ошибку сервиса (обёрнутую доменную sentinel-ошибку),
// а на выход даёт:
//   - корректный HTTP-статус;
//   - короткий стабильный код и безопасное message без утечки деталей.
//
// Сообщения об ошибках учётных данных и токенов намеренно общие.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/go-invoicing-auth/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Ошибки HTTP-слоя, не относящиеся к сервису.
var (
	// ErrInvalidArgument — тело запроса не разобрано или не прошло валидацию DTO.
	ErrInvalidArgument = stderrors.New("invalid argument")

	// ErrUnauthenticated — маршрут требует identity, а запрос анонимный.
	ErrUnauthenticated = stderrors.New("unauthenticated")
)

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type mapping struct {
	target  error
	status  int
	code    string
	message string
}

// Порядок важен: первое совпадение по errors.Is выигрывает.
var table = []mapping{
	{ErrInvalidArgument, http.StatusBadRequest, "invalid_argument", "invalid argument"},
	{ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "unauthenticated"},

	{service.ErrInvalidEmail, http.StatusBadRequest, "invalid_email", "invalid email format"},
	{service.ErrInvalidUsername, http.StatusBadRequest, "invalid_username", "invalid username"},
	{service.ErrEmptyPassword, http.StatusBadRequest, "invalid_password", "password is empty"},
	{service.ErrWeakPassword, http.StatusBadRequest, "weak_password", "password is too weak"},

	{service.ErrEmailTaken, http.StatusConflict, "email_taken", "email already taken"},
	{service.ErrUsernameTaken, http.StatusConflict, "username_taken", "username already taken"},
	{service.ErrAccountExists, http.StatusConflict, "already_exists", "account already exists"},

	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid credentials"},
	{service.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "invalid token"},
	{service.ErrTokenExpired, http.StatusUnauthorized, "invalid_token", "invalid token"},
	{service.ErrTokenRevoked, http.StatusUnauthorized, "invalid_token", "invalid token"},
	{service.ErrForbidden, http.StatusForbidden, "permission_denied", "permission denied"},

	{context.Canceled, StatusClientClosedRequest, "canceled", "canceled"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"},
}

// ToHTTP конвертирует ошибку сервиса в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - это программная ошибка вызова: возвращаем 500/internal,
//     чтобы не послать "200 OK" с телом ошибки и не маскировать баг;
//   - известная sentinel-ошибка маппится по таблице;
//   - всё остальное (инфраструктура) - 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	if err != nil {
		for _, m := range table {
			if stderrors.Is(err, m.target) {
				return m.status, ErrorResponse{
					Error: APIError{Code: m.code, Message: m.message},
				}
			}
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error: APIError{
			Code:    "internal",
			Message: "internal error",
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
