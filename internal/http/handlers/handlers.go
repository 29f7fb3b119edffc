package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-invoicing-auth/internal/models"
	"github.com/pribylovaa/go-invoicing-auth/internal/service"
)

// AuthService — операции сервиса, нужные REST-слою.
type AuthService interface {
	Login(ctx context.Context, login, password string, meta models.ClientMeta) (*models.AuthResult, error)
	Register(ctx context.Context, in service.RegisterInput) (*models.AuthResult, error)
	Refresh(ctx context.Context, rawRefresh string) (*models.AuthResult, error)
	Logout(ctx context.Context, userID uuid.UUID, rawAccess string) error
	RevokeSession(ctx context.Context, userID uuid.UUID, rawRefresh string) error
	Sessions(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error)
}

// Handlers агрегирует зависимости REST-эндпоинтов.
type Handlers struct {
	svc      AuthService
	validate *validator.Validate
}

func New(svc AuthService) *Handlers {
	return &Handlers{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// bind разбирает тело и прогоняет DTO через validator.
func (h *Handlers) bind(r *http.Request, value any) error {
	if err := decodeStrict(r, value); err != nil {
		return err
	}
	return h.validate.Struct(value)
}

// clientMeta собирает метаданные клиента для записи refresh-токена.
// deviceInfo из тела приоритетнее User-Agent.
func clientMeta(r *http.Request, deviceInfo string) models.ClientMeta {
	device := strings.TrimSpace(deviceInfo)
	if device == "" {
		device = r.UserAgent()
	}

	return models.ClientMeta{
		DeviceInfo: truncate(device, 255),
		IPAddress:  clientIP(r),
	}
}

// clientIP: первый адрес X-Forwarded-For, затем X-Real-IP, затем RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
