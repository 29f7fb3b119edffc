// transport/grpc содержит gRPC-эндпоинт интроспекции токенов для других
// сервисов приложения. Здесь выполняется только маппинг данных и ошибок
// доменного слоя (service) в gRPC.
//
// Принципы:
//   - невалидный, просроченный или занесённый в blacklist токен не является
//     ошибкой RPC: ответ {valid:false};
//   - пустой токен -> codes.InvalidArgument;
//   - отмена/дедлайн клиента -> codes.Canceled/codes.DeadlineExceeded;
//   - иные ошибки -> codes.Internal с единым безопасным сообщением,
//     подробности попадают в лог.
package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/pribylovaa/go-invoicing-auth/internal/pkg/log"
	"github.com/pribylovaa/go-invoicing-auth/internal/service"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
)

// Introspector — проверка access-токена сервисным слоем.
type Introspector interface {
	Introspect(ctx context.Context, rawAccess string) (*token.Claims, error)
}

// Server реализует IdentityServer поверх сервисного слоя.
type Server struct {
	service Introspector
}

// NewServer создаёт gRPC-сервер интроспекции.
func NewServer(service Introspector) *Server {
	return &Server{service: service}
}

var _ IdentityServer = (*Server)(nil)

// Introspect возвращает identity владельца access-токена.
func (s *Server) Introspect(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	const op = "transport.grpc.server.Introspect"

	raw := req.GetValue()
	if raw == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	claims, err := s.service.Introspect(ctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken),
			errors.Is(err, service.ErrTokenExpired),
			errors.Is(err, service.ErrTokenRevoked):
			return invalid(), nil
		case errors.Is(err, context.Canceled):
			return nil, status.Error(codes.Canceled, "canceled")
		case errors.Is(err, context.DeadlineExceeded):
			return nil, status.Error(codes.DeadlineExceeded, "deadline exceeded")
		}

		log.From(ctx).Error("introspect_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, status.Error(codes.Internal, "internal server error")
	}

	out, err := structpb.NewStruct(map[string]any{
		"valid":      true,
		"user_id":    claims.Subject,
		"username":   claims.Username,
		"email":      claims.Email,
		"role_id":    claims.RoleID,
		"token_id":   claims.TokenID,
		"expires_at": claims.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return out, nil
}

func invalid() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"valid": structpb.NewBoolValue(false),
	}}
}
