package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-invoicing-auth/internal/pkg/log"
)

// Recover превращает панику обработчика в codes.Internal без деталей
// и пишет panic_recovered со стеком.
//
// В цепочке main Recover стоит первым, и логгера из контекста ещё нет:
// тогда пишет base, а request_id берётся прямо из входящего metadata.
func Recover(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			attrs := []slog.Attr{
				slog.String("method", info.FullMethod),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			}

			l := log.From(ctx)
			if l == slog.Default() {
				l = base
				if rid := incomingRequestID(ctx); rid != "" {
					attrs = append(attrs, slog.String("request_id", rid))
				}
			}

			l.LogAttrs(ctx, slog.LevelError, "panic_recovered", attrs...)

			resp, err = nil, status.Error(codes.Internal, "internal server error")
		}()

		return handler(ctx, req)
	}
}
