package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-invoicing-auth/internal/pkg/log"
)

// RequestIDFunc достаёт id входящего запроса из контекста вызывающей стороны.
type RequestIDFunc func(ctx context.Context) string

// ClientWithMetadata — добавляет в исходящий вызов x-request-id, если requestID вернул непустой id.
//
// user-agent gRPC перезаписывает своим значением, он задаётся при dial (grpc.WithUserAgent).
// Access-токен клиент передаёт в теле Introspect, поэтому authorization не ставится.
func ClientWithMetadata(requestID RequestIDFunc) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if requestID != nil {
			if rid := requestID(ctx); rid != "" {
				ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", rid)
			}
		}

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// ClientWithTimeout навешивает таймаут d на исходящий вызов, если у ctx ещё нет дедлайна.
// d <= 0 — вызов без изменений.
func ClientWithTimeout(d time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if d <= 0 {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		if _, ok := ctx.Deadline(); ok {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		cctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return invoker(cctx, method, req, reply, cc, opts...)
	}
}

// ClientUnaryLoggingInterceptor — одна запись msg="grpc" на исходящий вызов.
// x-request-id берётся из исходящего metadata, при отсутствии генерируется.
func ClientUnaryLoggingInterceptor(base *slog.Logger) grpc.UnaryClientInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()

		var rid string
		if md, ok := metadata.FromOutgoingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 && v[0] != "" {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
			ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", rid)
		}

		target := "-"
		if cc != nil && cc.Target() != "" {
			target = cc.Target()
		}

		l := base.With(
			slog.String("request_id", rid),
			slog.String("method", method),
			slog.String("target", target),
		)
		ctx = log.Into(ctx, l)

		err := invoker(ctx, method, req, reply, cc, opts...)

		l.Info("grpc",
			slog.String("code", status.Code(err).String()),
			slog.Duration("dur", time.Since(start)),
		)

		return err
	}
}
