package grpc

import (
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/pribylovaa/go-invoicing-auth/internal/interceptors"
)

// ClientOptions — параметры исходящих вызовов к auth.v1.Identity.
type ClientOptions struct {
	UserAgent string
	Timeout   time.Duration
	// RequestID достаёт id входящего запроса вызывающего сервиса для x-request-id.
	RequestID interceptors.RequestIDFunc
	Logger    *slog.Logger
}

// IdentityConn — клиент вместе с коннектом, который он использует.
type IdentityConn struct {
	*IdentityClient
	conn *grpc.ClientConn
}

// Close закрывает коннект.
func (c *IdentityConn) Close() error { return c.conn.Close() }

// DialIdentity создаёт коннект к auth.v1.Identity с цепочкой
// metadata -> timeout -> logging; UserAgent задаётся опцией dial. extra дополняет опции (например, dialer в тестах).
func DialIdentity(addr string, opts ClientOptions, extra ...grpc.DialOption) (*IdentityConn, error) {
	const op = "transport.grpc.client.DialIdentity"

	if addr == "" {
		return nil, fmt.Errorf("%s: empty addr", op)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(
			interceptors.ClientWithMetadata(opts.RequestID),
			interceptors.ClientWithTimeout(opts.Timeout),
			interceptors.ClientUnaryLoggingInterceptor(opts.Logger),
		),
	}
	if opts.UserAgent != "" {
		dialOpts = append(dialOpts, grpc.WithUserAgent(opts.UserAgent))
	}
	dialOpts = append(dialOpts, extra...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &IdentityConn{IdentityClient: NewIdentityClient(conn), conn: conn}, nil
}
